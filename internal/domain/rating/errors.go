package rating

import "errors"

// Sentinel error kinds for this package. These allow errors.Is from callers.
var (
	// ErrInvalidInput marks a record with a missing, non-numeric or
	// out-of-range field.
	ErrInvalidInput = errors.New("invalid input")
	// ErrParse marks a serialized record that could not be parsed at all.
	ErrParse = errors.New("parse error")
)
