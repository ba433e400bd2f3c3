package metrics

import (
	"errors"
)

// ErrObserveFailed is returned when a value cannot be recorded, for example
// a stage label outside the fixed set.
var ErrObserveFailed = errors.New("metrics observe failed")
