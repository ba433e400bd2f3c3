package config

import (
	"errors"
)

// Sentinel errors returned by Validate and Load.
var (
	// ErrInvalidConfig marks a value the calculator cannot run with.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig marks a file or environment source that could not be read.
	ErrLoadConfig = errors.New("load config failed")
)
