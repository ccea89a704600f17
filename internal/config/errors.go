package config

import "errors"

// Sentinel error kinds for this package.
var (
	ErrInvalidConfig   = errors.New("invalid config")
	ErrLoadConfig      = errors.New("load config failed")
	ErrUnknownExercise = errors.New("unknown exercise")
)
