package service

import "errors"

// Sentinel error kinds for the session service.
var (
	ErrNotStarted     = errors.New("session not started")
	ErrInvalidSession = errors.New("invalid session configuration")
)
