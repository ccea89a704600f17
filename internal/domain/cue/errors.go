package cue

import "errors"

// ErrInvalidRule is returned for malformed rule definitions.
var ErrInvalidRule = errors.New("invalid cue rule")
