package phase

import "errors"

var (
	ErrUnknownFamily  = errors.New("unknown movement family")
	ErrInvalidProfile = errors.New("invalid movement profile")
)
