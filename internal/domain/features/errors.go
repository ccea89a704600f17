package features

import "errors"

var (
	ErrDuplicateFeature = errors.New("feature already registered")
	ErrInvalidFeature   = errors.New("feature needs a name and a compute function")
)
