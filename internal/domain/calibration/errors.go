package calibration

import "errors"

// ErrInvalidState is returned when an operation is not valid in the
// calibrator's current state.
var ErrInvalidState = errors.New("invalid calibration state")
