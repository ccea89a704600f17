package mqtt

import "errors"

// Sentinel errors for the telemetry publisher.
var (
	ErrNoBroker       = errors.New("mqtt broker not configured")
	ErrConnect        = errors.New("mqtt connect failed")
	ErrPublishTimeout = errors.New("mqtt publish timed out")
	ErrClosed         = errors.New("mqtt publisher closed")
)
