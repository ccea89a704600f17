package ws

import "errors"

// Sentinel errors for the cue hub.
var (
	ErrClosed        = errors.New("hub closed")
	ErrBroadcastFull = errors.New("broadcast buffer full")
)
