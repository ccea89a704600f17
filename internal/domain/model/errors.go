package model

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures.
type Kind string

const (
	KindCapabilityUnavailable  Kind = "capability_unavailable"
	KindStaleFrameDropped      Kind = "stale_frame_dropped"
	KindCalibrationTimeout     Kind = "calibration_timeout"
	KindCalibrationFailed      Kind = "calibration_failed"
	KindDriftDetected          Kind = "drift_detected"
	KindInvalidPhaseTransition Kind = "invalid_phase_transition"
	KindLowConfidenceDegraded  Kind = "low_confidence_degraded"
)

// Sentinel errors, one per Kind, for use with errors.Is.
var (
	ErrCapabilityUnavailable  = errors.New(string(KindCapabilityUnavailable))
	ErrStaleFrameDropped      = errors.New(string(KindStaleFrameDropped))
	ErrCalibrationTimeout     = errors.New(string(KindCalibrationTimeout))
	ErrCalibrationFailed      = errors.New(string(KindCalibrationFailed))
	ErrDriftDetected          = errors.New(string(KindDriftDetected))
	ErrInvalidPhaseTransition = errors.New(string(KindInvalidPhaseTransition))
	ErrLowConfidenceDegraded  = errors.New(string(KindLowConfidenceDegraded))
)

var kindSentinels = map[Kind]error{
	KindCapabilityUnavailable:  ErrCapabilityUnavailable,
	KindStaleFrameDropped:      ErrStaleFrameDropped,
	KindCalibrationTimeout:     ErrCalibrationTimeout,
	KindCalibrationFailed:      ErrCalibrationFailed,
	KindDriftDetected:          ErrDriftDetected,
	KindInvalidPhaseTransition: ErrInvalidPhaseTransition,
	KindLowConfidenceDegraded:  ErrLowConfidenceDegraded,
}

// Error carries an operation, a kind and a human readable reason.
type Error struct {
	Op     string
	Kind   Kind
	Reason string
	Err    error
}

// NewError builds an Error of kind k.
func NewError(op string, k Kind, reason string) *Error {
	return &Error{Op: op, Kind: k, Reason: reason}
}

// WrapError builds an Error of kind k around err.
func WrapError(op string, k Kind, err error) *Error {
	return &Error{Op: op, Kind: k, Err: err}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// KindOf returns the Kind of err, or "" when err is not a pipeline error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
