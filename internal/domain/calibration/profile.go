package calibration

import (
	"time"

	"github.com/okian/repsense/internal/domain/features"
	"github.com/okian/repsense/internal/domain/model"
)

// State is the calibration lifecycle.
type State string

const (
	StateIdle             State = "idle"
	StateCapturingNeutral State = "capturing_neutral"
	StateComputingOffsets State = "computing_offsets"
	StateCalibrated       State = "calibrated"
	StateFailed           State = "failed"
)

// Profile is the result of one neutral capture. A Profile is never modified
// after creation; recalibration and drift flagging produce a new value.
type Profile struct {
	Version    int
	CapturedAt time.Duration
	// Sources lists the devices resolved into the camera frame.
	Sources    model.SourceSet
	Confidence float64
	// RecalibrationRequired is set once live residuals drift past the
	// threshold. Tracking continues with the existing offsets.
	RecalibrationRequired bool

	reference features.Reference
}

// Reference returns the feature reference for fusion ticks. The returned
// value shares nothing mutable with the profile.
func (p *Profile) Reference() *features.Reference {
	if p == nil {
		return nil
	}
	ref := features.Reference{NeutralHipY: p.reference.NeutralHipY}
	if p.reference.Watch != nil {
		w := *p.reference.Watch
		ref.Watch = &w
	}
	if p.reference.Headphone != nil {
		h := *p.reference.Headphone
		ref.Headphone = &h
	}
	return &ref
}

// Offset returns the resolved offset for src.
func (p *Profile) Offset(src model.Source) (features.DeviceOffset, bool) {
	if p == nil {
		return features.DeviceOffset{}, false
	}
	switch src {
	case model.SourceWatch:
		if p.reference.Watch != nil {
			return *p.reference.Watch, true
		}
	case model.SourceHeadphone:
		if p.reference.Headphone != nil {
			return *p.reference.Headphone, true
		}
	}
	return features.DeviceOffset{}, false
}

func (p *Profile) withDrift() *Profile {
	c := *p
	c.RecalibrationRequired = true
	return &c
}

// Status summarizes the calibrator for the session layer.
type Status struct {
	State                 State   `json:"state"`
	Captured              int     `json:"captured"`
	Required              int     `json:"required"`
	Confidence            float64 `json:"confidence"`
	RecalibrationRequired bool    `json:"recalibrationRequired"`
	Reason                string  `json:"reason,omitempty"`
	DriftResidual         float64 `json:"driftResidual"`
}
