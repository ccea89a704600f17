package calibration

import (
	"time"

	"github.com/okian/repsense/pkg/logger"
)

// Default calibration tunables.
const (
	DefaultNeutralFrames        = 20
	DefaultNeutralMinConfidence = 0.8
	DefaultTimeout              = 5 * time.Second
	DefaultDriftThresholdDeg    = 20.0
	// DefaultStabilityGain scales the spread penalty. Spread is measured in
	// degrees of device axis scatter plus centimeters of keypoint jitter.
	DefaultStabilityGain = 0.05
	// DefaultMinProfileConfidence is the lowest confidence accepted as
	// calibrated.
	DefaultMinProfileConfidence = 0.5
	// DefaultDriftSmoothing is the EMA weight of the newest residual.
	DefaultDriftSmoothing = 0.2
)

// Option configures a Calibrator.
type Option func(*Calibrator)

// WithNeutralFrames sets how many consecutive steady frames are captured.
func WithNeutralFrames(n int) Option {
	return func(c *Calibrator) {
		if n > 0 {
			c.needed = n
		}
	}
}

// WithNeutralMinConfidence sets the camera confidence a frame needs.
func WithNeutralMinConfidence(v float64) Option {
	return func(c *Calibrator) {
		if v > 0 && v <= 1 {
			c.minConfidence = v
		}
	}
}

// WithTimeout bounds the neutral capture.
func WithTimeout(d time.Duration) Option {
	return func(c *Calibrator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithDriftThreshold sets the residual in degrees that flags recalibration.
func WithDriftThreshold(deg float64) Option {
	return func(c *Calibrator) {
		if deg > 0 {
			c.driftThreshold = deg
		}
	}
}

// WithStabilityGain tunes the confidence penalty for scatter.
func WithStabilityGain(k float64) Option {
	return func(c *Calibrator) {
		if k >= 0 {
			c.stabilityGain = k
		}
	}
}

// WithLogger sets the calibrator logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Calibrator) {
		if l != nil {
			c.logger = l
		}
	}
}
