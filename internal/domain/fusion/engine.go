// Package fusion runs the per-tick pipeline that turns aligned samples into
// one BodyState: compute every feature once, then fuse confidence.
package fusion

import (
	"context"

	"github.com/okian/repsense/internal/domain/calibration"
	"github.com/okian/repsense/internal/domain/features"
	"github.com/okian/repsense/internal/domain/ingest"
	"github.com/okian/repsense/internal/domain/model"
	"github.com/okian/repsense/pkg/logger"
	"github.com/okian/repsense/pkg/metrics"
)

// Default fusion tunables.
const (
	DefaultCameraWeight      = 0.7
	DefaultConsistencyWeight = 0.3
	DefaultLowConfidence     = 0.4
	// DefaultResidualScale is the device residual in degrees at which
	// consistency reaches zero.
	DefaultResidualScale = 45.0
)

// Engine owns the feature registry. It is not safe for concurrent use; the
// session calls Tick from a single goroutine.
type Engine struct {
	registry *features.Registry

	cameraWeight      float64
	consistencyWeight float64
	lowConfidence     float64
	residualScale     float64

	degraded bool
	logger   logger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRegistry replaces the built-in feature registry.
func WithRegistry(r *features.Registry) Option {
	return func(e *Engine) {
		if r != nil {
			e.registry = r
		}
	}
}

// WithWeights sets the camera and consistency weights.
func WithWeights(camera, consistency float64) Option {
	return func(e *Engine) {
		if camera >= 0 && consistency >= 0 && camera+consistency > 0 {
			e.cameraWeight, e.consistencyWeight = camera, consistency
		}
	}
}

// WithLowConfidence sets the degraded threshold.
func WithLowConfidence(v float64) Option {
	return func(e *Engine) {
		if v >= 0 && v <= 1 {
			e.lowConfidence = v
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine returns an Engine with the built-in features.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		cameraWeight:      DefaultCameraWeight,
		consistencyWeight: DefaultConsistencyWeight,
		lowConfidence:     DefaultLowConfidence,
		residualScale:     DefaultResidualScale,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = features.NewRegistry()
	}
	if e.logger == nil {
		e.logger = logger.Get().Named("fusion")
	}
	return e
}

// Registry exposes the feature list.
func (e *Engine) Registry() *features.Registry { return e.registry }

// Tick fuses one aligned frame. The profile may be nil before calibration,
// in which case reference-dependent features are absent.
func (e *Engine) Tick(ctx context.Context, f *ingest.Frame, profile *calibration.Profile) BodyState {
	mode := model.ModeFor(f.Present)
	st := BodyState{
		Timestamp:   f.Tick,
		Mode:        mode,
		Present:     f.Present,
		Consistency: -1,
	}
	if profile != nil {
		st.ProfileVersion = profile.Version
	}

	pose := f.Pose()
	if !mode.Supported() || pose == nil {
		st.Features = features.Empty()
		st.Degraded = true
		e.noteDegraded(ctx, st)
		return st
	}

	st.Features = e.registry.Compute(features.Input{
		Pose:      pose,
		Watch:     f.Motion(model.SourceWatch),
		Headphone: f.Motion(model.SourceHeadphone),
		Reference: profile.Reference(),
	})
	st.CameraConfidence = pose.Confidence()

	var sum float64
	n := 0
	for _, name := range []features.Name{features.WatchResidual, features.HeadphoneResidual} {
		if r, ok := st.Features.Get(name); ok {
			sum += model.Clamp01(1 - r/e.residualScale)
			n++
		}
	}

	ceiling := mode.ConfidenceCeiling()
	if n == 0 {
		// Without a residual nothing cross-checks the camera, whatever is attached.
		ceiling = min(ceiling, model.ModeVisualOnly.ConfidenceCeiling())
		st.Confidence = ceiling * st.CameraConfidence
	} else {
		st.Consistency = sum / float64(n)
		w := e.cameraWeight + e.consistencyWeight
		st.Confidence = ceiling * (e.cameraWeight*st.CameraConfidence + e.consistencyWeight*st.Consistency) / w
	}
	st.Confidence = model.Clamp01(st.Confidence)
	st.Degraded = st.Confidence < e.lowConfidence

	metrics.UpdateConfidence(st.Confidence)
	e.noteDegraded(ctx, st)
	return st
}

func (e *Engine) noteDegraded(ctx context.Context, st BodyState) {
	if st.Degraded {
		metrics.RecordDegradedTick()
	}
	if st.Degraded == e.degraded {
		return
	}
	e.degraded = st.Degraded
	if st.Degraded {
		e.logger.Warn(ctx, "fused confidence degraded",
			logger.Error(model.NewError("fusion.tick", model.KindLowConfidenceDegraded, string(st.Mode))),
			logger.Float64("confidence", st.Confidence))
		return
	}
	e.logger.Info(ctx, "fused confidence recovered", logger.Float64("confidence", st.Confidence))
}

// Reset clears the degraded latch for a new session.
func (e *Engine) Reset() { e.degraded = false }
