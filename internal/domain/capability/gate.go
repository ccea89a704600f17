// Package capability decides at session start which sensor sources are
// usable and which operating mode follows from them.
package capability

import (
	"context"

	"github.com/okian/repsense/internal/domain/model"
	"github.com/okian/repsense/pkg/logger"
)

// Prober answers platform capability questions. Implementations wrap the
// host's camera, device-motion and wearable session APIs.
type Prober interface {
	CameraAvailable(ctx context.Context) bool
	HeadphoneMotionAvailable(ctx context.Context) bool
	Wearable(ctx context.Context) Reachability
}

// Report is the outcome of one probe.
type Report struct {
	Mode    model.DegradationMode
	Sources model.SourceSet
	// FallbackModeEnabled is set when an auxiliary source is missing. The
	// missing source stays absent until the next session probe.
	FallbackModeEnabled bool
	Wearable            Reachability
	// Err is a capability_unavailable error when the camera is missing.
	Err error
}

// Gate probes once per session.
type Gate struct {
	prober Prober
	logger logger.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the gate logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGate returns a Gate over prober.
func NewGate(prober Prober, opts ...Option) *Gate {
	g := &Gate{prober: prober}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = logger.Get().Named("capability")
	}
	return g
}

// Probe never fails startup: missing auxiliary sources enable fallback and
// a missing camera yields the unsupported mode with an error in the report.
// known is the furthest wearable state already observed through edge
// events; the report uses whichever of it and the reachability check is
// further along.
func (g *Gate) Probe(ctx context.Context, known Reachability) Report {
	var r Report
	if g.prober == nil {
		r.Mode = model.ModeUnsupported
		r.FallbackModeEnabled = true
		r.Err = model.NewError("capability.probe", model.KindCapabilityUnavailable, "no capability prober configured")
		return r
	}

	camera := g.prober.CameraAvailable(ctx)
	head := g.prober.HeadphoneMotionAvailable(ctx)
	r.Wearable = max(g.prober.Wearable(ctx), known)

	if camera {
		r.Sources = r.Sources.With(model.SourceCamera)
	}
	if r.Wearable == Ready {
		r.Sources = r.Sources.With(model.SourceWatch)
	} else {
		r.FallbackModeEnabled = true
		g.logger.Warn(ctx, "wearable motion unavailable, continuing without watch",
			logger.String("reachability", r.Wearable.String()))
	}
	if head {
		r.Sources = r.Sources.With(model.SourceHeadphone)
	} else {
		r.FallbackModeEnabled = true
		g.logger.Warn(ctx, "headphone motion unavailable, continuing without headphone")
	}

	r.Mode = model.ModeFor(r.Sources)
	if !camera {
		r.Err = model.NewError("capability.probe", model.KindCapabilityUnavailable,
			"camera unavailable; grant camera access and face the device")
		g.logger.Error(ctx, "camera anchor unavailable", logger.Error(r.Err))
	}
	return r
}

// StaticProber answers from fixed values. Hosts without platform probes and
// tests use it.
type StaticProber struct {
	Camera    bool
	Headphone bool
	Watch     Reachability
}

func (p StaticProber) CameraAvailable(context.Context) bool          { return p.Camera }
func (p StaticProber) HeadphoneMotionAvailable(context.Context) bool { return p.Headphone }
func (p StaticProber) Wearable(context.Context) Reachability         { return p.Watch }
