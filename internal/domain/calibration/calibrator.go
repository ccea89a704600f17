// Package calibration captures a neutral pose, resolves each auxiliary
// device into the camera frame, and watches live residuals for drift.
package calibration

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/okian/repsense/internal/domain/features"
	"github.com/okian/repsense/internal/domain/ingest"
	"github.com/okian/repsense/internal/domain/model"
	"github.com/okian/repsense/pkg/logger"
	"github.com/okian/repsense/pkg/metrics"
)

type capture struct {
	confidence float64
	hipMid     model.Vec3
	shoulder   model.Vec3
	watch      *model.Quat
	watchSeg   model.Vec3
	head       *model.Quat
	headSeg    model.Vec3
}

// Calibrator is owned by the session and driven from the tick goroutine.
type Calibrator struct {
	state    State
	sources  model.SourceSet
	started  bool
	startAt  time.Duration
	captured []capture
	profile  *Profile
	version  int
	reason   string

	driftEMA  float64
	driftSeen bool

	needed               int
	minConfidence        float64
	timeout              time.Duration
	driftThreshold       float64
	stabilityGain        float64
	minProfileConfidence float64
	logger               logger.Logger
}

// New returns an idle Calibrator.
func New(opts ...Option) *Calibrator {
	c := &Calibrator{
		state:                StateIdle,
		needed:               DefaultNeutralFrames,
		minConfidence:        DefaultNeutralMinConfidence,
		timeout:              DefaultTimeout,
		driftThreshold:       DefaultDriftThresholdDeg,
		stabilityGain:        DefaultStabilityGain,
		minProfileConfidence: DefaultMinProfileConfidence,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("calibration")
	}
	return c
}

// State returns the current state.
func (c *Calibrator) State() State { return c.state }

// Profile returns the active profile, or nil before the first success.
func (c *Calibrator) Profile() *Profile { return c.profile }

// Status reports progress and the last failure reason.
func (c *Calibrator) Status() Status {
	s := Status{
		State:         c.state,
		Captured:      len(c.captured),
		Required:      c.needed,
		Reason:        c.reason,
		DriftResidual: c.driftEMA,
	}
	if c.profile != nil {
		s.Confidence = c.profile.Confidence
		s.RecalibrationRequired = c.profile.RecalibrationRequired
	}
	return s
}

// Begin starts a neutral capture for sources. It is valid from idle or
// after a failure, so a session can retry.
func (c *Calibrator) Begin(ctx context.Context, sources model.SourceSet) error {
	if c.state != StateIdle && c.state != StateFailed {
		return fmt.Errorf("%w: begin from %s", ErrInvalidState, c.state)
	}
	c.startCapture(ctx, sources)
	return nil
}

// Recalibrate restarts the neutral capture from a calibrated session. The
// current profile stays active until the new capture completes.
func (c *Calibrator) Recalibrate(ctx context.Context) error {
	if c.state != StateCalibrated {
		return fmt.Errorf("%w: recalibrate from %s", ErrInvalidState, c.state)
	}
	c.startCapture(ctx, c.sources)
	return nil
}

func (c *Calibrator) startCapture(ctx context.Context, sources model.SourceSet) {
	c.state = StateCapturingNeutral
	c.sources = sources
	c.started = false
	c.captured = c.captured[:0]
	c.reason = ""
	c.logger.Info(ctx, "calibration started",
		logger.String("sources", sources.String()),
		logger.Int("frames", c.needed))
}

// Reset discards all calibration state for a new session.
func (c *Calibrator) Reset() {
	c.state = StateIdle
	c.sources = 0
	c.started = false
	c.captured = nil
	c.profile = nil
	c.reason = ""
	c.driftEMA = 0
	c.driftSeen = false
}

// Observe feeds one aligned tick into an active capture. It returns a
// calibration_timeout or calibration_failed error when the capture ends
// unsuccessfully; the state is then failed and Begin may be called again.
// Segment directions are read from fc, the tick's computed features.
func (c *Calibrator) Observe(ctx context.Context, f *ingest.Frame, fc *features.Cache) error {
	if c.state != StateCapturingNeutral {
		return nil
	}
	if !c.started {
		c.started = true
		c.startAt = f.Tick
	}
	if f.Tick-c.startAt > c.timeout {
		return c.fail(ctx, model.KindCalibrationTimeout, fmt.Sprintf(
			"captured %d of %d steady frames in %s; stand still facing the camera with your full body in view",
			len(c.captured), c.needed, c.timeout))
	}

	pose := f.Pose()
	if pose == nil || pose.Confidence() < c.minConfidence {
		c.captured = c.captured[:0]
		return nil
	}

	cp := capture{
		confidence: pose.Confidence(),
		hipMid:     pose.Joint(model.JointLeftHip).Midpoint(pose.Joint(model.JointRightHip)),
		shoulder:   pose.Joint(model.JointLeftShoulder).Midpoint(pose.Joint(model.JointRightShoulder)),
	}
	if m := f.Motion(model.SourceWatch); m != nil && c.sources.Has(model.SourceWatch) {
		if seg, ok := fc.ForearmDir(); ok {
			q := m.Orientation.Normalize()
			cp.watch, cp.watchSeg = &q, seg
		}
	}
	if m := f.Motion(model.SourceHeadphone); m != nil && c.sources.Has(model.SourceHeadphone) {
		if seg, ok := fc.HeadDir(); ok {
			q := m.Orientation.Normalize()
			cp.head, cp.headSeg = &q, seg
		}
	}
	c.captured = append(c.captured, cp)
	if len(c.captured) < c.needed {
		return nil
	}

	c.state = StateComputingOffsets
	return c.compute(ctx, f.Tick)
}

func (c *Calibrator) compute(ctx context.Context, now time.Duration) error {
	n := float64(len(c.captured))
	var conf float64
	var hip, shoulder model.Vec3
	for _, cp := range c.captured {
		conf += cp.confidence
		hip = hip.Add(cp.hipMid)
		shoulder = shoulder.Add(cp.shoulder)
	}
	conf /= n
	hip = hip.Scale(1 / n)
	shoulder = shoulder.Scale(1 / n)

	var jitter float64
	for _, cp := range c.captured {
		d1, d2 := cp.hipMid.Sub(hip).Norm(), cp.shoulder.Sub(shoulder).Norm()
		jitter += d1*d1 + d2*d2
	}
	spread := math.Sqrt(jitter/(2*n)) * 100

	ref := features.Reference{NeutralHipY: hip.Y}
	resolved := model.NewSourceSet(model.SourceCamera)
	var devSpread []float64

	if off, s, ok := c.resolve(func(cp capture) (*model.Quat, model.Vec3) { return cp.watch, cp.watchSeg }, features.WatchAxis); ok {
		ref.Watch = &off
		resolved = resolved.With(model.SourceWatch)
		devSpread = append(devSpread, s)
	}
	if off, s, ok := c.resolve(func(cp capture) (*model.Quat, model.Vec3) { return cp.head, cp.headSeg }, features.HeadphoneAxis); ok {
		ref.Headphone = &off
		resolved = resolved.With(model.SourceHeadphone)
		devSpread = append(devSpread, s)
	}
	for _, s := range devSpread {
		spread += s / float64(len(devSpread))
	}

	confidence := model.Clamp01(conf / (1 + c.stabilityGain*spread))
	if confidence < c.minProfileConfidence {
		return c.fail(ctx, model.KindCalibrationFailed, fmt.Sprintf(
			"neutral pose too unsteady (confidence %.2f); hold still and keep the devices snug", confidence))
	}

	c.version++
	c.profile = &Profile{
		Version:    c.version,
		CapturedAt: now,
		Sources:    resolved,
		Confidence: confidence,
		reference:  ref,
	}
	c.state = StateCalibrated
	c.captured = c.captured[:0]
	c.driftEMA, c.driftSeen = 0, false

	metrics.RecordCalibrationOutcome(string(StateCalibrated))
	metrics.UpdateCalibrationConfidence(confidence)
	c.logger.Info(ctx, "calibration completed",
		logger.Int("version", c.version),
		logger.Float64("confidence", confidence),
		logger.String("devices", resolved.String()))
	return nil
}

// resolve averages one device's resting readings and measures how well the
// resulting offset explains every captured frame. Devices seen in fewer than
// half the frames are left unresolved.
func (c *Calibrator) resolve(pick func(capture) (*model.Quat, model.Vec3), axis model.Vec3) (features.DeviceOffset, float64, bool) {
	var sum model.Quat
	var seg model.Vec3
	var first *model.Quat
	count := 0
	for _, cp := range c.captured {
		q, s := pick(cp)
		if q == nil {
			continue
		}
		if first == nil {
			first = q
		}
		v := *q
		// Keep every reading in the same hemisphere as the first.
		if v.W*first.W+v.X*first.X+v.Y*first.Y+v.Z*first.Z < 0 {
			v = model.Quat{W: -v.W, X: -v.X, Y: -v.Y, Z: -v.Z}
		}
		sum = model.Quat{W: sum.W + v.W, X: sum.X + v.X, Y: sum.Y + v.Y, Z: sum.Z + v.Z}
		seg = seg.Add(s)
		count++
	}
	if count == 0 || count*2 < len(c.captured) {
		return features.DeviceOffset{}, 0, false
	}

	off := features.Resolve(sum.Normalize(), axis, seg)
	var sq float64
	for _, cp := range c.captured {
		q, s := pick(cp)
		if q == nil {
			continue
		}
		r := off.Predict(*q, axis).AngleTo(s)
		sq += r * r
	}
	return off, math.Sqrt(sq / float64(count)), true
}

func (c *Calibrator) fail(ctx context.Context, kind model.Kind, reason string) error {
	c.state = StateFailed
	c.reason = reason
	c.captured = c.captured[:0]
	err := model.NewError("calibration.observe", kind, reason)
	outcome := "failed"
	if kind == model.KindCalibrationTimeout {
		outcome = "timeout"
	}
	metrics.RecordCalibrationOutcome(outcome)
	c.logger.Warn(ctx, "calibration failed", logger.String("kind", string(kind)), logger.String("reason", reason))
	return err
}

// CheckDrift folds this tick's device residuals into a moving average. When
// the average first exceeds the threshold, the profile is replaced by a copy
// flagged for recalibration and a drift_detected error is returned. Tracking
// is not interrupted.
func (c *Calibrator) CheckDrift(ctx context.Context, cache *features.Cache) error {
	if c.state != StateCalibrated || c.profile == nil {
		return nil
	}
	var sum float64
	n := 0
	for _, name := range []features.Name{features.WatchResidual, features.HeadphoneResidual} {
		if v, ok := cache.Get(name); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	r := sum / float64(n)
	if !c.driftSeen {
		c.driftEMA, c.driftSeen = r, true
	} else {
		c.driftEMA += DefaultDriftSmoothing * (r - c.driftEMA)
	}
	if c.driftEMA <= c.driftThreshold || c.profile.RecalibrationRequired {
		return nil
	}

	c.profile = c.profile.withDrift()
	metrics.RecordDriftDetected()
	c.logger.Warn(ctx, "calibration drift detected",
		logger.Float64("residualDeg", c.driftEMA),
		logger.Float64("thresholdDeg", c.driftThreshold))
	return model.NewError("calibration.drift", model.KindDriftDetected,
		fmt.Sprintf("device residual %.1f° exceeds %.1f°; recalibrate when convenient", c.driftEMA, c.driftThreshold))
}
