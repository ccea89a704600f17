package fixture

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/repsense/internal/domain/calibration"
	"github.com/okian/repsense/internal/domain/features"
	"github.com/okian/repsense/internal/domain/ingest"
	"github.com/okian/repsense/internal/domain/model"
	"github.com/okian/repsense/pkg/logger"
)

// Frame builds an aligned tick directly, bypassing the synchronizer.
func (r *Rig) Frame(tick time.Duration, p Params, set model.SourceSet) *ingest.Frame {
	f := &ingest.Frame{Tick: tick}
	for _, s := range r.Samples(tick, p, set) {
		smp := s
		f.Samples[s.Source] = &smp
		f.Present = f.Present.With(s.Source)
	}
	return f
}

// Calibrate runs a neutral capture of the standing posture at 30 Hz and
// returns the resulting profile.
func Calibrate(ctx context.Context, r *Rig, set model.SourceSet) (*calibration.Profile, error) {
	c := calibration.New(calibration.WithLogger(logger.Nop()))
	if err := c.Begin(ctx, set); err != nil {
		return nil, err
	}
	period := Period(30)
	for i := 0; i < calibration.DefaultNeutralFrames; i++ {
		f := r.Frame(time.Duration(i)*period, Standing(), set)
		if err := c.Observe(ctx, f, Features(f)); err != nil {
			return nil, err
		}
	}
	if c.State() != calibration.StateCalibrated {
		return nil, fmt.Errorf("calibration ended in state %s", c.State())
	}
	return c.Profile(), nil
}

// Features computes the built-in features of an uncalibrated frame.
func Features(f *ingest.Frame) *features.Cache {
	return features.NewRegistry().Compute(features.Input{
		Pose:      f.Pose(),
		Watch:     f.Motion(model.SourceWatch),
		Headphone: f.Motion(model.SourceHeadphone),
	})
}
