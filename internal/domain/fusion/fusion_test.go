package fusion_test

import (
	"context"
	"testing"

	"github.com/okian/repsense/internal/domain/features"
	"github.com/okian/repsense/internal/domain/fixture"
	"github.com/okian/repsense/internal/domain/fusion"
	"github.com/okian/repsense/internal/domain/model"
	"github.com/okian/repsense/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEngineTick(t *testing.T) {
	Convey("Given a fusion engine and a calibrated profile", t, func() {
		ctx := context.Background()
		rig := fixture.NewRig()
		profile, err := fixture.Calibrate(ctx, rig, model.AllSources)
		So(err, ShouldBeNil)
		e := fusion.NewEngine(fusion.WithLogger(logger.Nop()))

		Convey("When all sources agree on a squat", func() {
			st := e.Tick(ctx, rig.Frame(0, fixture.Squat(100), model.AllSources), profile)

			Convey("Then one high confidence state is produced", func() {
				So(st.Mode, ShouldEqual, model.ModeFullFusion)
				So(st.Confidence, ShouldBeGreaterThanOrEqualTo, 0.6)
				So(st.Consistency, ShouldAlmostEqual, 1, 1e-3)
				So(st.Degraded, ShouldBeFalse)
				So(st.Tracking(), ShouldBeTrue)
				So(st.ProfileVersion, ShouldEqual, profile.Version)
				v, ok := st.Feature(features.KneeAngle)
				So(ok, ShouldBeTrue)
				So(v, ShouldAlmostEqual, 100, 1e-6)
			})
		})

		Convey("When only the camera is present", func() {
			st := e.Tick(ctx, rig.Frame(0, fixture.Standing(), model.NewSourceSet(model.SourceCamera)), profile)

			Convey("Then confidence is capped by the visual-only ceiling", func() {
				So(st.Mode, ShouldEqual, model.ModeVisualOnly)
				So(st.Consistency, ShouldEqual, -1)
				So(st.Confidence, ShouldAlmostEqual, 0.95*model.ModeVisualOnly.ConfidenceCeiling(), 1e-9)
			})
		})

		Convey("When the camera is missing", func() {
			st := e.Tick(ctx, rig.Frame(0, fixture.Standing(), model.NewSourceSet(model.SourceWatch, model.SourceHeadphone)), profile)

			Convey("Then the state is unsupported with no features", func() {
				So(st.Mode, ShouldEqual, model.ModeUnsupported)
				So(st.Confidence, ShouldEqual, 0)
				So(st.Features.Len(), ShouldEqual, 0)
				So(st.Degraded, ShouldBeTrue)
				So(st.Tracking(), ShouldBeFalse)
			})
		})

		Convey("When a device disagrees with the camera", func() {
			good := e.Tick(ctx, rig.Frame(0, fixture.Press(90, false), model.AllSources), profile)
			f := rig.Frame(0, fixture.Press(90, false), model.AllSources)
			stale := rig.Watch(0, fixture.Standing())
			f.Samples[model.SourceWatch] = &stale
			bad := e.Tick(ctx, f, profile)

			Convey("Then consistency and confidence drop", func() {
				So(bad.Consistency, ShouldBeLessThan, good.Consistency)
				So(bad.Confidence, ShouldBeLessThan, good.Confidence)
			})
		})

		Convey("When the camera pose is poor", func() {
			p := fixture.Squat(120)
			p.Confidence = 0.35
			st := e.Tick(ctx, rig.Frame(0, p, model.NewSourceSet(model.SourceCamera)), profile)

			Convey("Then output is degraded but features are still emitted", func() {
				So(st.Degraded, ShouldBeTrue)
				So(st.Confidence, ShouldBeLessThan, fusion.DefaultLowConfidence)
				So(st.Features.Has(features.KneeAngle), ShouldBeTrue)
			})
		})

		Convey("When no profile exists yet", func() {
			st := e.Tick(ctx, rig.Frame(0, fixture.Standing(), model.AllSources), nil)

			Convey("Then full fusion is held to the visual-only ceiling", func() {
				So(st.Mode, ShouldEqual, model.ModeFullFusion)
				So(st.Features.Has(features.WatchResidual), ShouldBeFalse)
				So(st.Consistency, ShouldEqual, -1)
				So(st.Confidence, ShouldAlmostEqual, 0.95*model.ModeVisualOnly.ConfidenceCeiling(), 1e-9)
			})
		})

		Convey("Across every source subset confidence stays within bounds", func() {
			for _, set := range model.AllSubsets() {
				st := e.Tick(ctx, rig.Frame(0, fixture.Squat(140), set), profile)
				So(st.Confidence, ShouldBeBetweenOrEqual, 0, 1)
				So(st.Mode, ShouldEqual, model.ModeFor(set))
			}
		})
	})
}

func TestEngineComputeOnce(t *testing.T) {
	Convey("Given an engine with an instrumented registry", t, func() {
		ctx := context.Background()
		rig := fixture.NewRig()
		profile, err := fixture.Calibrate(ctx, rig, model.AllSources)
		So(err, ShouldBeNil)

		counts := map[features.Name]int{}
		reg := features.NewRegistry(features.WithComputeHook(func(n features.Name) { counts[n]++ }))
		e := fusion.NewEngine(fusion.WithRegistry(reg), fusion.WithLogger(logger.Nop()))

		Convey("Downstream reads never trigger recomputation", func() {
			const ticks = 10
			for i := 0; i < ticks; i++ {
				st := e.Tick(ctx, rig.Frame(0, fixture.Squat(170-float64(i)*8), model.AllSources), profile)
				for _, n := range st.Features.Names() {
					_, _ = st.Feature(n)
					_, _ = st.Features.Get(n)
				}
			}
			for _, n := range reg.Names() {
				So(counts[n], ShouldEqual, ticks)
			}
		})
	})
}

func TestWeights(t *testing.T) {
	Convey("Given custom weights", t, func() {
		ctx := context.Background()
		rig := fixture.NewRig()
		profile, err := fixture.Calibrate(ctx, rig, model.AllSources)
		So(err, ShouldBeNil)

		p := fixture.Standing()
		p.Confidence = 0.5
		camOnly := fusion.NewEngine(fusion.WithWeights(1, 0), fusion.WithLogger(logger.Nop()))
		st := camOnly.Tick(ctx, rig.Frame(0, p, model.AllSources), profile)
		So(st.Confidence, ShouldAlmostEqual, 0.5, 1e-9)

		consOnly := fusion.NewEngine(fusion.WithWeights(0, 1), fusion.WithLogger(logger.Nop()))
		st = consOnly.Tick(ctx, rig.Frame(0, p, model.AllSources), profile)
		So(st.Confidence, ShouldAlmostEqual, 1, 1e-3)

		ignored := fusion.NewEngine(fusion.WithWeights(0, 0), fusion.WithLogger(logger.Nop()))
		st = ignored.Tick(ctx, rig.Frame(0, p, model.AllSources), profile)
		So(st.Confidence, ShouldAlmostEqual, 0.7*0.5+0.3, 1e-3)
	})
}
