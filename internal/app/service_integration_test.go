package service_test

import (
	"context"
	"testing"
	"time"

	service "github.com/okian/repsense/internal/app"
	"github.com/okian/repsense/internal/config"
	"github.com/okian/repsense/internal/domain/calibration"
	"github.com/okian/repsense/internal/domain/capability"
	"github.com/okian/repsense/internal/domain/cue"
	"github.com/okian/repsense/internal/domain/fixture"
	"github.com/okian/repsense/internal/domain/model"
	"github.com/okian/repsense/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestServiceIntegration(t *testing.T) {
	Convey("Given a noisy full-fusion session over several reps", t, func() {
		rec := cue.NewRecorder(64)
		svc, err := service.New(
			service.WithProber(allProber),
			service.WithManualTicks(),
			service.WithSink("recorder", rec),
			service.WithLogger(logger.Nop()),
		)
		So(err, ShouldBeNil)
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		rig := fixture.NewRig(fixture.WithSeed(42), fixture.WithJitter(0.002), fixture.WithOrientationNoise(1))
		tick := 0
		run := func(n int, p fixture.Params) {
			for i := 0; i < n; i++ {
				ts := time.Duration(tick) * period
				for _, smp := range rig.Samples(ts, p, model.AllSources) {
					So(svc.Ingest(smp), ShouldBeNil)
				}
				_, err := svc.Tick(context.Background(), ts)
				So(err, ShouldBeNil)
				tick++
			}
		}

		run(calibration.DefaultNeutralFrames+5, fixture.Standing())
		So(svc.Status().Calibration.State, ShouldEqual, calibration.StateCalibrated)

		const reps = 5
		for r := 0; r < reps; r++ {
			run(8, fixture.Squat(130))
			run(10, fixture.Squat(85))
			run(8, fixture.Squat(130))
			run(10, fixture.Standing())
		}

		Convey("Then every rep is counted exactly once", func() {
			So(svc.Status().Reps, ShouldEqual, reps)
			So(svc.Status().Phase, ShouldEqual, "standing")
		})

		Convey("Then p95 tick latency stays under 150ms", func() {
			So(svc.LatencyP95(), ShouldBeLessThanOrEqualTo, 150*time.Millisecond)
			stats := svc.GetStats()
			So(stats["ticks"], ShouldEqual, uint64(calibration.DefaultNeutralFrames+5+reps*36))
			So(stats["p95LatencyMs"], ShouldBeLessThanOrEqualTo, 150.0)
		})

		Convey("Then no drift is flagged for a stable rig", func() {
			So(svc.Status().Calibration.RecalibrationRequired, ShouldBeFalse)
		})
	})
}

func TestServiceTickLoop(t *testing.T) {
	Convey("Given a service running its own ticker", t, func() {
		cfg := config.New()
		cfg.Exercise = "vertical_press"
		svc, err := service.New(
			service.WithConfig(cfg),
			service.WithProber(capability.StaticProber{Camera: true}),
			service.WithLogger(logger.Nop()),
		)
		So(err, ShouldBeNil)
		So(svc.Start(context.Background()), ShouldBeNil)

		Convey("Then ticks advance until Stop", func() {
			So(waitFor(func() bool { return svc.GetStats()["ticks"].(uint64) >= 3 }), ShouldBeTrue)
			svc.Stop()
			after := svc.GetStats()["ticks"].(uint64)
			time.Sleep(100 * time.Millisecond)
			So(svc.GetStats()["ticks"], ShouldEqual, after)
			So(svc.Status().Phase, ShouldEqual, "rack")
		})
	})
}
