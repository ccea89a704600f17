package features_test

import (
	"errors"
	"testing"

	"github.com/okian/repsense/internal/domain/features"
	"github.com/okian/repsense/internal/domain/fixture"
	"github.com/okian/repsense/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func reference(rig *fixture.Rig, p fixture.Params) *features.Reference {
	pose := fixture.Pose(p)
	watch := rig.Watch(0, p)
	head := rig.Headphone(0, p)
	w := features.Resolve(watch.Motion.Orientation, features.WatchAxis, features.WatchSegment(pose))
	h := features.Resolve(head.Motion.Orientation, features.HeadphoneAxis, features.HeadSegment(pose))
	return &features.Reference{
		NeutralHipY: pose.Joint(model.JointLeftHip).Midpoint(pose.Joint(model.JointRightHip)).Y,
		Watch:       &w,
		Headphone:   &h,
	}
}

func TestJointFeatures(t *testing.T) {
	Convey("Given the built-in registry", t, func() {
		reg := features.NewRegistry()

		Convey("When computing a standing pose", func() {
			c := reg.Compute(features.Input{Pose: fixture.Pose(fixture.Standing())})

			Convey("Then joints read as straight and upright", func() {
				v, ok := c.Get(features.KneeAngle)
				So(ok, ShouldBeTrue)
				So(v, ShouldAlmostEqual, 180, 1e-6)
				v, _ = c.Get(features.HipAngle)
				So(v, ShouldAlmostEqual, 180, 1e-6)
				v, _ = c.Get(features.ElbowAngle)
				So(v, ShouldAlmostEqual, 180, 1e-6)
				v, _ = c.Get(features.TorsoLean)
				So(v, ShouldAlmostEqual, 0, 1e-6)
				v, _ = c.Get(features.KneeWidthRatio)
				So(v, ShouldAlmostEqual, 1, 1e-9)
			})

			Convey("Then features needing calibration are absent", func() {
				So(c.Has(features.HipDrop), ShouldBeFalse)
				So(c.Has(features.WatchResidual), ShouldBeFalse)
			})

			Convey("Then the segment directions match the observed joints", func() {
				pose := fixture.Pose(fixture.Standing())
				fore, ok := c.ForearmDir()
				So(ok, ShouldBeTrue)
				So(fore.AngleTo(features.WatchSegment(pose)), ShouldAlmostEqual, 0, 1e-3)
				hd, ok := c.HeadDir()
				So(ok, ShouldBeTrue)
				So(hd.AngleTo(features.HeadSegment(pose)), ShouldAlmostEqual, 0, 1e-3)
			})
		})

		Convey("When the forearm joints are poorly detected", func() {
			pose := fixture.Pose(fixture.Standing())
			wrist := pose.Joints[features.WatchWrist]
			wrist.Confidence = 0.1
			pose.Joints[features.WatchWrist] = wrist
			c := reg.Compute(features.Input{Pose: pose})

			_, ok := c.ForearmDir()
			So(ok, ShouldBeFalse)
			_, ok = c.HeadDir()
			So(ok, ShouldBeTrue)
		})

		Convey("When computing a deep squat with a reference", func() {
			rig := fixture.NewRig()
			ref := reference(rig, fixture.Standing())
			c := reg.Compute(features.Input{Pose: fixture.Pose(fixture.Squat(90)), Reference: ref})

			Convey("Then angles and depth follow the posture", func() {
				v, _ := c.Get(features.KneeAngle)
				So(v, ShouldAlmostEqual, 90, 1e-6)
				v, _ = c.Get(features.HipAngle)
				So(v, ShouldAlmostEqual, 90, 1e-6)
				v, _ = c.Get(features.TorsoLean)
				So(v, ShouldAlmostEqual, 45, 1e-6)
				v, ok := c.Get(features.HipDrop)
				So(ok, ShouldBeTrue)
				So(v, ShouldBeGreaterThan, 0.2)
			})
		})

		Convey("When one knee is poorly detected", func() {
			pose := fixture.Pose(fixture.Squat(120))
			pose.Joints[model.JointLeftKnee].Confidence = 0.1
			c := reg.Compute(features.Input{Pose: pose})

			Convey("Then the mean falls back to the visible side", func() {
				So(c.Has(features.LeftKneeAngle), ShouldBeFalse)
				r, _ := c.Get(features.RightKneeAngle)
				v, ok := c.Get(features.KneeAngle)
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, r)
			})
		})

		Convey("When computing a lunge", func() {
			c := reg.Compute(features.Input{Pose: fixture.Pose(fixture.Lunge(100))})
			v, ok := c.Get(features.FrontKneeAngle)
			So(ok, ShouldBeTrue)
			So(v, ShouldAlmostEqual, 100, 1e-6)
		})

		Convey("When the knees cave inward", func() {
			p := fixture.Squat(110)
			p.KneeSpread = 0.6
			c := reg.Compute(features.Input{Pose: fixture.Pose(p)})
			v, _ := c.Get(features.KneeWidthRatio)
			So(v, ShouldAlmostEqual, 0.6, 1e-9)
		})
	})
}

func TestDeviceFeatures(t *testing.T) {
	Convey("Given a calibrated reference", t, func() {
		reg := features.NewRegistry()
		rig := fixture.NewRig()
		ref := reference(rig, fixture.Standing())

		Convey("When devices agree with the camera after the arm moves", func() {
			p := fixture.Press(90, false)
			c := reg.Compute(features.Input{
				Pose:      fixture.Pose(p),
				Watch:     rig.Watch(0, p).Motion,
				Headphone: rig.Headphone(0, p).Motion,
				Reference: ref,
			})

			Convey("Then residuals are near zero", func() {
				v, ok := c.Get(features.WatchResidual)
				So(ok, ShouldBeTrue)
				So(v, ShouldBeLessThan, 1e-3)
				v, ok = c.Get(features.HeadphoneResidual)
				So(ok, ShouldBeTrue)
				So(v, ShouldBeLessThan, 1e-3)
			})
		})

		Convey("When the watch reading disagrees with the camera", func() {
			c := reg.Compute(features.Input{
				Pose:      fixture.Pose(fixture.Press(90, false)),
				Watch:     rig.Watch(0, fixture.Standing()).Motion,
				Reference: ref,
			})
			v, _ := c.Get(features.WatchResidual)
			So(v, ShouldAlmostEqual, 90, 1e-3)
		})

		Convey("When the head pitches up", func() {
			p := fixture.Standing()
			p.HeadPitch = 20
			c := reg.Compute(features.Input{Pose: fixture.Pose(p), Headphone: rig.Headphone(0, p).Motion, Reference: ref})
			v, ok := c.Get(features.HeadPitchDelta)
			So(ok, ShouldBeTrue)
			So(v, ShouldAlmostEqual, 20, 1e-6)
		})

		Convey("When the wrist rolls without moving the forearm", func() {
			twisted := fixture.NewRig(fixture.WithWatchTwist(30))
			p := fixture.Standing()
			c := reg.Compute(features.Input{Pose: fixture.Pose(p), Watch: twisted.Watch(0, p).Motion, Reference: ref})
			v, _ := c.Get(features.WristRotationDelta)
			So(v, ShouldAlmostEqual, 30, 1e-6)
			r, _ := c.Get(features.WatchResidual)
			So(r, ShouldBeLessThan, 1e-3)
		})
	})
}

func TestComputeOnce(t *testing.T) {
	Convey("Given a registry with a compute hook", t, func() {
		counts := map[features.Name]int{}
		reg := features.NewRegistry(features.WithComputeHook(func(n features.Name) { counts[n]++ }))
		rig := fixture.NewRig()
		ref := reference(rig, fixture.Standing())

		Convey("Each feature is computed exactly once per tick", func() {
			for tick := 0; tick < 5; tick++ {
				p := fixture.Squat(150 - float64(tick)*10)
				reg.Compute(features.Input{
					Pose:      fixture.Pose(p),
					Watch:     rig.Watch(0, p).Motion,
					Headphone: rig.Headphone(0, p).Motion,
					Reference: ref,
				})
			}
			So(counts, ShouldHaveLength, reg.Len())
			for _, n := range reg.Names() {
				So(counts[n], ShouldEqual, 5)
			}
		})

		Convey("Missing input still evaluates each feature once and stores nothing", func() {
			c := reg.Compute(features.Input{})
			So(c.Len(), ShouldEqual, 0)
			total := 0
			for _, n := range counts {
				total += n
			}
			So(total, ShouldEqual, reg.Len())
		})
	})

	Convey("Given a custom registry", t, func() {
		reg := features.NewRegistry(features.WithoutDefaults())
		So(reg.Len(), ShouldEqual, 0)

		So(reg.Register(features.Feature{Name: "loop", Compute: func(s *features.Scope) (float64, bool) {
			return s.Value("loop")
		}}), ShouldBeNil)
		err := reg.Register(features.Feature{Name: "loop", Compute: func(*features.Scope) (float64, bool) { return 1, true }})
		So(errors.Is(err, features.ErrDuplicateFeature), ShouldBeTrue)
		So(reg.Register(features.Feature{Name: "nil"}), ShouldEqual, features.ErrInvalidFeature)

		Convey("Self references resolve as unavailable", func() {
			c := reg.Compute(features.Input{})
			So(c.Has("loop"), ShouldBeFalse)
			So(c.Names(), ShouldBeEmpty)
			So(c.Snapshot(), ShouldBeEmpty)
		})
	})
}
