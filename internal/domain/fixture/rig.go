package fixture

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/okian/repsense/internal/domain/features"
	"github.com/okian/repsense/internal/domain/model"
)

// Rig turns postures into timestamped sensor samples, adding seeded noise
// and a fixed misalignment between each device's world frame and the camera.
type Rig struct {
	rng *rand.Rand

	jitter      float64
	orientNoise float64
	watchMount  model.Quat
	headMount   model.Quat
	watchTwist  float64
}

// Option configures a Rig.
type Option func(*Rig)

// WithSeed sets the noise seed.
func WithSeed(seed uint64) Option {
	return func(r *Rig) { r.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithJitter adds uniform keypoint noise of up to meters in each axis.
func WithJitter(meters float64) Option {
	return func(r *Rig) { r.jitter = meters }
}

// WithOrientationNoise rotates each device reading by up to deg degrees
// around a random axis.
func WithOrientationNoise(deg float64) Option {
	return func(r *Rig) { r.orientNoise = deg }
}

// WithMisalignment sets how the watch and headphone world frames differ from
// the camera frame.
func WithMisalignment(watch, headphone model.Quat) Option {
	return func(r *Rig) {
		r.watchMount = watch.Normalize()
		r.headMount = headphone.Normalize()
	}
}

// WithWatchTwist rolls the watch around the forearm by deg degrees, moving
// wrist rotation without moving the forearm.
func WithWatchTwist(deg float64) Option {
	return func(r *Rig) { r.watchTwist = deg }
}

// NewRig returns a rig with a fixed seed and a mild default misalignment.
func NewRig(opts ...Option) *Rig {
	r := &Rig{
		watchMount: model.QuatFromAxisAngle(model.Vec3{X: 0.3, Y: 1, Z: 0.2}, 35),
		headMount:  model.QuatFromAxisAngle(model.Vec3{X: -0.2, Y: 1, Z: 0.1}, -50),
	}
	WithSeed(1)(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Camera returns a camera sample for p at ts.
func (r *Rig) Camera(ts time.Duration, p Params) model.SensorSample {
	pose := Pose(p)
	if r.jitter > 0 {
		for i := range pose.Joints {
			pose.Joints[i].Position = pose.Joints[i].Position.Add(model.Vec3{
				X: r.uniform(r.jitter),
				Y: r.uniform(r.jitter),
				Z: r.uniform(r.jitter),
			})
		}
	}
	return model.SensorSample{Source: model.SourceCamera, Timestamp: ts, Pose: pose}
}

// Watch returns the watch reading consistent with the forearm of p.
func (r *Rig) Watch(ts time.Duration, p Params) model.SensorSample {
	forearm := features.WatchSegment(Pose(p))
	q := model.QuatFromTo(features.WatchAxis, forearm)
	if r.watchTwist != 0 {
		q = model.QuatFromAxisAngle(forearm, r.watchTwist).Mul(q)
	}
	return r.motion(model.SourceWatch, ts, q, r.watchMount)
}

// Headphone returns the headphone reading consistent with the head of p.
func (r *Rig) Headphone(ts time.Duration, p Params) model.SensorSample {
	q := model.QuatFromTo(features.HeadphoneAxis, features.HeadSegment(Pose(p)))
	return r.motion(model.SourceHeadphone, ts, q, r.headMount)
}

// Samples returns one sample per source in set, all stamped ts.
func (r *Rig) Samples(ts time.Duration, p Params, set model.SourceSet) []model.SensorSample {
	out := make([]model.SensorSample, 0, 3)
	if set.Has(model.SourceCamera) {
		out = append(out, r.Camera(ts, p))
	}
	if set.Has(model.SourceWatch) {
		out = append(out, r.Watch(ts, p))
	}
	if set.Has(model.SourceHeadphone) {
		out = append(out, r.Headphone(ts, p))
	}
	return out
}

// motion expresses camera-frame orientation cam in the device world frame.
func (r *Rig) motion(src model.Source, ts time.Duration, cam, mount model.Quat) model.SensorSample {
	raw := mount.Conj().Mul(cam)
	if r.orientNoise > 0 {
		axis := model.Vec3{X: r.uniform(1), Y: r.uniform(1), Z: r.uniform(1)}
		if axis.Norm() > 1e-6 {
			raw = model.QuatFromAxisAngle(axis, r.uniform(r.orientNoise)).Mul(raw)
		}
	}
	return model.SensorSample{
		Source:    src,
		Timestamp: ts,
		Motion:    &model.MotionFrame{Orientation: raw.Normalize()},
	}
}

func (r *Rig) uniform(limit float64) float64 {
	return (r.rng.Float64()*2 - 1) * limit
}

// TickTimes returns n tick instants spaced by period starting at start.
func TickTimes(start, period time.Duration, n int) []time.Duration {
	out := make([]time.Duration, n)
	for i := range out {
		out[i] = start + time.Duration(i)*period
	}
	return out
}

// Period returns the tick period for hz.
func Period(hz int) time.Duration {
	return time.Duration(math.Round(float64(time.Second) / float64(hz)))
}
