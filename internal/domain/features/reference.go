package features

import "github.com/okian/repsense/internal/domain/model"

// Mount axes in device coordinates. The watch X axis runs along the forearm
// toward the hand; the headphone Z axis points where the wearer faces.
var (
	WatchAxis     = model.Vec3{X: 1}
	HeadphoneAxis = model.Vec3{Z: 1}
)

// WatchElbow and WatchWrist locate the arm that wears the watch.
const (
	WatchElbow = model.JointLeftElbow
	WatchWrist = model.JointLeftWrist
)

// DeviceOffset resolves one auxiliary device into the camera frame.
type DeviceOffset struct {
	// Offset rotates the device's world frame into the camera frame.
	Offset model.Quat
	// Neutral is the raw resting orientation captured during calibration.
	Neutral model.Quat
	// NeutralDir is the camera-observed segment direction at rest.
	NeutralDir model.Vec3
}

// Predict returns the camera-frame direction of axis for a raw reading.
func (d DeviceOffset) Predict(raw model.Quat, axis model.Vec3) model.Vec3 {
	return d.Offset.Rotate(raw.Rotate(axis)).Normalize()
}

// Reference is the calibrated neutral state features are measured against.
type Reference struct {
	NeutralHipY float64
	Watch       *DeviceOffset
	Headphone   *DeviceOffset
}

// WatchSegment and HeadSegment return the camera-observed directions the
// devices are aligned to.
func WatchSegment(p *model.PoseFrame) model.Vec3 {
	return p.Joint(WatchWrist).Sub(p.Joint(WatchElbow)).Normalize()
}

func HeadSegment(p *model.PoseFrame) model.Vec3 {
	ears := p.Joint(model.JointLeftEar).Midpoint(p.Joint(model.JointRightEar))
	return p.Joint(model.JointNose).Sub(ears).Normalize()
}

// Resolve builds the offset for a device whose resting reading raw was taken
// while the camera saw its mount axis along segment.
func Resolve(raw model.Quat, axis, segment model.Vec3) DeviceOffset {
	seg := segment.Normalize()
	raw = raw.Normalize()
	return DeviceOffset{
		Offset:     model.QuatFromTo(axis, seg).Mul(raw.Conj()).Normalize(),
		Neutral:    raw,
		NeutralDir: seg,
	}
}
