// Package fixture generates deterministic synthetic skeletons and device
// orientations for exercising the fusion pipeline without hardware.
package fixture

import (
	"math"

	"github.com/okian/repsense/internal/domain/model"
)

// Segment lengths in meters.
const (
	shankLength    = 0.45
	thighLength    = 0.45
	torsoLength    = 0.55
	upperArmLength = 0.30
	forearmLength  = 0.28
	shoulderHalf   = 0.20
	hipHalf        = 0.12
	neckHeight     = 0.18
	earHalf        = 0.08
	noseForward    = 0.10
)

// Params describes a body posture. Angles are in degrees.
type Params struct {
	KneeAngle  float64
	TorsoLean  float64
	ElbowAngle float64
	HeadPitch  float64
	// ArmsOverhead points the upper arms up instead of down.
	ArmsOverhead bool
	// StanceHalfWidth is half the ankle spread.
	StanceHalfWidth float64
	// KneeSpread scales knee spread relative to the ankles; 1 keeps them
	// stacked.
	KneeSpread float64
	// LeftFootForward moves the left ankle toward the camera.
	LeftFootForward float64
	// Confidence is assigned to every keypoint.
	Confidence float64
}

// Standing is an upright neutral posture with arms hanging.
func Standing() Params {
	return Params{
		KneeAngle:       180,
		ElbowAngle:      180,
		StanceHalfWidth: hipHalf,
		KneeSpread:      1,
		Confidence:      0.95,
	}
}

// Squat returns the standing posture at the given knee angle, leaning the
// torso enough to keep the hips over the feet.
func Squat(kneeAngle float64) Params {
	p := Standing()
	p.KneeAngle = kneeAngle
	p.TorsoLean = (180 - kneeAngle) / 2
	return p
}

// Hinge returns a hip hinge with soft knees at the given hip angle.
func Hinge(hipAngle float64) Params {
	p := Standing()
	p.KneeAngle = 170
	flex := (180 - p.KneeAngle) / 2
	p.TorsoLean = 180 - hipAngle - flex
	return p
}

// Lunge returns a split stance with the left foot forward.
func Lunge(kneeAngle float64) Params {
	p := Standing()
	p.KneeAngle = kneeAngle
	p.LeftFootForward = 0.35
	return p
}

// Press returns a press posture at the given elbow angle.
func Press(elbowAngle float64, overhead bool) Params {
	p := Standing()
	p.ElbowAngle = elbowAngle
	p.ArmsOverhead = overhead
	return p
}

// Pose builds the keypoints for p. The subject faces the camera.
func Pose(p Params) *model.PoseFrame {
	if p.KneeSpread == 0 {
		p.KneeSpread = 1
	}
	if p.StanceHalfWidth == 0 {
		p.StanceHalfWidth = hipHalf
	}

	a := radians(180-p.KneeAngle) / 2
	t := radians(p.TorsoLean)

	var f model.PoseFrame
	var hips [2]model.Vec3
	for i, side := range []float64{-1, 1} {
		ankle := model.Vec3{X: side * p.StanceHalfWidth}
		if side < 0 {
			ankle.Z = p.LeftFootForward
		}
		knee := ankle.Add(model.Vec3{Y: shankLength * math.Cos(a), Z: shankLength * math.Sin(a)})
		knee.X *= p.KneeSpread
		hip := knee.Add(model.Vec3{Y: thighLength * math.Cos(a), Z: -thighLength * math.Sin(a)})
		hip.X = side * hipHalf
		hips[i] = hip
		if side < 0 {
			f.Joints[model.JointLeftAnkle].Position = ankle
			f.Joints[model.JointLeftKnee].Position = knee
			f.Joints[model.JointLeftHip].Position = hip
		} else {
			f.Joints[model.JointRightAnkle].Position = ankle
			f.Joints[model.JointRightKnee].Position = knee
			f.Joints[model.JointRightHip].Position = hip
		}
	}

	hipMid := hips[0].Midpoint(hips[1])
	spine := model.Vec3{Y: math.Cos(t), Z: math.Sin(t)}
	shoulderMid := hipMid.Add(spine.Scale(torsoLength))

	b := radians(180 - p.ElbowAngle)
	for _, side := range []float64{-1, 1} {
		shoulder := shoulderMid.Add(model.Vec3{X: side * shoulderHalf})
		var elbow, wrist model.Vec3
		if p.ArmsOverhead {
			elbow = shoulder.Add(model.Vec3{Y: upperArmLength})
			wrist = elbow.Add(model.Vec3{Y: forearmLength * math.Cos(b), Z: forearmLength * math.Sin(b)})
		} else {
			elbow = shoulder.Add(model.Vec3{Y: -upperArmLength})
			wrist = elbow.Add(model.Vec3{Y: -forearmLength * math.Cos(b), Z: forearmLength * math.Sin(b)})
		}
		if side < 0 {
			f.Joints[model.JointLeftShoulder].Position = shoulder
			f.Joints[model.JointLeftElbow].Position = elbow
			f.Joints[model.JointLeftWrist].Position = wrist
		} else {
			f.Joints[model.JointRightShoulder].Position = shoulder
			f.Joints[model.JointRightElbow].Position = elbow
			f.Joints[model.JointRightWrist].Position = wrist
		}
	}

	head := shoulderMid.Add(model.Vec3{Y: neckHeight})
	h := radians(p.HeadPitch)
	f.Joints[model.JointLeftEar].Position = head.Add(model.Vec3{X: -earHalf})
	f.Joints[model.JointRightEar].Position = head.Add(model.Vec3{X: earHalf})
	f.Joints[model.JointNose].Position = head.Add(model.Vec3{Y: noseForward * math.Sin(h), Z: noseForward * math.Cos(h)})

	for i := range f.Joints {
		f.Joints[i].Confidence = p.Confidence
	}
	return &f
}

func radians(d float64) float64 { return d * math.Pi / 180 }
