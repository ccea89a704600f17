package features

import (
	"math"

	"github.com/okian/repsense/internal/domain/model"
)

// Built-in feature names. Angles are in degrees.
const (
	LeftKneeAngle      Name = "left_knee_angle"
	RightKneeAngle     Name = "right_knee_angle"
	KneeAngle          Name = "knee_angle"
	LeftHipAngle       Name = "left_hip_angle"
	RightHipAngle      Name = "right_hip_angle"
	HipAngle           Name = "hip_angle"
	LeftElbowAngle     Name = "left_elbow_angle"
	RightElbowAngle    Name = "right_elbow_angle"
	ElbowAngle         Name = "elbow_angle"
	FrontKneeAngle     Name = "front_knee_angle"
	TorsoLean          Name = "torso_lean"
	HipDrop            Name = "hip_drop"
	WristHeight        Name = "wrist_height"
	KneeWidthRatio     Name = "knee_width_ratio"
	HeadPitchDelta     Name = "head_pitch_delta"
	WristRotationDelta Name = "wrist_rotation_delta"
	WatchResidual      Name = "watch_residual"
	HeadphoneResidual  Name = "headphone_residual"

	// Camera-observed unit directions of the segments the devices are
	// aligned to, one component per feature.
	ForearmDirX Name = "forearm_dir_x"
	ForearmDirY Name = "forearm_dir_y"
	ForearmDirZ Name = "forearm_dir_z"
	HeadDirX    Name = "head_dir_x"
	HeadDirY    Name = "head_dir_y"
	HeadDirZ    Name = "head_dir_z"
)

// MinJointConfidence is the keypoint confidence below which a joint is
// treated as missing.
const MinJointConfidence = 0.3

func builtins() []Feature {
	return []Feature{
		{LeftKneeAngle, jointAngle(model.JointLeftHip, model.JointLeftKnee, model.JointLeftAnkle)},
		{RightKneeAngle, jointAngle(model.JointRightHip, model.JointRightKnee, model.JointRightAnkle)},
		{KneeAngle, mean(LeftKneeAngle, RightKneeAngle)},
		{LeftHipAngle, jointAngle(model.JointLeftShoulder, model.JointLeftHip, model.JointLeftKnee)},
		{RightHipAngle, jointAngle(model.JointRightShoulder, model.JointRightHip, model.JointRightKnee)},
		{HipAngle, mean(LeftHipAngle, RightHipAngle)},
		{LeftElbowAngle, jointAngle(model.JointLeftShoulder, model.JointLeftElbow, model.JointLeftWrist)},
		{RightElbowAngle, jointAngle(model.JointRightShoulder, model.JointRightElbow, model.JointRightWrist)},
		{ElbowAngle, mean(LeftElbowAngle, RightElbowAngle)},
		{FrontKneeAngle, frontKneeAngle},
		{TorsoLean, torsoLean},
		{HipDrop, hipDrop},
		{WristHeight, wristHeight},
		{KneeWidthRatio, kneeWidthRatio},
		{HeadPitchDelta, headPitchDelta},
		{WristRotationDelta, wristRotationDelta},
		{ForearmDirX, component(forearm, vecX)},
		{ForearmDirY, component(forearm, vecY)},
		{ForearmDirZ, component(forearm, vecZ)},
		{HeadDirX, component(head, vecX)},
		{HeadDirY, component(head, vecY)},
		{HeadDirZ, component(head, vecZ)},
		{WatchResidual, watchResidual},
		{HeadphoneResidual, headphoneResidual},
	}
}

// joints returns the positions of js when all are confidently detected.
func joints(s *Scope, js ...model.Joint) ([]model.Vec3, bool) {
	p := s.in.Pose
	if p == nil {
		return nil, false
	}
	out := make([]model.Vec3, len(js))
	for i, j := range js {
		k := p.Joints[j]
		if k.Confidence < MinJointConfidence {
			return nil, false
		}
		out[i] = k.Position
	}
	return out, true
}

// jointAngle measures the angle at b between a and c.
func jointAngle(a, b, c model.Joint) ComputeFunc {
	return func(s *Scope) (float64, bool) {
		v, ok := joints(s, a, b, c)
		if !ok {
			return 0, false
		}
		return finite(v[0].Sub(v[1]).AngleTo(v[2].Sub(v[1])))
	}
}

// mean averages whichever sides are available.
func mean(left, right Name) ComputeFunc {
	return func(s *Scope) (float64, bool) {
		l, lok := s.Value(left)
		r, rok := s.Value(right)
		switch {
		case lok && rok:
			return (l + r) / 2, true
		case lok:
			return l, true
		case rok:
			return r, true
		}
		return 0, false
	}
}

// frontKneeAngle uses the leg whose ankle is nearer the camera.
func frontKneeAngle(s *Scope) (float64, bool) {
	v, ok := joints(s, model.JointLeftAnkle, model.JointRightAnkle)
	if !ok {
		return 0, false
	}
	if v[0].Z >= v[1].Z {
		return s.Value(LeftKneeAngle)
	}
	return s.Value(RightKneeAngle)
}

// torsoLean is the angle of the hip-to-shoulder line from vertical.
func torsoLean(s *Scope) (float64, bool) {
	v, ok := joints(s, model.JointLeftHip, model.JointRightHip, model.JointLeftShoulder, model.JointRightShoulder)
	if !ok {
		return 0, false
	}
	spine := v[2].Midpoint(v[3]).Sub(v[0].Midpoint(v[1]))
	return finite(spine.AngleTo(model.Vec3{Y: 1}))
}

// hipDrop is how far the hip midpoint sits below its neutral height.
func hipDrop(s *Scope) (float64, bool) {
	ref := s.in.Reference
	if ref == nil {
		return 0, false
	}
	v, ok := joints(s, model.JointLeftHip, model.JointRightHip)
	if !ok {
		return 0, false
	}
	return finite(ref.NeutralHipY - v[0].Midpoint(v[1]).Y)
}

// wristHeight is the mean wrist height relative to the shoulder line.
func wristHeight(s *Scope) (float64, bool) {
	v, ok := joints(s, model.JointLeftWrist, model.JointRightWrist, model.JointLeftShoulder, model.JointRightShoulder)
	if !ok {
		return 0, false
	}
	return finite(v[0].Midpoint(v[1]).Y - v[2].Midpoint(v[3]).Y)
}

// kneeWidthRatio compares knee spread to ankle spread; values well below 1
// indicate the knees caving inward.
func kneeWidthRatio(s *Scope) (float64, bool) {
	v, ok := joints(s, model.JointLeftKnee, model.JointRightKnee, model.JointLeftAnkle, model.JointRightAnkle)
	if !ok {
		return 0, false
	}
	ankles := math.Abs(v[2].X - v[3].X)
	if ankles < 1e-6 {
		return 0, false
	}
	return finite(math.Abs(v[0].X-v[1].X) / ankles)
}

// headPitchDelta is the calibrated head pitch relative to neutral; positive
// means looking up.
func headPitchDelta(s *Scope) (float64, bool) {
	ref, m := s.in.Reference, s.in.Headphone
	if ref == nil || ref.Headphone == nil || m == nil {
		return 0, false
	}
	dir := ref.Headphone.Predict(m.Orientation, HeadphoneAxis)
	return finite(pitch(dir) - pitch(ref.Headphone.NeutralDir))
}

// wristRotationDelta is the watch rotation away from its resting pose.
func wristRotationDelta(s *Scope) (float64, bool) {
	ref, m := s.in.Reference, s.in.Watch
	if ref == nil || ref.Watch == nil || m == nil {
		return 0, false
	}
	return finite(m.Orientation.Normalize().AngleTo(ref.Watch.Neutral))
}

// watchResidual is the angle between the forearm direction predicted from
// the calibrated watch and the one observed by the camera.
func watchResidual(s *Scope) (float64, bool) {
	ref, m := s.in.Reference, s.in.Watch
	if ref == nil || ref.Watch == nil || m == nil {
		return 0, false
	}
	seg, ok := s.vec(ForearmDirX, ForearmDirY, ForearmDirZ)
	if !ok {
		return 0, false
	}
	pred := ref.Watch.Predict(m.Orientation, WatchAxis)
	return finite(pred.AngleTo(seg))
}

// headphoneResidual is the same check for the head-forward direction.
func headphoneResidual(s *Scope) (float64, bool) {
	ref, m := s.in.Reference, s.in.Headphone
	if ref == nil || ref.Headphone == nil || m == nil {
		return 0, false
	}
	seg, ok := s.vec(HeadDirX, HeadDirY, HeadDirZ)
	if !ok {
		return 0, false
	}
	pred := ref.Headphone.Predict(m.Orientation, HeadphoneAxis)
	return finite(pred.AngleTo(seg))
}

func forearm(s *Scope) (model.Vec3, bool) {
	if _, ok := joints(s, WatchElbow, WatchWrist); !ok {
		return model.Vec3{}, false
	}
	return nonZero(WatchSegment(s.in.Pose))
}

func head(s *Scope) (model.Vec3, bool) {
	if _, ok := joints(s, model.JointNose, model.JointLeftEar, model.JointRightEar); !ok {
		return model.Vec3{}, false
	}
	return nonZero(HeadSegment(s.in.Pose))
}

func nonZero(v model.Vec3) (model.Vec3, bool) { return v, v.Norm() > 0 }

// component exposes one axis of a segment direction.
func component(seg func(*Scope) (model.Vec3, bool), pick func(model.Vec3) float64) ComputeFunc {
	return func(s *Scope) (float64, bool) {
		v, ok := seg(s)
		if !ok {
			return 0, false
		}
		return finite(pick(v))
	}
}

func vecX(v model.Vec3) float64 { return v.X }
func vecY(v model.Vec3) float64 { return v.Y }
func vecZ(v model.Vec3) float64 { return v.Z }

func pitch(dir model.Vec3) float64 {
	return math.Asin(math.Max(-1, math.Min(1, dir.Normalize().Y))) * 180 / math.Pi
}

func finite(v float64) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
