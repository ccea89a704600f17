package model

import (
	"fmt"
	"math"
	"time"
)

// Joint indexes the skeleton keypoints produced by the camera pose model.
type Joint int

const (
	JointNose Joint = iota
	JointLeftEar
	JointRightEar
	JointLeftShoulder
	JointRightShoulder
	JointLeftElbow
	JointRightElbow
	JointLeftWrist
	JointRightWrist
	JointLeftHip
	JointRightHip
	JointLeftKnee
	JointRightKnee
	JointLeftAnkle
	JointRightAnkle
	JointCount
)

var jointNames = [JointCount]string{
	"nose", "left_ear", "right_ear",
	"left_shoulder", "right_shoulder",
	"left_elbow", "right_elbow",
	"left_wrist", "right_wrist",
	"left_hip", "right_hip",
	"left_knee", "right_knee",
	"left_ankle", "right_ankle",
}

func (j Joint) String() string {
	if j < 0 || j >= JointCount {
		return "unknown"
	}
	return jointNames[j]
}

// ParseJoint maps a joint name to its Joint.
func ParseJoint(name string) (Joint, bool) {
	for i, n := range jointNames {
		if n == name {
			return Joint(i), true
		}
	}
	return 0, false
}

// Keypoint is one detected joint with its detector confidence in [0,1].
type Keypoint struct {
	Position   Vec3    `json:"position"`
	Confidence float64 `json:"confidence"`
}

// PoseFrame is one camera skeleton estimate.
type PoseFrame struct {
	Joints [JointCount]Keypoint `json:"joints"`
}

// Joint returns the keypoint position of j.
func (p *PoseFrame) Joint(j Joint) Vec3 { return p.Joints[j].Position }

// Confidence returns the mean keypoint confidence.
func (p *PoseFrame) Confidence() float64 {
	var sum float64
	for _, k := range p.Joints {
		sum += k.Confidence
	}
	return sum / float64(JointCount)
}

// MotionFrame is one orientation reading from a watch or headphone IMU,
// expressed as the rotation from device frame to the camera frame.
type MotionFrame struct {
	Orientation Quat `json:"orientation"`
}

// SensorSample is a single timestamped reading from one source. Timestamp
// is on the session's monotonic clock. Exactly one of Pose or Motion is set
// depending on Source.
type SensorSample struct {
	Source    Source        `json:"source"`
	Timestamp time.Duration `json:"timestamp"`
	Pose      *PoseFrame    `json:"pose,omitempty"`
	Motion    *MotionFrame  `json:"motion,omitempty"`
}

// Validate checks that the payload matches the source.
func (s SensorSample) Validate() error {
	if s.Timestamp < 0 {
		return fmt.Errorf("negative timestamp %s", s.Timestamp)
	}
	switch s.Source {
	case SourceCamera:
		if s.Pose == nil {
			return fmt.Errorf("camera sample without pose")
		}
		for i, k := range s.Pose.Joints {
			if k.Confidence < 0 || k.Confidence > 1 || math.IsNaN(k.Confidence) {
				return fmt.Errorf("joint %s confidence %v out of range", Joint(i), k.Confidence)
			}
		}
	case SourceWatch, SourceHeadphone:
		if s.Motion == nil {
			return fmt.Errorf("%s sample without motion", s.Source)
		}
		if s.Motion.Orientation.Norm() < 1e-6 {
			return fmt.Errorf("%s sample with zero orientation", s.Source)
		}
	default:
		return fmt.Errorf("unknown source %d", s.Source)
	}
	return nil
}
