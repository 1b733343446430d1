package telemetry

import (
	"encoding/binary"
	"math"
)

// OrientationConvention declares how the three orientation values in a
// TCP pose are to be read. The convention is a property of the layout,
// declared up front — it is never inferred from the data.
type OrientationConvention int

const (
	// OrientationAxisAngle is a rotation vector whose magnitude is the
	// angle (the controller's native representation).
	OrientationAxisAngle OrientationConvention = iota
	// OrientationRPY is roll, pitch, yaw in radians.
	OrientationRPY
)

func (o OrientationConvention) String() string {
	if o == OrientationRPY {
		return "rpy"
	}
	return "axis-angle"
}

// Layout describes where fields live inside a full-state telemetry
// payload. The on-wire struct varies across controller firmware
// versions and is not fully documented, so the decoder is configured
// with a Layout rather than hard-wired. Offsets are relative to the
// byte after the message-type byte; -1 marks a field the layout does
// not know.
type Layout struct {
	Name        string
	Orientation OrientationConvention

	// MinFullState is the smallest payload treated as full-state
	// telemetry; payloads in [MinReduced, MinFullState) are reduced
	// status frames; anything smaller is ignored.
	MinFullState int
	MinReduced   int

	TCPPoseOffset int

	// JointAngleOffsets are tried in order; the first candidate whose
	// six doubles pass the plausibility check wins.
	JointAngleOffsets []int

	TCPSpeedOffset     int
	JointSpeedOffset   int
	RobotModeOffset    int
	SafetyModeOffset   int
	SpeedScalingOffset int
}

// DefaultLayout carries the offsets recovered by byte-offset analysis
// against a live controller. It is best-effort: fields it does not
// locate retain their previous values on decode.
func DefaultLayout() Layout {
	return Layout{
		Name:               "cb3-analysis",
		Orientation:        OrientationAxisAngle,
		MinFullState:       1060,
		MinReduced:         100,
		TCPPoseOffset:      8,
		JointAngleOffsets:  []int{248, 560, 584, 416, 440},
		TCPSpeedOffset:     -1,
		JointSpeedOffset:   -1,
		RobotModeOffset:    -1,
		SafetyModeOffset:   -1,
		SpeedScalingOffset: -1,
	}
}

// valid reports whether the layout is internally consistent.
func (l Layout) valid() bool {
	return l.MinReduced > 0 && l.MinFullState > l.MinReduced && l.TCPPoseOffset >= 0
}

// frameKind classifies a payload by size.
type frameKind int

const (
	frameIgnored frameKind = iota
	frameReduced
	frameFull
)

func (l Layout) classify(n int) frameKind {
	switch {
	case n >= l.MinFullState:
		return frameFull
	case n >= l.MinReduced:
		return frameReduced
	default:
		return frameIgnored
	}
}

// decode applies the layout to a full-state payload, starting from prev
// so unknown fields carry forward. payload[0] is the message-type byte.
func (l Layout) decode(payload []byte, prev RobotState) RobotState {
	st := prev
	body := payload[1:]

	if pose, ok := readVec6(body, l.TCPPoseOffset); ok && poseInWorkspace(pose) {
		st.TCPPose = pose
	}
	for _, off := range l.JointAngleOffsets {
		if joints, ok := readVec6(body, off); ok && jointsPlausible(joints) {
			st.JointAngles = joints
			break
		}
	}
	if v, ok := readVec6(body, l.TCPSpeedOffset); ok {
		st.TCPSpeed = v
	}
	if v, ok := readVec6(body, l.JointSpeedOffset); ok {
		st.JointSpeeds = v
	}
	if v, ok := readF64(body, l.RobotModeOffset); ok {
		st.RobotMode = int32(v)
	}
	if v, ok := readF64(body, l.SafetyModeOffset); ok {
		st.SafetyMode = int32(v)
		st.EmergencyStopped = isEmergencyMode(st.SafetyMode)
		st.ProtectiveStopped = isProtectiveMode(st.SafetyMode)
	}
	if v, ok := readF64(body, l.SpeedScalingOffset); ok && v >= 0 && v <= 1 {
		st.SpeedScaling = v
	}
	return st
}

// decodeReduced applies the layout's status fields to a reduced frame.
// With the default layout those offsets are unknown, so reduced frames
// only refresh the timestamp.
func (l Layout) decodeReduced(payload []byte, prev RobotState) RobotState {
	st := prev
	body := payload[1:]

	if v, ok := readF64(body, l.RobotModeOffset); ok {
		st.RobotMode = int32(v)
	}
	if v, ok := readF64(body, l.SafetyModeOffset); ok {
		st.SafetyMode = int32(v)
		st.EmergencyStopped = isEmergencyMode(st.SafetyMode)
		st.ProtectiveStopped = isProtectiveMode(st.SafetyMode)
	}
	return st
}

// Safety mode numbering from the dashboard protocol documentation.
const (
	safetyModeProtectiveStop  = 3
	safetyModeSystemEmergency = 6
	safetyModeRobotEmergency  = 7
)

func isEmergencyMode(m int32) bool {
	return m == safetyModeSystemEmergency || m == safetyModeRobotEmergency
}

func isProtectiveMode(m int32) bool {
	return m == safetyModeProtectiveStop
}

func readF64(data []byte, off int) (float64, bool) {
	if off < 0 || off+8 > len(data) {
		return 0, false
	}
	v := math.Float64frombits(binary.BigEndian.Uint64(data[off:]))
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func readVec6(data []byte, off int) ([6]float64, bool) {
	var vec [6]float64
	if off < 0 || off+48 > len(data) {
		return vec, false
	}
	for i := 0; i < 6; i++ {
		v, ok := readF64(data, off+i*8)
		if !ok {
			return vec, false
		}
		vec[i] = v
	}
	return vec, true
}

// poseInWorkspace filters garbage reads: a real TCP position sits well
// inside a 3 m sphere around the base.
func poseInWorkspace(pose [6]float64) bool {
	for i := 0; i < 3; i++ {
		if pose[i] < -3.0 || pose[i] > 3.0 {
			return false
		}
	}
	return true
}

// jointsPlausible filters garbage reads: joint angles stay within
// ±2 revolutions on this arm.
func jointsPlausible(joints [6]float64) bool {
	for _, j := range joints {
		if j < -7.0 || j > 7.0 {
			return false
		}
	}
	return true
}
