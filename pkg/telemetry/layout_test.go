package telemetry

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func putF64(body []byte, off int, v float64) {
	binary.BigEndian.PutUint64(body[off:], math.Float64bits(v))
}

func putVec6(body []byte, off int, v [6]float64) {
	for i, x := range v {
		putF64(body, off+i*8, x)
	}
}

// fullPayload builds a payload that classifies as full-state under the
// default layout: one type byte plus a body carrying the given pose and
// joint angles at the documented offsets.
func fullPayload(pose, joints [6]float64) []byte {
	layout := DefaultLayout()
	payload := make([]byte, layout.MinFullState)
	body := payload[1:]
	putVec6(body, layout.TCPPoseOffset, pose)
	putVec6(body, layout.JointAngleOffsets[0], joints)
	return payload
}

func TestClassify_Boundaries(t *testing.T) {
	l := DefaultLayout()

	assert.Equal(t, frameFull, l.classify(l.MinFullState))
	assert.Equal(t, frameFull, l.classify(l.MinFullState+500))
	assert.Equal(t, frameReduced, l.classify(l.MinFullState-1))
	assert.Equal(t, frameReduced, l.classify(l.MinReduced))
	assert.Equal(t, frameIgnored, l.classify(l.MinReduced-1))
	assert.Equal(t, frameIgnored, l.classify(1))
}

func TestDecode_PoseAndJoints(t *testing.T) {
	l := DefaultLayout()
	pose := [6]float64{0.4, -0.2, 0.3, 0.1, 3.0, -0.5}
	joints := [6]float64{0.0, -1.57, 1.57, -0.5, 1.2, 3.1}

	st := l.decode(fullPayload(pose, joints), RobotState{})

	assert.Equal(t, pose, st.TCPPose)
	assert.Equal(t, joints, st.JointAngles)
}

func TestDecode_ImplausiblePoseRetained(t *testing.T) {
	l := DefaultLayout()
	prev := RobotState{TCPPose: [6]float64{0.1, 0.1, 0.1, 0, 0, 0}}

	// Positions far outside the workspace are garbage reads and must
	// not overwrite the last good pose.
	st := l.decode(fullPayload([6]float64{500, 0, 0, 0, 0, 0}, [6]float64{}), prev)

	assert.Equal(t, prev.TCPPose, st.TCPPose)
}

func TestDecode_JointCandidateFallback(t *testing.T) {
	l := DefaultLayout()
	joints := [6]float64{0.5, -0.5, 1.0, -1.0, 2.0, -2.0}

	payload := make([]byte, l.MinFullState)
	body := payload[1:]
	// First candidate holds implausible values; second holds the real
	// angles. The decoder must fall through.
	putVec6(body, l.JointAngleOffsets[0], [6]float64{100, 100, 100, 100, 100, 100})
	putVec6(body, l.JointAngleOffsets[1], joints)

	st := l.decode(payload, RobotState{})
	assert.Equal(t, joints, st.JointAngles)
}

func TestDecode_NaNRejected(t *testing.T) {
	l := DefaultLayout()
	payload := make([]byte, l.MinFullState)
	body := payload[1:]
	putVec6(body, l.TCPPoseOffset, [6]float64{math.NaN(), 0, 0, 0, 0, 0})

	prev := RobotState{TCPPose: [6]float64{0.2, 0, 0, 0, 0, 0}}
	st := l.decode(payload, prev)

	assert.Equal(t, prev.TCPPose, st.TCPPose)
}

func TestDecode_SafetyModeFlags(t *testing.T) {
	l := DefaultLayout()
	// The default layout has no safety mode offset; give it one so the
	// flag mapping can be exercised.
	l.SafetyModeOffset = 100

	for mode, want := range map[float64]struct{ emergency, protective bool }{
		1: {false, false},
		3: {false, true},
		6: {true, false},
		7: {true, false},
	} {
		payload := make([]byte, l.MinFullState)
		body := payload[1:]
		putVec6(body, l.TCPPoseOffset, [6]float64{})
		putF64(body, l.SafetyModeOffset, mode)

		st := l.decode(payload, RobotState{})
		assert.Equal(t, want.emergency, st.EmergencyStopped, "mode %v", mode)
		assert.Equal(t, want.protective, st.ProtectiveStopped, "mode %v", mode)
	}
}

func TestDecodeReduced_OnlyStatusFields(t *testing.T) {
	l := DefaultLayout()
	l.SafetyModeOffset = 8

	prev := RobotState{TCPPose: [6]float64{0.3, 0.2, 0.1, 0, 0, 0}}
	payload := make([]byte, l.MinReduced)
	putF64(payload[1:], l.SafetyModeOffset, 3)

	st := l.decodeReduced(payload, prev)
	assert.True(t, st.ProtectiveStopped)
	assert.Equal(t, prev.TCPPose, st.TCPPose)
}

func TestLayout_Valid(t *testing.T) {
	assert.True(t, DefaultLayout().valid())
	assert.False(t, Layout{}.valid())
	assert.False(t, Layout{MinReduced: 100, MinFullState: 50, TCPPoseOffset: 0}.valid())
}
