// Package telemetry owns the robot's real-time interface: it frames and
// decodes the binary state stream and publishes immutable snapshots to
// subscribers.
package telemetry

import "time"

// RobotState is a snapshot of everything the real-time interface
// reports. The receive loop is the single writer; every consumer gets a
// value copy, never a shared reference. All array fields index axes or
// joints 0-5.
type RobotState struct {
	Timestamp time.Time

	TCPPose     [6]float64 // x, y, z (m) + 3 orientation values (see Layout.Orientation)
	JointAngles [6]float64 // radians

	TCPSpeed      [6]float64 // m/s and rad/s
	JointSpeeds   [6]float64 // rad/s
	JointCurrents [6]float64 // amps
	TCPForce      [6]float64 // N and Nm

	RobotMode  int32
	SafetyMode int32

	ProgramRunning    bool
	EmergencyStopped  bool
	ProtectiveStopped bool

	SpeedScaling float64 // 0..1

	DigitalInputs  uint64
	DigitalOutputs uint64
	AnalogInputs   [2]float64
	AnalogOutputs  [2]float64

	JointTemperatures [6]float64 // celsius

	// Reception statistics, maintained by the receive loop.
	ConnectionQuality int // percent
	MessagesReceived  uint64
	MessageFrequency  float64 // Hz, EMA-smoothed
}

// SafetyState is the safety-relevant slice of a RobotState, handed to
// safety-only subscribers and polled by the safety monitor.
type SafetyState struct {
	RobotMode         int32
	SafetyMode        int32
	EmergencyStopped  bool
	ProtectiveStopped bool
	ProgramRunning    bool
	SpeedScaling      float64
}

// Safety extracts the safety-relevant fields.
func (s RobotState) Safety() SafetyState {
	return SafetyState{
		RobotMode:         s.RobotMode,
		SafetyMode:        s.SafetyMode,
		EmergencyStopped:  s.EmergencyStopped,
		ProtectiveStopped: s.ProtectiveStopped,
		ProgramRunning:    s.ProgramRunning,
		SpeedScaling:      s.SpeedScaling,
	}
}
