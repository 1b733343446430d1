package jog

import "github.com/teslashibe/go-urjog/internal/config"

// Commander is the command-channel surface the engine drives. The
// command channel satisfies it.
type Commander interface {
	SpeedLinear(velocities [6]float64, acceleration, timeLimit float64) bool
	SpeedJoint(speeds [6]float64, acceleration, timeLimit float64) bool
	StopLinear(deceleration float64) bool
	StopJoint(deceleration float64) bool
	MoveLinear(pose [6]float64, acceleration, speed, blend float64) bool
	MoveJoint(joints [6]float64, acceleration, speed, blend float64) bool
	IsConnected() bool
}

// PoseSource provides the live baseline for step moves. The telemetry
// channel satisfies it.
type PoseSource interface {
	TCPPose() [6]float64
	JointAngles() [6]float64
	IsConnected() bool
}

// Step-move speeds. Steps are short, so they run well below the
// continuous-jog limits.
const (
	stepLinearSpeed  = 0.1 // m/s
	stepAngularSpeed = 0.5 // rad/s
)

// profile captures everything that differs between cartesian and joint
// jogging: limits, ladders and which command family goes on the wire.
type profile struct {
	mode Mode

	maxSpeed     func(axis int) float64
	acceleration func(axis int) float64
	stepSizes    func(axis int) []float64
	stepSpeed    func(axis int) float64
	stopDecel    float64

	speed func(cmd Commander, v [6]float64, a, t float64) bool
	stop  func(cmd Commander, decel float64) bool
	move  func(cmd Commander, target [6]float64, a, v float64) bool
	pose  func(src PoseSource) [6]float64
}

// isLinear reports whether a cartesian axis index is translational
// (x, y, z) as opposed to rotational (rx, ry, rz).
func isLinear(axis int) bool { return axis < 3 }

func cartesianProfile(cfg config.CartesianConfig) profile {
	return profile{
		mode: ModeCartesian,
		maxSpeed: func(axis int) float64 {
			if isLinear(axis) {
				return cfg.MaxLinearSpeed
			}
			return cfg.MaxAngularSpeed
		},
		acceleration: func(axis int) float64 {
			if isLinear(axis) {
				return cfg.LinearAcceleration
			}
			return cfg.AngularAcceleration
		},
		stepSizes: func(axis int) []float64 {
			if isLinear(axis) {
				return cfg.LinearStepSizes
			}
			return cfg.AngularStepSizes
		},
		stepSpeed: func(axis int) float64 {
			if isLinear(axis) {
				return stepLinearSpeed
			}
			return stepAngularSpeed
		},
		stopDecel: cfg.StopDeceleration,
		speed: func(cmd Commander, v [6]float64, a, t float64) bool {
			return cmd.SpeedLinear(v, a, t)
		},
		stop: func(cmd Commander, decel float64) bool {
			return cmd.StopLinear(decel)
		},
		move: func(cmd Commander, target [6]float64, a, v float64) bool {
			return cmd.MoveLinear(target, a, v, 0)
		},
		pose: func(src PoseSource) [6]float64 {
			return src.TCPPose()
		},
	}
}

func jointProfile(cfg config.JointConfig) profile {
	return profile{
		mode:         ModeJoint,
		maxSpeed:     func(int) float64 { return cfg.MaxSpeed },
		acceleration: func(int) float64 { return cfg.Acceleration },
		stepSizes:    func(int) []float64 { return cfg.StepSizes },
		stepSpeed:    func(int) float64 { return stepAngularSpeed },
		stopDecel:    cfg.StopDeceleration,
		speed: func(cmd Commander, v [6]float64, a, t float64) bool {
			return cmd.SpeedJoint(v, a, t)
		},
		stop: func(cmd Commander, decel float64) bool {
			return cmd.StopJoint(decel)
		},
		move: func(cmd Commander, target [6]float64, a, v float64) bool {
			return cmd.MoveJoint(target, a, v, 0)
		},
		pose: func(src PoseSource) [6]float64 {
			return src.JointAngles()
		},
	}
}

// clampScale bounds a speed fraction to [0, 1].
func clampScale(scale float64) float64 {
	if scale < 0 {
		return 0
	}
	if scale > 1 {
		return 1
	}
	return scale
}

// clampStep bounds a requested step size to the largest ladder entry.
func (p profile) clampStep(axis int, step float64) float64 {
	ladder := p.stepSizes(axis)
	if len(ladder) == 0 {
		return step
	}
	if max := ladder[len(ladder)-1]; step > max {
		return max
	}
	return step
}
