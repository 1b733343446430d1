// Package jog implements manual robot motion: keep-alive continuous
// jogging and discrete step moves, in cartesian or joint space.
package jog

import (
	"fmt"

	"github.com/google/uuid"
)

// Mode selects the motion space a jog operates in.
type Mode int

const (
	ModeCartesian Mode = iota
	ModeJoint
)

func (m Mode) String() string {
	switch m {
	case ModeCartesian:
		return "cartesian"
	case ModeJoint:
		return "joint"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode maps a mode name to its Mode value.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "cartesian":
		return ModeCartesian, nil
	case "joint":
		return ModeJoint, nil
	default:
		return 0, fmt.Errorf("jog: unknown mode %q", s)
	}
}

// Direction is the sign of a jog: +1 or -1.
type Direction int

const (
	Positive Direction = 1
	Negative Direction = -1
)

// Session identifies one continuous jog from start to stop.
type Session struct {
	ID         string
	Mode       Mode
	Axis       int
	Direction  Direction
	SpeedScale float64 // 0..1 fraction of the axis-class limit
	Speed      float64 // resolved speed: m/s for linear axes, rad/s otherwise
}

func newSession(mode Mode, axis int, dir Direction, scale, speed float64) Session {
	return Session{
		ID:         uuid.NewString(),
		Mode:       mode,
		Axis:       axis,
		Direction:  dir,
		SpeedScale: scale,
		Speed:      speed,
	}
}

// velocity builds the 6-vector for the session's speed command.
func (s Session) velocity() [6]float64 {
	var v [6]float64
	v[s.Axis] = float64(s.Direction) * s.Speed
	return v
}

func validAxis(axis int) bool { return axis >= 0 && axis <= 5 }

func validDirection(dir Direction) bool { return dir == Positive || dir == Negative }
