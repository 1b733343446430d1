package command

import (
	"strconv"
	"strings"
)

// Command builders for the robot's text command grammar. Each builder
// returns the single line that goes on the wire (without the trailing
// newline, which Send appends).

// MoveL builds a linear move to a target pose.
// Pose is [x, y, z, rx, ry, rz] in meters and radians; speed m/s,
// acceleration m/s^2, blend radius meters.
func MoveL(pose [6]float64, acceleration, speed, blend float64) string {
	var b strings.Builder
	b.WriteString("movel(")
	writeVec(&b, pose)
	b.WriteString(", a=")
	writeFloat(&b, acceleration)
	b.WriteString(", v=")
	writeFloat(&b, speed)
	b.WriteString(", r=")
	writeFloat(&b, blend)
	b.WriteString(")")
	return b.String()
}

// MoveJ builds a joint move to target joint angles (radians); speed
// rad/s, acceleration rad/s^2, blend radius radians.
func MoveJ(joints [6]float64, acceleration, speed, blend float64) string {
	var b strings.Builder
	b.WriteString("movej(")
	writeVec(&b, joints)
	b.WriteString(", a=")
	writeFloat(&b, acceleration)
	b.WriteString(", v=")
	writeFloat(&b, speed)
	b.WriteString(", r=")
	writeFloat(&b, blend)
	b.WriteString(")")
	return b.String()
}

// SpeedL builds a linear velocity command. Velocities are
// [vx, vy, vz, vrx, vry, vrz]; timeLimit seconds, 0 = unbounded.
func SpeedL(velocities [6]float64, acceleration, timeLimit float64) string {
	var b strings.Builder
	b.WriteString("speedl(")
	writeVec(&b, velocities)
	b.WriteString(", a=")
	writeFloat(&b, acceleration)
	b.WriteString(", t=")
	writeFloat(&b, timeLimit)
	b.WriteString(")")
	return b.String()
}

// SpeedJ builds a joint velocity command. timeLimit seconds, 0 =
// unbounded.
func SpeedJ(speeds [6]float64, acceleration, timeLimit float64) string {
	var b strings.Builder
	b.WriteString("speedj(")
	writeVec(&b, speeds)
	b.WriteString(", a=")
	writeFloat(&b, acceleration)
	b.WriteString(", t=")
	writeFloat(&b, timeLimit)
	b.WriteString(")")
	return b.String()
}

// StopL builds a linear stop at the given deceleration (m/s^2).
func StopL(deceleration float64) string {
	var b strings.Builder
	b.WriteString("stopl(")
	writeFloat(&b, deceleration)
	b.WriteString(")")
	return b.String()
}

// StopJ builds a joint stop at the given deceleration (rad/s^2).
func StopJ(deceleration float64) string {
	var b strings.Builder
	b.WriteString("stopj(")
	writeFloat(&b, deceleration)
	b.WriteString(")")
	return b.String()
}

func writeVec(b *strings.Builder, v [6]float64) {
	b.WriteString("[")
	for i, x := range v {
		if i > 0 {
			b.WriteString(", ")
		}
		writeFloat(b, x)
	}
	b.WriteString("]")
}

func writeFloat(b *strings.Builder, f float64) {
	b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
}
