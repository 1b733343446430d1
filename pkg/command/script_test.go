package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMoveL_Grammar(t *testing.T) {
	got := MoveL([6]float64{0.1, 0.2, 0.3, 0, 0, 0}, 1.2, 0.25, 0)
	assert.Equal(t, "movel([0.1, 0.2, 0.3, 0, 0, 0], a=1.2, v=0.25, r=0)", got)
}

func TestMoveJ_Grammar(t *testing.T) {
	got := MoveJ([6]float64{0, -1.57, 1.57, 0, 0, 0}, 1.4, 1.05, 0)
	assert.Equal(t, "movej([0, -1.57, 1.57, 0, 0, 0], a=1.4, v=1.05, r=0)", got)
}

func TestSpeedL_Grammar(t *testing.T) {
	got := SpeedL([6]float64{0, 0, 0.05, 0, 0, 0}, 1.2, 0.2)
	assert.Equal(t, "speedl([0, 0, 0.05, 0, 0, 0], a=1.2, t=0.2)", got)
}

func TestSpeedL_UnboundedTimeLimit(t *testing.T) {
	got := SpeedL([6]float64{0.25, 0, 0, 0, 0, 0}, 1.2, 0)
	assert.Equal(t, "speedl([0.25, 0, 0, 0, 0, 0], a=1.2, t=0)", got)
}

func TestSpeedJ_Grammar(t *testing.T) {
	got := SpeedJ([6]float64{0, 0, 0, 0, 0, -0.5}, 1.4, 0.2)
	assert.Equal(t, "speedj([0, 0, 0, 0, 0, -0.5], a=1.4, t=0.2)", got)
}

func TestStop_Grammar(t *testing.T) {
	assert.Equal(t, "stopl(10)", StopL(10.0))
	assert.Equal(t, "stopj(8)", StopJ(8.0))
	assert.Equal(t, "stopl(1.5)", StopL(1.5))
}

func TestFloatFormatting_NoTrailingZeros(t *testing.T) {
	// Minimal float representation keeps command lines short.
	got := MoveL([6]float64{0.001, 0, 0, 0, 0, 0}, 1, 0.1, 0)
	assert.Equal(t, "movel([0.001, 0, 0, 0, 0, 0], a=1, v=0.1, r=0)", got)
}
