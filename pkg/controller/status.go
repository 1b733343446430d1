package controller

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-urjog/pkg/dashboard"
	"github.com/teslashibe/go-urjog/pkg/jog"
	"github.com/teslashibe/go-urjog/pkg/safety"
	"github.com/teslashibe/go-urjog/pkg/telemetry"
)

// JogType selects between continuous (hold-to-move) and discrete step
// jogging.
type JogType int

const (
	TypeContinuous JogType = iota
	TypeStep
)

func (t JogType) String() string {
	switch t {
	case TypeContinuous:
		return "continuous"
	case TypeStep:
		return "step"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// ParseType maps a jog type name to its JogType value.
func ParseType(s string) (JogType, error) {
	switch s {
	case "continuous":
		return TypeContinuous, nil
	case "step":
		return TypeStep, nil
	default:
		return 0, fmt.Errorf("controller: unknown jog type %q", s)
	}
}

// Status is the merged snapshot the controller republishes: connection
// lifecycle, latest robot state, safety view and jog settings. Values
// are copies; consumers never share memory with the channels.
type Status struct {
	Timestamp time.Time `json:"timestamp"`

	Connected bool `json:"connected"`
	Simulated bool `json:"simulated"`

	CommandState   string `json:"command_state"`
	TelemetryState string `json:"telemetry_state"`
	DashboardState string `json:"dashboard_state"`

	Robot     telemetry.RobotState `json:"robot"`
	Safety    safety.Snapshot      `json:"safety"`
	Dashboard dashboard.Status     `json:"dashboard"`

	EmergencyStopActive bool `json:"emergency_stop_active"`

	Mode      string  `json:"mode"`
	Type      string  `json:"type"`
	StepIndex int     `json:"step_index"`
	StepSize  float64 `json:"step_size"`

	JogActive bool        `json:"jog_active"`
	Session   jog.Session `json:"session,omitempty"`
}
