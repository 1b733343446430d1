package dashboard

// Status is the cached view of the robot assembled from dashboard
// queries. Readers get copies; the client updates it as responses
// arrive.
type Status struct {
	RobotModel       string
	PolyscopeVersion string
	ProgramState     string
	RobotMode        string
	SafetyMode       string
	ProgramRunning   bool
	ProgramSaved     bool
	RemoteControl    bool
	PowerOn          bool
	BrakesReleased   bool
}

// Program states reported by the programState query.
const (
	ProgramStopped = "STOPPED"
	ProgramPlaying = "PLAYING"
	ProgramPaused  = "PAUSED"
)

// RobotModes maps robotmode responses to their numeric codes, per the
// dashboard protocol documentation.
var RobotModes = map[string]int{
	"DISCONNECTED":      -1,
	"CONFIRM_SAFETY":    0,
	"BOOTING":           1,
	"POWER_OFF":         2,
	"POWER_ON":          3,
	"IDLE":              4,
	"BACKDRIVE":         5,
	"RUNNING":           6,
	"UPDATING_FIRMWARE": 7,
}

// SafetyModes maps safetymode responses to their numeric codes.
var SafetyModes = map[string]int{
	"NORMAL":                         1,
	"REDUCED":                        2,
	"PROTECTIVE_STOP":                3,
	"RECOVERY":                       4,
	"SAFEGUARD_STOP":                 5,
	"SYSTEM_EMERGENCY_STOP":          6,
	"ROBOT_EMERGENCY_STOP":           7,
	"VIOLATION":                      8,
	"FAULT":                          9,
	"AUTOMATIC_MODE_SAFEGUARD_STOP":  10,
	"SYSTEM_THREE_POSITION_ENABLING": 11,
}

// EmergencyStopped reports whether the cached safety mode is one of the
// emergency-stop modes.
func (s Status) EmergencyStopped() bool {
	return s.SafetyMode == "SYSTEM_EMERGENCY_STOP" || s.SafetyMode == "ROBOT_EMERGENCY_STOP"
}

// ProtectiveStopped reports whether the cached safety mode is the
// protective-stop mode.
func (s Status) ProtectiveStopped() bool {
	return s.SafetyMode == "PROTECTIVE_STOP"
}
