package config

import (
	"fmt"
)

// Validate checks configuration correctness.
// It performs declarative validation only and MUST NOT mutate
// configuration. Construction fails fast on the first violation.
func Validate(cfg *Config) error {
	r := cfg.Robot
	if r.Host == "" {
		return fmt.Errorf("config: robot host required")
	}
	for name, port := range map[string]int{
		"command":   r.Ports.Command,
		"telemetry": r.Ports.Telemetry,
		"dashboard": r.Ports.Dashboard,
	} {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("config: %s port out of range: %d", name, port)
		}
	}
	if r.CommandTimeoutMs <= 0 || r.TelemetryTimeoutMs <= 0 || r.DashboardTimeoutMs <= 0 {
		return fmt.Errorf("config: socket timeouts must be > 0")
	}
	if r.Reconnect.Attempts < 0 {
		return fmt.Errorf("config: reconnect attempts must be >= 0")
	}
	if r.Reconnect.Attempts > 0 && r.Reconnect.DelayMs <= 0 {
		return fmt.Errorf("config: reconnect delay must be > 0")
	}

	j := cfg.Jogging
	if j.Cartesian.MaxLinearSpeed <= 0 || j.Cartesian.MaxAngularSpeed <= 0 {
		return fmt.Errorf("config: cartesian max speeds must be > 0")
	}
	if j.Cartesian.LinearAcceleration <= 0 || j.Cartesian.AngularAcceleration <= 0 {
		return fmt.Errorf("config: cartesian accelerations must be > 0")
	}
	if j.Joint.MaxSpeed <= 0 || j.Joint.Acceleration <= 0 {
		return fmt.Errorf("config: joint speed and acceleration must be > 0")
	}
	if j.Cartesian.StopDeceleration <= 0 || j.Joint.StopDeceleration <= 0 {
		return fmt.Errorf("config: stop decelerations must be > 0")
	}
	for name, ladder := range map[string][]float64{
		"cartesian linear":  j.Cartesian.LinearStepSizes,
		"cartesian angular": j.Cartesian.AngularStepSizes,
		"joint":             j.Joint.StepSizes,
	} {
		if len(ladder) == 0 {
			return fmt.Errorf("config: %s step ladder is empty", name)
		}
		prev := 0.0
		for i, s := range ladder {
			if s <= prev {
				return fmt.Errorf("config: %s step ladder must be strictly increasing (index %d)", name, i)
			}
			prev = s
		}
	}
	if j.KeepAliveIntervalMs <= 0 {
		return fmt.Errorf("config: keepalive interval must be > 0")
	}
	if j.KeepAliveTimeLimit <= 0 {
		return fmt.Errorf("config: keepalive time limit must be > 0")
	}
	// The controller must refresh the command before the bounded time
	// limit expires, otherwise continuous jogs stutter.
	if float64(j.KeepAliveIntervalMs)/1000.0 >= j.KeepAliveTimeLimit {
		return fmt.Errorf("config: keepalive interval (%dms) must be shorter than its time limit (%.3fs)",
			j.KeepAliveIntervalMs, j.KeepAliveTimeLimit)
	}

	if cfg.Safety.PollIntervalMs <= 0 {
		return fmt.Errorf("config: safety poll interval must be > 0")
	}
	if cfg.Safety.EmergencyStopDeceleration <= 0 {
		return fmt.Errorf("config: emergency stop deceleration must be > 0")
	}
	if cfg.Controller.StatusIntervalMs <= 0 {
		return fmt.Errorf("config: status interval must be > 0")
	}
	return nil
}
