// Package config loads and validates the go-urjog configuration.
// Values come from an optional YAML file with environment overrides
// (a local .env file is honored when present).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Robot      RobotConfig      `yaml:"robot"`
	Jogging    JogConfig        `yaml:"jogging"`
	Safety     SafetyConfig     `yaml:"safety"`
	Controller ControllerConfig `yaml:"controller"`
	Web        WebConfig        `yaml:"web"`
	LogLevel   string           `yaml:"log_level"`
	Simulation bool             `yaml:"simulation"`
}

// ---- ROBOT / CHANNELS ----

type RobotConfig struct {
	Host  string      `yaml:"host"`
	Ports PortsConfig `yaml:"ports"`

	// Socket timeouts in milliseconds. The telemetry timeout is short by
	// design: the receive loop uses it to observe cancellation.
	CommandTimeoutMs   int `yaml:"command_timeout_ms"`
	TelemetryTimeoutMs int `yaml:"telemetry_timeout_ms"`
	DashboardTimeoutMs int `yaml:"dashboard_timeout_ms"`

	Reconnect ReconnectConfig `yaml:"reconnect"`
}

type PortsConfig struct {
	Command   int `yaml:"command"`
	Telemetry int `yaml:"telemetry"`
	Dashboard int `yaml:"dashboard"`
}

type ReconnectConfig struct {
	Attempts int `yaml:"attempts"`
	DelayMs  int `yaml:"delay_ms"`
}

// ---- JOGGING ----

type JogConfig struct {
	Cartesian CartesianConfig `yaml:"cartesian"`
	Joint     JointConfig     `yaml:"joint"`

	KeepAliveIntervalMs int     `yaml:"keepalive_interval_ms"`
	KeepAliveTimeLimit  float64 `yaml:"keepalive_time_limit_s"`
}

type CartesianConfig struct {
	MaxLinearSpeed      float64   `yaml:"max_linear_speed"`     // m/s
	MaxAngularSpeed     float64   `yaml:"max_angular_speed"`    // rad/s
	LinearAcceleration  float64   `yaml:"linear_acceleration"`  // m/s^2
	AngularAcceleration float64   `yaml:"angular_acceleration"` // rad/s^2
	LinearStepSizes     []float64 `yaml:"linear_step_sizes"`    // meters
	AngularStepSizes    []float64 `yaml:"angular_step_sizes"`   // radians
	StopDeceleration    float64   `yaml:"stop_deceleration"`    // m/s^2
}

type JointConfig struct {
	MaxSpeed         float64   `yaml:"max_joint_speed"`    // rad/s
	Acceleration     float64   `yaml:"joint_acceleration"` // rad/s^2
	StepSizes        []float64 `yaml:"joint_step_sizes"`   // radians
	StopDeceleration float64   `yaml:"stop_deceleration"`  // rad/s^2
}

// ---- SAFETY ----

type SafetyConfig struct {
	PollIntervalMs            int     `yaml:"poll_interval_ms"`
	EmergencyStopDeceleration float64 `yaml:"emergency_stop_deceleration"` // m/s^2 and rad/s^2
}

// ---- CONTROLLER ----

type ControllerConfig struct {
	StatusIntervalMs int `yaml:"status_interval_ms"`
}

// ---- WEB BRIDGE ----

type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port"`
}

// Default returns the built-in configuration, matching the limits the
// robot ships with.
func Default() Config {
	return Config{
		Robot: RobotConfig{
			Host: "192.168.1.100",
			Ports: PortsConfig{
				Command:   30001,
				Telemetry: 30003,
				Dashboard: 29999,
			},
			CommandTimeoutMs:   5000,
			TelemetryTimeoutMs: 1000,
			DashboardTimeoutMs: 5000,
			Reconnect: ReconnectConfig{
				Attempts: 3,
				DelayMs:  1000,
			},
		},
		Jogging: JogConfig{
			Cartesian: CartesianConfig{
				MaxLinearSpeed:      0.25,
				MaxAngularSpeed:     0.75,
				LinearAcceleration:  1.2,
				AngularAcceleration: 3.14,
				LinearStepSizes:     []float64{0.001, 0.005, 0.01, 0.05, 0.1},
				AngularStepSizes:    []float64{0.017, 0.087, 0.175, 0.524, 1.047},
				StopDeceleration:    10.0,
			},
			Joint: JointConfig{
				MaxSpeed:         1.05,
				Acceleration:     1.4,
				StepSizes:        []float64{0.017, 0.087, 0.175, 0.524, 1.047},
				StopDeceleration: 8.0,
			},
			KeepAliveIntervalMs: 100,
			KeepAliveTimeLimit:  0.2,
		},
		Safety: SafetyConfig{
			PollIntervalMs:            100,
			EmergencyStopDeceleration: 10.0,
		},
		Controller: ControllerConfig{
			StatusIntervalMs: 500,
		},
		Web: WebConfig{
			Enabled: true,
			Port:    "8090",
		},
		LogLevel: "info",
	}
}

// Load reads the YAML file at path (optional, "" skips it), applies
// environment overrides and validates the result. A .env file in the
// working directory is loaded first when present.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := Validate(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Robot.Host = getEnv("ROBOT_HOST", cfg.Robot.Host)
	cfg.Robot.Ports.Command = getEnvAsInt("ROBOT_COMMAND_PORT", cfg.Robot.Ports.Command)
	cfg.Robot.Ports.Telemetry = getEnvAsInt("ROBOT_TELEMETRY_PORT", cfg.Robot.Ports.Telemetry)
	cfg.Robot.Ports.Dashboard = getEnvAsInt("ROBOT_DASHBOARD_PORT", cfg.Robot.Ports.Dashboard)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.Simulation = getEnvAsBool("SIMULATE_ROBOT", cfg.Simulation)
	cfg.Web.Port = getEnv("WEB_PORT", cfg.Web.Port)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, _ := strconv.ParseBool(v)
	return b
}

// Duration accessors. Intervals live in the file as integer milliseconds;
// everything downstream wants time.Duration.

func (r RobotConfig) CommandTimeout() time.Duration   { return ms(r.CommandTimeoutMs) }
func (r RobotConfig) TelemetryTimeout() time.Duration { return ms(r.TelemetryTimeoutMs) }
func (r RobotConfig) DashboardTimeout() time.Duration { return ms(r.DashboardTimeoutMs) }
func (r ReconnectConfig) Delay() time.Duration        { return ms(r.DelayMs) }
func (j JogConfig) KeepAliveInterval() time.Duration  { return ms(j.KeepAliveIntervalMs) }
func (s SafetyConfig) PollInterval() time.Duration    { return ms(s.PollIntervalMs) }
func (c ControllerConfig) StatusInterval() time.Duration {
	return ms(c.StatusIntervalMs)
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
