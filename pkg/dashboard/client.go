// Package dashboard owns the robot's administrative socket: a
// synchronous, line-oriented request/response protocol for power,
// program and safety-clear operations.
package dashboard

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	ulog "github.com/teslashibe/go-urjog/internal/log"
	"github.com/teslashibe/go-urjog/pkg/conn"
)

// greetingMarker must appear in the server's welcome line for the
// connection to be accepted.
const greetingMarker = "Connected"

var ErrNotConnected = errors.New("dashboard: not connected")

// Config configures a dashboard Client.
type Config struct {
	Host    string
	Port    int
	Timeout time.Duration
}

// Client is the dashboard-socket owner. The protocol has no request
// IDs, so requests are single-flight: an internal lock serializes them
// and at most one is outstanding at a time.
type Client struct {
	cfg Config
	log *slog.Logger

	// reqMu serializes connect/request/disconnect on the socket.
	reqMu    sync.Mutex
	sock     net.Conn
	reader   *bufio.Reader
	lifState conn.State

	// stMu guards the cached status, updated as responses arrive.
	stMu   sync.RWMutex
	status Status
}

// New creates a dashboard client; configuration is validated up front.
func New(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("dashboard: host required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("dashboard: port out of range: %d", cfg.Port)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{
		cfg: cfg,
		log: ulog.Component("dashboard"),
		status: Status{
			ProgramState: ProgramStopped,
			RobotMode:    "DISCONNECTED",
			SafetyMode:   "NORMAL",
			ProgramSaved: true,
		},
	}, nil
}

// Connect opens the socket and verifies the greeting line. A welcome
// message without the expected marker fails the connection.
func (c *Client) Connect() error {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	if c.lifState == conn.Connected {
		return nil
	}
	c.lifState = conn.Connecting

	addr := net.JoinHostPort(c.cfg.Host, fmt.Sprint(c.cfg.Port))
	sock, err := net.DialTimeout("tcp", addr, c.cfg.Timeout)
	if err != nil {
		c.lifState = conn.Disconnected
		return fmt.Errorf("dashboard: connect %s: %w", addr, err)
	}

	reader := bufio.NewReader(sock)
	_ = sock.SetReadDeadline(time.Now().Add(c.cfg.Timeout))
	welcome, err := reader.ReadString('\n')
	if err != nil || !strings.Contains(welcome, greetingMarker) {
		_ = sock.Close()
		c.lifState = conn.Disconnected
		if err != nil {
			return fmt.Errorf("dashboard: read greeting: %w", err)
		}
		return fmt.Errorf("dashboard: unexpected greeting: %q", strings.TrimSpace(welcome))
	}

	c.sock = sock
	c.reader = reader
	c.lifState = conn.Connected
	c.log.Info("connected to dashboard", "addr", addr)
	return nil
}

// Disconnect closes the socket. Idempotent.
func (c *Client) Disconnect() {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.sock != nil {
		_ = c.sock.Close()
		c.sock = nil
		c.reader = nil
		c.log.Info("disconnected from dashboard")
	}
	c.lifState = conn.Disconnected
}

// IsConnected reports whether the client is currently connected.
func (c *Client) IsConnected() bool {
	return c.State() == conn.Connected
}

// State returns the channel's connection lifecycle state.
func (c *Client) State() conn.State {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()
	return c.lifState
}

// Request sends one command line and returns the first
// newline-terminated response with surrounding whitespace trimmed.
// Single-flight; any error marks the client disconnected.
func (c *Client) Request(command string) (string, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	if c.sock == nil || c.lifState != conn.Connected {
		return "", ErrNotConnected
	}

	_ = c.sock.SetWriteDeadline(time.Now().Add(c.cfg.Timeout))
	if _, err := c.sock.Write([]byte(command + "\n")); err != nil {
		c.log.Error("dashboard request failed", "command", command, "error", err)
		c.closeLocked()
		return "", fmt.Errorf("dashboard: send %q: %w", command, err)
	}

	_ = c.sock.SetReadDeadline(time.Now().Add(c.cfg.Timeout))
	response, err := c.reader.ReadString('\n')
	if err != nil {
		c.log.Error("dashboard response failed", "command", command, "error", err)
		c.closeLocked()
		return "", fmt.Errorf("dashboard: receive for %q: %w", command, err)
	}

	response = strings.TrimSpace(response)
	c.log.Debug("dashboard exchange", "command", command, "response", response)
	return response, nil
}

// expect runs a request and reports whether the response contains any
// of the given markers.
func (c *Client) expect(command string, markers ...string) bool {
	response, err := c.Request(command)
	if err != nil {
		return false
	}
	for _, m := range markers {
		if strings.Contains(response, m) {
			return true
		}
	}
	return false
}

// Power control

// PowerOn turns robot power on.
func (c *Client) PowerOn() bool {
	ok := c.expect("power on", "Powering on")
	if ok {
		c.updateStatus(func(s *Status) { s.PowerOn = true })
	}
	return ok
}

// PowerOff turns robot power off.
func (c *Client) PowerOff() bool {
	ok := c.expect("power off", "Powering off")
	if ok {
		c.updateStatus(func(s *Status) {
			s.PowerOn = false
			s.BrakesReleased = false
		})
	}
	return ok
}

// BrakeRelease releases the robot brakes.
func (c *Client) BrakeRelease() bool {
	ok := c.expect("brake release", "Brake releasing")
	if ok {
		c.updateStatus(func(s *Status) { s.BrakesReleased = true })
	}
	return ok
}

// Program control

// LoadProgram loads a program by controller-side path.
func (c *Client) LoadProgram(path string) bool {
	return c.expect("load "+path, "Loading program", "File loaded")
}

// Play starts program execution.
func (c *Client) Play() bool {
	ok := c.expect("play", "Starting program", "Program running")
	if ok {
		c.updateStatus(func(s *Status) {
			s.ProgramRunning = true
			s.ProgramState = ProgramPlaying
		})
	}
	return ok
}

// Pause pauses program execution.
func (c *Client) Pause() bool {
	ok := c.expect("pause", "Pausing program", "Program paused")
	if ok {
		c.updateStatus(func(s *Status) { s.ProgramState = ProgramPaused })
	}
	return ok
}

// StopProgram stops program execution.
func (c *Client) StopProgram() bool {
	ok := c.expect("stop", "Stopped", "Program stopped")
	if ok {
		c.updateStatus(func(s *Status) {
			s.ProgramRunning = false
			s.ProgramState = ProgramStopped
		})
	}
	return ok
}

// Safety and recovery

// UnlockProtectiveStop clears a protective stop.
func (c *Client) UnlockProtectiveStop() bool {
	return c.expect("unlock protective stop", "Protective stop releasing")
}

// CloseSafetyPopup dismisses the safety popup dialog.
func (c *Client) CloseSafetyPopup() bool {
	return c.expect("close safety popup", "closing safety popup")
}

// ClosePopup dismisses any popup dialog.
func (c *Client) ClosePopup() bool {
	return c.expect("close popup", "closing popup")
}

// RestartSafety restarts the safety system.
func (c *Client) RestartSafety() bool {
	return c.expect("restart safety", "Restarting safety")
}

// Status queries

// RobotModel queries the robot model.
func (c *Client) RobotModel() (string, error) {
	response, err := c.Request("get robot model")
	if err == nil {
		c.updateStatus(func(s *Status) { s.RobotModel = response })
	}
	return response, err
}

// ProgramState queries the program execution state.
func (c *Client) ProgramState() (string, error) {
	response, err := c.Request("programState")
	if err == nil {
		c.updateStatus(func(s *Status) {
			s.ProgramState = response
			s.ProgramRunning = response == ProgramPlaying
		})
	}
	return response, err
}

// RobotMode queries the robot operation mode.
func (c *Client) RobotMode() (string, error) {
	response, err := c.Request("robotmode")
	if err == nil {
		c.updateStatus(func(s *Status) { s.RobotMode = response })
	}
	return response, err
}

// SafetyMode queries the safety system mode.
func (c *Client) SafetyMode() (string, error) {
	response, err := c.Request("safetymode")
	if err == nil {
		c.updateStatus(func(s *Status) { s.SafetyMode = response })
	}
	return response, err
}

// PolyscopeVersion queries the controller software version.
func (c *Client) PolyscopeVersion() (string, error) {
	response, err := c.Request("version")
	if err == nil {
		c.updateStatus(func(s *Status) { s.PolyscopeVersion = response })
	}
	return response, err
}

// IsProgramRunning reports whether the loaded program is executing.
func (c *Client) IsProgramRunning() bool {
	state, err := c.ProgramState()
	return err == nil && state == ProgramPlaying
}

// IsProgramSaved reports whether the loaded program is saved.
func (c *Client) IsProgramSaved() bool {
	response, err := c.Request("isProgramSaved")
	saved := err == nil && strings.EqualFold(response, "true")
	c.updateStatus(func(s *Status) { s.ProgramSaved = saved })
	return saved
}

// IsRemoteControl reports whether the controller is in remote control.
func (c *Client) IsRemoteControl() bool {
	response, err := c.Request("is in remote control")
	remote := err == nil && strings.EqualFold(response, "true")
	c.updateStatus(func(s *Status) { s.RemoteControl = remote })
	return remote
}

// SafetyStopped reports the emergency and protective flags derived from
// the cached safety mode.
func (c *Client) SafetyStopped() (emergency, protective bool) {
	st := c.Status()
	return st.EmergencyStopped(), st.ProtectiveStopped()
}

// EmergencyStop requests a program stop via the dashboard. Not all
// controller versions accept this; failure here is advisory.
func (c *Client) EmergencyStop() bool {
	response, err := c.Request("stop")
	return err == nil && strings.Contains(strings.ToLower(response), "stop")
}

// Shutdown powers down the controller.
func (c *Client) Shutdown() bool {
	return c.expect("shutdown", "Shutting down")
}

// Quit closes the dashboard session gracefully.
func (c *Client) Quit() bool {
	ok := c.expect("quit", "Disconnected", "Goodbye")
	if ok {
		c.Disconnect()
	}
	return ok
}

// UpdateStatus runs the fixed query battery and returns the refreshed
// cache. One failing query never aborts the rest.
func (c *Client) UpdateStatus() Status {
	if !c.IsConnected() {
		return c.Status()
	}

	queries := []func() error{
		func() error { _, err := c.RobotModel(); return err },
		func() error { _, err := c.ProgramState(); return err },
		func() error { _, err := c.RobotMode(); return err },
		func() error { _, err := c.SafetyMode(); return err },
		func() error { _, err := c.PolyscopeVersion(); return err },
		func() error { c.IsProgramSaved(); return nil },
		func() error { c.IsRemoteControl(); return nil },
	}
	for _, q := range queries {
		if err := q(); err != nil {
			c.log.Warn("status query failed", "error", err)
		}
	}
	return c.Status()
}

// Status returns a copy of the cached status.
func (c *Client) Status() Status {
	c.stMu.RLock()
	defer c.stMu.RUnlock()
	return c.status
}

func (c *Client) updateStatus(fn func(*Status)) {
	c.stMu.Lock()
	fn(&c.status)
	c.stMu.Unlock()
}
