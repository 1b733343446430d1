// Package command owns the robot's command socket. Commands are UTF-8
// text lines, fire-and-forget: the robot never answers on this socket
// (state feedback arrives on the telemetry channel).
package command

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	ulog "github.com/teslashibe/go-urjog/internal/log"
	"github.com/teslashibe/go-urjog/pkg/conn"
)

// Config configures a command Channel.
type Config struct {
	Host    string
	Port    int
	Timeout time.Duration // dial and per-write deadline
}

// Channel is the command-socket owner. Send is at-most-once,
// best-effort: any socket error flips the channel to disconnected and
// surfaces as a false return.
type Channel struct {
	cfg Config
	log *slog.Logger

	mu       sync.Mutex
	sock     net.Conn
	lifState conn.State
}

// New creates a command channel; configuration is validated up front.
func New(cfg Config) (*Channel, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("command: host required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("command: port out of range: %d", cfg.Port)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Channel{
		cfg: cfg,
		log: ulog.Component("command"),
	}, nil
}

// Connect opens the command socket.
func (c *Channel) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lifState == conn.Connected {
		return nil
	}
	c.lifState = conn.Connecting

	addr := net.JoinHostPort(c.cfg.Host, fmt.Sprint(c.cfg.Port))
	sock, err := net.DialTimeout("tcp", addr, c.cfg.Timeout)
	if err != nil {
		c.lifState = conn.Disconnected
		return fmt.Errorf("command: connect %s: %w", addr, err)
	}

	c.sock = sock
	c.lifState = conn.Connected
	c.log.Info("connected to command interface", "addr", addr)
	return nil
}

// Disconnect closes the socket. Idempotent.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sock != nil {
		_ = c.sock.Close()
		c.sock = nil
	}
	if c.lifState != conn.Disconnected {
		c.lifState = conn.Disconnected
		c.log.Info("disconnected from command interface")
	}
}

// IsConnected reports whether the channel is currently connected.
func (c *Channel) IsConnected() bool {
	return c.State() == conn.Connected
}

// State returns the channel's connection lifecycle state.
func (c *Channel) State() conn.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lifState
}

// Send writes one command line to the robot. Returns false on any
// socket error, which also marks the channel disconnected.
func (c *Channel) Send(cmd string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sock == nil || c.lifState != conn.Connected {
		c.log.Error("cannot send command: not connected", "command", cmd)
		return false
	}

	_ = c.sock.SetWriteDeadline(time.Now().Add(c.cfg.Timeout))
	if _, err := c.sock.Write([]byte(cmd + "\n")); err != nil {
		c.log.Error("failed to send command", "command", cmd, "error", err)
		c.lifState = conn.Disconnected
		return false
	}
	c.log.Debug("sent command", "command", cmd)
	return true
}

// MoveLinear sends a movel command.
func (c *Channel) MoveLinear(pose [6]float64, acceleration, speed, blend float64) bool {
	return c.Send(MoveL(pose, acceleration, speed, blend))
}

// MoveJoint sends a movej command.
func (c *Channel) MoveJoint(joints [6]float64, acceleration, speed, blend float64) bool {
	return c.Send(MoveJ(joints, acceleration, speed, blend))
}

// SpeedLinear sends a speedl command.
func (c *Channel) SpeedLinear(velocities [6]float64, acceleration, timeLimit float64) bool {
	return c.Send(SpeedL(velocities, acceleration, timeLimit))
}

// SpeedJoint sends a speedj command.
func (c *Channel) SpeedJoint(speeds [6]float64, acceleration, timeLimit float64) bool {
	return c.Send(SpeedJ(speeds, acceleration, timeLimit))
}

// StopLinear sends a stopl command at the given deceleration.
func (c *Channel) StopLinear(deceleration float64) bool {
	return c.Send(StopL(deceleration))
}

// StopJoint sends a stopj command at the given deceleration.
func (c *Channel) StopJoint(deceleration float64) bool {
	return c.Send(StopJ(deceleration))
}

// EmergencyStop issues both a linear and a joint stop at the given
// maximum deceleration. Succeeds only if both sends succeed.
func (c *Channel) EmergencyStop(deceleration float64) bool {
	linear := c.StopLinear(deceleration)
	joint := c.StopJoint(deceleration)
	c.log.Warn("emergency stop executed", "linear", linear, "joint", joint)
	return linear && joint
}
