// Package controller is the facade over the robot's three channels. It
// owns connection ordering, jog gating against the safety monitor, the
// emergency-stop latch and the periodic status republish loop.
package controller

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-urjog/internal/config"
	ulog "github.com/teslashibe/go-urjog/internal/log"
	"github.com/teslashibe/go-urjog/pkg/command"
	"github.com/teslashibe/go-urjog/pkg/conn"
	"github.com/teslashibe/go-urjog/pkg/dashboard"
	"github.com/teslashibe/go-urjog/pkg/jog"
	"github.com/teslashibe/go-urjog/pkg/safety"
	"github.com/teslashibe/go-urjog/pkg/telemetry"
)

var (
	ErrNotConnected = errors.New("controller: not connected")
	ErrNotSafe      = errors.New("controller: not safe to jog")
	ErrJogActive    = errors.New("controller: refused while a jog is active")
)

// defaultStepIndex points at the middle of the step-size ladders.
const defaultStepIndex = 2

// dashboardRefreshTicks is how many status ticks pass between full
// dashboard query batteries. The battery is seven round trips, too
// expensive for every tick.
const dashboardRefreshTicks = 10

// Controller coordinates the command, telemetry and dashboard channels
// with the jog engine and safety monitor.
type Controller struct {
	cfg config.Config
	log *slog.Logger

	command   *command.Channel
	telemetry *telemetry.Channel
	dashboard *dashboard.Client
	engine    *jog.Engine
	monitor   *safety.Monitor

	mu        sync.RWMutex
	connected bool
	simulated bool
	estop     bool
	mode      jog.Mode
	jogType   JogType
	stepIndex int

	subMu    sync.RWMutex
	nextID   int
	onStatus map[int]func(Status)

	runMu sync.Mutex
	stop  chan struct{}
	done  chan struct{}
}

// New builds a controller and its channels from configuration. Nothing
// dials until Connect.
func New(cfg config.Config) (*Controller, error) {
	cmdCh, err := command.New(command.Config{
		Host:    cfg.Robot.Host,
		Port:    cfg.Robot.Ports.Command,
		Timeout: cfg.Robot.CommandTimeout(),
	})
	if err != nil {
		return nil, err
	}

	telCh, err := telemetry.New(telemetry.Config{
		Host:              cfg.Robot.Host,
		Port:              cfg.Robot.Ports.Telemetry,
		Timeout:           cfg.Robot.TelemetryTimeout(),
		Layout:            telemetry.DefaultLayout(),
		ReconnectAttempts: cfg.Robot.Reconnect.Attempts,
		ReconnectDelay:    cfg.Robot.Reconnect.Delay(),
	})
	if err != nil {
		return nil, err
	}

	dashCl, err := dashboard.New(dashboard.Config{
		Host:    cfg.Robot.Host,
		Port:    cfg.Robot.Ports.Dashboard,
		Timeout: cfg.Robot.DashboardTimeout(),
	})
	if err != nil {
		return nil, err
	}

	c := &Controller{
		cfg:       cfg,
		log:       ulog.Component("controller"),
		command:   cmdCh,
		telemetry: telCh,
		dashboard: dashCl,
		mode:      jog.ModeCartesian,
		jogType:   TypeContinuous,
		stepIndex: defaultStepIndex,
		onStatus:  make(map[int]func(Status)),
	}
	c.engine = jog.NewEngine(cfg.Jogging, cmdCh, telCh)
	c.monitor = safety.New(safety.Config{
		PollInterval: cfg.Safety.PollInterval(),
	}, telCh, dashCl)

	// A detected emergency stop escalates to the full stop sequence; a
	// protective stop only ends the active jog.
	c.monitor.OnEmergencyStop(func() { c.EmergencyStop() })
	c.monitor.OnProtectiveStop(func() { c.StopJog() })

	return c, nil
}

// Connect brings the channels up in dependency order: command first,
// then telemetry (rolling back command on failure), then dashboard.
// A dashboard failure is logged but never fails the connect. In
// simulation mode nothing dials and all motion is logged only.
func (c *Controller) Connect() error {
	if c.cfg.Simulation {
		c.mu.Lock()
		c.connected = true
		c.simulated = true
		c.mu.Unlock()
		c.log.Info("running in simulation mode, no robot connection")
		c.startStatusLoop()
		return nil
	}

	if err := c.command.Connect(); err != nil {
		return fmt.Errorf("controller: command channel: %w", err)
	}
	if err := c.telemetry.Connect(); err != nil {
		c.command.Disconnect()
		return fmt.Errorf("controller: telemetry channel: %w", err)
	}
	if err := c.dashboard.Connect(); err != nil {
		c.log.Warn("dashboard unavailable, continuing without it", "error", err)
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	c.monitor.Start()
	c.startStatusLoop()
	c.log.Info("connected to robot", "host", c.cfg.Robot.Host)
	return nil
}

// Disconnect stops any active jog and tears everything down in reverse
// connect order. Idempotent.
func (c *Controller) Disconnect() {
	c.stopStatusLoop()
	c.engine.Stop()
	c.monitor.Stop()

	c.mu.Lock()
	sim := c.simulated
	c.connected = false
	c.simulated = false
	c.mu.Unlock()

	if !sim {
		c.dashboard.Disconnect()
		c.telemetry.Disconnect()
		c.command.Disconnect()
	}
	c.log.Info("disconnected from robot")
}

// IsConnected reports whether Connect has succeeded (including in
// simulation mode).
func (c *Controller) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// StartJog begins motion on one axis using the current mode and jog
// type. speedScale is a fraction of the axis-class speed limit and only
// applies to continuous jogs. Refused unless connected, the
// emergency-stop latch is clear and the safety monitor reports safe.
func (c *Controller) StartJog(axis int, dir jog.Direction, speedScale float64) error {
	c.mu.RLock()
	connected, sim, estop := c.connected, c.simulated, c.estop
	mode, jogType, stepIndex := c.mode, c.jogType, c.stepIndex
	c.mu.RUnlock()

	if !connected {
		return ErrNotConnected
	}
	if estop {
		c.log.Warn("jog refused: emergency stop latch is set")
		return ErrNotSafe
	}
	if sim {
		c.log.Info("simulation: jog",
			"mode", mode.String(), "type", jogType.String(),
			"axis", axis, "direction", int(dir), "scale", speedScale)
		return nil
	}
	if !c.monitor.SafeToJog() {
		c.log.Warn("jog refused: safety monitor reports unsafe")
		return ErrNotSafe
	}

	switch jogType {
	case TypeStep:
		return c.engine.ExecuteStep(mode, axis, dir, c.stepSizeFor(mode, axis, stepIndex))
	default:
		_, err := c.engine.StartContinuous(mode, axis, dir, speedScale)
		return err
	}
}

// StopJog ends the active continuous jog, if any.
func (c *Controller) StopJog() bool {
	if c.isSimulated() {
		c.log.Info("simulation: jog stop")
		return true
	}
	return c.engine.Stop()
}

// EmergencyStop halts all motion at maximum deceleration and latches
// the controller against further jogs. It bypasses the safety gate and
// is idempotent; the latch clears only via ResetEmergencyStop.
func (c *Controller) EmergencyStop() bool {
	c.mu.Lock()
	if c.estop {
		c.mu.Unlock()
		return true
	}
	c.estop = true
	sim := c.simulated
	c.mu.Unlock()

	c.log.Error("emergency stop triggered")
	if sim {
		return true
	}

	c.engine.Stop()
	ok := c.command.EmergencyStop(c.cfg.Safety.EmergencyStopDeceleration)
	if c.dashboard.IsConnected() {
		// Advisory; the command-channel stop is the one that matters.
		c.dashboard.EmergencyStop()
	}
	return ok
}

// ResetEmergencyStop clears the latch, but only while the safety
// monitor reports the robot safe again.
func (c *Controller) ResetEmergencyStop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.estop {
		return nil
	}
	if !c.simulated && !c.monitor.SafeToJog() {
		return ErrNotSafe
	}
	c.estop = false
	c.log.Info("emergency stop latch cleared")
	return nil
}

// SetMode switches between cartesian and joint jogging. Refused while a
// continuous jog is active.
func (c *Controller) SetMode(mode jog.Mode) error {
	if c.engine.IsActive() {
		return ErrJogActive
	}
	c.mu.Lock()
	c.mode = mode
	c.mu.Unlock()
	c.log.Info("jog mode changed", "mode", mode.String())
	return nil
}

// SetType switches between continuous and step jogging. Refused while a
// continuous jog is active.
func (c *Controller) SetType(t JogType) error {
	if c.engine.IsActive() {
		return ErrJogActive
	}
	c.mu.Lock()
	c.jogType = t
	c.mu.Unlock()
	c.log.Info("jog type changed", "type", t.String())
	return nil
}

// SetStepIndex selects a rung on the step-size ladders.
func (c *Controller) SetStepIndex(i int) error {
	if i < 0 || i >= c.ladderLen() {
		return fmt.Errorf("controller: step index out of range: %d", i)
	}
	c.mu.Lock()
	c.stepIndex = i
	c.mu.Unlock()
	return nil
}

func (c *Controller) ladderLen() int {
	n := len(c.cfg.Jogging.Cartesian.LinearStepSizes)
	if m := len(c.cfg.Jogging.Cartesian.AngularStepSizes); m < n {
		n = m
	}
	if m := len(c.cfg.Jogging.Joint.StepSizes); m < n {
		n = m
	}
	return n
}

func (c *Controller) stepSizeFor(mode jog.Mode, axis int, index int) float64 {
	var ladder []float64
	switch {
	case mode == jog.ModeJoint:
		ladder = c.cfg.Jogging.Joint.StepSizes
	case axis < 3:
		ladder = c.cfg.Jogging.Cartesian.LinearStepSizes
	default:
		ladder = c.cfg.Jogging.Cartesian.AngularStepSizes
	}
	if len(ladder) == 0 {
		return 0
	}
	if index >= len(ladder) {
		index = len(ladder) - 1
	}
	return ladder[index]
}

func (c *Controller) isSimulated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.simulated
}

// OnStatus registers a subscriber for republished status snapshots. The
// returned id removes it via Unsubscribe.
func (c *Controller) OnStatus(fn func(Status)) int {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextID
	c.nextID++
	c.onStatus[id] = fn
	return id
}

// Unsubscribe removes a status subscriber.
func (c *Controller) Unsubscribe(id int) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	delete(c.onStatus, id)
}

// Status assembles the current merged snapshot.
func (c *Controller) Status() Status {
	c.mu.RLock()
	st := Status{
		Timestamp:           time.Now(),
		Connected:           c.connected,
		Simulated:           c.simulated,
		EmergencyStopActive: c.estop,
		Mode:                c.mode.String(),
		Type:                c.jogType.String(),
		StepIndex:           c.stepIndex,
	}
	mode, stepIndex := c.mode, c.stepIndex
	c.mu.RUnlock()

	st.StepSize = c.stepSizeFor(mode, 0, stepIndex)
	if st.Simulated {
		sim := conn.Simulated.String()
		st.CommandState, st.TelemetryState, st.DashboardState = sim, sim, sim
	} else {
		st.CommandState = c.command.State().String()
		st.TelemetryState = c.telemetry.State().String()
		st.DashboardState = c.dashboard.State().String()
	}
	st.Robot = c.telemetry.GetState()
	st.Safety = c.monitor.Snapshot()
	st.Dashboard = c.dashboard.Status()
	if session, ok := c.engine.Active(); ok {
		st.JogActive = true
		st.Session = session
	}
	return st
}

// SafetySnapshot exposes the monitor's latest poll.
func (c *Controller) SafetySnapshot() safety.Snapshot {
	return c.monitor.Snapshot()
}

func (c *Controller) startStatusLoop() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.stop != nil {
		return
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.statusLoop(c.stop, c.done)
}

func (c *Controller) stopStatusLoop() {
	c.runMu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.runMu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		c.log.Warn("status loop did not stop within timeout")
	}
}

// statusLoop republishes merged snapshots at the configured cadence. It
// also watches for channel loss under an active jog and forces the
// session to end rather than leave keep-alives racing a dead socket.
func (c *Controller) statusLoop(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.cfg.Controller.StatusInterval())
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			tick++
			if !c.isSimulated() {
				if c.engine.IsActive() && (!c.command.IsConnected() || !c.telemetry.IsConnected()) {
					c.log.Error("channel lost during active jog, forcing stop")
					c.engine.Stop()
				}
				if tick%dashboardRefreshTicks == 0 && c.dashboard.IsConnected() {
					c.dashboard.UpdateStatus()
				}
			}
			c.publish(c.Status())
		}
	}
}

func (c *Controller) publish(st Status) {
	c.subMu.RLock()
	subs := make([]func(Status), 0, len(c.onStatus))
	for _, fn := range c.onStatus {
		subs = append(subs, fn)
	}
	c.subMu.RUnlock()

	for _, fn := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.log.Error("status subscriber panicked", "panic", r)
				}
			}()
			fn(st)
		}()
	}
}
