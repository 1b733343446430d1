package jog

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-urjog/internal/config"
	ulog "github.com/teslashibe/go-urjog/internal/log"
)

var (
	ErrNotConnected = errors.New("jog: command channel not connected")
	ErrStepActive   = errors.New("jog: step refused while a continuous jog is active")
	ErrSendFailed   = errors.New("jog: command send failed")
)

// Engine runs at most one jog at a time across both modes. A continuous
// jog is kept alive by periodically resending its speed command with a
// short time limit, so the robot coasts to a stop on its own if this
// process stalls or the link drops.
type Engine struct {
	cfg config.JogConfig
	log *slog.Logger
	cmd Commander
	src PoseSource

	cartesian profile
	joint     profile

	mu      sync.Mutex
	session *Session
	stop    chan struct{}
	done    chan struct{}
}

// NewEngine creates a jog engine over the given command channel and
// pose source.
func NewEngine(cfg config.JogConfig, cmd Commander, src PoseSource) *Engine {
	return &Engine{
		cfg:       cfg,
		log:       ulog.Component("jog"),
		cmd:       cmd,
		src:       src,
		cartesian: cartesianProfile(cfg.Cartesian),
		joint:     jointProfile(cfg.Joint),
	}
}

func (e *Engine) profileFor(mode Mode) (profile, error) {
	switch mode {
	case ModeCartesian:
		return e.cartesian, nil
	case ModeJoint:
		return e.joint, nil
	default:
		return profile{}, fmt.Errorf("jog: unknown mode %v", mode)
	}
}

// IsActive reports whether a continuous jog is running.
func (e *Engine) IsActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session != nil
}

// Active returns the running session, if any.
func (e *Engine) Active() (Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return Session{}, false
	}
	return *e.session, true
}

// StartContinuous begins a continuous jog on one axis. A jog already in
// progress is stopped first. speedScale is a fraction of the axis-class
// speed limit, clamped to [0, 1]; the initial command goes out unbounded
// and the keep-alive loop takes over with the configured time limit.
func (e *Engine) StartContinuous(mode Mode, axis int, dir Direction, speedScale float64) (Session, error) {
	if !validAxis(axis) {
		return Session{}, fmt.Errorf("jog: axis out of range: %d", axis)
	}
	if !validDirection(dir) {
		return Session{}, fmt.Errorf("jog: direction must be +1 or -1: %d", int(dir))
	}
	p, err := e.profileFor(mode)
	if err != nil {
		return Session{}, err
	}
	if !e.cmd.IsConnected() {
		return Session{}, ErrNotConnected
	}

	if e.IsActive() {
		e.log.Warn("jog already active, stopping previous jog first")
		e.Stop()
	}

	speedScale = clampScale(speedScale)
	speed := speedScale * p.maxSpeed(axis)
	session := newSession(mode, axis, dir, speedScale, speed)
	accel := p.acceleration(axis)

	e.mu.Lock()
	if e.session != nil {
		e.mu.Unlock()
		return Session{}, fmt.Errorf("jog: concurrent start lost the race")
	}
	if !p.speed(e.cmd, session.velocity(), accel, 0) {
		e.mu.Unlock()
		return Session{}, ErrSendFailed
	}
	e.session = &session
	e.stop = make(chan struct{})
	e.done = make(chan struct{})
	stop, done := e.stop, e.done
	e.mu.Unlock()

	e.log.Info("continuous jog started",
		"session", session.ID,
		"mode", mode.String(),
		"axis", axis,
		"direction", int(dir),
		"speed", speed)

	go e.keepAlive(session, p, accel, stop, done)
	return session, nil
}

// keepAlive resends the speed command on every tick with a bounded time
// limit. A failed resend ends the jog; the robot's own time limit then
// brings it to rest.
func (e *Engine) keepAlive(session Session, p profile, accel float64, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.cfg.KeepAliveInterval())
	defer ticker.Stop()

	velocity := session.velocity()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !p.speed(e.cmd, velocity, accel, e.cfg.KeepAliveTimeLimit) {
				e.log.Error("keep-alive send failed, ending jog", "session", session.ID)
				e.abandon(session.ID)
				return
			}
		}
	}
}

// abandon clears the session after a keep-alive failure. No stop
// command goes out: the channel is already broken and the robot's
// command time limit stops the motion.
func (e *Engine) abandon(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil && e.session.ID == sessionID {
		e.session = nil
		e.stop = nil
		e.done = nil
	}
}

// Stop ends the active continuous jog: it halts the keep-alive loop,
// sends a stop at the configured deceleration and resets to idle. The
// engine returns to idle even when the stop command cannot be sent.
// Returns true if there was nothing to stop or the stop was delivered.
func (e *Engine) Stop() bool {
	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return true
	}
	session := *e.session
	stop, done := e.stop, e.done
	e.session = nil
	e.stop, e.done = nil, nil
	e.mu.Unlock()

	// Join the keep-alive loop before sending the stop so no resend can
	// land on the wire after it.
	if stop != nil {
		close(stop)
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			e.log.Warn("keep-alive loop did not stop within timeout", "session", session.ID)
		}
	}

	p, _ := e.profileFor(session.Mode)
	sent := p.stop(e.cmd, p.stopDecel)
	if !sent {
		e.log.Error("failed to send stop command", "session", session.ID)
	}

	e.log.Info("continuous jog stopped", "session", session.ID, "delivered", sent)
	return sent
}

// ExecuteStep performs one discrete move of the given size on one axis.
// Steps are refused while a continuous jog is active. The baseline pose
// comes from live telemetry; without it the step starts from zero,
// which on a real robot is only meaningful in simulation.
func (e *Engine) ExecuteStep(mode Mode, axis int, dir Direction, step float64) error {
	if !validAxis(axis) {
		return fmt.Errorf("jog: axis out of range: %d", axis)
	}
	if !validDirection(dir) {
		return fmt.Errorf("jog: direction must be +1 or -1: %d", int(dir))
	}
	if step <= 0 {
		return fmt.Errorf("jog: step size must be positive: %g", step)
	}
	p, err := e.profileFor(mode)
	if err != nil {
		return err
	}
	if e.IsActive() {
		return ErrStepActive
	}
	if !e.cmd.IsConnected() {
		return ErrNotConnected
	}

	step = p.clampStep(axis, step)

	var target [6]float64
	if e.src != nil && e.src.IsConnected() {
		target = p.pose(e.src)
	} else {
		e.log.Warn("no live pose available, stepping from zero baseline")
	}
	target[axis] += float64(dir) * step

	if !p.move(e.cmd, target, p.acceleration(axis), p.stepSpeed(axis)) {
		return ErrSendFailed
	}
	e.log.Info("step executed",
		"mode", mode.String(),
		"axis", axis,
		"direction", int(dir),
		"step", step)
	return nil
}
