// Package safety polls the robot's safety-relevant state and turns
// level-style flags into edge-triggered events. Jog gating reads the
// monitor; emergency handling subscribes to it.
package safety

import (
	"log/slog"
	"sync"
	"time"

	ulog "github.com/teslashibe/go-urjog/internal/log"
	"github.com/teslashibe/go-urjog/pkg/telemetry"
)

// Source is where the monitor reads real-time safety state from. The
// telemetry channel satisfies it.
type Source interface {
	IsConnected() bool
	GetState() telemetry.RobotState
}

// StatusSource contributes safety flags from the administrative
// channel's cached status. The dashboard client satisfies it; telemetry
// layouts often cannot locate the safety-mode field, so the dashboard
// is the reliable detector. Optional: nil means telemetry only.
type StatusSource interface {
	IsConnected() bool
	SafetyStopped() (emergency, protective bool)
}

// Snapshot is the monitor's view of the robot at one poll.
type Snapshot struct {
	SafeToJog         bool
	EmergencyStopped  bool
	ProtectiveStopped bool
	RobotMode         int32
	SafetyMode        int32
	LastUpdate        time.Time
}

// Config configures a Monitor.
type Config struct {
	PollInterval time.Duration
}

// Monitor watches the safety flags at a fixed poll rate. Callbacks are
// edge-triggered: each fires exactly once per false-to-true transition
// of its flag, never on a steady level.
type Monitor struct {
	cfg  Config
	log  *slog.Logger
	src  Source
	dash StatusSource

	mu      sync.RWMutex
	current Snapshot

	cbMu         sync.RWMutex
	nextID       int
	onEmergency  map[int]func()
	onProtective map[int]func()

	runMu sync.Mutex
	stop  chan struct{}
	done  chan struct{}
}

// New creates a monitor over the given sources. dash may be nil.
func New(cfg Config, src Source, dash StatusSource) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	return &Monitor{
		cfg:          cfg,
		log:          ulog.Component("safety"),
		src:          src,
		dash:         dash,
		onEmergency:  make(map[int]func()),
		onProtective: make(map[int]func()),
	}
}

// Start begins polling. Idempotent; a second Start while running is a
// no-op.
func (m *Monitor) Start() {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.stop != nil {
		return
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.loop(m.stop, m.done)
	m.log.Info("safety monitoring started", "interval", m.cfg.PollInterval)
}

// Stop halts polling and joins the loop with a bounded timeout.
// Idempotent.
func (m *Monitor) Stop() {
	m.runMu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.runMu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		m.log.Warn("safety monitor did not stop within timeout")
	}
	m.log.Info("safety monitoring stopped")
}

// OnEmergencyStop registers a callback fired once per transition into
// emergency stop. The returned id removes it via Unsubscribe.
func (m *Monitor) OnEmergencyStop(fn func()) int {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	id := m.nextID
	m.nextID++
	m.onEmergency[id] = fn
	return id
}

// OnProtectiveStop registers a callback fired once per transition into
// protective stop.
func (m *Monitor) OnProtectiveStop(fn func()) int {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	id := m.nextID
	m.nextID++
	m.onProtective[id] = fn
	return id
}

// Unsubscribe removes a callback registered by either On* call.
func (m *Monitor) Unsubscribe(id int) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	delete(m.onEmergency, id)
	delete(m.onProtective, id)
}

// SafeToJog reports whether motion commands may be issued right now.
func (m *Monitor) SafeToJog() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.SafeToJog
}

// Snapshot returns a copy of the latest poll result.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *Monitor) loop(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.poll()
		}
	}
}

// poll refreshes the snapshot by merging both sources: a stop flag
// raised on either channel counts. When both sources are unreachable
// the last known flags are retained; SafeToJog requires a live
// telemetry link either way.
func (m *Monitor) poll() {
	m.mu.Lock()
	prev := m.current
	next := prev

	telemetryUp := m.src.IsConnected()
	dashboardUp := m.dash != nil && m.dash.IsConnected()

	if telemetryUp || dashboardUp {
		var emergency, protective bool
		if telemetryUp {
			st := m.src.GetState().Safety()
			emergency = st.EmergencyStopped
			protective = st.ProtectiveStopped
			next.RobotMode = st.RobotMode
			next.SafetyMode = st.SafetyMode
		}
		if dashboardUp {
			e, p := m.dash.SafetyStopped()
			emergency = emergency || e
			protective = protective || p
		}
		next.EmergencyStopped = emergency
		next.ProtectiveStopped = protective
		next.LastUpdate = time.Now()
	}
	next.SafeToJog = telemetryUp && !next.EmergencyStopped && !next.ProtectiveStopped

	m.current = next
	m.mu.Unlock()

	if next.EmergencyStopped && !prev.EmergencyStopped {
		m.log.Error("emergency stop detected", "safety_mode", next.SafetyMode)
		m.fire(m.emergencyCallbacks())
	}
	if next.ProtectiveStopped && !prev.ProtectiveStopped {
		m.log.Warn("protective stop detected", "safety_mode", next.SafetyMode)
		m.fire(m.protectiveCallbacks())
	}
}

func (m *Monitor) emergencyCallbacks() []func() {
	m.cbMu.RLock()
	defer m.cbMu.RUnlock()
	out := make([]func(), 0, len(m.onEmergency))
	for _, fn := range m.onEmergency {
		out = append(out, fn)
	}
	return out
}

func (m *Monitor) protectiveCallbacks() []func() {
	m.cbMu.RLock()
	defer m.cbMu.RUnlock()
	out := make([]func(), 0, len(m.onProtective))
	for _, fn := range m.onProtective {
		out = append(out, fn)
	}
	return out
}

// fire invokes callbacks one at a time; a panicking callback is logged
// and never takes down the poll loop.
func (m *Monitor) fire(callbacks []func()) {
	for _, fn := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.log.Error("safety callback panicked", "panic", r)
				}
			}()
			fn()
		}()
	}
}
