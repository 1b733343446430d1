package telemetry

import (
	"log/slog"
	"sync"
)

// StateFunc receives every decoded state snapshot.
type StateFunc func(RobotState)

// PositionFunc receives position-only updates.
type PositionFunc func(tcpPose, jointAngles [6]float64)

// SafetyFunc receives safety-only updates.
type SafetyFunc func(SafetyState)

// subscribers fans snapshots out to registered callbacks. Callbacks run
// on the receive goroutine and must not block; a panicking subscriber is
// logged and skipped, never fatal to the publisher or to the other
// subscribers.
type subscribers struct {
	mu     sync.RWMutex
	nextID int

	state    map[int]StateFunc
	position map[int]PositionFunc
	safety   map[int]SafetyFunc

	log *slog.Logger
}

func newSubscribers(log *slog.Logger) *subscribers {
	return &subscribers{
		state:    make(map[int]StateFunc),
		position: make(map[int]PositionFunc),
		safety:   make(map[int]SafetyFunc),
		log:      log,
	}
}

func (s *subscribers) addState(fn StateFunc) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.state[s.nextID] = fn
	return s.nextID
}

func (s *subscribers) addPosition(fn PositionFunc) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.position[s.nextID] = fn
	return s.nextID
}

func (s *subscribers) addSafety(fn SafetyFunc) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.safety[s.nextID] = fn
	return s.nextID
}

func (s *subscribers) remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state, id)
	delete(s.position, id)
	delete(s.safety, id)
}

func (s *subscribers) publishState(st RobotState) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, fn := range s.state {
		s.invoke(func() { fn(st) })
	}
}

func (s *subscribers) publishPosition(tcp, joints [6]float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, fn := range s.position {
		s.invoke(func() { fn(tcp, joints) })
	}
}

func (s *subscribers) publishSafety(st SafetyState) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, fn := range s.safety {
		s.invoke(func() { fn(st) })
	}
}

func (s *subscribers) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("subscriber panicked", "panic", r)
		}
	}()
	fn()
}
