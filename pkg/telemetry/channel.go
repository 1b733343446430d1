package telemetry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	ulog "github.com/teslashibe/go-urjog/internal/log"
	"github.com/teslashibe/go-urjog/pkg/conn"
)

// MaxFrameSize is the sanity bound on a declared frame length. Anything
// larger is discarded with a warning and the loop continues.
const MaxFrameSize = 10000

// frequency EMA smoothing factor.
const freqAlpha = 0.1

var (
	ErrNotConnected       = errors.New("telemetry: not connected")
	ErrReconnectExhausted = errors.New("telemetry: reconnect attempts exhausted")

	errTimeout = errors.New("telemetry: read timed out")
	errStopped = errors.New("telemetry: stop requested")
)

// Config configures a telemetry Channel.
type Config struct {
	Host    string
	Port    int
	Timeout time.Duration // per-read deadline; short so the loop observes cancellation
	Layout  Layout

	ReconnectAttempts int
	ReconnectDelay    time.Duration
}

// Channel owns the real-time telemetry socket. It runs a single receive
// goroutine that frames, decodes and publishes state snapshots.
type Channel struct {
	cfg Config
	log *slog.Logger
	sub *subscribers

	mu       sync.RWMutex
	sock     net.Conn
	lifState conn.State
	robot    RobotState
	lastMsg  time.Time

	stop chan struct{}
	done chan struct{}
}

// New creates a telemetry channel. The configuration is validated up
// front; invalid parameters fail construction.
func New(cfg Config) (*Channel, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("telemetry: host required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("telemetry: port out of range: %d", cfg.Port)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Second
	}
	if cfg.Layout.MinFullState == 0 {
		cfg.Layout = DefaultLayout()
	}
	if !cfg.Layout.valid() {
		return nil, fmt.Errorf("telemetry: invalid layout %q", cfg.Layout.Name)
	}
	if cfg.ReconnectAttempts < 0 {
		return nil, fmt.Errorf("telemetry: reconnect attempts must be >= 0")
	}

	logger := ulog.Component("telemetry")
	return &Channel{
		cfg: cfg,
		log: logger,
		sub: newSubscribers(logger),
	}, nil
}

// Connect opens the socket and starts the receive loop.
func (c *Channel) Connect() error {
	c.mu.Lock()
	if c.lifState == conn.Connected || c.lifState == conn.Connecting {
		c.mu.Unlock()
		return nil
	}
	c.lifState = conn.Connecting
	c.mu.Unlock()

	addr := net.JoinHostPort(c.cfg.Host, fmt.Sprint(c.cfg.Port))
	sock, err := net.DialTimeout("tcp", addr, c.cfg.Timeout)
	if err != nil {
		c.mu.Lock()
		c.lifState = conn.Disconnected
		c.mu.Unlock()
		return fmt.Errorf("telemetry: connect %s: %w", addr, err)
	}

	c.mu.Lock()
	c.sock = sock
	c.lifState = conn.Connected
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	stop, done := c.stop, c.done
	c.mu.Unlock()

	c.log.Info("connected to real-time interface", "addr", addr)
	go c.receiveLoop(stop, done)
	return nil
}

// Disconnect signals the receive loop to stop, joins it with a bounded
// timeout and closes the socket. Safe to call repeatedly.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	stop, done := c.stop, c.done
	sock := c.sock
	c.sock = nil
	c.lifState = conn.Disconnected
	c.stop, c.done = nil, nil
	c.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if sock != nil {
		_ = sock.Close()
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			c.log.Warn("receive loop did not stop within timeout")
		}
	}
	c.log.Info("disconnected from real-time interface")
}

// Reconnect retries Connect a bounded number of times with a fixed
// delay. It returns ErrReconnectExhausted after the final failure.
func (c *Channel) Reconnect() error {
	c.Disconnect()

	attempts := c.cfg.ReconnectAttempts
	for attempt := 1; attempt <= attempts; attempt++ {
		c.log.Info("reconnection attempt", "attempt", attempt, "of", attempts)
		if err := c.Connect(); err == nil {
			return nil
		}
		if attempt < attempts {
			time.Sleep(c.cfg.ReconnectDelay)
		}
	}
	c.log.Error("failed to reconnect after all attempts", "attempts", attempts)
	return ErrReconnectExhausted
}

// IsConnected reports whether the channel is currently connected.
func (c *Channel) IsConnected() bool {
	return c.State() == conn.Connected
}

// State returns the channel's connection lifecycle state.
func (c *Channel) State() conn.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lifState
}

// GetState returns the latest snapshot. Non-blocking; the zero value
// before the first frame arrives.
func (c *Channel) GetState() RobotState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.robot
}

// TCPPose returns the latest TCP pose.
func (c *Channel) TCPPose() [6]float64 {
	return c.GetState().TCPPose
}

// JointAngles returns the latest joint angles.
func (c *Channel) JointAngles() [6]float64 {
	return c.GetState().JointAngles
}

// OnState registers a full-state subscriber; the returned id removes it
// via Unsubscribe.
func (c *Channel) OnState(fn StateFunc) int { return c.sub.addState(fn) }

// OnPosition registers a position-only subscriber.
func (c *Channel) OnPosition(fn PositionFunc) int { return c.sub.addPosition(fn) }

// OnSafety registers a safety-only subscriber.
func (c *Channel) OnSafety(fn SafetyFunc) int { return c.sub.addSafety(fn) }

// Unsubscribe removes a subscriber registered by any On* call.
func (c *Channel) Unsubscribe(id int) { c.sub.remove(id) }

// receiveLoop is the single writer of the channel's state. Read
// timeouts are normal; any other socket error marks the channel
// disconnected and ends the loop — the caller decides about Reconnect.
func (c *Channel) receiveLoop(stop chan struct{}, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		payload, err := c.readFrame(stop)
		switch {
		case err == nil:
			if payload != nil {
				c.handlePayload(payload)
			}
		case errors.Is(err, errTimeout):
			// Normal on the real-time interface.
		case errors.Is(err, errStopped):
			return
		default:
			select {
			case <-stop:
				// Disconnect closed the socket out from under the read;
				// this is the normal teardown path, not a failure.
				return
			default:
			}
			c.log.Error("receive loop error", "error", err)
			c.markDisconnected()
			return
		}
	}
}

// readFrame reads one length-prefixed frame: a 4-byte big-endian length
// covering the whole message, then length-4 payload bytes. Oversized
// frames are discarded (nil payload, nil error).
func (c *Channel) readFrame(stop chan struct{}) ([]byte, error) {
	header, err := c.recvExact(4, stop)
	if err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(header)

	if length > MaxFrameSize {
		c.log.Warn("unusually large message length, dropping frame", "length", length)
		if err := c.discard(int(length)-4, stop); err != nil && !errors.Is(err, errTimeout) {
			return nil, err
		}
		return nil, nil
	}
	if length < 4 {
		c.log.Warn("malformed message length, dropping frame", "length", length)
		return nil, nil
	}
	return c.recvExact(int(length)-4, stop)
}

// recvExact receives exactly n bytes, riding out read timeouts. A
// timeout with nothing read yet surfaces as errTimeout so the loop can
// poll its stop signal; a timeout mid-frame keeps reading.
func (c *Channel) recvExact(n int, stop chan struct{}) ([]byte, error) {
	buf := make([]byte, n)
	got := 0
	for got < n {
		select {
		case <-stop:
			return nil, errStopped
		default:
		}

		sock := c.socket()
		if sock == nil {
			return nil, ErrNotConnected
		}
		_ = sock.SetReadDeadline(time.Now().Add(c.cfg.Timeout))
		m, err := sock.Read(buf[got:])
		got += m
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if got == 0 {
					return nil, errTimeout
				}
				continue
			}
			if errors.Is(err, io.EOF) && got == n {
				break
			}
			return nil, err
		}
	}
	return buf, nil
}

// discard consumes and drops n payload bytes so the next header read
// starts on a frame boundary.
func (c *Channel) discard(n int, stop chan struct{}) error {
	buf := make([]byte, 4096)
	for n > 0 {
		select {
		case <-stop:
			return errStopped
		default:
		}

		sock := c.socket()
		if sock == nil {
			return ErrNotConnected
		}
		chunk := len(buf)
		if n < chunk {
			chunk = n
		}
		_ = sock.SetReadDeadline(time.Now().Add(c.cfg.Timeout))
		m, err := sock.Read(buf[:chunk])
		n -= m
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return err
		}
	}
	return nil
}

func (c *Channel) socket() net.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sock
}

func (c *Channel) markDisconnected() {
	c.mu.Lock()
	c.lifState = conn.Disconnected
	c.mu.Unlock()
}

// handlePayload decodes one frame and publishes the resulting snapshot.
// Decode failures drop the frame and keep the loop alive.
func (c *Channel) handlePayload(payload []byte) {
	if len(payload) < 1 {
		return
	}

	c.mu.Lock()
	kind := c.cfg.Layout.classify(len(payload))
	st := c.robot
	switch kind {
	case frameFull:
		st = c.cfg.Layout.decode(payload, st)
	case frameReduced:
		st = c.cfg.Layout.decodeReduced(payload, st)
	default:
		c.mu.Unlock()
		return
	}

	now := time.Now()
	st.Timestamp = now
	st.MessagesReceived++
	st.ConnectionQuality = 100
	if !c.lastMsg.IsZero() {
		if dt := now.Sub(c.lastMsg).Seconds(); dt > 0 {
			st.MessageFrequency = freqAlpha*(1.0/dt) + (1-freqAlpha)*st.MessageFrequency
		}
	}
	c.lastMsg = now
	c.robot = st
	c.mu.Unlock()

	c.sub.publishState(st)
	if kind == frameFull {
		c.sub.publishPosition(st.TCPPose, st.JointAngles)
	}
	c.sub.publishSafety(st.Safety())
}
