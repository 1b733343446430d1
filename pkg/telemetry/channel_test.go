package telemetry

import (
	"context"
	"encoding/binary"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStream accepts one connection and lets tests push frames to it.
type fakeStream struct {
	listener net.Listener
	conns    chan net.Conn
}

func startFakeStream(t *testing.T) *fakeStream {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	f := &fakeStream{listener: listener, conns: make(chan net.Conn, 1)}
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		f.conns <- conn
	}()
	return f
}

func (f *fakeStream) hostPort(t *testing.T) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(f.listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func (f *fakeStream) conn(t *testing.T) net.Conn {
	t.Helper()
	select {
	case c := <-f.conns:
		t.Cleanup(func() { c.Close() })
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no connection was accepted")
		return nil
	}
}

// writeFrame sends one wire message: 4-byte big-endian total length
// (header included) followed by the payload.
func writeFrame(t *testing.T, conn net.Conn, payload []byte) {
	t.Helper()
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(payload)+4))
	_, err := conn.Write(header)
	require.NoError(t, err)
	_, err = conn.Write(payload)
	require.NoError(t, err)
}

func newChannel(t *testing.T, f *fakeStream) *Channel {
	t.Helper()
	host, port := f.hostPort(t)
	ch, err := New(Config{
		Host:    host,
		Port:    port,
		Timeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, ch.Connect())
	t.Cleanup(ch.Disconnect)
	return ch
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Port: 30003})
	assert.Error(t, err)

	_, err = New(Config{Host: "10.0.0.1", Port: 30003, Layout: Layout{MinFullState: 10, MinReduced: 20}})
	assert.Error(t, err)

	_, err = New(Config{Host: "10.0.0.1", Port: 30003, ReconnectAttempts: -1})
	assert.Error(t, err)
}

func TestReceive_FullStateFrame(t *testing.T) {
	f := startFakeStream(t)
	ch := newChannel(t, f)
	conn := f.conn(t)

	pose := [6]float64{0.4, -0.2, 0.3, 0.1, 3.0, -0.5}
	joints := [6]float64{0.0, -1.57, 1.57, -0.5, 1.2, 3.1}
	writeFrame(t, conn, fullPayload(pose, joints))

	require.Eventually(t, func() bool {
		return ch.GetState().MessagesReceived == 1
	}, 2*time.Second, 5*time.Millisecond)

	st := ch.GetState()
	assert.Equal(t, pose, st.TCPPose)
	assert.Equal(t, joints, st.JointAngles)
	assert.Equal(t, pose, ch.TCPPose())
	assert.Equal(t, joints, ch.JointAngles())
	assert.Equal(t, 100, st.ConnectionQuality)
}

func TestReceive_OversizedFrameDiscarded(t *testing.T) {
	f := startFakeStream(t)
	ch := newChannel(t, f)
	conn := f.conn(t)

	// A frame past the sanity bound must be consumed and dropped
	// without desynchronizing the stream or touching the state.
	huge := make([]byte, 20000)
	writeFrame(t, conn, huge)

	pose := [6]float64{0.1, 0.2, 0.3, 0, 0, 0}
	writeFrame(t, conn, fullPayload(pose, [6]float64{}))

	require.Eventually(t, func() bool {
		return ch.GetState().MessagesReceived == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, pose, ch.GetState().TCPPose)
	assert.True(t, ch.IsConnected())
}

func TestReceive_TinyFrameIgnored(t *testing.T) {
	f := startFakeStream(t)
	ch := newChannel(t, f)
	conn := f.conn(t)

	writeFrame(t, conn, make([]byte, 10))
	writeFrame(t, conn, fullPayload([6]float64{0.5, 0, 0, 0, 0, 0}, [6]float64{}))

	require.Eventually(t, func() bool {
		return ch.GetState().MessagesReceived == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSubscribers_PublishOnFullFrame(t *testing.T) {
	f := startFakeStream(t)
	ch := newChannel(t, f)
	conn := f.conn(t)

	var states, positions, safeties atomic.Int64
	ch.OnState(func(RobotState) { states.Add(1) })
	ch.OnPosition(func(_, _ [6]float64) { positions.Add(1) })
	ch.OnSafety(func(SafetyState) { safeties.Add(1) })

	writeFrame(t, conn, fullPayload([6]float64{}, [6]float64{}))

	require.Eventually(t, func() bool {
		return states.Load() == 1 && positions.Load() == 1 && safeties.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSubscribers_PanicIsolated(t *testing.T) {
	f := startFakeStream(t)
	ch := newChannel(t, f)
	conn := f.conn(t)

	var called atomic.Int64
	ch.OnState(func(RobotState) { panic("bad subscriber") })
	ch.OnState(func(RobotState) { called.Add(1) })

	writeFrame(t, conn, fullPayload([6]float64{}, [6]float64{}))
	writeFrame(t, conn, fullPayload([6]float64{}, [6]float64{}))

	require.Eventually(t, func() bool {
		return called.Load() == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, ch.IsConnected())
}

func TestUnsubscribe(t *testing.T) {
	f := startFakeStream(t)
	ch := newChannel(t, f)
	conn := f.conn(t)

	var called atomic.Int64
	id := ch.OnState(func(RobotState) { called.Add(1) })
	ch.Unsubscribe(id)

	writeFrame(t, conn, fullPayload([6]float64{}, [6]float64{}))

	require.Eventually(t, func() bool {
		return ch.GetState().MessagesReceived == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(0), called.Load())
}

func TestReconnect_Exhausted(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, portStr, _ := net.SplitHostPort(listener.Addr().String())
	port, _ := strconv.Atoi(portStr)
	listener.Close() // nothing listens here anymore

	ch, err := New(Config{
		Host:              host,
		Port:              port,
		Timeout:           50 * time.Millisecond,
		ReconnectAttempts: 2,
		ReconnectDelay:    10 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.Error(t, ch.Connect())
	assert.ErrorIs(t, ch.Reconnect(), ErrReconnectExhausted)
	assert.False(t, ch.IsConnected())
}

func TestDisconnect_StopsLoop(t *testing.T) {
	f := startFakeStream(t)
	ch := newChannel(t, f)
	f.conn(t)

	ch.Disconnect()
	assert.False(t, ch.IsConnected())
	ch.Disconnect() // idempotent
}

// recordingHandler captures log records for assertions.
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordingHandler) errorCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.records {
		if r.Level >= slog.LevelError {
			n++
		}
	}
	return n
}

func TestDisconnect_QuietTeardown(t *testing.T) {
	f := startFakeStream(t)
	host, port := f.hostPort(t)
	ch, err := New(Config{Host: host, Port: port, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	rec := &recordingHandler{}
	ch.log = slog.New(rec)

	require.NoError(t, ch.Connect())
	f.conn(t)

	// Tear down while the receive loop sits in a blocking read; the
	// socket close it observes must not surface as a receive error.
	time.Sleep(10 * time.Millisecond)
	ch.Disconnect()

	assert.False(t, ch.IsConnected())
	assert.Equal(t, 0, rec.errorCount(), "teardown logged a receive error")
}

func TestReceive_PeerClose_MarksDisconnected(t *testing.T) {
	f := startFakeStream(t)
	ch := newChannel(t, f)
	conn := f.conn(t)

	conn.Close()
	require.Eventually(t, func() bool {
		return !ch.IsConnected()
	}, 2*time.Second, 5*time.Millisecond)
}
