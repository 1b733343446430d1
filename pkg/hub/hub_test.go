package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBroadcast_NoClientsDoesNotBlock(t *testing.T) {
	h := New("test")
	go h.Run()
	defer h.Stop()

	for i := 0; i < 10; i++ {
		h.Broadcast([]byte(`{"seq":1}`))
	}
	assert.Equal(t, 0, h.ClientCount())
}

func TestBroadcastJSON_EncodesValue(t *testing.T) {
	h := New("test")
	go h.Run()
	defer h.Stop()

	assert.NoError(t, h.BroadcastJSON(map[string]int{"axis": 2}))
	assert.Error(t, h.BroadcastJSON(func() {}), "unencodable values must surface an error")
}

func TestBroadcast_FullQueueDropsInsteadOfBlocking(t *testing.T) {
	h := New("test") // Run never started, the queue only drains into it

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			h.Broadcast([]byte("x"))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked on a full queue")
	}
}

func TestStop_EndsRunLoop(t *testing.T) {
	h := New("test")
	done := make(chan struct{})
	go func() {
		h.Run()
		close(done)
	}()

	h.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}
