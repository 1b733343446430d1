package web

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-urjog/pkg/controller"
	"github.com/teslashibe/go-urjog/pkg/jog"
	"github.com/teslashibe/go-urjog/pkg/safety"
)

// fakeBackend records calls and returns scripted results.
type fakeBackend struct {
	status    controller.Status
	safety    safety.Snapshot
	jogErr    error
	modeErr   error
	typeErr   error
	stepErr   error
	resetErr  error
	lastAxis  int
	lastDir   jog.Direction
	lastScale float64
	stopCount int
}

func (f *fakeBackend) Status() controller.Status            { return f.status }
func (f *fakeBackend) SafetySnapshot() safety.Snapshot      { return f.safety }
func (f *fakeBackend) StopJog() bool                        { f.stopCount++; return true }
func (f *fakeBackend) EmergencyStop() bool                  { return true }
func (f *fakeBackend) ResetEmergencyStop() error            { return f.resetErr }
func (f *fakeBackend) SetMode(jog.Mode) error               { return f.modeErr }
func (f *fakeBackend) SetType(controller.JogType) error     { return f.typeErr }
func (f *fakeBackend) SetStepIndex(int) error               { return f.stepErr }
func (f *fakeBackend) OnStatus(func(controller.Status)) int { return 1 }
func (f *fakeBackend) Unsubscribe(int)                      {}

func (f *fakeBackend) StartJog(axis int, dir jog.Direction, speedScale float64) error {
	f.lastAxis, f.lastDir, f.lastScale = axis, dir, speedScale
	return f.jogErr
}

func request(t *testing.T, s *Server, method, path, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestGetStatus(t *testing.T) {
	backend := &fakeBackend{status: controller.Status{Connected: true, Mode: "cartesian"}}
	s := NewServer("0", backend)

	resp := request(t, s, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, true, body["connected"])
	assert.Equal(t, "cartesian", body["mode"])
}

func TestGetSafety(t *testing.T) {
	backend := &fakeBackend{safety: safety.Snapshot{SafeToJog: true}}
	s := NewServer("0", backend)

	resp := request(t, s, http.MethodGet, "/api/safety", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decode(t, resp)["SafeToJog"])
}

func TestJogStart_OK(t *testing.T) {
	backend := &fakeBackend{}
	s := NewServer("0", backend)

	resp := request(t, s, http.MethodPost, "/api/jog/start", `{"axis":2,"direction":-1}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, backend.lastAxis)
	assert.Equal(t, jog.Negative, backend.lastDir)
	assert.Equal(t, 1.0, backend.lastScale, "speed scale defaults to full")

	resp = request(t, s, http.MethodPost, "/api/jog/start", `{"axis":0,"direction":1,"speed_scale":0.3}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0.3, backend.lastScale)
}

func TestJogStart_BadDirection(t *testing.T) {
	s := NewServer("0", &fakeBackend{})

	resp := request(t, s, http.MethodPost, "/api/jog/start", `{"axis":0,"direction":2}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJogStart_ErrorMapping(t *testing.T) {
	cases := map[error]int{
		controller.ErrNotConnected: http.StatusServiceUnavailable,
		controller.ErrNotSafe:      http.StatusConflict,
		jog.ErrStepActive:          http.StatusConflict,
	}
	for jogErr, wantStatus := range cases {
		s := NewServer("0", &fakeBackend{jogErr: jogErr})
		resp := request(t, s, http.MethodPost, "/api/jog/start", `{"axis":0,"direction":1}`)
		assert.Equal(t, wantStatus, resp.StatusCode, "error %v", jogErr)
	}
}

func TestJogStop(t *testing.T) {
	backend := &fakeBackend{}
	s := NewServer("0", backend)

	resp := request(t, s, http.MethodPost, "/api/jog/stop", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decode(t, resp)["stopped"])
	assert.Equal(t, 1, backend.stopCount)
}

func TestEmergencyStopAndReset(t *testing.T) {
	s := NewServer("0", &fakeBackend{})

	resp := request(t, s, http.MethodPost, "/api/estop", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decode(t, resp)["stopped"])

	resp = request(t, s, http.MethodPost, "/api/estop/reset", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	blocked := NewServer("0", &fakeBackend{resetErr: controller.ErrNotSafe})
	resp = request(t, blocked, http.MethodPost, "/api/estop/reset", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSetMode(t *testing.T) {
	s := NewServer("0", &fakeBackend{})

	resp := request(t, s, http.MethodPost, "/api/mode", `{"mode":"joint"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "joint", decode(t, resp)["mode"])

	resp = request(t, s, http.MethodPost, "/api/mode", `{"mode":"polar"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	busy := NewServer("0", &fakeBackend{modeErr: controller.ErrJogActive})
	resp = request(t, busy, http.MethodPost, "/api/mode", `{"mode":"joint"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSetType(t *testing.T) {
	s := NewServer("0", &fakeBackend{})

	resp := request(t, s, http.MethodPost, "/api/type", `{"type":"step"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "step", decode(t, resp)["type"])

	resp = request(t, s, http.MethodPost, "/api/type", `{"type":"warp"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSetStep(t *testing.T) {
	s := NewServer("0", &fakeBackend{})

	resp := request(t, s, http.MethodPost, "/api/step", `{"index":3}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := NewServer("0", &fakeBackend{stepErr: controller.ErrJogActive})
	resp = request(t, out, http.MethodPost, "/api/step", `{"index":9}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
