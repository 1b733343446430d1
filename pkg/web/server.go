// Package web is the UI-facing event bridge: a small HTTP/websocket
// server that republishes controller status and accepts jog commands
// from remote clients.
package web

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	ulog "github.com/teslashibe/go-urjog/internal/log"
	"github.com/teslashibe/go-urjog/pkg/controller"
	"github.com/teslashibe/go-urjog/pkg/hub"
	"github.com/teslashibe/go-urjog/pkg/jog"
	"github.com/teslashibe/go-urjog/pkg/safety"
)

// Backend is the controller surface the server drives. The controller
// facade satisfies it.
type Backend interface {
	Status() controller.Status
	SafetySnapshot() safety.Snapshot
	StartJog(axis int, dir jog.Direction, speedScale float64) error
	StopJog() bool
	EmergencyStop() bool
	ResetEmergencyStop() error
	SetMode(mode jog.Mode) error
	SetType(t controller.JogType) error
	SetStepIndex(i int) error
	OnStatus(fn func(controller.Status)) int
	Unsubscribe(id int)
}

// Server bridges the controller to websocket/HTTP clients.
type Server struct {
	app  *fiber.App
	log  *slog.Logger
	port string

	backend   Backend
	statusHub *hub.Hub
	statusSub int
}

// NewServer creates the event bridge on the given port.
func NewServer(port string, backend Backend) *Server {
	s := &Server{
		log:       ulog.Component("web"),
		port:      port,
		backend:   backend,
		statusHub: hub.New("status"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "urjog bridge",
		DisableStartupMessage: true,
	})

	// CORS for local development UIs.
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/safety", s.handleSafety)
	api.Post("/jog/start", s.handleJogStart)
	api.Post("/jog/stop", s.handleJogStop)
	api.Post("/estop", s.handleEmergencyStop)
	api.Post("/estop/reset", s.handleEmergencyReset)
	api.Post("/mode", s.handleSetMode)
	api.Post("/type", s.handleSetType)
	api.Post("/step", s.handleSetStep)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// Start runs the hub and serves until Shutdown. Controller status
// republications flow straight into the status hub.
func (s *Server) Start() error {
	go s.statusHub.Run()
	s.statusSub = s.backend.OnStatus(func(st controller.Status) {
		if err := s.statusHub.BroadcastJSON(st); err != nil {
			s.log.Error("failed to broadcast status", "error", err)
		}
	})

	s.log.Info("event bridge listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.log.Error("web server error", "error", err)
		}
	}()
}

// Shutdown detaches from the controller and stops the server.
func (s *Server) Shutdown() error {
	s.backend.Unsubscribe(s.statusSub)
	s.statusHub.Stop()
	return s.app.Shutdown()
}
