package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-urjog/pkg/controller"
	"github.com/teslashibe/go-urjog/pkg/hub"
	"github.com/teslashibe/go-urjog/pkg/jog"
)

// handleStatus returns the merged controller snapshot.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.backend.Status())
}

// handleSafety returns the safety monitor's latest poll.
func (s *Server) handleSafety(c *fiber.Ctx) error {
	return c.JSON(s.backend.SafetySnapshot())
}

// JogStartRequest selects the axis and direction to jog. SpeedScale is
// an optional fraction of the axis speed limit, defaulting to full.
type JogStartRequest struct {
	Axis       int      `json:"axis"`
	Direction  int      `json:"direction"`
	SpeedScale *float64 `json:"speed_scale"`
}

func (s *Server) handleJogStart(c *fiber.Ctx) error {
	var req JogStartRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Direction != 1 && req.Direction != -1 {
		return badRequest(c, "direction must be 1 or -1")
	}
	scale := 1.0
	if req.SpeedScale != nil {
		scale = *req.SpeedScale
	}

	if err := s.backend.StartJog(req.Axis, jog.Direction(req.Direction), scale); err != nil {
		return jogError(c, err)
	}
	return c.JSON(fiber.Map{"started": true})
}

func (s *Server) handleJogStop(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"stopped": s.backend.StopJog()})
}

func (s *Server) handleEmergencyStop(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"stopped": s.backend.EmergencyStop()})
}

func (s *Server) handleEmergencyReset(c *fiber.Ctx) error {
	if err := s.backend.ResetEmergencyStop(); err != nil {
		return jogError(c, err)
	}
	return c.JSON(fiber.Map{"reset": true})
}

// SetModeRequest names the jog mode: "cartesian" or "joint".
type SetModeRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleSetMode(c *fiber.Ctx) error {
	var req SetModeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	mode, err := jog.ParseMode(req.Mode)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if err := s.backend.SetMode(mode); err != nil {
		return jogError(c, err)
	}
	return c.JSON(fiber.Map{"mode": mode.String()})
}

// SetTypeRequest names the jog type: "continuous" or "step".
type SetTypeRequest struct {
	Type string `json:"type"`
}

func (s *Server) handleSetType(c *fiber.Ctx) error {
	var req SetTypeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	t, err := controller.ParseType(req.Type)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if err := s.backend.SetType(t); err != nil {
		return jogError(c, err)
	}
	return c.JSON(fiber.Map{"type": t.String()})
}

// SetStepRequest selects a rung on the step-size ladders.
type SetStepRequest struct {
	Index int `json:"index"`
}

func (s *Server) handleSetStep(c *fiber.Ctx) error {
	var req SetStepRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := s.backend.SetStepIndex(req.Index); err != nil {
		return badRequest(c, err.Error())
	}
	return c.JSON(fiber.Map{"step_index": req.Index})
}

// handleStatusWS pushes status snapshots over a websocket, starting
// with the current one.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	client := hub.NewClient(s.statusHub, c)
	_ = c.WriteJSON(s.backend.Status())
	client.Run()
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// jogError maps controller refusals to HTTP statuses: missing
// connection is 503, safety refusals and busy states are 409.
func jogError(c *fiber.Ctx, err error) error {
	status := fiber.StatusBadRequest
	switch {
	case errors.Is(err, controller.ErrNotConnected):
		status = fiber.StatusServiceUnavailable
	case errors.Is(err, controller.ErrNotSafe),
		errors.Is(err, controller.ErrJogActive),
		errors.Is(err, jog.ErrStepActive):
		status = fiber.StatusConflict
	case errors.Is(err, jog.ErrNotConnected):
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
