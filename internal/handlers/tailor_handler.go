package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"alfredoptarigan/readysetrole/internal/models"
	"alfredoptarigan/readysetrole/internal/services"
)

type TailorHandler struct {
	sessionService services.SessionService
}

func NewTailorHandler(sessionService services.SessionService) *TailorHandler {
	return &TailorHandler{sessionService: sessionService}
}

// HandleTailor handles POST /sessions/:id/tailor
func (h *TailorHandler) HandleTailor(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	var req models.TailorRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	result, err := h.sessionService.Tailor(c.UserContext(), id, req.JobDescription)
	return respondTurn(c, result, err, false)
}

// HandleReply handles POST /sessions/:id/messages
func (h *TailorHandler) HandleReply(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	var req models.ReplyRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	result, err := h.sessionService.Reply(c.UserContext(), id, req.Message)
	return respondTurn(c, result, err, true)
}

// respondTurn answers a model turn. A failed model call still carries the
// inline error reply and the stage it fell back to.
func respondTurn(c *fiber.Ctx, result *services.TurnResult, err error, reply bool) error {
	if err != nil {
		if errors.Is(err, services.ErrModelCall) && result != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": err.Error(),
				"code":  fiber.StatusBadGateway,
				"stage": string(result.Session.Stage),
				"reply": result.Reply,
			})
		}
		return respondError(c, err)
	}

	s := result.Session
	resp := models.TurnResponse{
		Stage: string(s.Stage),
		Reply: result.Reply,
	}

	switch {
	case !reply:
		scores := s.Scores
		resp.Scores = &scores
		resp.Packs = s.Packs
	case s.Stage == models.StageDelivered && len(s.Selection) > 0:
		post := s.PostScores
		resp.PostScores = &post
		resp.Selection = s.Selection
	}

	return c.JSON(resp)
}
