package handlers

import (
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"

	"alfredoptarigan/readysetrole/internal/services"
)

type ResultHandler struct {
	sessionService services.SessionService
}

func NewResultHandler(sessionService services.SessionService) *ResultHandler {
	return &ResultHandler{
		sessionService: sessionService,
	}
}

// HandleDownload handles GET /sessions/:id/download
func (h *ResultHandler) HandleDownload(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	text, err := h.sessionService.Deliverable(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}

	c.Attachment(fmt.Sprintf("readysetrole-%s.txt", id))
	c.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")
	return c.SendString(text)
}

// HandleExport handles POST /sessions/:id/export
func (h *ResultHandler) HandleExport(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	export, err := h.sessionService.Export(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(export)
}

// HandleGetExport handles GET /exports/:key
func (h *ResultHandler) HandleGetExport(c *fiber.Ctx) error {
	key := c.Params("key")

	rc, err := h.sessionService.OpenExport(c.UserContext(), key)
	if err != nil {
		return respondError(c, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return respondError(c, fmt.Errorf("failed to read export: %w", err))
	}

	c.Attachment(key)
	c.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")
	return c.Send(data)
}
