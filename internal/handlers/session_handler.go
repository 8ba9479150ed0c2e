package handlers

import (
	"github.com/gofiber/fiber/v2"

	"alfredoptarigan/readysetrole/internal/models"
	"alfredoptarigan/readysetrole/internal/services"
)

type SessionHandler struct {
	sessionService services.SessionService
}

func NewSessionHandler(sessionService services.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// HandleCreate handles POST /sessions
func (h *SessionHandler) HandleCreate(c *fiber.Ctx) error {
	session, err := h.sessionService.Create(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(toSessionResponse(session, h.sessionService.MaxAttachments()))
}

// HandleGet handles GET /sessions/:id
func (h *SessionHandler) HandleGet(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	session, err := h.sessionService.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(toSessionResponse(session, h.sessionService.MaxAttachments()))
}

// HandleDelete handles DELETE /sessions/:id
func (h *SessionHandler) HandleDelete(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	if err := h.sessionService.Delete(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// HandleSelectModel handles PUT /sessions/:id/model
func (h *SessionHandler) HandleSelectModel(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	var req models.SelectModelRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	session, err := h.sessionService.SelectModel(c.UserContext(), id, req.Model)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(toSessionResponse(session, h.sessionService.MaxAttachments()))
}

// HandleClear handles POST /sessions/:id/clear
func (h *SessionHandler) HandleClear(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	session, err := h.sessionService.ClearChat(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(toSessionResponse(session, h.sessionService.MaxAttachments()))
}

// HandlePromptInfo handles GET /prompt
func (h *SessionHandler) HandlePromptInfo(c *fiber.Ctx) error {
	return c.JSON(h.sessionService.PromptInfo())
}

// HandleModels handles GET /models
func (h *SessionHandler) HandleModels(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"models":  services.AllowedModels,
		"default": h.sessionService.DefaultModel(),
	})
}

func toSessionResponse(s *models.Session, maxAttachments int) models.SessionResponse {
	resp := models.SessionResponse{
		ID:             s.ID.String(),
		Model:          s.Model,
		Stage:          string(s.Stage),
		ResumeText:     s.ResumeText,
		JobDescription: s.JobDescription,
		Attachments:    toAttachmentResponses(s.Attachments),
		SlotsLeft:      s.SlotsLeft(maxAttachments),
		ChatHistory:    s.ChatHistory,
		Scores:         s.Scores,
		PostScores:     s.PostScores,
		Packs:          s.Packs,
		Selection:      s.Selection,
	}

	if s.ResumeFile != nil {
		rf := toAttachmentResponse(0, *s.ResumeFile)
		resp.ResumeFile = &rf
	}

	return resp
}

func toAttachmentResponses(files []models.UploadedFile) []models.AttachmentResponse {
	out := make([]models.AttachmentResponse, 0, len(files))
	for i, f := range files {
		out = append(out, toAttachmentResponse(i, f))
	}
	return out
}

func toAttachmentResponse(index int, f models.UploadedFile) models.AttachmentResponse {
	return models.AttachmentResponse{
		Index:     index,
		Name:      f.Name,
		Size:      f.Size,
		SizeHuman: services.HumanSize(f.Size),
		MIMEType:  f.MIMEType,
		State:     f.Remote.State,
	}
}
