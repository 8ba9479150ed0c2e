package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Session *SessionHandler
	Upload  *UploadHandler
	Tailor  *TailorHandler
	Result  *ResultHandler
}

// RegisterRoutes mounts the API on router, usually the /api/v1 group.
func RegisterRoutes(router fiber.Router, h Handlers) {
	router.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now(),
		})
	})

	router.Get("/prompt", h.Session.HandlePromptInfo)
	router.Get("/models", h.Session.HandleModels)

	sessions := router.Group("/sessions")
	sessions.Post("/", h.Session.HandleCreate)
	sessions.Get("/:id", h.Session.HandleGet)
	sessions.Delete("/:id", h.Session.HandleDelete)
	sessions.Put("/:id/model", h.Session.HandleSelectModel)
	sessions.Post("/:id/clear", h.Session.HandleClear)

	sessions.Put("/:id/resume", h.Upload.HandleSaveResume)
	sessions.Delete("/:id/resume", h.Upload.HandleForgetResume)
	sessions.Post("/:id/attachments", h.Upload.HandleAddAttachments)
	sessions.Delete("/:id/attachments/:index", h.Upload.HandleRemoveAttachment)

	sessions.Post("/:id/tailor", h.Tailor.HandleTailor)
	sessions.Post("/:id/messages", h.Tailor.HandleReply)

	sessions.Get("/:id/download", h.Result.HandleDownload)
	sessions.Post("/:id/export", h.Result.HandleExport)
	router.Get("/exports/:key", h.Result.HandleGetExport)
}
