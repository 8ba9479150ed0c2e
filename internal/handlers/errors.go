package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"alfredoptarigan/readysetrole/internal/repositories"
	"alfredoptarigan/readysetrole/internal/services"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, repositories.ErrSessionNotFound),
		errors.Is(err, services.ErrAttachmentNotFound),
		errors.Is(err, services.ErrExportNotFound),
		errors.Is(err, services.ErrNoDeliverable):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrAttachmentLimit),
		errors.Is(err, services.ErrInvalidTransition):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrUnsupportedFileType):
		return fiber.StatusUnsupportedMediaType
	case errors.Is(err, services.ErrFileTooLarge):
		return fiber.StatusRequestEntityTooLarge
	case errors.Is(err, services.ErrMissingInputs):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, services.ErrInvalidModel):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrModelCall):
		return fiber.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}

// ErrorHandler renders errors that escape the handlers, fiber's own included.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
