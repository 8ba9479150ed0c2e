package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"alfredoptarigan/readysetrole/internal/models"
	"alfredoptarigan/readysetrole/internal/services"
)

type UploadHandler struct {
	sessionService services.SessionService
	maxFileSize    int64
}

func NewUploadHandler(sessionService services.SessionService, maxFileSize int64) *UploadHandler {
	return &UploadHandler{
		sessionService: sessionService,
		maxFileSize:    maxFileSize,
	}
}

// HandleSaveResume handles PUT /sessions/:id/resume
func (h *UploadHandler) HandleSaveResume(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "failed to parse multipart form",
		})
	}

	var text string
	if values := form.Value["text"]; len(values) > 0 {
		text = values[0]
	}

	var upload *services.Upload
	if files := form.File["file"]; len(files) > 0 {
		// size is checked by the service, which still saves the text
		u, err := readFile(files[0])
		if err != nil {
			return respondError(c, err)
		}
		upload = u
	}

	session, err := h.sessionService.SaveResume(c.UserContext(), id, text, upload)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(toSessionResponse(session, h.sessionService.MaxAttachments()))
}

// HandleForgetResume handles DELETE /sessions/:id/resume
func (h *UploadHandler) HandleForgetResume(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	session, err := h.sessionService.ForgetResume(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(toSessionResponse(session, h.sessionService.MaxAttachments()))
}

// HandleAddAttachments handles POST /sessions/:id/attachments
func (h *UploadHandler) HandleAddAttachments(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "failed to parse multipart form",
		})
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No files uploaded. Send one or more 'files' parts (pdf, docx or txt).",
		})
	}

	uploads := make([]services.Upload, 0, len(headers))
	var tooLarge []models.UploadFailure
	for _, fh := range headers {
		u, err := h.readUpload(fh)
		if err != nil {
			tooLarge = append(tooLarge, models.UploadFailure{Name: fh.Filename, Error: err.Error()})
			continue
		}
		uploads = append(uploads, *u)
	}

	result, err := h.sessionService.AddAttachments(c.UserContext(), id, uploads)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(models.AttachmentsResponse{
		Added:       result.Added,
		Skipped:     result.Skipped,
		Failed:      append(tooLarge, result.Failed...),
		Attachments: toAttachmentResponses(result.Session.Attachments),
		SlotsLeft:   result.Session.SlotsLeft(h.sessionService.MaxAttachments()),
	})
}

// HandleRemoveAttachment handles DELETE /sessions/:id/attachments/:index
func (h *UploadHandler) HandleRemoveAttachment(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid attachment index",
		})
	}

	session, err := h.sessionService.RemoveAttachment(c.UserContext(), id, index)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(toSessionResponse(session, h.sessionService.MaxAttachments()))
}

func (h *UploadHandler) readUpload(fh *multipart.FileHeader) (*services.Upload, error) {
	if h.maxFileSize > 0 && fh.Size > h.maxFileSize {
		return nil, fmt.Errorf("%w: %s. Max size: %d bytes", services.ErrFileTooLarge, fh.Filename, h.maxFileSize)
	}
	return readFile(fh)
}

func readFile(fh *multipart.FileHeader) (*services.Upload, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}

	return &services.Upload{Name: fh.Filename, Data: data}, nil
}
