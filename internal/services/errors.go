package services

import "errors"

var (
	ErrUnsupportedFileType = errors.New("unsupported file type: only pdf, docx and txt are allowed")
	ErrFileTooLarge        = errors.New("file too large")
	ErrAttachmentLimit     = errors.New("attachment limit reached")
	ErrAttachmentNotFound  = errors.New("attachment not found")
	ErrMissingInputs       = errors.New("a master resume (text or file) and a job description are required")
	ErrInvalidModel        = errors.New("invalid model")
	ErrModelCall           = errors.New("model call failed")
	ErrNoDeliverable       = errors.New("no assistant reply to deliver yet")
	ErrExportNotFound      = errors.New("export not found")
)
