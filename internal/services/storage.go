package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"
)

// ExportStore keeps saved deliverables. Keys are generated by Save and are
// the only names Open and URL accept.
type ExportStore interface {
	Save(ctx context.Context, sessionID uuid.UUID, content []byte) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	URL(ctx context.Context, key string) (string, error)
}

var exportKeyPattern = regexp.MustCompile(`^readysetrole-[0-9a-f-]{36}-[0-9a-f-]{36}\.txt$`)

func newExportKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("readysetrole-%s-%s.txt", sessionID, uuid.New())
}

func validExportKey(key string) bool {
	return exportKeyPattern.MatchString(key)
}

type localExportStore struct {
	exportPath string
}

func NewLocalExportStore(exportPath string) (ExportStore, error) {
	s := &localExportStore{exportPath: exportPath}
	if err := s.ensureDir(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *localExportStore) ensureDir() error {
	if err := os.MkdirAll(s.exportPath, 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	return nil
}

func (s *localExportStore) Save(_ context.Context, sessionID uuid.UUID, content []byte) (string, error) {
	key := newExportKey(sessionID)
	filePath := filepath.Join(s.exportPath, key)

	if err := os.WriteFile(filePath, content, 0644); err != nil {
		return "", fmt.Errorf("failed to save export: %w", err)
	}

	return key, nil
}

func (s *localExportStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if !validExportKey(key) {
		return nil, ErrExportNotFound
	}

	f, err := os.Open(filepath.Join(s.exportPath, key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrExportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open export: %w", err)
	}
	return f, nil
}

// URL is empty for local exports; they are served by the API itself.
func (s *localExportStore) URL(_ context.Context, key string) (string, error) {
	if !validExportKey(key) {
		return "", ErrExportNotFound
	}
	return "", nil
}
