package services

import (
	"bytes"
	"context"
	"fmt"

	"google.golang.org/genai"

	"alfredoptarigan/readysetrole/internal/models"
)

// FileStore is the remote file relay. Names are the opaque handles the
// Files API hands out ("files/abc123").
type FileStore interface {
	Upload(ctx context.Context, displayName, mimeType string, data []byte) (*models.RemoteFile, error)
	Get(ctx context.Context, name string) (*models.RemoteFile, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]models.RemoteFile, error)
}

type geminiFileStore struct {
	client *genai.Client
}

func NewGeminiFileStore(client *genai.Client) FileStore {
	return &geminiFileStore{client: client}
}

func (s *geminiFileStore) Upload(ctx context.Context, displayName, mimeType string, data []byte) (*models.RemoteFile, error) {
	f, err := s.client.Files.Upload(ctx, bytes.NewReader(data), &genai.UploadFileConfig{
		MIMEType:    mimeType,
		DisplayName: displayName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}
	return toRemoteFile(f), nil
}

func (s *geminiFileStore) Get(ctx context.Context, name string) (*models.RemoteFile, error) {
	f, err := s.client.Files.Get(ctx, name, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get file %s: %w", name, err)
	}
	return toRemoteFile(f), nil
}

func (s *geminiFileStore) Delete(ctx context.Context, name string) error {
	if _, err := s.client.Files.Delete(ctx, name, nil); err != nil {
		return fmt.Errorf("failed to delete file %s: %w", name, err)
	}
	return nil
}

func (s *geminiFileStore) List(ctx context.Context) ([]models.RemoteFile, error) {
	var files []models.RemoteFile
	for f, err := range s.client.Files.All(ctx) {
		if err != nil {
			return files, fmt.Errorf("failed to list files: %w", err)
		}
		files = append(files, *toRemoteFile(f))
	}
	return files, nil
}

func toRemoteFile(f *genai.File) *models.RemoteFile {
	rf := &models.RemoteFile{
		Name:     f.Name,
		URI:      f.URI,
		MIMEType: f.MIMEType,
		State:    models.FileState(f.State),
	}
	if f.SizeBytes != nil {
		rf.SizeBytes = *f.SizeBytes
	}
	if rf.State == "" {
		rf.State = models.FileStateUnspecified
	}
	return rf
}
