package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"alfredoptarigan/readysetrole/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionRepository interface {
	Save(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ExpiringSessionRepository is implemented by stores that cannot evict on
// their own and need a periodic sweep.
type ExpiringSessionRepository interface {
	SessionRepository
	PurgeExpired(ctx context.Context, now time.Time, limit int) ([]*models.Session, error)
}

// EvictionNotifier is implemented by stores that evict by themselves and can
// report what they dropped.
type EvictionNotifier interface {
	OnEvicted(fn func(session *models.Session))
}

func encodeSession(session *models.Session) ([]byte, error) {
	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	return data, nil
}

func decodeSession(data []byte) (*models.Session, error) {
	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

// cloneSession gives every caller its own copy so an aborted operation never
// leaks half-applied changes into the store.
func cloneSession(session *models.Session) (*models.Session, error) {
	data, err := encodeSession(session)
	if err != nil {
		return nil, err
	}
	return decodeSession(data)
}
