package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"alfredoptarigan/readysetrole/internal/models"
)

type MemorySessionRepository struct {
	cache *cache.Cache
}

// deletedMarker replaces a session right before a manual delete so the
// eviction hook only reports real expirations.
type deletedMarker struct{}

func NewMemorySessionRepository(ttl time.Duration) *MemorySessionRepository {
	return &MemorySessionRepository{
		cache: cache.New(ttl, ttl/4+time.Second),
	}
}

func (r *MemorySessionRepository) Save(ctx context.Context, session *models.Session) error {
	copied, err := cloneSession(session)
	if err != nil {
		return err
	}
	r.cache.Set(session.ID.String(), copied, cache.DefaultExpiration)
	return nil
}

func (r *MemorySessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	x, found := r.cache.Get(id.String())
	if !found {
		return nil, ErrSessionNotFound
	}

	session, ok := x.(*models.Session)
	if !ok {
		return nil, ErrSessionNotFound
	}

	return cloneSession(session)
}

func (r *MemorySessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	key := id.String()
	if _, found := r.cache.Get(key); !found {
		return ErrSessionNotFound
	}
	r.cache.Set(key, deletedMarker{}, cache.DefaultExpiration)
	r.cache.Delete(key)
	return nil
}

func (r *MemorySessionRepository) OnEvicted(fn func(session *models.Session)) {
	r.cache.OnEvicted(func(key string, value interface{}) {
		if session, ok := value.(*models.Session); ok {
			fn(session)
		}
	})
}
