package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"alfredoptarigan/readysetrole/internal/models"
)

const redisKeyPrefix = "readysetrole:session:"

type redisSessionRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisSessionRepository stores sessions as JSON strings. Every save
// refreshes the TTL, so idle sessions expire on the Redis side.
func NewRedisSessionRepository(rdb *redis.Client, ttl time.Duration) SessionRepository {
	return &redisSessionRepository{
		rdb: rdb,
		ttl: ttl,
	}
}

func redisKey(id uuid.UUID) string {
	return redisKeyPrefix + id.String()
}

func (r *redisSessionRepository) Save(ctx context.Context, session *models.Session) error {
	data, err := encodeSession(session)
	if err != nil {
		return err
	}

	if err := r.rdb.Set(ctx, redisKey(session.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

func (r *redisSessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	data, err := r.rdb.Get(ctx, redisKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return decodeSession(data)
}

func (r *redisSessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	deleted, err := r.rdb.Del(ctx, redisKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if deleted == 0 {
		return ErrSessionNotFound
	}

	return nil
}
