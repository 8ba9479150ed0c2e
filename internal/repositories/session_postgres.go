package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"alfredoptarigan/readysetrole/internal/models"
)

type postgresSessionRepository struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

func NewPostgresSessionRepository(db *gorm.DB, ttl time.Duration) ExpiringSessionRepository {
	return &postgresSessionRepository{
		db:  db,
		ttl: ttl,
		now: time.Now,
	}
}

// Save implements SessionRepository.
func (r *postgresSessionRepository) Save(ctx context.Context, session *models.Session) error {
	payload, err := encodeSession(session)
	if err != nil {
		return err
	}

	now := r.now()
	record := &models.SessionRecord{
		ID:        session.ID,
		Stage:     string(session.Stage),
		Payload:   datatypes.JSON(payload),
		ExpiresAt: now.Add(r.ttl),
		CreatedAt: session.CreatedAt,
		UpdatedAt: now,
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"stage", "payload", "expires_at", "updated_at"}),
		}).
		Create(record).Error
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// FindByID implements SessionRepository.
func (r *postgresSessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	var record models.SessionRecord
	err := r.db.WithContext(ctx).
		Where("id = ? AND expires_at > ?", id, r.now()).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return decodeSession(record.Payload)
}

// Delete implements SessionRepository.
func (r *postgresSessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.SessionRecord{})

	if result.Error != nil {
		return fmt.Errorf("failed to delete session: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}

	return nil
}

// PurgeExpired removes up to limit expired rows and returns their sessions so
// the caller can release remote files.
func (r *postgresSessionRepository) PurgeExpired(ctx context.Context, now time.Time, limit int) ([]*models.Session, error) {
	var records []models.SessionRecord
	err := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find expired sessions: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(records))
	sessions := make([]*models.Session, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.ID)
		session, err := decodeSession(record.Payload)
		if err != nil {
			// Still purge the row; its files will expire remotely.
			continue
		}
		sessions = append(sessions, session)
	}

	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.SessionRecord{}).Error; err != nil {
		return nil, fmt.Errorf("failed to purge expired sessions: %w", err)
	}

	return sessions, nil
}
