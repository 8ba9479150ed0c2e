package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SessionRecord is the Postgres row behind a Session. The whole session is
// kept as one JSON snapshot; stage is duplicated for ad-hoc queries.
type SessionRecord struct {
	ID        uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	Stage     string         `gorm:"type:text" json:"stage"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null" json:"payload"`
	ExpiresAt time.Time      `gorm:"index" json:"expires_at"`
	CreatedAt time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (SessionRecord) TableName() string {
	return "tailoring_sessions"
}
