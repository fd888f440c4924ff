package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

const (
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed"
	SessionStatusError     = "error"
)

// Session rows are never deleted. At most one active session may exist per
// user, enforced by a partial unique index created in db.AutoMigrateAll.
type Session struct {
	ID                uuid.UUID         `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID            uuid.UUID         `gorm:"type:uuid;not null;index" json:"user_id"`
	Num               int               `gorm:"not null" json:"num"`
	Status            string            `gorm:"not null;index" json:"status"`
	StartedAt         time.Time         `gorm:"not null;default:now()" json:"started_at"`
	EndedAt           *time.Time        `gorm:"column:ended_at" json:"ended_at,omitempty"`
	Summary           *string           `gorm:"column:summary" json:"summary,omitempty"`
	SummaryEmbedding  *pgvector.Vector  `gorm:"column:summary_embedding;type:vector(1536)" json:"-"`
	Patterns          *string           `gorm:"column:patterns" json:"patterns,omitempty"`
	PatternsEmbedding *pgvector.Vector  `gorm:"column:patterns_embedding;type:vector(1536)" json:"-"`
	Metadata          datatypes.JSONMap `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt         time.Time         `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"not null;default:now()" json:"updated_at"`
}

func (Session) TableName() string { return "session" }
