package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

const (
	SenderRoleUser = "user"
	SenderRoleAI   = "ai"
)

// Message is append-only; created_at is the canonical conversation order.
type Message struct {
	ID               uuid.UUID        `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SessionID        uuid.UUID        `gorm:"type:uuid;not null;index" json:"session_id"`
	UserID           uuid.UUID        `gorm:"type:uuid;not null;index" json:"user_id"`
	SenderRole       string           `gorm:"column:sender_role;not null" json:"sender_role"`
	ContentText      string           `gorm:"column:content_text;not null" json:"content_text"`
	ContentEmbedding *pgvector.Vector `gorm:"column:content_embedding;type:vector(1536)" json:"-"`
	CreatedAt        time.Time        `gorm:"not null;default:now();index" json:"created_at"`
}

func (Message) TableName() string { return "message" }
