package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Person is deduplicated on (user_id, name_lowercase); upserts overwrite
// description and embedding (last write wins).
type Person struct {
	ID            uuid.UUID        `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID        uuid.UUID        `gorm:"type:uuid;not null;index;uniqueIndex:uniq_person_user_name" json:"user_id"`
	Name          string           `gorm:"not null" json:"name"`
	NameLowercase string           `gorm:"column:name_lowercase;not null;uniqueIndex:uniq_person_user_name" json:"name_lowercase"`
	Description   string           `gorm:"not null" json:"description"`
	NameEmbedding *pgvector.Vector `gorm:"column:name_embedding;type:vector(1536)" json:"-"`
	CreatedAt     time.Time        `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"not null;default:now()" json:"updated_at"`
}

func (Person) TableName() string { return "person" }
