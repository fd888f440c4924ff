package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	TierFree   = "free"
	TierPaying = "paying"
)

// Profile.ID equals the user id. The enrichment pipeline owns dynamic_profile
// and main_pattern; everything else is written by external systems.
type Profile struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Tier           string    `gorm:"not null;default:'free'" json:"tier"`
	Rationality    *int      `gorm:"column:rationality" json:"rationality,omitempty"`
	DynamicProfile *string   `gorm:"column:dynamic_profile" json:"dynamic_profile,omitempty"`
	MainPattern    *string   `gorm:"column:main_pattern" json:"main_pattern,omitempty"`
	Name           *string   `gorm:"column:name" json:"name,omitempty"`
	AgeGroup       *string   `gorm:"column:age_group" json:"age_group,omitempty"`
	MainTopic      *string   `gorm:"column:main_topic" json:"main_topic,omitempty"`
	Goal           *string   `gorm:"column:goal" json:"goal,omitempty"`
	CreatedAt      time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Profile) TableName() string { return "profile" }
