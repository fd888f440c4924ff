package types

import (
	"github.com/pgvector/pgvector-go"
)

// KnowledgeEntry is externally curated reference data. The id doubles as the
// rationality level (1-5) the entry is written for.
type KnowledgeEntry struct {
	ID            int              `gorm:"primaryKey" json:"id"`
	SystemPrompt  string           `gorm:"column:system_prompt" json:"system_prompt"`
	KnowledgeText string           `gorm:"column:knowledge_text" json:"knowledge_text"`
	Embedding     *pgvector.Vector `gorm:"column:embedding;type:vector(1536)" json:"-"`
}

func (KnowledgeEntry) TableName() string { return "knowledge_entry" }
