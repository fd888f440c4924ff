package repos

import (
	"context"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/rationalmind/rationalmind-backend/internal/logger"
	"github.com/rationalmind/rationalmind-backend/internal/types"
)

type KnowledgeRepo interface {
	GetByRationality(ctx context.Context, tx *gorm.DB, rationality int) (*types.KnowledgeEntry, error)
	MatchByEmbedding(ctx context.Context, tx *gorm.DB, rationality int, query pgvector.Vector, limit int) ([]*types.KnowledgeEntry, error)
}

type knowledgeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewKnowledgeRepo(db *gorm.DB, baseLog *logger.Logger) KnowledgeRepo {
	return &knowledgeRepo{db: db, log: baseLog.With("repo", "KnowledgeRepo")}
}

func (r *knowledgeRepo) GetByRationality(ctx context.Context, tx *gorm.DB, rationality int) (*types.KnowledgeEntry, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var entry types.KnowledgeEntry
	err := transaction.WithContext(ctx).
		Where("id = ?", rationality).
		Limit(1).
		Find(&entry).Error
	if err != nil {
		return nil, err
	}
	if entry.ID == 0 {
		return nil, nil
	}
	return &entry, nil
}

func (r *knowledgeRepo) MatchByEmbedding(ctx context.Context, tx *gorm.DB, rationality int, query pgvector.Vector, limit int) ([]*types.KnowledgeEntry, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.KnowledgeEntry
	err := transaction.WithContext(ctx).Raw(`
		SELECT * FROM "knowledge_entry"
		WHERE id = ?
		  AND embedding IS NOT NULL
		ORDER BY embedding <=> ?
		LIMIT ?
	`, rationality, query, limit).Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
