package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rationalmind/rationalmind-backend/internal/logger"
	"github.com/rationalmind/rationalmind-backend/internal/types"
)

type PersonRepo interface {
	// Upsert is keyed on (user_id, name_lowercase); an existing row's
	// description and embedding are overwritten (last write wins).
	Upsert(ctx context.Context, tx *gorm.DB, person *types.Person) error
	GetByLowercaseNames(ctx context.Context, tx *gorm.DB, userID uuid.UUID, names []string) ([]*types.Person, error)
	MatchByNameEmbedding(ctx context.Context, tx *gorm.DB, userID uuid.UUID, query pgvector.Vector, limit int) ([]*types.Person, error)
}

type personRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPersonRepo(db *gorm.DB, baseLog *logger.Logger) PersonRepo {
	return &personRepo{db: db, log: baseLog.With("repo", "PersonRepo")}
}

func (r *personRepo) Upsert(ctx context.Context, tx *gorm.DB, person *types.Person) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if person == nil {
		return errors.New("nil person")
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "name_lowercase"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "description", "name_embedding", "updated_at",
			}),
		}).
		Create(person).Error
}

func (r *personRepo) GetByLowercaseNames(ctx context.Context, tx *gorm.DB, userID uuid.UUID, names []string) ([]*types.Person, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Person
	if len(names) == 0 {
		return out, nil
	}
	err := transaction.WithContext(ctx).
		Where("user_id = ? AND name_lowercase IN ?", userID, names).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *personRepo) MatchByNameEmbedding(ctx context.Context, tx *gorm.DB, userID uuid.UUID, query pgvector.Vector, limit int) ([]*types.Person, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Person
	err := transaction.WithContext(ctx).Raw(`
		SELECT * FROM "person"
		WHERE user_id = ?
		  AND name_embedding IS NOT NULL
		ORDER BY name_embedding <=> ?
		LIMIT ?
	`, userID, query, limit).Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
