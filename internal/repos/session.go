package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/rationalmind/rationalmind-backend/internal/logger"
	"github.com/rationalmind/rationalmind-backend/internal/types"
)

type SessionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, session *types.Session) (*types.Session, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Session, error)
	GetActiveByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.Session, error)
	GetMaxNumByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int, error)
	ListCompletedByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.Session, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	MatchSummariesByEmbedding(ctx context.Context, tx *gorm.DB, userID uuid.UUID, query pgvector.Vector, limit int) ([]*types.Session, error)
	MatchPatternsByEmbedding(ctx context.Context, tx *gorm.DB, userID uuid.UUID, query pgvector.Vector, limit int) ([]*types.Session, error)
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	return &sessionRepo{db: db, log: baseLog.With("repo", "SessionRepo")}
}

func (r *sessionRepo) Create(ctx context.Context, tx *gorm.DB, session *types.Session) (*types.Session, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if session == nil {
		return nil, errors.New("nil session")
	}
	if err := transaction.WithContext(ctx).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

func (r *sessionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Session, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var session types.Session
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&session).Error
	if err != nil {
		return nil, err
	}
	if session.ID == uuid.Nil {
		return nil, nil
	}
	return &session, nil
}

func (r *sessionRepo) GetActiveByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.Session, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var session types.Session
	err := transaction.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, types.SessionStatusActive).
		Order("started_at DESC").
		Limit(1).
		Find(&session).Error
	if err != nil {
		return nil, err
	}
	if session.ID == uuid.Nil {
		return nil, nil
	}
	return &session, nil
}

func (r *sessionRepo) GetMaxNumByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var maxNum *int
	err := transaction.WithContext(ctx).
		Model(&types.Session{}).
		Select("MAX(num)").
		Where("user_id = ?", userID).
		Scan(&maxNum).Error
	if err != nil {
		return 0, err
	}
	if maxNum == nil {
		return 0, nil
	}
	return *maxNum, nil
}

func (r *sessionRepo) ListCompletedByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.Session, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Session
	q := transaction.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, types.SessionStatusCompleted).
		Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sessionRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(ctx).
		Model(&types.Session{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *sessionRepo) MatchSummariesByEmbedding(ctx context.Context, tx *gorm.DB, userID uuid.UUID, query pgvector.Vector, limit int) ([]*types.Session, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Session
	err := transaction.WithContext(ctx).Raw(`
		SELECT * FROM "session"
		WHERE user_id = ?
		  AND summary IS NOT NULL
		  AND summary_embedding IS NOT NULL
		ORDER BY summary_embedding <=> ?
		LIMIT ?
	`, userID, query, limit).Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sessionRepo) MatchPatternsByEmbedding(ctx context.Context, tx *gorm.DB, userID uuid.UUID, query pgvector.Vector, limit int) ([]*types.Session, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Session
	err := transaction.WithContext(ctx).Raw(`
		SELECT * FROM "session"
		WHERE user_id = ?
		  AND patterns IS NOT NULL
		  AND patterns_embedding IS NOT NULL
		ORDER BY patterns_embedding <=> ?
		LIMIT ?
	`, userID, query, limit).Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
