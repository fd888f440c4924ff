package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/rationalmind/rationalmind-backend/internal/logger"
	"github.com/rationalmind/rationalmind-backend/internal/repos"
	"github.com/rationalmind/rationalmind-backend/internal/types"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionNotActive = errors.New("session is not active")
	// ErrSessionConflict surfaces a lost race between concurrent starts for
	// the same user; the winner's session should be fetched instead.
	ErrSessionConflict = errors.New("concurrent session change for user")
)

// SessionService owns the session lifecycle. A user has at most one active
// session; starting a new one completes the previous one first, and every
// completion queues the enrichment job exactly once.
type SessionService interface {
	CreateSession(ctx context.Context, userID uuid.UUID) (*types.Session, error)
	EndSession(ctx context.Context, userID, sessionID uuid.UUID) (*types.Session, error)
	GetOwnedActiveSession(ctx context.Context, userID, sessionID uuid.UUID) (*types.Session, error)
	ListSessions(ctx context.Context, userID uuid.UUID, limit int) ([]*types.Session, error)
	ListMessages(ctx context.Context, userID, sessionID uuid.UUID) ([]*types.Message, error)
}

type sessionService struct {
	log      *logger.Logger
	db       *gorm.DB
	sessions repos.SessionRepo
	messages repos.MessageRepo
	jobRuns  repos.JobRunRepo
}

func NewSessionService(
	log *logger.Logger,
	db *gorm.DB,
	sessions repos.SessionRepo,
	messages repos.MessageRepo,
	jobRuns repos.JobRunRepo,
) SessionService {
	return &sessionService{
		log:      log.With("service", "SessionService"),
		db:       db,
		sessions: sessions,
		messages: messages,
		jobRuns:  jobRuns,
	}
}

// CreateSession opens a fresh active session. Any currently active session is
// completed in the same transaction, so the "one active per user" index never
// sees two. Numbering continues from the previous active session when there
// is one, otherwise from the historical maximum.
func (s *sessionService) CreateSession(ctx context.Context, userID uuid.UUID) (*types.Session, error) {
	var created *types.Session
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prev, err := s.sessions.GetActiveByUser(ctx, tx, userID)
		if err != nil {
			return fmt.Errorf("load active session: %w", err)
		}

		num := 1
		if prev != nil {
			if err := s.completeSession(ctx, tx, prev); err != nil {
				return err
			}
			num = prev.Num + 1
		} else {
			max, err := s.sessions.GetMaxNumByUser(ctx, tx, userID)
			if err != nil {
				return fmt.Errorf("load max session num: %w", err)
			}
			num = max + 1
		}

		sess := &types.Session{
			UserID:    userID,
			Num:       num,
			Status:    types.SessionStatusActive,
			StartedAt: time.Now().UTC(),
		}
		created, err = s.sessions.Create(ctx, tx, sess)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			s.log.Warn("Concurrent session start lost the race", "user_id", userID)
			return nil, ErrSessionConflict
		}
		return nil, err
	}
	s.log.Info("Session started", "user_id", userID, "session_id", created.ID, "num", created.Num)
	return created, nil
}

// EndSession completes the given session. Ending an already-completed session
// is a no-op that returns the session as is, and does not queue enrichment a
// second time.
func (s *sessionService) EndSession(ctx context.Context, userID, sessionID uuid.UUID) (*types.Session, error) {
	var ended *types.Session
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sess, err := s.sessions.GetByID(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if sess == nil || sess.UserID != userID {
			return ErrSessionNotFound
		}
		if sess.Status != types.SessionStatusActive {
			ended = sess
			return nil
		}
		if err := s.completeSession(ctx, tx, sess); err != nil {
			return err
		}
		ended = sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ended, nil
}

// completeSession flips a session to completed and queues its enrichment run.
// Both writes share the caller's transaction: the job exists iff the session
// was completed.
func (s *sessionService) completeSession(ctx context.Context, tx *gorm.DB, sess *types.Session) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":   types.SessionStatusCompleted,
		"ended_at": now,
	}
	if err := s.sessions.UpdateFields(ctx, tx, sess.ID, updates); err != nil {
		return fmt.Errorf("complete session %s: %w", sess.ID, err)
	}
	sess.Status = types.SessionStatusCompleted
	sess.EndedAt = &now

	sessionID := sess.ID
	payload, err := json.Marshal(map[string]string{"session_id": sessionID.String()})
	if err != nil {
		return err
	}
	job := &types.JobRun{
		OwnerUserID: sess.UserID,
		JobType:     types.JobTypeSessionEnrichment,
		EntityType:  "session",
		EntityID:    &sessionID,
		Status:      types.JobStatusQueued,
		Payload:     datatypes.JSON(payload),
	}
	if _, err := s.jobRuns.Create(ctx, tx, job); err != nil {
		return fmt.Errorf("queue enrichment for session %s: %w", sess.ID, err)
	}
	s.log.Info("Session completed, enrichment queued", "session_id", sess.ID, "user_id", sess.UserID)
	return nil
}

// GetOwnedActiveSession is the streaming endpoint's guard: the session must
// exist, belong to the caller, and still be active.
func (s *sessionService) GetOwnedActiveSession(ctx context.Context, userID, sessionID uuid.UUID) (*types.Session, error) {
	sess, err := s.sessions.GetByID(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.UserID != userID {
		return nil, ErrSessionNotFound
	}
	if sess.Status != types.SessionStatusActive {
		return nil, ErrSessionNotActive
	}
	return sess, nil
}

func (s *sessionService) ListSessions(ctx context.Context, userID uuid.UUID, limit int) ([]*types.Session, error) {
	return s.sessions.ListCompletedByUser(ctx, nil, userID, limit)
}

func (s *sessionService) ListMessages(ctx context.Context, userID, sessionID uuid.UUID) ([]*types.Message, error) {
	sess, err := s.sessions.GetByID(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return s.messages.ListBySessionOrdered(ctx, nil, sessionID)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "SQLSTATE 23505")
}
