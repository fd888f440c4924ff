package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rationalmind/rationalmind-backend/internal/repos"
	"github.com/rationalmind/rationalmind-backend/internal/types"
)

// Handler is one registered job type. Run must be idempotent: failed and
// stale runs are re-claimed and executed again.
type Handler interface {
	Type() string
	Run(jc *Context) error
}

// Context is the execution handle for a single claimed job run. Handlers
// report lifecycle transitions through it instead of touching job_run rows
// directly.
type Context struct {
	Ctx     context.Context
	DB      *gorm.DB
	Job     *types.JobRun
	Repo    repos.JobRunRepo
	payload map[string]any
}

func NewContext(ctx context.Context, db *gorm.DB, job *types.JobRun, repo repos.JobRunRepo) *Context {
	c := &Context{Ctx: ctx, DB: db, Job: job, Repo: repo}
	c.payload = map[string]any{}
	if job != nil && len(job.Payload) > 0 {
		// Malformed payload is not fatal here; handlers validate the
		// fields they need and fail with a precise error.
		_ = json.Unmarshal(job.Payload, &c.payload)
	}
	return c
}

func (c *Context) Payload() map[string]any { return c.payload }

// PayloadUUID reads a payload field and parses it as a UUID, keeping payload
// validation out of the handlers.
func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	v, ok := c.payload[key]
	if !ok || v == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(fmt.Sprint(v))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Heartbeat refreshes the liveness timestamp so long runs are not mistaken
// for abandoned ones and re-claimed mid-flight.
func (c *Context) Heartbeat() {
	if c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	_ = c.Repo.Heartbeat(c.Ctx, nil, c.Job.ID)
}

// Fail marks the run failed. The claim query makes failed runs with attempts
// left claimable again after the retry delay.
func (c *Context) Fail(err error) {
	if c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	now := time.Now().UTC()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	_ = c.Repo.UpdateFields(c.Ctx, nil, c.Job.ID, map[string]interface{}{
		"status":        types.JobStatusFailed,
		"error":         msg,
		"last_error_at": now,
		"locked_at":     nil,
		"updated_at":    now,
	})
	c.Job.Status = types.JobStatusFailed
	c.Job.Error = msg
	c.Job.LastErrorAt = &now
	c.Job.LockedAt = nil
}

// Succeed marks the run terminally succeeded, persisting an optional result
// document.
func (c *Context) Succeed(result any) {
	if c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":     types.JobStatusSucceeded,
		"error":      "",
		"locked_at":  nil,
		"updated_at": now,
	}
	if result != nil {
		if raw, err := json.Marshal(result); err == nil {
			updates["result"] = raw
		}
	}
	_ = c.Repo.UpdateFields(c.Ctx, nil, c.Job.ID, updates)
	c.Job.Status = types.JobStatusSucceeded
	c.Job.Error = ""
	c.Job.LockedAt = nil
}

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(h Handler) error {
	if h == nil {
		return fmt.Errorf("nil handler")
	}
	t := h.Type()
	if t == "" {
		return fmt.Errorf("handler Type() is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[t]; exists {
		return fmt.Errorf("handler already registered for job_type=%s", t)
	}
	r.handlers[t] = h
	return nil
}

func (r *Registry) Get(jobType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[jobType]
	return h, ok
}
