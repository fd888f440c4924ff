package jobs

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/rationalmind/rationalmind-backend/internal/logger"
	"github.com/rationalmind/rationalmind-backend/internal/repos"
	"github.com/rationalmind/rationalmind-backend/internal/types"
	"github.com/rationalmind/rationalmind-backend/internal/utils"
)

// Worker polls job_run for claimable rows and dispatches them to registered
// handlers. Claims use SKIP LOCKED, so any number of worker goroutines and
// processes can share the queue.
type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.JobRunRepo
	registry *Registry
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRunRepo, registry *Registry) *Worker {
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
	}
}

func (w *Worker) Start(ctx context.Context) {
	concurrency := utils.GetEnvAsInt("WORKER_CONCURRENCY", 2, w.log)
	if concurrency < 1 {
		concurrency = 1
	}
	w.log.Info("Starting job worker pool", "concurrency", concurrency)
	for i := 0; i < concurrency; i++ {
		go w.runLoop(ctx, i+1)
	}
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	maxAttempts := utils.GetEnvAsInt("JOB_MAX_ATTEMPTS", 5, w.log)
	retryDelay := 30 * time.Second
	staleRunning := 10 * time.Minute

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			job, err := w.repo.ClaimNextRunnable(ctx, w.db, maxAttempts, retryDelay, staleRunning)
			if err != nil {
				w.log.Warn("ClaimNextRunnable failed", "worker_id", workerID, "error", err)
				continue
			}
			if job == nil {
				continue
			}
			w.execute(ctx, workerID, NewContext(ctx, w.db, job, w.repo))
		}
	}
}

func (w *Worker) execute(ctx context.Context, workerID int, jc *Context) {
	job := jc.Job
	h, ok := w.registry.Get(job.JobType)
	if !ok {
		w.log.Warn("No handler registered for job_type",
			"worker_id", workerID, "job_type", job.JobType, "job_id", job.ID)
		jc.Fail(&missingHandlerError{JobType: job.JobType})
		return
	}

	// Periodic heartbeats keep a long run from looking stale and being
	// claimed by a second worker.
	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				jc.Heartbeat()
			}
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Job handler panic",
				"worker_id", workerID, "job_id", job.ID, "job_type", job.JobType, "panic", r)
			jc.Fail(&panicError{})
		}
	}()

	start := time.Now()
	if runErr := h.Run(jc); runErr != nil {
		w.log.Warn("Job run failed",
			"worker_id", workerID, "job_id", job.ID, "job_type", job.JobType,
			"attempts", job.Attempts, "duration", time.Since(start), "error", runErr)
		// Handlers usually call jc.Fail themselves; this is a safety net.
		if job.Status != types.JobStatusFailed {
			jc.Fail(runErr)
		}
		return
	}
	if job.Status != types.JobStatusSucceeded {
		jc.Succeed(nil)
	}
	w.log.Info("Job run finished",
		"worker_id", workerID, "job_id", job.ID, "job_type", job.JobType, "duration", time.Since(start))
}

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string {
	return "no handler registered for job_type=" + e.JobType
}

type panicError struct{}

func (e *panicError) Error() string { return "panic during job execution" }
