package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Handler executes one task payload. Tasks run at-least-once, so handlers
// must tolerate replays.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Runner polls the task queue on a cron schedule and executes due tasks on a
// bounded worker pool.
type Runner struct {
	repo      Repository
	logger    *zap.Logger
	cron      *cron.Cron
	pool      *ants.Pool
	handlers  map[JobType]Handler
	batchSize int
	mu        sync.RWMutex
	running   bool
}

// RunnerConfig configures the poll loop.
type RunnerConfig struct {
	PollInterval time.Duration
	PoolSize     int
	BatchSize    int
}

// NewRunner creates a task runner. Register handlers before calling Start.
func NewRunner(repo Repository, cfg RunnerConfig, logger *zap.Logger) (*Runner, error) {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	pool, err := ants.NewPool(cfg.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	r := &Runner{
		repo:      repo,
		logger:    logger,
		cron:      cron.New(),
		pool:      pool,
		handlers:  make(map[JobType]Handler),
		batchSize: cfg.BatchSize,
	}
	if _, err := r.cron.AddFunc(fmt.Sprintf("@every %s", cfg.PollInterval), r.poll); err != nil {
		pool.Release()
		return nil, fmt.Errorf("failed to schedule poll loop: %w", err)
	}
	return r, nil
}

// Register binds a handler to a job type.
func (r *Runner) Register(jobType JobType, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[jobType] = handler
}

// Enqueue schedules a job to run no earlier than notBefore.
func (r *Runner) Enqueue(ctx context.Context, jobType JobType, payload any, notBefore time.Time) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode task payload: %w", err)
	}
	return r.repo.Create(ctx, &Task{
		JobType:   jobType,
		Payload:   raw,
		NotBefore: notBefore,
	})
}

// Start begins the poll loop.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true
	r.cron.Start()
	r.logger.Info("task runner started")
}

// Stop halts polling and waits for in-flight jobs.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	r.running = false
	<-r.cron.Stop().Done()
	r.pool.Release()
	r.logger.Info("task runner stopped")
}

func (r *Runner) poll() {
	ctx := context.Background()
	due, err := r.repo.GetDue(ctx, time.Now(), r.batchSize)
	if err != nil {
		r.logger.Error("failed to fetch due tasks", zap.Error(err))
		return
	}
	for _, task := range due {
		task := task
		if err := r.pool.Submit(func() {
			r.execute(ctx, task)
		}); err != nil {
			r.logger.Error("failed to submit task to pool",
				zap.String("task_id", task.ID.String()), zap.Error(err))
		}
	}
}

func (r *Runner) execute(ctx context.Context, task *Task) {
	r.mu.RLock()
	handler, ok := r.handlers[task.JobType]
	r.mu.RUnlock()
	if !ok {
		r.logger.Error("no handler registered for job type",
			zap.String("job_type", string(task.JobType)))
		if err := r.repo.MarkFailed(ctx, task.ID, time.Now(), "no handler registered"); err != nil {
			r.logger.Error("failed to mark task failed", zap.Error(err))
		}
		return
	}

	if err := handler(ctx, json.RawMessage(task.Payload)); err != nil {
		r.logger.Error("task execution failed",
			zap.String("task_id", task.ID.String()),
			zap.String("job_type", string(task.JobType)),
			zap.Error(err))
		if err := r.repo.MarkFailed(ctx, task.ID, time.Now(), err.Error()); err != nil {
			r.logger.Error("failed to mark task failed", zap.Error(err))
		}
		return
	}

	if err := r.repo.MarkExecuted(ctx, task.ID, time.Now()); err != nil {
		r.logger.Error("failed to mark task executed",
			zap.String("task_id", task.ID.String()), zap.Error(err))
	}
}
