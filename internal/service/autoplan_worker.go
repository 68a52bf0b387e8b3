package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/thesis-defense-api/internal/dto"
	appErrors "github.com/noah-isme/thesis-defense-api/pkg/errors"
	"github.com/noah-isme/thesis-defense-api/pkg/jobs"
)

const autoPlanJobType = "defense_auto_plan"

type autoPlanner interface {
	RunAutoPlan(ctx context.Context) (*dto.AutoPlanResult, error)
}

// AutoPlanWorker runs the planner in the background, either on a ticker or
// on demand. Runs go through a single-worker queue with room for one pending
// run, so triggers that arrive while a run is queued are dropped.
type AutoPlanWorker struct {
	planner  autoPlanner
	queue    *jobs.Queue
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// AutoPlanWorkerConfig tunes the background planner. A non-positive Interval
// disables the ticker; Trigger still works. Failed runs are retried up to
// MaxRetries times, RetryDelay apart.
type AutoPlanWorkerConfig struct {
	Interval   time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// NewAutoPlanWorker constructs a worker.
func NewAutoPlanWorker(planner autoPlanner, cfg AutoPlanWorkerConfig, logger *zap.Logger) *AutoPlanWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &AutoPlanWorker{planner: planner, interval: cfg.Interval, logger: logger}
	w.queue = jobs.NewQueue("auto-plan", w.handle, jobs.QueueConfig{
		Workers:    1,
		BufferSize: 1,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return w
}

// Start launches the queue and, when an interval is set, the ticker.
func (w *AutoPlanWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.queue.Start(ctx)

	go func() {
		defer close(w.done)
		if w.interval <= 0 {
			<-ctx.Done()
			return
		}
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := w.Trigger(); err != nil && !errors.Is(err, jobs.ErrQueueFull) {
					w.logger.Warn("scheduled auto-plan not queued", zap.Error(err))
				}
			}
		}
	}()
	w.logger.Info("auto-plan worker started", zap.Duration("interval", w.interval))
}

// Trigger queues a planning run and returns its job id. It reports
// jobs.ErrQueueFull when a run is already pending.
func (w *AutoPlanWorker) Trigger() (string, error) {
	job := jobs.Job{ID: uuid.NewString(), Type: autoPlanJobType}
	if err := w.queue.TryEnqueue(job); err != nil {
		return "", err
	}
	return job.ID, nil
}

// Stop halts the ticker and waits for the running plan to finish.
func (w *AutoPlanWorker) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel = nil
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	w.queue.Stop()
}

func (w *AutoPlanWorker) handle(ctx context.Context, job jobs.Job) error {
	result, err := w.planner.RunAutoPlan(ctx)
	if err != nil {
		// too few professors or a run already in progress: retrying cannot help
		if appErrors.HasCode(err, appErrors.ErrPreconditionFailed.Code) || appErrors.HasCode(err, appErrors.ErrConflict.Code) {
			w.logger.Warn("background auto-plan skipped", zap.String("job_id", job.ID), zap.Error(err))
			return nil
		}
		return err
	}
	w.logger.Info("background auto-plan done",
		zap.String("job_id", job.ID),
		zap.Int("scheduled", result.Scheduled),
		zap.Int("fixed", result.Fixed),
		zap.Int("unplaced", result.Unplaced))
	return nil
}
