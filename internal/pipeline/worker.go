package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lecturely/backend/pkg/queue"
)

// JobSource is the job queue the worker consumes.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Runner executes one session run. *Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, sessionID uuid.UUID) error
}

// DefaultWorkers is the default number of concurrent runs.
const DefaultWorkers = 2

// Worker pulls pipeline jobs and runs up to a fixed number of them concurrently.
type Worker struct {
	source  JobSource
	runner  Runner
	slots   chan struct{}
	logger  *zap.Logger
	backoff time.Duration
	wg      sync.WaitGroup
}

// NewWorker creates a worker pool with the given concurrency.
func NewWorker(source JobSource, runner Runner, concurrency int, logger *zap.Logger) *Worker {
	if concurrency <= 0 {
		concurrency = DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		source:  source,
		runner:  runner,
		slots:   make(chan struct{}, concurrency),
		logger:  logger,
		backoff: queue.RetryBackoff,
	}
}

// Run consumes jobs until ctx is done, then waits for in-flight runs to finish. Runs
// observe ctx, so shutdown cancels them and they record status=failed.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("pipeline worker started", zap.Int("concurrency", cap(w.slots)))
	defer func() {
		w.wg.Wait()
		w.logger.Info("pipeline worker stopped")
	}()

	for {
		if err := w.acquire(ctx); err != nil {
			return
		}

		job, err := w.source.Dequeue(ctx)
		if err != nil {
			w.release()
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("dequeue error", zap.Error(err))
			w.sleep(ctx, w.backoff)
			continue
		}
		if job == nil {
			w.release()
			continue
		}

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			defer w.release()
			w.process(ctx, job)
		}()
	}
}

func (w *Worker) process(ctx context.Context, job *queue.Job) {
	payload, err := job.Pipeline()
	if err != nil {
		w.logger.Error("discarding malformed job", zap.String("job_id", job.ID), zap.Error(err))
		return
	}

	log := w.logger.With(
		zap.String("job_id", job.ID),
		zap.String("session_id", payload.SessionID.String()),
		zap.Int("attempt", job.Attempt),
	)
	log.Debug("processing job", zap.String("trigger", string(payload.Trigger)))

	if err := w.runner.Run(ctx, payload.SessionID); err != nil {
		log.Error("job failed", zap.Error(err))
		if ctx.Err() != nil {
			return
		}
		if reErr := w.source.Retry(ctx, job); reErr != nil {
			log.Error("retry enqueue failed", zap.Error(reErr))
		}
	}
}

func (w *Worker) acquire(ctx context.Context) error {
	select {
	case w.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) release() { <-w.slots }

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
