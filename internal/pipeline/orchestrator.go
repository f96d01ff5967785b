// Package pipeline owns the session processing state machine: it claims a session,
// schedules the detached run, sequences the media stages and persists the outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lecturely/backend/internal/models"
	"github.com/lecturely/backend/internal/summarization"
	"github.com/lecturely/backend/pkg/queue"
)

const (
	// DefaultTimeout bounds one run end to end.
	DefaultTimeout = 2 * time.Hour

	persistAttempts = 3
	persistBackoff  = 500 * time.Millisecond
	persistTimeout  = 10 * time.Second
)

// Event names published on a session's channel.
const (
	EventStatus = "session.status"
	EventStage  = "pipeline.stage"
	EventFailed = "pipeline.failed"
)

// Store is the session persistence the pipeline needs. GetByID returns (nil, nil) for
// an unknown session.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	// Claim sets status=processing when the session has media and is not already
	// processing, returning the previous status. claimed is false when the
	// conditional update matched nothing.
	Claim(ctx context.Context, id uuid.UUID) (prevStatus string, claimed bool, err error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	Complete(ctx context.Context, id uuid.UUID, result models.Completion) error
}

// Enqueuer schedules a run.
type Enqueuer interface {
	EnqueuePipeline(ctx context.Context, payload queue.PipelinePayload) error
}

// Transcoder makes a video seekable in place.
type Transcoder interface {
	Run(ctx context.Context, path string) error
}

// Transcriber turns a media file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Summarizer turns a transcript into a structured summary.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (summarization.Result, error)
}

// SlideExtractor recognizes on-screen text in a video.
type SlideExtractor interface {
	Extract(ctx context.Context, videoPath string) ([]models.Slide, error)
}

// Archiver copies the processed media to durable storage.
type Archiver interface {
	ArchiveSessionMedia(ctx context.Context, sessionID uuid.UUID, fileType string, file *models.MediaFile) (key string, err error)
}

// Notifier publishes session events to observers.
type Notifier interface {
	Publish(ctx context.Context, sessionID uuid.UUID, event string, data any) error
}

// Config tunes a run.
type Config struct {
	Timeout    time.Duration
	OCREnabled bool
}

// Deps are the orchestrator collaborators. OCR, Archiver and Notifier are optional.
type Deps struct {
	Store       Store
	Queue       Enqueuer
	Transcoder  Transcoder
	Transcriber Transcriber
	Summarizer  Summarizer
	OCR         SlideExtractor
	Archiver    Archiver
	Notifier    Notifier
}

// Orchestrator starts and runs session pipelines.
type Orchestrator struct {
	deps    Deps
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
	backoff time.Duration
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(deps Deps, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		deps:    deps,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		backoff: persistBackoff,
	}
}

// Start validates the session, atomically moves it to processing and schedules the run.
// userID scopes the lookup to the owner; uuid.Nil skips the ownership check.
func (o *Orchestrator) Start(ctx context.Context, sessionID, userID uuid.UUID, trigger queue.Trigger) (*models.Session, error) {
	session, err := o.deps.Store.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil || (userID != uuid.Nil && session.UserID != userID) {
		return nil, ErrNotFound
	}
	if _, file := session.Files.ProcessingInput(); file == nil {
		return nil, ErrNoMediaAvailable
	}
	if session.Status == models.SessionStatusProcessing {
		return nil, ErrAlreadyProcessing
	}

	prev, claimed, err := o.deps.Store.Claim(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("claim session: %w", err)
	}
	if !claimed {
		// Lost a race with a concurrent start.
		return nil, ErrAlreadyProcessing
	}

	payload := queue.PipelinePayload{SessionID: sessionID, Trigger: trigger}
	if err := o.deps.Queue.EnqueuePipeline(ctx, payload); err != nil {
		o.rollbackClaim(ctx, sessionID, prev)
		return nil, fmt.Errorf("schedule pipeline: %w", err)
	}

	session.Status = models.SessionStatusProcessing
	o.logger.Info("pipeline scheduled",
		zap.String("session_id", sessionID.String()),
		zap.String("previous_status", prev),
		zap.String("trigger", string(trigger)),
	)
	o.notify(ctx, sessionID, EventStatus, map[string]string{"status": models.SessionStatusProcessing})
	return session, nil
}

func (o *Orchestrator) rollbackClaim(ctx context.Context, sessionID uuid.UUID, prev string) {
	err := o.persist(ctx, sessionID, "rollback", func(ctx context.Context) error {
		return o.deps.Store.SetStatus(ctx, sessionID, prev)
	})
	if err == nil {
		return
	}
	_ = o.persist(ctx, sessionID, "rollback-failed", func(ctx context.Context) error {
		return o.deps.Store.SetStatus(ctx, sessionID, models.SessionStatusFailed)
	})
}

// Run executes the pipeline for a claimed session. Stage failures end in status=failed
// and are not returned; the error result is reserved for failing to load the session,
// which the worker retries.
func (o *Orchestrator) Run(ctx context.Context, sessionID uuid.UUID) error {
	log := o.logger.With(zap.String("session_id", sessionID.String()))

	session, err := o.deps.Store.GetByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		log.Warn("pipeline job for unknown session dropped")
		return nil
	}
	if session.Status != models.SessionStatusProcessing {
		log.Warn("pipeline job for session not in processing dropped", zap.String("status", session.Status))
		return nil
	}

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	started := o.now()
	result, err := o.execute(runCtx, session, log)
	if err != nil {
		switch {
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			err = fmt.Errorf("%w after %s: %w", ErrPipelineTimeout, o.cfg.Timeout, err)
		case errors.Is(runCtx.Err(), context.Canceled):
			err = fmt.Errorf("%w: %w", ErrPipelineCanceled, err)
		}
		o.fail(ctx, session.ID, err, log)
		return nil
	}

	err = o.persist(ctx, session.ID, "complete", func(ctx context.Context) error {
		return o.deps.Store.Complete(ctx, session.ID, result)
	})
	if err != nil {
		o.fail(ctx, session.ID, err, log)
		return nil
	}

	log.Info("pipeline completed",
		zap.Duration("elapsed", o.now().Sub(started)),
		zap.Int("transcript_chars", len(result.Transcript.Text)),
		zap.Bool("summary_degraded", result.Summary.Degraded),
		zap.Int("slides", len(result.Slides)),
		zap.Bool("slides_replaced", result.ReplaceSlides),
	)
	o.notify(ctx, session.ID, EventStatus, map[string]string{"status": models.SessionStatusCompleted})
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, session *models.Session, log *zap.Logger) (models.Completion, error) {
	fileType, file := session.Files.ProcessingInput()
	if file == nil {
		return models.Completion{}, ErrNoMediaAvailable
	}
	path := file.Path
	isVideo := fileType == models.FileTypeVideo

	if isVideo {
		o.stage(ctx, session.ID, StageTranscode, "started")
		if err := o.deps.Transcoder.Run(ctx, path); err != nil {
			return models.Completion{}, stageErr(StageTranscode, err)
		}
	}

	var (
		result    models.Completion
		slides    []models.Slide
		ocrFailed error
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		o.stage(gctx, session.ID, StageTranscribe, "started")
		text, err := o.deps.Transcriber.Transcribe(gctx, path)
		if err != nil {
			return stageErr(StageTranscribe, err)
		}
		o.stage(gctx, session.ID, StageSummarize, "started")
		summary, err := o.deps.Summarizer.Summarize(gctx, text)
		if err != nil {
			return stageErr(StageSummarize, err)
		}
		now := o.now()
		result.Transcript = models.Transcript{Text: text, ProcessedAt: now}
		result.Summary = models.Summary{
			Text:        summary.Summary,
			KeyPoints:   summary.KeyPoints,
			Assignments: summary.Assignments,
			Degraded:    summary.Degraded,
			ProcessedAt: now,
		}
		return nil
	})

	if isVideo && o.cfg.OCREnabled && o.deps.OCR != nil {
		g.Go(func() error {
			o.stage(gctx, session.ID, StageOCR, "started")
			out, err := o.deps.OCR.Extract(gctx, path)
			if err != nil {
				ocrFailed = err
				return nil
			}
			slides = out
			return nil
		})
	}

	if o.deps.Archiver != nil {
		g.Go(func() error {
			key, err := o.deps.Archiver.ArchiveSessionMedia(gctx, session.ID, fileType, file)
			if err != nil {
				log.Warn("media archive failed", zap.String("stage", StageArchive), zap.Error(err))
				return nil
			}
			log.Info("media archived", zap.String("key", key))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return models.Completion{}, err
	}

	if ocrFailed != nil {
		log.Warn("ocr failed; keeping previous slides", zap.String("stage", StageOCR), zap.Error(ocrFailed))
	} else if isVideo && o.cfg.OCREnabled && o.deps.OCR != nil {
		if slides == nil {
			slides = []models.Slide{}
		}
		result.Slides = slides
		result.ReplaceSlides = true
	}
	return result, nil
}

func (o *Orchestrator) fail(ctx context.Context, sessionID uuid.UUID, cause error, log *zap.Logger) {
	stage := "pipeline"
	var se *StageError
	if errors.As(cause, &se) {
		stage = se.Stage
	}
	log.Error("pipeline failed", zap.String("stage", stage), zap.Error(cause))
	o.notify(ctx, sessionID, EventFailed, map[string]string{"stage": stage, "error": cause.Error()})

	err := o.persist(ctx, sessionID, "fail", func(ctx context.Context) error {
		return o.deps.Store.SetStatus(ctx, sessionID, models.SessionStatusFailed)
	})
	if err == nil {
		o.notify(ctx, sessionID, EventStatus, map[string]string{"status": models.SessionStatusFailed})
	}
}

// persist retries a state write with exponential backoff. Writes run on a context
// detached from ctx's cancellation so a timed-out run can still record its outcome.
func (o *Orchestrator) persist(ctx context.Context, sessionID uuid.UUID, op string, write func(context.Context) error) error {
	base := context.WithoutCancel(ctx)
	backoff := o.backoff
	var err error
	for attempt := 1; attempt <= persistAttempts; attempt++ {
		wctx, cancel := context.WithTimeout(base, persistTimeout)
		err = write(wctx)
		cancel()
		if err == nil {
			return nil
		}
		if attempt == persistAttempts {
			break
		}
		o.logger.Warn("session state write failed; retrying",
			zap.String("session_id", sessionID.String()),
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		time.Sleep(backoff)
		backoff *= 2
	}
	o.logger.Error("session state write gave up",
		zap.String("session_id", sessionID.String()),
		zap.String("op", op),
		zap.Int("attempts", persistAttempts),
		zap.Error(err),
	)
	return err
}

func (o *Orchestrator) stage(ctx context.Context, sessionID uuid.UUID, stage, state string) {
	o.logger.Debug("pipeline stage", zap.String("session_id", sessionID.String()), zap.String("stage", stage), zap.String("state", state))
	o.notify(ctx, sessionID, EventStage, map[string]string{"stage": stage, "state": state})
}

func (o *Orchestrator) notify(ctx context.Context, sessionID uuid.UUID, event string, data any) {
	if o.deps.Notifier == nil {
		return
	}
	if err := o.deps.Notifier.Publish(context.WithoutCancel(ctx), sessionID, event, data); err != nil {
		o.logger.Debug("event publish failed", zap.String("session_id", sessionID.String()), zap.String("event", event), zap.Error(err))
	}
}
