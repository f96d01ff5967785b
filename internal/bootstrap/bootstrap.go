// Package bootstrap wires the shared infrastructure and pipeline stages used by the
// server, the worker and lecturectl.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/lecturely/backend/config"
	"github.com/lecturely/backend/internal/events"
	"github.com/lecturely/backend/internal/media"
	"github.com/lecturely/backend/internal/ocr"
	"github.com/lecturely/backend/internal/pipeline"
	"github.com/lecturely/backend/internal/sessions"
	"github.com/lecturely/backend/internal/summarization"
	"github.com/lecturely/backend/internal/transcode"
	"github.com/lecturely/backend/internal/transcription"
	"github.com/lecturely/backend/pkg/database"
	"github.com/lecturely/backend/pkg/executor"
	"github.com/lecturely/backend/pkg/queue"
	"github.com/lecturely/backend/pkg/redis"
	"github.com/lecturely/backend/pkg/storage"
)

// Infra holds the connections every process needs.
type Infra struct {
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Queue    *queue.Queue
	Bus      *events.RedisBus
	Sessions *sessions.Repository
	S3       *storage.S3 // nil when AWS_S3_BUCKET is unset
}

// Open connects to Postgres and Redis, applies migrations and builds the optional S3
// archive. The caller must Close the result.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Infra, error) {
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns), logger)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if err := database.Migrate(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}

	infra := &Infra{
		Pool:     pool,
		Redis:    rdb,
		Queue:    queue.NewQueue(rdb.Client, logger),
		Bus:      events.NewRedisBus(rdb.Client, logger),
		Sessions: sessions.NewRepository(pool),
	}

	if cfg.AWS.Bucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			Bucket:               cfg.AWS.Bucket,
			Endpoint:             cfg.AWS.Endpoint,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 archive disabled", zap.Error(err))
		} else {
			infra.S3 = s3Client
		}
	}
	return infra, nil
}

// Close releases the connections.
func (i *Infra) Close() {
	i.Redis.Close()
	i.Pool.Close()
}

// Deps returns the orchestrator collaborators that only schedule runs. It is enough
// for Start; Run additionally needs WithStages.
func (i *Infra) Deps() pipeline.Deps {
	deps := pipeline.Deps{
		Store:    i.Sessions,
		Queue:    i.Queue,
		Notifier: i.Bus,
	}
	if i.S3 != nil {
		deps.Archiver = i.S3
	}
	return deps
}

// WithStages adds the processing stages to deps. It fails when a provider the run
// cannot do without is not configured.
func WithStages(ctx context.Context, cfg *config.Config, deps pipeline.Deps, logger *zap.Logger) (pipeline.Deps, error) {
	exec := executor.New(logger)
	ffmpeg := media.NewFFmpeg(exec, cfg.Media.FFmpegBin, cfg.Media.FFprobeBin)

	provider, err := transcription.NewAssemblyAIProvider(cfg.AssemblyAI.APIKey)
	if err != nil {
		return deps, fmt.Errorf("transcription: %w", err)
	}
	generator, err := newGenerator(ctx, cfg.LLM)
	if err != nil {
		return deps, fmt.Errorf("summarization: %w", err)
	}

	deps.Transcoder = transcode.NewStage(ffmpeg, logger)
	deps.Transcriber = transcription.NewStage(provider, transcription.Config{
		PollInterval: cfg.AssemblyAI.PollInterval,
		Timeout:      cfg.AssemblyAI.Timeout,
	}, logger)
	deps.Summarizer = summarization.NewStage(generator, logger)
	if cfg.OCR.Enabled {
		recognizer := ocr.NewTesseract(exec, cfg.OCR.TesseractBin, cfg.OCR.Language)
		deps.OCR = ocr.NewStage(ffmpeg, recognizer, ocr.Config{
			FrameInterval:       cfg.OCR.FrameIntervalSec,
			ConfidenceThreshold: cfg.OCR.ConfidenceThreshold,
			ScratchDir:          cfg.Storage.ScratchDir,
		}, logger)
	}
	return deps, nil
}

func newGenerator(ctx context.Context, cfg config.LLMConfig) (summarization.Generator, error) {
	if cfg.Provider == "gemini" {
		return summarization.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	}
	return summarization.NewOpenAIGenerator(summarization.OpenAIConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Referer: cfg.Referer,
		Title:   cfg.Title,
	})
}

// Orchestrator builds an orchestrator over deps with the configured limits.
func Orchestrator(cfg *config.Config, deps pipeline.Deps, logger *zap.Logger) *pipeline.Orchestrator {
	return pipeline.NewOrchestrator(deps, pipeline.Config{
		Timeout:    cfg.Pipeline.Timeout,
		OCREnabled: cfg.OCR.Enabled,
	}, logger)
}
