// Package main runs the session pipeline workers (transcode, transcribe, summarize, OCR,
// archive) off the Redis job queue.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lecturely/backend/config"
	"github.com/lecturely/backend/internal/bootstrap"
	"github.com/lecturely/backend/internal/pipeline"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	infra, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("bootstrap", zap.Error(err))
	}
	defer infra.Close()

	deps, err := bootstrap.WithStages(ctx, cfg, infra.Deps(), logger)
	if err != nil {
		logger.Fatal("pipeline stages", zap.Error(err))
	}
	orchestrator := bootstrap.Orchestrator(cfg, deps, logger)

	// Runs interrupted by a previous crash stay in processing forever otherwise.
	if n, err := infra.Sessions.FailStale(ctx, cfg.Pipeline.Timeout); err != nil {
		logger.Error("fail stale sessions", zap.Error(err))
	} else if n > 0 {
		logger.Warn("marked stale sessions failed", zap.Int64("count", n))
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := pipeline.NewWorker(infra.Queue, orchestrator, cfg.Pipeline.Workers, logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(workerCtx)
	}()
	logger.Info("worker started", zap.Int("workers", cfg.Pipeline.Workers))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	<-done
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
