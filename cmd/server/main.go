// Package main runs the Lecturely HTTP API: sessions, uploads, media streaming, the
// processing trigger and the live event feed.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lecturely/backend/config"
	"github.com/lecturely/backend/internal/auth"
	"github.com/lecturely/backend/internal/bootstrap"
	"github.com/lecturely/backend/internal/events"
	"github.com/lecturely/backend/internal/middleware"
	"github.com/lecturely/backend/internal/pipeline"
	"github.com/lecturely/backend/internal/sessions"
	"github.com/lecturely/backend/internal/streaming"
	"github.com/lecturely/backend/pkg/response"
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

	deps := infra.Deps()
	if cfg.Pipeline.InProcess {
		deps, err = bootstrap.WithStages(ctx, cfg, deps, logger)
		if err != nil {
			logger.Fatal("pipeline stages", zap.Error(err))
		}
	}
	orchestrator := bootstrap.Orchestrator(cfg, deps, logger)

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	sessionHandler := sessions.NewHandler(infra.Sessions, orchestrator, sessions.UploadConfig{
		Dir:         cfg.Storage.UploadDir,
		MaxBytes:    cfg.Storage.MaxUploadBytes(),
		ReadTimeout: time.Duration(cfg.Server.UploadReadTimeout) * time.Second,
	}, logger)
	if infra.S3 != nil {
		sessionHandler.SetPresigner(infra.S3)
	}
	pipelineHandler := pipeline.NewHandler(orchestrator, logger)
	streamHandler := streaming.NewHandler(infra.Sessions, streaming.NewStreamer(logger), logger)
	feed := events.NewFeed(infra.Sessions, infra.Bus, jwtService, allowOrigin(cfg.Server.CORSAllowedOrigins), logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.POST("/sessions", sessionHandler.Create)
		api.GET("/sessions", sessionHandler.List)
		api.GET("/sessions/:id", sessionHandler.Get)
		api.POST("/sessions/:id/qa", sessionHandler.AddQA)
		api.GET("/sessions/:id/files/:fileType/download-url", sessionHandler.DownloadURL)

		api.POST("/upload/:sessionId/:fileType", sessionHandler.Upload)
		api.POST("/ai/process/:sessionId", pipelineHandler.Process)
	}

	// Media elements cannot set headers, so streaming also takes ?token=.
	stream := router.Group("/stream")
	stream.Use(middleware.JWTOrQuery(jwtService))
	{
		stream.GET("/:sessionId/:fileType", streamHandler.Stream)
		stream.HEAD("/:sessionId/:fileType", streamHandler.Stream)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", feed.Serve)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadHeaderTimeout) * time.Second,
		// Upload bodies are bounded per request by the upload handler; streams can run
		// for the length of a class.
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	workerDone := make(chan struct{})
	if cfg.Pipeline.InProcess {
		w := pipeline.NewWorker(infra.Queue, orchestrator, cfg.Pipeline.Workers, logger)
		go func() {
			defer close(workerDone)
			w.Run(workerCtx)
		}()
		logger.Info("in-process pipeline workers started", zap.Int("workers", cfg.Pipeline.Workers))
	} else {
		close(workerDone)
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		logger.Warn("pipeline workers did not stop in time")
	}
	logger.Info("server stopped")
}

// allowOrigin accepts websocket upgrades from the CORS origins; "*" allows any.
func allowOrigin(allowed string) func(*http.Request) bool {
	origins := map[string]bool{}
	for _, o := range strings.Split(allowed, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins[o] = true
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origins["*"] || origins[origin]
	}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
