package main

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lecturely/backend/config"
	"github.com/lecturely/backend/internal/bootstrap"
)

type commandContext struct {
	verbose *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *zap.Logger
}

func newCommandContext(verbose *bool) *commandContext {
	return &commandContext{verbose: verbose}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		c.config, c.configErr = config.Load()
	})
	return c.config, c.configErr
}

// log writes JSON to stderr; only warnings unless --verbose.
func (c *commandContext) log() *zap.Logger {
	c.loggerOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		if c.verbose == nil || !*c.verbose {
			cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		}
		logger, err := cfg.Build()
		if err != nil {
			logger = zap.NewNop()
		}
		c.logger = logger
	})
	return c.logger
}

func (c *commandContext) withInfra(ctx context.Context, fn func(*config.Config, *bootstrap.Infra) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	infra, err := bootstrap.Open(ctx, cfg, c.log())
	if err != nil {
		return err
	}
	defer infra.Close()
	return fn(cfg, infra)
}
