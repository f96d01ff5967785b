// Package ocr samples frames from a lecture video and extracts the on-screen text
// (slides) from them.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/lecturely/backend/internal/models"
	"github.com/lecturely/backend/internal/textutil"
)

// ErrOCR is returned when the stage as a whole cannot run.
var ErrOCR = errors.New("ocr failed")

const (
	DefaultFrameInterval       = 30.0
	DefaultConfidenceThreshold = 0.7
	DuplicateThreshold         = 0.8
	minTextLength              = 10
)

// Config tunes sampling and filtering.
type Config struct {
	FrameInterval       float64 // seconds between samples
	ConfidenceThreshold float64 // 0-1
	ScratchDir          string  // parent for per-run scratch dirs; os.TempDir() when empty
}

// Stage extracts slides from a video.
type Stage struct {
	sampler    *Sampler
	recognizer Recognizer
	cfg        Config
	logger     *zap.Logger
	now        func() time.Time
}

// NewStage creates the OCR stage.
func NewStage(source FrameSource, recognizer Recognizer, cfg Config, logger *zap.Logger) *Stage {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultFrameInterval
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stage{
		sampler:    NewSampler(source, cfg.FrameInterval),
		recognizer: recognizer,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Extract samples the video, recognizes each frame and returns deduplicated slides in
// timestamp order. Per-frame failures are logged and skipped.
func (s *Stage) Extract(ctx context.Context, videoPath string) ([]models.Slide, error) {
	scratch, err := os.MkdirTemp(s.cfg.ScratchDir, "ocr-*")
	if err != nil {
		return nil, fmt.Errorf("%w: scratch dir: %v", ErrOCR, err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			s.logger.Warn("failed to remove ocr scratch dir", zap.String("dir", scratch), zap.Error(err))
		}
	}()

	timestamps, err := s.sampler.Plan(ctx, videoPath)
	if err != nil {
		return nil, fmt.Errorf("%w: probe video: %w", ErrOCR, err)
	}

	var kept []models.Slide
	for i, at := range timestamps {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOCR, err)
		}
		slide, ok := s.frame(ctx, videoPath, i, at, scratch)
		if ok {
			kept = append(kept, slide)
		}
	}

	slides := Dedupe(kept)
	s.logger.Info("ocr finished",
		zap.String("video", videoPath),
		zap.Int("frames", len(timestamps)),
		zap.Int("kept", len(kept)),
		zap.Int("slides", len(slides)),
	)
	return slides, nil
}

func (s *Stage) frame(ctx context.Context, videoPath string, index int, at float64, dir string) (models.Slide, bool) {
	framePath, err := s.sampler.Extract(ctx, videoPath, index, at, dir)
	if err != nil {
		s.logger.Warn("frame extraction failed", zap.Float64("at", at), zap.Error(err))
		return models.Slide{}, false
	}
	defer func() {
		if err := os.Remove(framePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to remove frame", zap.String("path", framePath), zap.Error(err))
		}
	}()

	rec, err := s.recognizer.Recognize(ctx, framePath)
	if err != nil {
		s.logger.Warn("frame recognition failed", zap.Float64("at", at), zap.Error(err))
		return models.Slide{}, false
	}

	text := CleanText(rec.Text)
	confidence := rec.Confidence / 100
	if confidence <= s.cfg.ConfidenceThreshold || len(text) <= minTextLength {
		return models.Slide{}, false
	}
	return models.Slide{
		Text:        text,
		Timestamp:   at,
		Confidence:  confidence,
		ExtractedAt: s.now(),
	}, true
}

// Dedupe drops every slide whose normalized text is more than DuplicateThreshold similar
// to any earlier kept slide. Order is preserved.
func Dedupe(slides []models.Slide) []models.Slide {
	out := make([]models.Slide, 0, len(slides))
	var seen []string
	for _, slide := range slides {
		norm := textutil.Normalize(slide.Text)
		duplicate := false
		for _, prev := range seen {
			if textutil.Similarity(norm, prev) > DuplicateThreshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		seen = append(seen, norm)
		out = append(out, slide)
	}
	return out
}
