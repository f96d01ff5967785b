// Package summarization turns a transcript into a structured class summary using a
// text-generation model.
package summarization

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

var (
	// ErrSummarization covers every generation failure that is not auth or rate limiting.
	ErrSummarization = errors.New("summarization failed")
	// ErrAuth is returned when the provider rejects the API key (HTTP 401).
	ErrAuth = errors.New("summarization provider rejected credentials")
	// ErrRateLimited is returned when the provider throttles the request (HTTP 429).
	ErrRateLimited = errors.New("summarization provider rate limit exceeded")
)

const systemPrompt = "You are a helpful AI assistant that analyzes educational content and provides structured summaries."

const promptTemplate = `You are an AI assistant that helps students by analyzing class transcripts.

Please analyze the following transcript and return ONLY valid JSON (no markdown, no extra text):
{
  "summary": ["Main topic 1", "Main topic 2", ...],
  "keyPoints": ["Key point 1", "Key point 2", ...],
  "assignments": ["Assignment 1", "Assignment 2", ...]
}

Transcript:
%s
`

// Options tune a single generation call.
type Options struct {
	System      string
	Temperature float64
	MaxTokens   int
}

// Generator is a text-generation provider.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

// StatusError carries the HTTP status of a failed provider call.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider status %d: %v", e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// Stage summarizes transcripts.
type Stage struct {
	generator Generator
	opts      Options
	logger    *zap.Logger
}

// NewStage creates a summarization stage.
func NewStage(generator Generator, logger *zap.Logger) *Stage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stage{
		generator: generator,
		opts:      Options{System: systemPrompt, Temperature: 0.3, MaxTokens: 1500},
		logger:    logger,
	}
}

// BuildPrompt renders the fixed summary prompt around transcript.
func BuildPrompt(transcript string) string {
	return fmt.Sprintf(promptTemplate, transcript)
}

// Summarize generates and parses a summary. Malformed JSON from the model is absorbed
// (Result.Degraded); provider failures are returned.
func (s *Stage) Summarize(ctx context.Context, transcript string) (Result, error) {
	raw, err := s.generator.Generate(ctx, BuildPrompt(transcript), s.opts)
	if err != nil {
		return Result{}, classify(err)
	}

	result := Parse(raw)
	if result.Degraded {
		s.logger.Warn("summary response was not valid JSON; using bullet fallback",
			zap.Int("response_chars", len(raw)),
			zap.Int("bullets", len(result.Summary)),
		)
	}
	return result, nil
}

func classify(err error) error {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", ErrAuth, err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrSummarization, err)
}
