// Package transcription uploads recordings to a speech-to-text provider and waits for
// the transcript.
package transcription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrTranscription is returned when the provider reports a failed job or a call fails.
	ErrTranscription = errors.New("transcription failed")
	// ErrTranscriptionTimeout is returned when the job does not finish within Config.Timeout.
	ErrTranscriptionTimeout = errors.New("transcription timed out")
)

// EmptyTranscript is returned in place of an empty provider transcript.
const EmptyTranscript = "No text was transcribed."

const (
	DefaultPollInterval = 5 * time.Second
	DefaultTimeout      = 30 * time.Minute
)

// JobStatus is the provider-neutral state of a transcription job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobCompleted JobStatus = "completed"
	JobError     JobStatus = "error"
)

// Job is a snapshot of a provider transcription job.
type Job struct {
	Status JobStatus
	Text   string
	Error  string
}

// Provider is a speech-to-text service.
type Provider interface {
	Upload(ctx context.Context, r io.Reader) (ref string, err error)
	CreateJob(ctx context.Context, ref string) (jobID string, err error)
	GetJob(ctx context.Context, jobID string) (Job, error)
}

// Config bounds the polling loop.
type Config struct {
	PollInterval time.Duration
	Timeout      time.Duration
}

// Stage turns a media file into transcript text.
type Stage struct {
	provider Provider
	cfg      Config
	logger   *zap.Logger
}

// NewStage creates a transcription stage; zero config values take the defaults.
func NewStage(provider Provider, cfg Config, logger *zap.Logger) *Stage {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stage{provider: provider, cfg: cfg, logger: logger}
}

// NormalizePath rewrites Windows separators to forward slashes.
func NormalizePath(path string) string {
	return strings.ReplaceAll(path, `\`, "/")
}

// Transcribe uploads path, creates a job and polls it until it completes, fails,
// times out or ctx is cancelled.
func (s *Stage) Transcribe(ctx context.Context, path string) (string, error) {
	path = NormalizePath(path)

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open media: %v", ErrTranscription, err)
	}
	defer f.Close()

	s.logger.Info("uploading media for transcription", zap.String("path", path))
	ref, err := s.provider.Upload(ctx, f)
	if err != nil {
		return "", fmt.Errorf("%w: upload: %v", ErrTranscription, err)
	}

	jobID, err := s.provider.CreateJob(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("%w: create job: %v", ErrTranscription, err)
	}
	s.logger.Info("transcription job created", zap.String("job_id", jobID))

	return s.wait(ctx, jobID)
}

func (s *Stage) wait(ctx context.Context, jobID string) (string, error) {
	deadline := time.NewTimer(s.cfg.Timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		job, err := s.provider.GetJob(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", fmt.Errorf("%w: get job %s: %v", ErrTranscription, jobID, err)
		}

		switch job.Status {
		case JobCompleted:
			s.logger.Info("transcription complete", zap.String("job_id", jobID), zap.Int("chars", len(job.Text)))
			if strings.TrimSpace(job.Text) == "" {
				return EmptyTranscript, nil
			}
			return job.Text, nil
		case JobError:
			return "", fmt.Errorf("%w: %s", ErrTranscription, job.Error)
		}

		s.logger.Debug("transcription in progress", zap.String("job_id", jobID), zap.String("status", string(job.Status)))
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline.C:
			return "", fmt.Errorf("%w: job %s still pending after %s", ErrTranscriptionTimeout, jobID, s.cfg.Timeout)
		case <-ticker.C:
		}
	}
}
