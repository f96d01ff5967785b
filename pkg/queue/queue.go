package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueuePipeline is the Redis list key for session processing jobs.
	QueuePipeline = "worker:pipeline"
	// QueueDLQ is the dead-letter queue for jobs that exhausted their retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving it to the DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay before a retried job is pushed back.
	RetryBackoff = 10 * time.Second
	// dequeueWait bounds each BLPOP so a cancelled context is noticed promptly.
	dequeueWait = 5 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypePipeline JobType = "session_pipeline"
)

// Trigger records what started a pipeline run.
type Trigger string

const (
	TriggerUpload Trigger = "upload"
	TriggerManual Trigger = "manual"
	TriggerCLI    Trigger = "cli"
)

// PipelinePayload is the payload of a session processing job.
type PipelinePayload struct {
	SessionID uuid.UUID `json:"session_id"`
	Trigger   Trigger   `json:"trigger"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Pipeline decodes the job payload.
func (j *Job) Pipeline() (PipelinePayload, error) {
	var p PipelinePayload
	if j.Type != JobTypePipeline {
		return p, fmt.Errorf("unexpected job type %q", j.Type)
	}
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return p, fmt.Errorf("decode pipeline payload: %w", err)
	}
	if p.SessionID == uuid.Nil {
		return p, errors.New("pipeline payload without session id")
	}
	return p, nil
}

// NewPipelineJob wraps payload in a fresh job envelope.
func NewPipelineJob(payload PipelinePayload, now time.Time) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Job{
		ID:        uuid.New().String(),
		Type:      JobTypePipeline,
		Payload:   body,
		CreatedAt: now,
	}, nil
}

// Queue enqueues and dequeues jobs via Redis lists.
type Queue struct {
	client  *redis.Client
	logger  *zap.Logger
	backoff time.Duration
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger, backoff: RetryBackoff}
}

// EnqueuePipeline enqueues a processing job for a session.
func (q *Queue) EnqueuePipeline(ctx context.Context, payload PipelinePayload) error {
	job, err := NewPipelineJob(payload, time.Now())
	if err != nil {
		return err
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, QueuePipeline, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued pipeline job",
		zap.String("job_id", job.ID),
		zap.String("session_id", payload.SessionID.String()),
		zap.String("trigger", string(payload.Trigger)),
	)
	return nil
}

// Dequeue waits up to a few seconds for a job. It returns (nil, nil) when none arrived
// or the entry was unreadable, so callers can loop and check ctx.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	result, err := q.client.BLPop(ctx, dequeueWait, QueuePipeline).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// Retry re-enqueues a job after the backoff with an incremented attempt. Once the attempt
// reaches MaxRetries the job goes to the DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(q.backoff):
	}
	if err := q.client.RPush(ctx, QueuePipeline, raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

// Depth returns the number of pending pipeline jobs and dead-lettered jobs.
func (q *Queue) Depth(ctx context.Context) (pending, dead int64, err error) {
	if pending, err = q.client.LLen(ctx, QueuePipeline).Result(); err != nil {
		return 0, 0, err
	}
	if dead, err = q.client.LLen(ctx, QueueDLQ).Result(); err != nil {
		return 0, 0, err
	}
	return pending, dead, nil
}
