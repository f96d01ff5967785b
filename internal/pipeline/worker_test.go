package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lecturely/backend/pkg/queue"
)

type chanSource struct {
	jobs    chan *queue.Job
	mu      sync.Mutex
	retried []*queue.Job
}

func (s *chanSource) Dequeue(ctx context.Context) (*queue.Job, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case job := <-s.jobs:
		return job, nil
	case <-time.After(10 * time.Millisecond):
		return nil, nil
	}
}

func (s *chanSource) Retry(_ context.Context, job *queue.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retried = append(s.retried, job)
	return nil
}

type countingRunner struct {
	active  atomic.Int32
	peak    atomic.Int32
	done    chan uuid.UUID
	hold    time.Duration
	failFor uuid.UUID
}

func (r *countingRunner) Run(ctx context.Context, id uuid.UUID) error {
	n := r.active.Add(1)
	defer r.active.Add(-1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-time.After(r.hold):
	case <-ctx.Done():
	}
	r.done <- id
	if id == r.failFor {
		return errors.New("load session: db down")
	}
	return nil
}

func pipelineJob(t *testing.T, id uuid.UUID) *queue.Job {
	t.Helper()
	job, err := queue.NewPipelineJob(queue.PipelinePayload{SessionID: id, Trigger: queue.TriggerUpload}, time.Now())
	require.NoError(t, err)
	return job
}

func TestWorkerBoundsConcurrency(t *testing.T) {
	src := &chanSource{jobs: make(chan *queue.Job, 10)}
	runner := &countingRunner{done: make(chan uuid.UUID, 10), hold: 30 * time.Millisecond}
	for i := 0; i < 6; i++ {
		src.jobs <- pipelineJob(t, uuid.New())
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(src, runner, 2, nil)
	stopped := make(chan struct{})
	go func() { w.Run(ctx); close(stopped) }()

	for i := 0; i < 6; i++ {
		select {
		case <-runner.done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for runs")
		}
	}
	cancel()
	<-stopped

	assert.LessOrEqual(t, runner.peak.Load(), int32(2))
	assert.Equal(t, int32(2), runner.peak.Load())
}

func TestWorkerRetriesLoadFailures(t *testing.T) {
	failing := uuid.New()
	src := &chanSource{jobs: make(chan *queue.Job, 3)}
	runner := &countingRunner{done: make(chan uuid.UUID, 2), failFor: failing}
	src.jobs <- pipelineJob(t, failing)
	src.jobs <- pipelineJob(t, uuid.New())
	src.jobs <- &queue.Job{ID: "bad", Type: "email"}

	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(src, runner, 1, nil)
	stopped := make(chan struct{})
	go func() { w.Run(ctx); close(stopped) }()

	<-runner.done
	<-runner.done
	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return len(src.retried) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-stopped

	payload, err := src.retried[0].Pipeline()
	require.NoError(t, err)
	assert.Equal(t, failing, payload.SessionID)
}
