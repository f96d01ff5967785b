package transcription

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu        sync.Mutex
	uploaded  string
	uploadErr error
	createErr error
	jobs      []Job // returned in order; the last one repeats
	getErr    error
	polls     int
}

func (f *fakeProvider) Upload(_ context.Context, r io.Reader) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.uploaded = string(data)
	return "https://cdn.example/upload/1", nil
}

func (f *fakeProvider) CreateJob(_ context.Context, ref string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	return "job-" + filepath.Base(ref), nil
}

func (f *fakeProvider) GetJob(_ context.Context, _ string) (Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return Job{}, f.getErr
	}
	idx := f.polls
	if idx >= len(f.jobs) {
		idx = len(f.jobs) - 1
	}
	f.polls++
	return f.jobs[idx], nil
}

func writeMedia(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio-1.webm")
	require.NoError(t, os.WriteFile(path, []byte("webm-bytes"), 0o600))
	return path
}

func fastConfig() Config {
	return Config{PollInterval: time.Millisecond, Timeout: time.Second}
}

func TestTranscribePollsUntilCompleted(t *testing.T) {
	provider := &fakeProvider{jobs: []Job{
		{Status: JobPending},
		{Status: JobPending},
		{Status: JobCompleted, Text: "today we cover recursion"},
	}}
	stage := NewStage(provider, fastConfig(), nil)

	text, err := stage.Transcribe(context.Background(), writeMedia(t))
	require.NoError(t, err)
	assert.Equal(t, "today we cover recursion", text)
	assert.Equal(t, "webm-bytes", provider.uploaded)
	assert.Equal(t, 3, provider.polls)
}

func TestTranscribeEmptyTextSentinel(t *testing.T) {
	provider := &fakeProvider{jobs: []Job{{Status: JobCompleted, Text: "  "}}}
	stage := NewStage(provider, fastConfig(), nil)

	text, err := stage.Transcribe(context.Background(), writeMedia(t))
	require.NoError(t, err)
	assert.Equal(t, EmptyTranscript, text)
}

func TestTranscribeProviderError(t *testing.T) {
	provider := &fakeProvider{jobs: []Job{{Status: JobError, Error: "audio too short"}}}
	stage := NewStage(provider, fastConfig(), nil)

	_, err := stage.Transcribe(context.Background(), writeMedia(t))
	require.ErrorIs(t, err, ErrTranscription)
	assert.Contains(t, err.Error(), "audio too short")
}

func TestTranscribeUploadFailure(t *testing.T) {
	provider := &fakeProvider{uploadErr: errors.New("connection reset")}
	stage := NewStage(provider, fastConfig(), nil)

	_, err := stage.Transcribe(context.Background(), writeMedia(t))
	require.ErrorIs(t, err, ErrTranscription)
}

func TestTranscribeMissingFile(t *testing.T) {
	stage := NewStage(&fakeProvider{}, fastConfig(), nil)
	_, err := stage.Transcribe(context.Background(), filepath.Join(t.TempDir(), "nope.webm"))
	require.ErrorIs(t, err, ErrTranscription)
}

func TestTranscribeTimeout(t *testing.T) {
	provider := &fakeProvider{jobs: []Job{{Status: JobPending}}}
	stage := NewStage(provider, Config{PollInterval: time.Millisecond, Timeout: 20 * time.Millisecond}, nil)

	_, err := stage.Transcribe(context.Background(), writeMedia(t))
	require.ErrorIs(t, err, ErrTranscriptionTimeout)
}

func TestTranscribeHonorsCancellation(t *testing.T) {
	provider := &fakeProvider{jobs: []Job{{Status: JobPending}}}
	stage := NewStage(provider, Config{PollInterval: 10 * time.Millisecond, Timeout: time.Minute}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(25*time.Millisecond, cancel)

	_, err := stage.Transcribe(ctx, writeMedia(t))
	require.ErrorIs(t, err, context.Canceled)
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "C:/uploads/u1/video-1.webm", NormalizePath(`C:\uploads\u1\video-1.webm`))
	assert.Equal(t, "/srv/uploads/a.webm", NormalizePath("/srv/uploads/a.webm"))
}

func TestNewStageDefaults(t *testing.T) {
	stage := NewStage(&fakeProvider{}, Config{}, nil)
	assert.Equal(t, DefaultPollInterval, stage.cfg.PollInterval)
	assert.Equal(t, DefaultTimeout, stage.cfg.Timeout)
}
