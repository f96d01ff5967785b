package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lecturely/backend/internal/models"
	"github.com/lecturely/backend/internal/summarization"
	"github.com/lecturely/backend/pkg/queue"
)

// memStore mimics the conditional updates of the Postgres repository.
type memStore struct {
	mu        sync.Mutex
	sessions  map[uuid.UUID]*models.Session
	writes    int
	getErr    error
	failWrite int // fail this many state writes before succeeding
}

func newMemStore(sessions ...*models.Session) *memStore {
	s := &memStore{sessions: map[uuid.UUID]*models.Session{}}
	for _, sess := range sessions {
		s.sessions[sess.ID] = sess
	}
	return s
}

func (s *memStore) snapshot(id uuid.UUID) models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.sessions[id]
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

func (s *memStore) Claim(_ context.Context, id uuid.UUID) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.Status == models.SessionStatusProcessing {
		return "", false, nil
	}
	if _, f := sess.Files.ProcessingInput(); f == nil {
		return "", false, nil
	}
	prev := sess.Status
	sess.Status = models.SessionStatusProcessing
	s.writes++
	return prev, true, nil
}

func (s *memStore) writeErr() error {
	if s.failWrite > 0 {
		s.failWrite--
		return errors.New("connection refused")
	}
	return nil
}

func (s *memStore) SetStatus(_ context.Context, id uuid.UUID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr(); err != nil {
		return err
	}
	s.sessions[id].Status = status
	s.writes++
	return nil
}

func (s *memStore) Complete(_ context.Context, id uuid.UUID, result models.Completion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr(); err != nil {
		return err
	}
	sess := s.sessions[id]
	t, sum := result.Transcript, result.Summary
	sess.Processing.Transcript = &t
	sess.Processing.Summary = &sum
	if result.ReplaceSlides {
		sess.Processing.Slides = result.Slides
	}
	sess.Status = models.SessionStatusCompleted
	s.writes++
	return nil
}

type fakeQueue struct {
	mu       sync.Mutex
	payloads []queue.PipelinePayload
	err      error
}

func (q *fakeQueue) EnqueuePipeline(_ context.Context, p queue.PipelinePayload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.payloads = append(q.payloads, p)
	return nil
}

type fakeTranscoder struct {
	err   error
	paths []string
}

func (f *fakeTranscoder) Run(_ context.Context, path string) error {
	f.paths = append(f.paths, path)
	return f.err
}

type fakeTranscriber struct {
	text  string
	err   error
	block bool
	path  string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	f.path = path
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.text, f.err
}

type fakeSummarizer struct {
	result summarization.Result
	err    error
	input  string
}

func (f *fakeSummarizer) Summarize(_ context.Context, transcript string) (summarization.Result, error) {
	f.input = transcript
	return f.result, f.err
}

type fakeOCR struct {
	slides []models.Slide
	err    error
}

func (f *fakeOCR) Extract(context.Context, string) ([]models.Slide, error) {
	return f.slides, f.err
}

type fakeArchiver struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeArchiver) ArchiveSessionMedia(context.Context, uuid.UUID, string, *models.MediaFile) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return "sessions/key", f.err
}

type publishedEvent struct {
	event string
	data  any
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (f *fakeNotifier) Publish(_ context.Context, _ uuid.UUID, event string, data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{event: event, data: data})
	return nil
}

func (f *fakeNotifier) statuses() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.events {
		if e.event == EventStatus {
			out = append(out, e.data.(map[string]string)["status"])
		}
	}
	return out
}

func videoSession(status string) *models.Session {
	return &models.Session{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Status: status,
		Files: models.Files{
			Audio: &models.MediaFile{Path: "/uploads/a.webm"},
			Video: &models.MediaFile{Path: "/uploads/v.webm"},
		},
		Analytics: models.Analytics{ViewCount: 7},
		CreatedAt: time.Now(),
	}
}
