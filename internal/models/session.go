package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus values. A session holds exactly one at a time.
const (
	SessionStatusRecording  = "recording"
	SessionStatusProcessing = "processing"
	SessionStatusCompleted  = "completed"
	SessionStatusFailed     = "failed"
)

// File types a session can carry.
const (
	FileTypeAudio = "audio"
	FileTypeVideo = "video"
)

// Session is a captured class recording and everything derived from it.
type Session struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	Name       string     `json:"name"`
	Duration   int        `json:"duration"`
	Status     string     `json:"status"`
	Files      Files      `json:"files"`
	Processing Processing `json:"processing"`
	Analytics  Analytics  `json:"analytics"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Files holds the uploaded media. Each entry is written once by upload.
type Files struct {
	Audio *MediaFile `json:"audio,omitempty"`
	Video *MediaFile `json:"video,omitempty"`
}

// MediaFile describes one stored upload.
type MediaFile struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimetype"`
}

// Get returns the file stored under fileType ("audio" or "video"), or nil.
func (f Files) Get(fileType string) *MediaFile {
	switch fileType {
	case FileTypeAudio:
		return f.Audio
	case FileTypeVideo:
		return f.Video
	}
	return nil
}

// ProcessingInput picks the media the pipeline runs on: video when present, else audio.
func (f Files) ProcessingInput() (fileType string, file *MediaFile) {
	if f.Video != nil && f.Video.Path != "" {
		return FileTypeVideo, f.Video
	}
	if f.Audio != nil && f.Audio.Path != "" {
		return FileTypeAudio, f.Audio
	}
	return "", nil
}

// Processing is the sub-tree the pipeline owns.
type Processing struct {
	Transcript *Transcript `json:"transcript,omitempty"`
	Summary    *Summary    `json:"summary,omitempty"`
	Slides     []Slide     `json:"slides"`
}

// Transcript is the speech-to-text output of a successful run.
type Transcript struct {
	Text        string    `json:"text"`
	ProcessedAt time.Time `json:"processedAt"`
}

// Summary is the structured summary of a transcript. Degraded marks a best-effort
// summary built from a model response that was not valid JSON.
type Summary struct {
	Text        []string  `json:"text"`
	KeyPoints   []string  `json:"keyPoints"`
	Assignments []string  `json:"assignments"`
	Degraded    bool      `json:"degraded"`
	ProcessedAt time.Time `json:"processedAt"`
}

// Slide is on-screen text recognized in a video frame.
type Slide struct {
	Text        string    `json:"text"`
	Timestamp   float64   `json:"timestamp"`
	Confidence  float64   `json:"confidence"`
	ExtractedAt time.Time `json:"extractedAt"`
}

// Analytics is mutated by read paths only; the pipeline never writes it.
type Analytics struct {
	ViewCount  int        `json:"viewCount"`
	LastViewed *time.Time `json:"lastViewed,omitempty"`
	QAQueries  []QAQuery  `json:"qaQueries,omitempty"`
}

// QAQuery is one saved question/answer exchange about a session.
type QAQuery struct {
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// Completion is everything a successful pipeline run writes in its single completion
// update. Slides are written only when ReplaceSlides is set (OCR ran and succeeded).
type Completion struct {
	Transcript    Transcript
	Summary       Summary
	Slides        []Slide
	ReplaceSlides bool
}
