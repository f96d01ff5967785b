package pipeline

import (
	"errors"
	"fmt"
)

// Start preconditions. Each is returned before any state change.
var (
	ErrNotFound          = errors.New("session not found")
	ErrNoMediaAvailable  = errors.New("session has no audio or video to process")
	ErrAlreadyProcessing = errors.New("session is already processing")
)

// Run-level failures that are not owned by a single stage.
var (
	ErrPipelineTimeout  = errors.New("pipeline timed out")
	ErrPipelineCanceled = errors.New("pipeline canceled")
)

// Stage names used in logs and events.
const (
	StageTranscode  = "transcode"
	StageTranscribe = "transcribe"
	StageSummarize  = "summarize"
	StageOCR        = "ocr"
	StageArchive    = "archive"
)

// StageError attributes a run failure to the stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}
