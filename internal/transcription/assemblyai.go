package transcription

import (
	"context"
	"errors"
	"io"

	aai "github.com/AssemblyAI/assemblyai-go-sdk"
)

// AssemblyAIProvider implements Provider on the AssemblyAI API.
type AssemblyAIProvider struct {
	client *aai.Client
}

// NewAssemblyAIProvider creates a provider authenticated with apiKey.
func NewAssemblyAIProvider(apiKey string) (*AssemblyAIProvider, error) {
	if apiKey == "" {
		return nil, errors.New("assemblyai: api key is required")
	}
	return &AssemblyAIProvider{client: aai.NewClient(apiKey)}, nil
}

// Upload streams r to AssemblyAI and returns the upload URL.
func (p *AssemblyAIProvider) Upload(ctx context.Context, r io.Reader) (string, error) {
	return p.client.Upload(ctx, r)
}

// CreateJob submits a transcript job for an uploaded file URL.
func (p *AssemblyAIProvider) CreateJob(ctx context.Context, ref string) (string, error) {
	transcript, err := p.client.Transcripts.SubmitFromURL(ctx, ref, nil)
	if err != nil {
		return "", err
	}
	id := aai.ToString(transcript.ID)
	if id == "" {
		return "", errors.New("assemblyai: transcript id missing")
	}
	return id, nil
}

// GetJob fetches the current transcript state.
func (p *AssemblyAIProvider) GetJob(ctx context.Context, jobID string) (Job, error) {
	transcript, err := p.client.Transcripts.Get(ctx, jobID)
	if err != nil {
		return Job{}, err
	}
	switch transcript.Status {
	case aai.TranscriptStatusCompleted:
		return Job{Status: JobCompleted, Text: aai.ToString(transcript.Text)}, nil
	case aai.TranscriptStatusError:
		return Job{Status: JobError, Error: aai.ToString(transcript.Error)}, nil
	default:
		return Job{Status: JobPending}, nil
	}
}
