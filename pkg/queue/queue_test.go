package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineJobRoundTrip(t *testing.T) {
	id := uuid.New()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	job, err := NewPipelineJob(PipelinePayload{SessionID: id, Trigger: TriggerUpload}, now)
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, JobTypePipeline, job.Type)
	assert.Zero(t, job.Attempt)

	raw, err := json.Marshal(job)
	require.NoError(t, err)
	var decoded Job
	require.NoError(t, json.Unmarshal(raw, &decoded))

	payload, err := decoded.Pipeline()
	require.NoError(t, err)
	assert.Equal(t, id, payload.SessionID)
	assert.Equal(t, TriggerUpload, payload.Trigger)
}

func TestPipelineRejectsForeignJobs(t *testing.T) {
	job := &Job{Type: "email", Payload: json.RawMessage(`{}`)}
	_, err := job.Pipeline()
	assert.Error(t, err)

	job = &Job{Type: JobTypePipeline, Payload: json.RawMessage(`{"trigger":"manual"}`)}
	_, err = job.Pipeline()
	assert.Error(t, err)

	job = &Job{Type: JobTypePipeline, Payload: json.RawMessage(`not json`)}
	_, err = job.Pipeline()
	assert.Error(t, err)
}
