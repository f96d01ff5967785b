package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PIPELINE_WORKERS", "")
	t.Setenv("PIPELINE_TIMEOUT", "")
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("READ_HEADER_TIMEOUT_SEC", "")
	t.Setenv("READ_TIMEOUT_SEC", "")
	t.Setenv("UPLOAD_READ_TIMEOUT_SEC", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Pipeline.Workers)
	assert.Equal(t, 2*time.Hour, cfg.Pipeline.Timeout)
	assert.Equal(t, 30*time.Minute, cfg.AssemblyAI.Timeout)
	assert.Equal(t, 5*time.Second, cfg.AssemblyAI.PollInterval)
	assert.Equal(t, 30.0, cfg.OCR.FrameIntervalSec)
	assert.Equal(t, 0.7, cfg.OCR.ConfidenceThreshold)
	assert.Equal(t, "openrouter", cfg.LLM.Provider)
	assert.Equal(t, 30, cfg.Server.ReadHeaderTimeout)
	assert.Zero(t, cfg.Server.ReadTimeout, "a whole-request read timeout would cut off large uploads")
	assert.Equal(t, 1800, cfg.Server.UploadReadTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PIPELINE_WORKERS", "4")
	t.Setenv("PIPELINE_TIMEOUT", "45m")
	t.Setenv("TRANSCRIPTION_TIMEOUT", "600")
	t.Setenv("OCR_ENABLED", "false")
	t.Setenv("LLM_PROVIDER", "Gemini")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, 45*time.Minute, cfg.Pipeline.Timeout)
	assert.Equal(t, 10*time.Minute, cfg.AssemblyAI.Timeout)
	assert.False(t, cfg.OCR.Enabled)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
}

func TestLLMBaseURLFollowsProvider(t *testing.T) {
	t.Setenv("LLM_BASE_URL", "")

	t.Setenv("LLM_PROVIDER", "openrouter")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.LLM.BaseURL)

	t.Setenv("LLM_PROVIDER", "openai")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.LLM.BaseURL)

	t.Setenv("LLM_BASE_URL", "http://localhost:11434/v1")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434/v1", cfg.LLM.BaseURL)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("PIPELINE_WORKERS", "0")
	t.Setenv("OCR_CONFIDENCE_THRESHOLD", "70")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PIPELINE_WORKERS")
	assert.Contains(t, err.Error(), "OCR_CONFIDENCE_THRESHOLD")
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: "1", DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:1/d?sslmode=disable", c.DSN())
	c.URL = "postgres://x"
	assert.Equal(t, "postgres://x", c.DSN())
}

func TestMaxUploadBytes(t *testing.T) {
	assert.Equal(t, int64(500<<20), StorageConfig{MaxUploadMB: 500}.MaxUploadBytes())
}
