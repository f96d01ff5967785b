package transcode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemuxer struct {
	calls int
	err   error
	out   []byte
}

func (f *fakeRemuxer) Remux(_ context.Context, _, output string) error {
	f.calls++
	if f.out != nil {
		if err := os.WriteFile(output, f.out, 0o600); err != nil {
			return err
		}
	}
	return f.err
}

func writeVideo(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "video-1700000000-42.webm")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestTempPath(t *testing.T) {
	assert.Equal(t, "/u/video-1-seekable.webm", TempPath("/u/video-1.webm"))
	assert.Equal(t, "/u/noext-seekable", TempPath("/u/noext"))
}

func TestRunReplacesOriginal(t *testing.T) {
	path := writeVideo(t, "original")
	remuxer := &fakeRemuxer{out: []byte("remuxed")}
	stage := NewStage(remuxer, nil)

	require.NoError(t, stage.Run(context.Background(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "remuxed", string(data))
	_, err = os.Stat(TempPath(path))
	assert.True(t, os.IsNotExist(err), "temp file should be gone")
	assert.True(t, IsSeekable(path))
}

func TestRunIsIdempotent(t *testing.T) {
	path := writeVideo(t, "original")
	remuxer := &fakeRemuxer{out: []byte("remuxed")}
	stage := NewStage(remuxer, nil)

	require.NoError(t, stage.Run(context.Background(), path))
	require.NoError(t, stage.Run(context.Background(), path))
	assert.Equal(t, 1, remuxer.calls)
}

func TestRunFailureLeavesOriginal(t *testing.T) {
	path := writeVideo(t, "original")
	remuxer := &fakeRemuxer{out: []byte("half"), err: errors.New("invalid data found")}
	stage := NewStage(remuxer, nil)

	err := stage.Run(context.Background(), path)
	require.ErrorIs(t, err, ErrTranscode)

	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, "original", string(data))
	_, statErr := os.Stat(TempPath(path))
	assert.True(t, os.IsNotExist(statErr), "partial output should be removed")
	assert.False(t, IsSeekable(path))
}

func TestRunMissingFile(t *testing.T) {
	stage := NewStage(&fakeRemuxer{}, nil)
	err := stage.Run(context.Background(), filepath.Join(t.TempDir(), "missing.webm"))
	require.ErrorIs(t, err, ErrTranscode)
}
