package media

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	name string
	args []string
}

type fakeExecutor struct {
	calls  []recordedCall
	stdout string
	err    error
}

func (f *fakeExecutor) Execute(_ context.Context, name string, args ...string) (string, error) {
	f.calls = append(f.calls, recordedCall{name: name, args: args})
	return f.stdout, f.err
}

func TestRemuxUsesStreamCopy(t *testing.T) {
	exec := &fakeExecutor{}
	ff := NewFFmpeg(exec, "", "")

	require.NoError(t, ff.Remux(context.Background(), "/in/a.webm", "/in/a-seekable.webm"))
	require.Len(t, exec.calls, 1)
	assert.Equal(t, "ffmpeg", exec.calls[0].name)
	joined := strings.Join(exec.calls[0].args, " ")
	assert.Contains(t, joined, "-c copy")
	assert.True(t, strings.HasSuffix(joined, "/in/a-seekable.webm"))
}

func TestRemuxWrapsError(t *testing.T) {
	exec := &fakeExecutor{err: errors.New("exit status 1")}
	ff := NewFFmpeg(exec, "/opt/ffmpeg", "")

	err := ff.Remux(context.Background(), "in.mp4", "out.mp4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ffmpeg remux")
	assert.Equal(t, "/opt/ffmpeg", exec.calls[0].name)
}

func TestDurationFromFormat(t *testing.T) {
	exec := &fakeExecutor{stdout: `{"streams":[{"codec_type":"video","duration":"12.0"}],"format":{"duration":"95.4"}}`}
	ff := NewFFmpeg(exec, "", "")

	d, err := ff.VideoDuration(context.Background(), "lecture.webm")
	require.NoError(t, err)
	assert.InDelta(t, 95.4, d, 1e-9)
	assert.Equal(t, "ffprobe", exec.calls[0].name)
}

func TestDurationFallsBackToStreams(t *testing.T) {
	exec := &fakeExecutor{stdout: `{"streams":[{"codec_type":"audio","duration":"40.5"},{"codec_type":"video","duration":"61"}],"format":{"duration":"N/A"}}`}
	ff := NewFFmpeg(exec, "", "")

	d, err := ff.VideoDuration(context.Background(), "lecture.webm")
	require.NoError(t, err)
	assert.InDelta(t, 61.0, d, 1e-9)
}

func TestDurationMissing(t *testing.T) {
	exec := &fakeExecutor{stdout: `{"streams":[{"codec_type":"video"}],"format":{}}`}
	ff := NewFFmpeg(exec, "", "")

	_, err := ff.VideoDuration(context.Background(), "lecture.webm")
	require.Error(t, err)
}

func TestVideoDurationRequiresVideoStream(t *testing.T) {
	exec := &fakeExecutor{stdout: `{"streams":[{"codec_type":"audio","duration":"3600"}],"format":{"duration":"3600"}}`}
	ff := NewFFmpeg(exec, "", "")

	_, err := ff.VideoDuration(context.Background(), "voice-only.webm")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoVideoStream)
}

func TestProbeInvalidJSON(t *testing.T) {
	exec := &fakeExecutor{stdout: "not json"}
	ff := NewFFmpeg(exec, "", "")

	_, err := ff.Probe(context.Background(), "lecture.webm")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ffprobe parse")
}

func TestExtractFrameSeeksBeforeInput(t *testing.T) {
	exec := &fakeExecutor{}
	ff := NewFFmpeg(exec, "", "")

	require.NoError(t, ff.ExtractFrame(context.Background(), "v.webm", 60, "/tmp/f.png"))
	args := exec.calls[0].args
	ssIdx, inIdx := -1, -1
	for i, a := range args {
		switch a {
		case "-ss":
			ssIdx = i
		case "-i":
			inIdx = i
		}
	}
	require.NotEqual(t, -1, ssIdx)
	assert.Less(t, ssIdx, inIdx)
	assert.Equal(t, "60.000", args[ssIdx+1])
	assert.Contains(t, strings.Join(args, " "), "-frames:v 1")
}
