package media

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lecturely/backend/pkg/executor"
)

// ErrNoVideoStream is returned when a file probed as video has no video stream.
var ErrNoVideoStream = errors.New("no video stream")

// FFmpeg runs ffmpeg/ffprobe through an Executor.
type FFmpeg struct {
	exec        executor.Executor
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpeg creates the wrapper. Empty binary paths fall back to $PATH lookups.
func NewFFmpeg(exec executor.Executor, ffmpegPath, ffprobePath string) *FFmpeg {
	if strings.TrimSpace(ffmpegPath) == "" {
		ffmpegPath = "ffmpeg"
	}
	if strings.TrimSpace(ffprobePath) == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{exec: exec, ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// Remux copies every stream of input into output without re-encoding.
// The output container is chosen by ffmpeg from the output extension.
func (f *FFmpeg) Remux(ctx context.Context, input, output string) error {
	args := []string{
		"-v", "error",
		"-i", input,
		"-map", "0",
		"-c", "copy",
		"-y",
		output,
	}
	if _, err := f.exec.Execute(ctx, f.ffmpegPath, args...); err != nil {
		return fmt.Errorf("ffmpeg remux: %w", err)
	}
	return nil
}

// Probe returns parsed ffprobe metadata for path.
func (f *FFmpeg) Probe(ctx context.Context, path string) (ProbeResult, error) {
	if strings.TrimSpace(path) == "" {
		return ProbeResult{}, errors.New("ffprobe: empty path")
	}
	out, err := f.exec.Execute(ctx, f.ffprobePath,
		"-v", "error", "-hide_banner",
		"-show_format", "-show_streams",
		"-of", "json",
		"--", path,
	)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("ffprobe inspect: %w", err)
	}
	result, err := parseProbe(out)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// VideoDuration returns the duration in seconds of a file that carries a video stream.
// Files without one (an audio-only webm in the video slot) yield ErrNoVideoStream.
func (f *FFmpeg) VideoDuration(ctx context.Context, path string) (float64, error) {
	result, err := f.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	if !result.HasVideo() {
		return 0, fmt.Errorf("%w: %s", ErrNoVideoStream, path)
	}
	d := result.DurationSeconds()
	if d <= 0 {
		return 0, fmt.Errorf("ffprobe: no duration reported for %s", path)
	}
	return d, nil
}

// ExtractFrame writes exactly one still frame taken at the given offset (seconds) to output.
func (f *FFmpeg) ExtractFrame(ctx context.Context, input string, at float64, output string) error {
	args := []string{
		"-v", "error",
		"-ss", strconv.FormatFloat(at, 'f', 3, 64),
		"-i", input,
		"-frames:v", "1",
		"-y",
		output,
	}
	if _, err := f.exec.Execute(ctx, f.ffmpegPath, args...); err != nil {
		return fmt.Errorf("ffmpeg extract frame at %.0fs: %w", at, err)
	}
	return nil
}
