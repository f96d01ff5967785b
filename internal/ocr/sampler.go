package ocr

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
)

// FrameSource probes video duration and extracts still frames. media.FFmpeg satisfies it.
// VideoDuration fails for files without a video stream.
type FrameSource interface {
	VideoDuration(ctx context.Context, path string) (float64, error)
	ExtractFrame(ctx context.Context, input string, at float64, output string) error
}

// Timestamps returns the sample offsets 0, interval, 2*interval, ... for
// floor(duration/interval) samples.
func Timestamps(duration, interval float64) []float64 {
	if duration <= 0 || interval <= 0 {
		return nil
	}
	count := int(math.Floor(duration / interval))
	out := make([]float64, count)
	for i := range out {
		out[i] = float64(i) * interval
	}
	return out
}

// Sampler extracts frames from a video at a fixed interval.
type Sampler struct {
	source   FrameSource
	interval float64
}

// NewSampler creates a sampler. interval is in seconds.
func NewSampler(source FrameSource, interval float64) *Sampler {
	return &Sampler{source: source, interval: interval}
}

// Plan probes the video and returns the offsets to sample.
func (s *Sampler) Plan(ctx context.Context, videoPath string) ([]float64, error) {
	duration, err := s.source.VideoDuration(ctx, videoPath)
	if err != nil {
		return nil, err
	}
	return Timestamps(duration, s.interval), nil
}

// Extract writes the frame at offset into dir and returns its path.
func (s *Sampler) Extract(ctx context.Context, videoPath string, index int, at float64, dir string) (string, error) {
	out := filepath.Join(dir, fmt.Sprintf("frame_%05d.png", index))
	if err := s.source.ExtractFrame(ctx, videoPath, at, out); err != nil {
		return "", err
	}
	return out, nil
}
