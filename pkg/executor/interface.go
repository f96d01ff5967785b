package executor

import "context"

// Executor runs external binaries (ffmpeg, ffprobe, tesseract) and returns their stdout.
type Executor interface {
	Execute(ctx context.Context, name string, args ...string) (string, error)
}
