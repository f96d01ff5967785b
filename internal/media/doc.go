// Package media wraps the ffmpeg and ffprobe binaries used by the pipeline:
// stream-copy remuxing, container probing and single-frame extraction.
//
// All commands go through pkg/executor so callers can substitute a fake in tests.
package media
