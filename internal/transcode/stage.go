// Package transcode remuxes uploaded video into a seekable container before playback.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ErrTranscode is returned when the remux fails. The original file is left untouched.
var ErrTranscode = errors.New("transcode failed")

// markerSuffix names the file written next to a remuxed video; its presence makes Run a no-op.
const markerSuffix = ".seekable"

// Remuxer stream-copies input into output.
type Remuxer interface {
	Remux(ctx context.Context, input, output string) error
}

// Stage replaces a video file with its seekable remux.
type Stage struct {
	remuxer Remuxer
	logger  *zap.Logger
}

// NewStage creates a transcode stage.
func NewStage(remuxer Remuxer, logger *zap.Logger) *Stage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stage{remuxer: remuxer, logger: logger}
}

// TempPath returns the scratch output used while remuxing path: <name>-seekable<ext>.
func TempPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-seekable" + ext
}

// Run remuxes path in place. The replace step (remove original, rename temp) only runs
// after the remux reports success.
func (s *Stage) Run(ctx context.Context, path string) error {
	if IsSeekable(path) {
		s.logger.Debug("video already seekable", zap.String("path", path))
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %v", ErrTranscode, err)
	}

	tmp := TempPath(path)
	if err := s.remuxer.Remux(ctx, path, tmp); err != nil {
		if rmErr := os.Remove(tmp); rmErr != nil && !os.IsNotExist(rmErr) {
			s.logger.Warn("remove partial remux failed", zap.String("path", tmp), zap.Error(rmErr))
		}
		return fmt.Errorf("%w: %v", ErrTranscode, err)
	}

	if err := os.Remove(path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: remove original: %v", ErrTranscode, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: rename remux: %v", ErrTranscode, err)
	}
	if err := os.WriteFile(path+markerSuffix, nil, 0o600); err != nil {
		s.logger.Warn("write seekable marker failed", zap.String("path", path), zap.Error(err))
	}

	s.logger.Info("video remuxed", zap.String("path", path))
	return nil
}

// IsSeekable reports whether path was already remuxed by this stage.
func IsSeekable(path string) bool {
	_, err := os.Stat(path + markerSuffix)
	return err == nil
}
