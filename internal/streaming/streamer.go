// Package streaming serves stored media files with HTTP byte-range support so players
// can seek.
package streaming

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/lecturely/backend/internal/media"
)

// DefaultContentType is used when neither the stored mimetype nor the extension is known.
const DefaultContentType = "video/webm"

// ErrInvalidRange means the Range header is malformed or cannot be satisfied.
var ErrInvalidRange = errors.New("invalid range")

// ByteRange is an inclusive byte interval.
type ByteRange struct {
	Start int64
	End   int64
}

// Length is the number of bytes in the range.
func (r ByteRange) Length() int64 { return r.End - r.Start + 1 }

// ParseRange parses a single "bytes=start-[end]" range against a file of size bytes.
// A missing end, or one past the last byte, is clamped to size-1.
func ParseRange(header string, size int64) (ByteRange, error) {
	rng, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !ok || strings.Contains(rng, ",") {
		return ByteRange{}, ErrInvalidRange
	}
	startStr, endStr, ok := strings.Cut(rng, "-")
	if !ok {
		return ByteRange{}, ErrInvalidRange
	}
	startStr, endStr = strings.TrimSpace(startStr), strings.TrimSpace(endStr)

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 || start >= size {
		return ByteRange{}, ErrInvalidRange
	}

	end := size - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < start {
			return ByteRange{}, ErrInvalidRange
		}
		if end > size-1 {
			end = size - 1
		}
	}
	return ByteRange{Start: start, End: end}, nil
}

// ContentType picks the response type: the stored mimetype, then the extension, then
// DefaultContentType.
func ContentType(stored, path string) string {
	if stored = strings.TrimSpace(stored); stored != "" {
		return stored
	}
	if byExt := media.TypeByExtension(path); byExt != "" {
		return byExt
	}
	return DefaultContentType
}

// Streamer writes media files to HTTP responses.
type Streamer struct {
	logger *zap.Logger
}

// NewStreamer creates a Streamer.
func NewStreamer(logger *zap.Logger) *Streamer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Streamer{logger: logger}
}

// Serve writes path to w honouring r's Range header. Status and headers are decided
// before any body byte is written.
func (s *Streamer) Serve(w http.ResponseWriter, r *http.Request, path, contentType string) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.Error(w, "file not found", http.StatusNotFound)
			return
		}
		s.logger.Error("open media file failed", zap.String("path", path), zap.Error(err))
		http.Error(w, "failed to open file", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		s.logger.Error("stat media file failed", zap.String("path", path), zap.Error(err))
		http.Error(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	size := info.Size()

	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Accept-Ranges", "bytes")

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		h.Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			s.copy(w, f, size, path)
		}
		return
	}

	br, err := ParseRange(rangeHeader, size)
	if err != nil {
		h.Del("Content-Type")
		h.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", br.Start, br.End, size))
	h.Set("Content-Length", strconv.FormatInt(br.Length(), 10))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method != http.MethodHead {
		s.copy(w, io.NewSectionReader(f, br.Start, br.Length()), br.Length(), path)
	}
}

func (s *Streamer) copy(w io.Writer, r io.Reader, want int64, path string) {
	n, err := io.Copy(w, r)
	if err != nil {
		// Headers are gone; the client sees a short body.
		s.logger.Debug("media stream interrupted",
			zap.String("path", path),
			zap.Int64("written", n),
			zap.Int64("expected", want),
			zap.Error(err),
		)
	}
}
