package sessions

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lecturely/backend/internal/media"
	"github.com/lecturely/backend/internal/middleware"
	"github.com/lecturely/backend/internal/models"
	"github.com/lecturely/backend/internal/pipeline"
	"github.com/lecturely/backend/pkg/queue"
	"github.com/lecturely/backend/pkg/response"
)

// UploadConfig controls where and how much is stored.
type UploadConfig struct {
	Dir      string
	MaxBytes int64
	// ReadTimeout bounds reading one upload body. Zero leaves it to the server.
	ReadTimeout time.Duration
}

// respondFormError maps a failed multipart read. A body that stopped arriving before
// the closing boundary answers 408.
func (h *Handler) respondFormError(c *gin.Context, fileType, sessionID string, err error) {
	var tooLarge *http.MaxBytesError
	var netErr net.Error
	switch {
	case errors.As(err, &tooLarge):
		response.TooLarge(c, "file too large")
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, os.ErrDeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		h.logger.Warn("upload body read failed", zap.Error(err), zap.String("session_id", sessionID))
		response.Error(c, http.StatusRequestTimeout, "upload_incomplete", "upload body was not fully received")
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		response.BadRequest(c, fmt.Sprintf("no %s file provided", fileType))
	default:
		h.logger.Warn("upload form rejected", zap.Error(err), zap.String("session_id", sessionID))
		response.BadRequest(c, fmt.Sprintf("malformed %s upload", fileType))
	}
}

// Upload handles POST /upload/:sessionId/:fileType. The multipart field is named after
// the file type ("audio" or "video"). Each slot is written once; the pipeline is then
// started and the request returns without waiting for it.
func (h *Handler) Upload(c *gin.Context) {
	sessionID, ok := parseID(c, "sessionId")
	if !ok {
		return
	}
	fileType := c.Param("fileType")
	if fileType != models.FileTypeAudio && fileType != models.FileTypeVideo {
		response.BadRequest(c, "file type must be audio or video")
		return
	}
	if h.uploads.ReadTimeout > 0 {
		rc := http.NewResponseController(c.Writer)
		if err := rc.SetReadDeadline(time.Now().Add(h.uploads.ReadTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
			h.logger.Warn("set upload read deadline failed", zap.Error(err))
		}
	}
	if h.uploads.MaxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.uploads.MaxBytes)
	}

	header, err := c.FormFile(fileType)
	if err != nil {
		h.respondFormError(c, fileType, sessionID.String(), err)
		return
	}
	if !acceptedFile(fileType, header.Filename) {
		response.BadRequest(c, fmt.Sprintf("unsupported %s format", fileType))
		return
	}

	userID := middleware.UserID(c)
	existing, err := h.store.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("load session failed", zap.Error(err), zap.String("session_id", sessionID.String()))
		response.Internal(c, "failed to load session")
		return
	}
	if existing == nil || existing.UserID != userID {
		response.NotFound(c, "session not found")
		return
	}
	if existing.Files.Get(fileType) != nil {
		response.Conflict(c, fmt.Sprintf("%s already uploaded", fileType))
		return
	}

	dir := filepath.Join(h.uploads.Dir, userID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		h.logger.Error("create upload dir failed", zap.Error(err), zap.String("dir", dir))
		response.Internal(c, "failed to store file")
		return
	}
	path := filepath.Join(dir, storedName(fileType, header.Filename, time.Now()))
	if err := c.SaveUploadedFile(header, path); err != nil {
		h.logger.Error("save upload failed", zap.Error(err), zap.String("path", path))
		_ = os.Remove(path)
		response.Internal(c, "failed to store file")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = media.TypeByExtension(header.Filename)
	}
	file := models.MediaFile{
		Filename: filepath.Base(path),
		Path:     filepath.ToSlash(path),
		Size:     header.Size,
		MimeType: mimeType,
	}

	if err := h.store.AttachFile(c.Request.Context(), sessionID, userID, fileType, file); err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			h.logger.Warn("remove orphaned upload failed", zap.Error(rmErr), zap.String("path", path))
		}
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(c, "session not found")
		case errors.Is(err, ErrFileExists):
			response.Conflict(c, fmt.Sprintf("%s already uploaded", fileType))
		default:
			h.logger.Error("attach file failed", zap.Error(err), zap.String("session_id", sessionID.String()))
			response.Internal(c, "failed to save file")
		}
		return
	}
	h.logger.Info("media uploaded",
		zap.String("session_id", sessionID.String()),
		zap.String("file_type", fileType),
		zap.Int64("size", file.Size),
	)

	session, err := h.starter.Start(c.Request.Context(), sessionID, userID, queue.TriggerUpload)
	if err != nil {
		if errors.Is(err, pipeline.ErrAlreadyProcessing) {
			// A run on the other file is in flight; the upload itself succeeded.
			response.OK(c, gin.H{"file": file, "status": models.SessionStatusProcessing, "processing_started": false})
			return
		}
		pipeline.RespondStartError(c, h.logger, sessionID, err)
		return
	}
	response.Accepted(c, gin.H{"file": file, "status": session.Status, "processing_started": true})
}

func acceptedFile(fileType, name string) bool {
	if fileType == models.FileTypeVideo {
		return media.IsVideoFile(name)
	}
	return media.IsAudioFile(name)
}

// storedName is <fileType>-<unix millis>-<random><ext>.
func storedName(fileType, original string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(original))
	return fmt.Sprintf("%s-%d-%d%s", fileType, now.UnixMilli(), rand.Int63n(1e9), ext)
}
