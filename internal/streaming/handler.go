package streaming

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lecturely/backend/internal/middleware"
	"github.com/lecturely/backend/internal/models"
	"github.com/lecturely/backend/pkg/response"
)

// SessionLookup loads a session; (nil, nil) means it does not exist.
type SessionLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// Handler serves GET/HEAD /stream/:sessionId/:fileType.
type Handler struct {
	sessions SessionLookup
	streamer *Streamer
	logger   *zap.Logger
}

// NewHandler creates a streaming handler.
func NewHandler(sessions SessionLookup, streamer *Streamer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{sessions: sessions, streamer: streamer, logger: logger}
}

// Stream resolves the session's stored file and streams it with range support. Playback
// does not depend on pipeline status.
func (h *Handler) Stream(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	fileType := c.Param("fileType")
	if fileType != models.FileTypeAudio && fileType != models.FileTypeVideo {
		response.BadRequest(c, "file type must be audio or video")
		return
	}

	session, err := h.sessions.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("load session for stream failed", zap.Error(err), zap.String("session_id", sessionID.String()))
		response.Internal(c, "failed to load session")
		return
	}
	if session == nil || session.UserID != middleware.UserID(c) {
		response.NotFound(c, "session not found")
		return
	}
	file := session.Files.Get(fileType)
	if file == nil || file.Path == "" {
		response.NotFound(c, "file not found")
		return
	}

	h.streamer.Serve(c.Writer, c.Request, file.Path, ContentType(file.MimeType, file.Path))
}
