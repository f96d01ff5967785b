package pipeline

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lecturely/backend/internal/middleware"
	"github.com/lecturely/backend/pkg/queue"
	"github.com/lecturely/backend/pkg/response"
)

// Handler exposes the manual processing trigger.
type Handler struct {
	orchestrator *Orchestrator
	logger       *zap.Logger
}

// NewHandler creates a pipeline handler.
func NewHandler(orchestrator *Orchestrator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{orchestrator: orchestrator, logger: logger}
}

// Process handles POST /ai/process/:sessionId. It returns 202 once the session is
// processing; the outcome is observed through the session status.
func (h *Handler) Process(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}

	session, err := h.orchestrator.Start(c.Request.Context(), sessionID, middleware.UserID(c), queue.TriggerManual)
	if err != nil {
		RespondStartError(c, h.logger, sessionID, err)
		return
	}
	response.Accepted(c, gin.H{"session_id": session.ID, "status": session.Status})
}

// RespondStartError maps Start errors to HTTP responses.
func RespondStartError(c *gin.Context, logger *zap.Logger, sessionID uuid.UUID, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ErrNoMediaAvailable):
		response.Error(c, http.StatusBadRequest, "no_media", err.Error())
	case errors.Is(err, ErrAlreadyProcessing):
		response.Error(c, http.StatusConflict, "already_processing", err.Error())
	default:
		logger.Error("start pipeline failed", zap.String("session_id", sessionID.String()), zap.Error(err))
		response.Internal(c, "failed to start processing")
	}
}
