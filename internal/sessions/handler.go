// Package sessions exposes class sessions over HTTP: creation, listing, detail with view
// analytics, Q&A history, media upload and archived-media downloads.
package sessions

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lecturely/backend/internal/middleware"
	"github.com/lecturely/backend/internal/models"
	"github.com/lecturely/backend/pkg/queue"
	"github.com/lecturely/backend/pkg/response"
	"github.com/lecturely/backend/pkg/storage"
)

const (
	maxNameLength = 200
	defaultLimit  = 10
	maxLimit      = 100
)

// Store is the persistence the handlers use. *Repository satisfies it.
type Store interface {
	Create(ctx context.Context, userID uuid.UUID, name string, duration int) (*models.Session, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	ListByUser(ctx context.Context, userID uuid.UUID, f ListFilter) ([]models.Session, int, error)
	RecordView(ctx context.Context, id, userID uuid.UUID) (*models.Session, error)
	AttachFile(ctx context.Context, id, userID uuid.UUID, fileType string, file models.MediaFile) error
	AddQA(ctx context.Context, id, userID uuid.UUID, qa models.QAQuery) error
	ListQA(ctx context.Context, id uuid.UUID) ([]models.QAQuery, error)
}

// Starter starts the processing pipeline. *pipeline.Orchestrator satisfies it.
type Starter interface {
	Start(ctx context.Context, sessionID, userID uuid.UUID, trigger queue.Trigger) (*models.Session, error)
}

// Presigner issues download URLs for archived media. *storage.S3 satisfies it.
type Presigner interface {
	PresignedDownloadURL(ctx context.Context, key string) (string, time.Duration, error)
}

// Handler handles session HTTP endpoints.
type Handler struct {
	store     Store
	starter   Starter
	presigner Presigner // optional; nil disables download URLs
	uploads   UploadConfig
	logger    *zap.Logger
}

// NewHandler creates a sessions handler.
func NewHandler(store Store, starter Starter, uploads UploadConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, starter: starter, uploads: uploads, logger: logger}
}

// SetPresigner enables GET /sessions/:id/files/:fileType/download-url.
func (h *Handler) SetPresigner(p Presigner) { h.presigner = p }

type createRequest struct {
	Name     string `json:"name" binding:"required"`
	Duration int    `json:"duration"`
}

// Create handles POST /sessions.
func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "name is required")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || len([]rune(req.Name)) > maxNameLength {
		response.BadRequest(c, "name must be 1-200 characters")
		return
	}
	if req.Duration < 0 {
		response.BadRequest(c, "duration must not be negative")
		return
	}

	userID := middleware.UserID(c)
	s, err := h.store.Create(c.Request.Context(), userID, req.Name, req.Duration)
	if err != nil {
		h.logger.Error("create session failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to create session")
		return
	}
	response.Created(c, s)
}

// List handles GET /sessions?page=&limit=&status=&search=.
func (h *Handler) List(c *gin.Context) {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", defaultLimit)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxLimit {
		limit = defaultLimit
	}
	status := c.Query("status")
	switch status {
	case "", models.SessionStatusRecording, models.SessionStatusProcessing, models.SessionStatusCompleted, models.SessionStatusFailed:
	default:
		response.BadRequest(c, "invalid status")
		return
	}

	userID := middleware.UserID(c)
	list, total, err := h.store.ListByUser(c.Request.Context(), userID, ListFilter{
		Status: status,
		Search: strings.TrimSpace(c.Query("search")),
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		h.logger.Error("list sessions failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to list sessions")
		return
	}
	response.OK(c, gin.H{
		"sessions": list,
		"pagination": gin.H{
			"current": page,
			"pages":   int(math.Ceil(float64(total) / float64(limit))),
			"total":   total,
		},
	})
}

// Get handles GET /sessions/:id and counts the view.
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	s, err := h.store.RecordView(c.Request.Context(), id, middleware.UserID(c))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "session not found")
			return
		}
		h.logger.Error("get session failed", zap.Error(err), zap.String("session_id", id.String()))
		response.Internal(c, "failed to load session")
		return
	}
	qa, err := h.store.ListQA(c.Request.Context(), id)
	if err != nil {
		h.logger.Warn("list session q&a failed", zap.Error(err), zap.String("session_id", id.String()))
	}
	s.Analytics.QAQueries = qa
	response.OK(c, s)
}

type qaRequest struct {
	Query    string `json:"query" binding:"required"`
	Response string `json:"response" binding:"required"`
}

// AddQA handles POST /sessions/:id/qa.
func (h *Handler) AddQA(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req qaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "query and response are required")
		return
	}
	qa := models.QAQuery{Query: req.Query, Response: req.Response, Timestamp: time.Now()}
	if err := h.store.AddQA(c.Request.Context(), id, middleware.UserID(c), qa); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "session not found")
			return
		}
		h.logger.Error("save q&a failed", zap.Error(err), zap.String("session_id", id.String()))
		response.Internal(c, "failed to save q&a")
		return
	}
	response.Created(c, qa)
}

// DownloadURL handles GET /sessions/:id/files/:fileType/download-url.
func (h *Handler) DownloadURL(c *gin.Context) {
	if h.presigner == nil {
		response.ServiceUnavailable(c, "archive storage not configured")
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	fileType := c.Param("fileType")
	s, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("load session failed", zap.Error(err), zap.String("session_id", id.String()))
		response.Internal(c, "failed to load session")
		return
	}
	if s == nil || s.UserID != middleware.UserID(c) {
		response.NotFound(c, "session not found")
		return
	}
	file := s.Files.Get(fileType)
	if file == nil {
		response.NotFound(c, "file not found")
		return
	}

	key := storage.SessionMediaKey(s.ID, fileType, file.Path)
	url, expires, err := h.presigner.PresignedDownloadURL(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotArchived) {
			response.NotFound(c, "file not archived yet")
			return
		}
		h.logger.Error("presign download failed", zap.Error(err), zap.String("session_id", id.String()))
		response.Internal(c, "failed to generate download URL")
		return
	}
	response.OK(c, gin.H{"download_url": url, "expires_in": int(expires.Seconds())})
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
