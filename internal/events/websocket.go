package events

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lecturely/backend/internal/auth"
	"github.com/lecturely/backend/internal/models"
	"github.com/lecturely/backend/pkg/response"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 50 * time.Second
)

// EventSnapshot is the first message on a feed: the session's current status.
const EventSnapshot = "session.snapshot"

// Subscriber streams a session's events.
type Subscriber interface {
	Subscribe(ctx context.Context, sessionID uuid.UUID) (<-chan Event, error)
}

// SessionLookup loads a session; (nil, nil) means it does not exist.
type SessionLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// TokenValidator validates the ?token= query parameter.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// Feed serves GET /ws?session_id=&token=, a read-only websocket of one session's events.
type Feed struct {
	sessions   SessionLookup
	subscriber Subscriber
	tokens     TokenValidator
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

// NewFeed creates a websocket feed. checkOrigin may be nil to allow every origin.
func NewFeed(sessions SessionLookup, subscriber Subscriber, tokens TokenValidator, checkOrigin func(*http.Request) bool, logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Feed{
		sessions:   sessions,
		subscriber: subscriber,
		tokens:     tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: logger,
	}
}

// Serve authenticates, checks ownership, then upgrades and forwards events.
func (f *Feed) Serve(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Query("session_id"))
	if err != nil {
		response.BadRequest(c, "session_id required")
		return
	}
	claims, err := f.tokens.Validate(c.Query("token"))
	if err != nil {
		response.Unauthorized(c, "invalid token")
		return
	}
	session, err := f.sessions.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		f.logger.Error("load session for feed failed", zap.String("session_id", sessionID.String()), zap.Error(err))
		response.Internal(c, "failed to load session")
		return
	}
	if session == nil || session.UserID != claims.UserID {
		response.NotFound(c, "session not found")
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()
	events, err := f.subscriber.Subscribe(ctx, sessionID)
	if err != nil {
		f.logger.Error("subscribe session events failed", zap.String("session_id", sessionID.String()), zap.Error(err))
		response.ServiceUnavailable(c, "event feed unavailable")
		return
	}

	conn, err := f.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		f.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	snapshot, _ := NewEvent(EventSnapshot, map[string]string{"status": session.Status}, time.Now())
	go f.readPump(conn, cancel)
	f.writePump(ctx, conn, snapshot, events)
}

// readPump discards client messages and keeps the read deadline fresh; any read error
// (including a close frame) ends the feed.
func (f *Feed) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (f *Feed) writePump(ctx context.Context, conn *websocket.Conn, first Event, events <-chan Event) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	write := func(ev Event) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(ev) == nil
	}
	if !write(first) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case ev, ok := <-events:
			if !ok || !write(ev) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
