package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lecturely/backend/internal/auth"
	"github.com/lecturely/backend/internal/models"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeLookup map[uuid.UUID]*models.Session

func (f fakeLookup) GetByID(_ context.Context, id uuid.UUID) (*models.Session, error) {
	return f[id], nil
}

type fakeSubscriber struct {
	ch chan Event
}

func (f *fakeSubscriber) Subscribe(context.Context, uuid.UUID) (<-chan Event, error) {
	return f.ch, nil
}

func TestChannel(t *testing.T) {
	id := uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")
	assert.Equal(t, "session:7c9e6679-7425-40de-944b-e07fc1f90ae7", Channel(id))
}

func TestNewEvent(t *testing.T) {
	at := time.Unix(1700000000, 0)
	ev, err := NewEvent("session.status", map[string]string{"status": "completed"}, at)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), ev.At)
	assert.JSONEq(t, `{"status":"completed"}`, string(ev.Data))

	_, err = NewEvent("bad", make(chan int), at)
	assert.Error(t, err)
}

func newFeedServer(t *testing.T, sessions fakeLookup, sub Subscriber, jwt *auth.JWTService) *httptest.Server {
	t.Helper()
	r := gin.New()
	r.GET("/ws", NewFeed(sessions, sub, jwt, nil, nil).Serve)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestFeedForwardsEvents(t *testing.T) {
	jwt := auth.NewJWTService("secret", 1)
	owner := uuid.New()
	sess := &models.Session{ID: uuid.New(), UserID: owner, Status: models.SessionStatusProcessing}
	sub := &fakeSubscriber{ch: make(chan Event, 1)}
	srv := newFeedServer(t, fakeLookup{sess.ID: sess}, sub, jwt)

	token, err := jwt.Issue(owner, "")
	require.NoError(t, err)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?session_id=" + sess.ID.String() + "&token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first Event
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, EventSnapshot, first.Event)
	assert.JSONEq(t, `{"status":"processing"}`, string(first.Data))

	ev, err := NewEvent("session.status", map[string]string{"status": "completed"}, time.Now())
	require.NoError(t, err)
	sub.ch <- ev

	var got Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "session.status", got.Event)
	var data map[string]string
	require.NoError(t, json.Unmarshal(got.Data, &data))
	assert.Equal(t, "completed", data["status"])
}

func TestFeedRejectsOtherUsers(t *testing.T) {
	jwt := auth.NewJWTService("secret", 1)
	sess := &models.Session{ID: uuid.New(), UserID: uuid.New()}
	srv := newFeedServer(t, fakeLookup{sess.ID: sess}, &fakeSubscriber{ch: make(chan Event)}, jwt)

	token, err := jwt.Issue(uuid.New(), "")
	require.NoError(t, err)
	resp, err := http.Get(srv.URL + "/ws?session_id=" + sess.ID.String() + "&token=" + token)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/ws?session_id=" + sess.ID.String() + "&token=garbage")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
