package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lecturely/backend/internal/auth"
)

func init() { gin.SetMode(gin.TestMode) }

func newRouter(mw gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw)
	r.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c).String())
	})
	return r
}

func TestJWTHeader(t *testing.T) {
	svc := auth.NewJWTService("secret", 1)
	userID := uuid.New()
	token, err := svc.Issue(userID, "")
	require.NoError(t, err)

	r := newRouter(JWT(svc))
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID.String(), w.Body.String())
}

func TestJWTRejectsQueryToken(t *testing.T) {
	svc := auth.NewJWTService("secret", 1)
	token, err := svc.Issue(uuid.New(), "")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	newRouter(JWT(svc)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me?token="+token, nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTOrQueryAcceptsQueryToken(t *testing.T) {
	svc := auth.NewJWTService("secret", 1)
	userID := uuid.New()
	token, err := svc.Issue(userID, "")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	newRouter(JWTOrQuery(svc)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me?token="+token, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID.String(), w.Body.String())
}

func TestJWTMalformedHeader(t *testing.T) {
	svc := auth.NewJWTService("secret", 1)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Token abc")
	w := httptest.NewRecorder()
	newRouter(JWTOrQuery(svc)).ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCORSPreflightAllowsRange(t *testing.T) {
	r := newRouter(CORS("http://localhost:3000"))
	req := httptest.NewRequest(http.MethodOptions, "/me", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Range")
}

func TestLoggerSetsRequestID(t *testing.T) {
	r := newRouter(Logger(zap.NewNop()))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	_, err := uuid.Parse(w.Header().Get(HeaderRequestID))
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(HeaderRequestID, "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get(HeaderRequestID))
}
