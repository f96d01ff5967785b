package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lecturely/backend/internal/auth"
	"github.com/lecturely/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
)

// TokenValidator validates bearer tokens. *auth.JWTService satisfies it.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// JWT returns a middleware that requires "Authorization: Bearer <token>".
func JWT(validator TokenValidator) gin.HandlerFunc {
	return authenticate(validator, false)
}

// JWTOrQuery is JWT that also accepts the token as a ?token= query parameter, for media
// elements and websockets that cannot set headers.
func JWTOrQuery(validator TokenValidator) gin.HandlerFunc {
	return authenticate(validator, true)
}

// UserID returns the authenticated user set by JWT.
func UserID(c *gin.Context) uuid.UUID {
	id, _ := c.Get(ContextUserID)
	userID, _ := id.(uuid.UUID)
	return userID
}

func authenticate(validator TokenValidator, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if header := c.GetHeader("Authorization"); header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				response.Unauthorized(c, "invalid authorization header")
				c.Abort()
				return
			}
			token = parts[1]
		} else if allowQuery {
			token = c.Query("token")
		}
		if token == "" {
			response.Unauthorized(c, "missing authorization token")
			c.Abort()
			return
		}

		claims, err := validator.Validate(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserEmail, claims.Email)
		c.Next()
	}
}
