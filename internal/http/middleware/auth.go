// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the caller identity. RequireAuth validates the
// Authorization bearer token through a pluggable verifier and stores the
// resulting user id (and username) in the Gin context, where handlers,
// the access logger, and the rate limiter pick it up. The HTTP layer only
// ever sees a stable user identifier; token mechanics live in the auth
// package.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// userIDKey is the Gin context key holding the authenticated user id.
	userIDKey = "userID"
	// usernameKey is the Gin context key holding the authenticated username.
	usernameKey = "username"
)

// TokenVerifier validates a bearer token and returns the subject identity.
type TokenVerifier func(token string) (userID, username string, err error)

// RequireAuth returns a middleware that rejects requests without a valid
// bearer token. On success the identity is stored in the context and the
// request proceeds.
func RequireAuth(verify TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			unauthorized(c, "missing bearer token")
			return
		}
		userID, username, err := verify(token)
		if err != nil {
			unauthorized(c, "invalid or expired token")
			return
		}
		c.Set(userIDKey, userID)
		c.Set(usernameKey, username)
		c.Next()
	}
}

// UserID returns the authenticated user id stored by RequireAuth.
func UserID(c *gin.Context) string {
	v, _ := c.Get(userIDKey)
	s, _ := v.(string)
	return s
}

// bearerToken extracts the credential from an "Authorization: Bearer x"
// header value; the scheme comparison is case-insensitive.
func bearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       "unauthorized",
		"message":    msg,
	})
}
