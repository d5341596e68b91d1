// Package middleware provides authentication, validation and recovery
// middleware for the Gin web framework.
package middleware

import (
	"context"
	"net/http"

	contextutils "github.com/EchoAurora/xingcefupan/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Session keys for storing user information
const (
	// UserIDKey is the key used to store user ID in session
	UserIDKey = "user_id"
	// UsernameKey is the key used to store username in session
	UsernameKey = "username"
)

// AdminChecker reports whether a user has admin rights. *services.UserService
// satisfies it.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID int) (bool, error)
}

func unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"error": "Authentication required",
		"code":  "UNAUTHORIZED",
	})
	c.Abort()
}

// sessionUser extracts and validates the authenticated user from the
// session. Session values survive serialization as float64, so both integer
// shapes are accepted.
func sessionUser(c *gin.Context) (int, string, bool) {
	session := sessions.Default(c)

	rawID := session.Get(UserIDKey)
	if rawID == nil {
		return 0, "", false
	}
	userID, ok := rawID.(int)
	if !ok {
		idFloat, okFloat := rawID.(float64)
		if !okFloat {
			return 0, "", false
		}
		userID = int(idFloat)
	}

	rawName := session.Get(UsernameKey)
	if rawName == nil {
		return 0, "", false
	}
	username, ok := rawName.(string)
	if !ok || username == "" {
		return 0, "", false
	}

	return userID, username, true
}

// RequireAuth returns a middleware that requires authentication
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, username, ok := sessionUser(c)
		if !ok {
			unauthorized(c)
			return
		}

		// Store user info in context for handlers to use
		c.Set(UserIDKey, userID)
		c.Set(UsernameKey, username)

		// Propagate the user ID on the request context so service-layer
		// logs and spans can attribute the work.
		c.Request = c.Request.WithContext(contextutils.WithUserID(c.Request.Context(), userID))

		c.Next()
	}
}

// RequireAdmin returns a middleware that requires authentication and the
// admin flag on the user row.
func RequireAdmin(userService AdminChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, username, ok := sessionUser(c)
		if !ok {
			unauthorized(c)
			return
		}

		isAdmin, err := userService.IsAdmin(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to check admin status",
				"code":  "INTERNAL_ERROR",
			})
			c.Abort()
			return
		}
		if !isAdmin {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Admin access required",
				"code":  "FORBIDDEN",
			})
			c.Abort()
			return
		}

		c.Set(UserIDKey, userID)
		c.Set(UsernameKey, username)

		c.Next()
	}
}
