package handlers

import (
	"github.com/EchoAurora/xingcefupan/internal/middleware"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// GetUserIDFromSession retrieves the current user ID from the session.
// Returns (0, false) if not authenticated or if the stored value is invalid.
func GetUserIDFromSession(c *gin.Context) (int, bool) {
	session := sessions.Default(c)
	userID := session.Get(middleware.UserIDKey)
	if userID == nil {
		return 0, false
	}
	id, ok := userID.(int)
	if !ok {
		return 0, false
	}
	return id, true
}

// requireSessionUserID is the handler-side companion to the auth middleware:
// it prefers the value the middleware put into the gin context and falls back
// to the session store directly.
func requireSessionUserID(c *gin.Context) (int, bool) {
	if id, exists := c.Get(middleware.UserIDKey); exists {
		if userID, ok := id.(int); ok {
			return userID, true
		}
	}
	return GetUserIDFromSession(c)
}
