package handlers

import (
	"net/http"
	"strconv"

	"github.com/EchoAurora/xingcefupan/internal/config"
	"github.com/EchoAurora/xingcefupan/internal/observability"
	"github.com/EchoAurora/xingcefupan/internal/services"
	contextutils "github.com/EchoAurora/xingcefupan/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// AdminHandler handles admin-only user management endpoints.
type AdminHandler struct {
	userService services.UserServiceInterface
	config      *config.Config
	logger      *observability.Logger
}

// NewAdminHandler creates a new AdminHandler instance
func NewAdminHandler(userService services.UserServiceInterface, cfg *config.Config, logger *observability.Logger) *AdminHandler {
	return &AdminHandler{
		userService: userService,
		config:      cfg,
		logger:      logger,
	}
}

// GetAllUsers handles GET /v1/admin/users
func (h *AdminHandler) GetAllUsers(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "admin_get_all_users")
	defer observability.FinishSpan(span, nil)

	users, err := h.userService.GetAllUsers(c.Request.Context())
	if err != nil {
		HandleAppError(c, err)
		return
	}
	span.SetAttributes(attribute.Int("admin.user_count", len(users)))

	c.JSON(http.StatusOK, gin.H{
		"users": users,
		"count": len(users),
	})
}

// DeleteUser handles DELETE /v1/admin/users/:id
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "admin_delete_user")
	defer observability.FinishSpan(span, nil)

	targetID, err := strconv.Atoi(c.Param("id"))
	if err != nil || targetID <= 0 {
		HandleValidationError(c, "user id", c.Param("id"), "must be a positive integer")
		return
	}

	// Admins cannot delete themselves
	if selfID, ok := requireSessionUserID(c); ok && selfID == targetID {
		HandleAppError(c, contextutils.ErrForbidden)
		return
	}

	span.SetAttributes(attribute.Int("admin.target_user_id", targetID))

	if err := h.userService.DeleteUser(c.Request.Context(), targetID); err != nil {
		HandleAppError(c, err)
		return
	}

	h.logger.Warn(c.Request.Context(), "User deleted by admin", map[string]interface{}{"user_id": targetID})

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ClearDatabase handles POST /v1/admin/clear-database. Everything goes,
// including the admin account itself; the server recreates it on next start.
func (h *AdminHandler) ClearDatabase(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "admin_clear_database")
	defer observability.FinishSpan(span, nil)

	if err := h.userService.ResetDatabase(c.Request.Context()); err != nil {
		HandleAppError(c, err)
		return
	}

	h.logger.Warn(c.Request.Context(), "Database cleared by admin", nil)

	c.JSON(http.StatusOK, gin.H{"success": true})
}
