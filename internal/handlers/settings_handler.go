package handlers

import (
	"net/http"

	"github.com/EchoAurora/xingcefupan/internal/config"
	"github.com/EchoAurora/xingcefupan/internal/observability"
	"github.com/EchoAurora/xingcefupan/internal/services"
	contextutils "github.com/EchoAurora/xingcefupan/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// SettingsHandler handles profile and account settings endpoints.
type SettingsHandler struct {
	userService  services.UserServiceInterface
	emailService services.EmailServiceInterface
	config       *config.Config
	logger       *observability.Logger
}

// NewSettingsHandler creates a new SettingsHandler instance
func NewSettingsHandler(
	userService services.UserServiceInterface,
	emailService services.EmailServiceInterface,
	cfg *config.Config,
	logger *observability.Logger,
) *SettingsHandler {
	return &SettingsHandler{
		userService:  userService,
		emailService: emailService,
		config:       cfg,
		logger:       logger,
	}
}

type profileUpdateRequest struct {
	Email    string `json:"email"`
	Timezone string `json:"timezone"`
}

type passwordUpdateRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// UpdateProfile handles PUT /v1/profile
func (h *SettingsHandler) UpdateProfile(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "update_profile")
	defer observability.FinishSpan(span, nil)

	userID, ok := requireSessionUserID(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	var req profileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleAppError(c, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeInvalidInput,
			contextutils.SeverityWarn,
			"Invalid request body",
			"",
			err,
		))
		return
	}

	if req.Email != "" && !contextutils.IsValidEmail(req.Email) {
		HandleValidationError(c, "email", req.Email, "not a valid email address")
		return
	}

	span.SetAttributes(
		attribute.Int("user.id", userID),
		attribute.Bool("profile.email_provided", req.Email != ""),
		attribute.Bool("profile.timezone_provided", req.Timezone != ""),
	)

	if err := h.userService.UpdateUserProfile(c.Request.Context(), userID, req.Email, req.Timezone); err != nil {
		HandleAppError(c, err)
		return
	}

	user, err := h.userService.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    user,
	})
}

// UpdatePassword handles PUT /v1/profile/password. The current password must
// be re-verified before the change is accepted.
func (h *SettingsHandler) UpdatePassword(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "update_password")
	defer observability.FinishSpan(span, nil)

	userID, ok := requireSessionUserID(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	var req passwordUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleAppError(c, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeInvalidInput,
			contextutils.SeverityWarn,
			"Invalid request body",
			"",
			err,
		))
		return
	}

	if len(req.NewPassword) < 8 {
		HandleValidationError(c, "new_password", "", "must be at least 8 characters")
		return
	}

	user, err := h.userService.GetUserByID(c.Request.Context(), userID)
	if err != nil || user == nil {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	if _, err := h.userService.AuthenticateUser(c.Request.Context(), user.Username, req.CurrentPassword); err != nil {
		HandleAppError(c, contextutils.ErrInvalidCredentials)
		return
	}

	span.SetAttributes(attribute.Int("user.id", userID))

	if err := h.userService.UpdateUserPassword(c.Request.Context(), userID, req.NewPassword); err != nil {
		HandleAppError(c, err)
		return
	}

	h.logger.Info(c.Request.Context(), "Password updated", map[string]interface{}{"user_id": userID})

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SendTestEmail handles POST /v1/settings/test-email
func (h *SettingsHandler) SendTestEmail(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "send_test_email")
	defer observability.FinishSpan(span, nil)

	userID, ok := requireSessionUserID(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}
	span.SetAttributes(attribute.Int("user.id", userID))

	if !h.emailService.IsEnabled() {
		HandleAppError(c, contextutils.ErrServiceUnavailable)
		return
	}

	user, err := h.userService.GetUserByID(c.Request.Context(), userID)
	if err != nil || user == nil {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	if !user.Email.Valid || user.Email.String == "" {
		HandleValidationError(c, "email", "", "no email address on profile")
		return
	}

	if err := h.emailService.SendEmail(c.Request.Context(), user.Email.String, "测试邮件", "test_email", map[string]interface{}{
		"Username": user.Username,
	}); err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
