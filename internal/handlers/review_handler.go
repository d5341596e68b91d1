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

// ReviewHandler handles wrong-answer review notes and their windowed analytics.
type ReviewHandler struct {
	reviewService      services.ReviewServiceInterface
	strategyService    services.StrategyServiceInterface
	userService        services.UserServiceInterface
	examService        services.ExamServiceInterface
	diagnosticsService services.DiagnosticsServiceInterface
	config             *config.Config
	logger             *observability.Logger
}

// NewReviewHandler creates a new ReviewHandler instance
func NewReviewHandler(
	reviewService services.ReviewServiceInterface,
	strategyService services.StrategyServiceInterface,
	userService services.UserServiceInterface,
	examService services.ExamServiceInterface,
	diagnosticsService services.DiagnosticsServiceInterface,
	cfg *config.Config,
	logger *observability.Logger,
) *ReviewHandler {
	return &ReviewHandler{
		reviewService:      reviewService,
		strategyService:    strategyService,
		userService:        userService,
		examService:        examService,
		diagnosticsService: diagnosticsService,
		config:             cfg,
		logger:             logger,
	}
}

// CreateReviewNote handles POST /v1/reviews
func (h *ReviewHandler) CreateReviewNote(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "create_review_note")
	defer observability.FinishSpan(span, nil)

	userID, ok := requireSessionUserID(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	var submission services.ReviewNoteSubmission
	if err := c.ShouldBindJSON(&submission); err != nil {
		HandleAppError(c, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeInvalidInput,
			contextutils.SeverityWarn,
			"Invalid request body",
			"",
			err,
		))
		return
	}

	span.SetAttributes(
		attribute.Int("user.id", userID),
		attribute.String("review.section", submission.SectionName),
	)

	note, err := h.reviewService.CreateReviewNote(c.Request.Context(), userID, &submission)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	h.logger.Info(c.Request.Context(), "Review note created", map[string]interface{}{
		"user_id": userID,
		"note_id": note.ID,
		"section": note.SectionName,
	})

	c.JSON(http.StatusCreated, note)
}

// ListReviewNotes handles GET /v1/reviews. Optional query parameters `paper`,
// `section` and `q` (free-text keyword) narrow the listing.
func (h *ReviewHandler) ListReviewNotes(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "list_review_notes")
	defer observability.FinishSpan(span, nil)

	userID, ok := requireSessionUserID(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	filter := services.ReviewNoteFilter{
		PaperName:   c.Query("paper"),
		SectionName: c.Query("section"),
		Keyword:     c.Query("q"),
	}
	span.SetAttributes(
		attribute.Int("user.id", userID),
		attribute.String("review.filter_paper", filter.PaperName),
		attribute.String("review.filter_section", filter.SectionName),
	)

	notes, err := h.reviewService.ListReviewNotes(c.Request.Context(), userID, filter)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notes": notes,
		"count": len(notes),
	})
}

// DeleteReviewNote handles DELETE /v1/reviews/:id
func (h *ReviewHandler) DeleteReviewNote(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "delete_review_note")
	defer observability.FinishSpan(span, nil)

	userID, ok := requireSessionUserID(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	noteID, err := strconv.Atoi(c.Param("id"))
	if err != nil || noteID <= 0 {
		HandleValidationError(c, "note id", c.Param("id"), "must be a positive integer")
		return
	}
	span.SetAttributes(attribute.Int("user.id", userID), attribute.Int("review.note_id", noteID))

	if err := h.reviewService.DeleteReviewNote(c.Request.Context(), userID, noteID); err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetReviewSuggestions handles GET /v1/reviews/suggestions. Returns the
// sections from the latest exam record most worth a review note. With no
// exam history the pick list is empty rather than an error.
func (h *ReviewHandler) GetReviewSuggestions(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "get_review_suggestions")
	defer observability.FinishSpan(span, nil)

	userID, ok := requireSessionUserID(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}
	span.SetAttributes(attribute.Int("user.id", userID))

	record, err := h.examService.GetLatestExamRecord(c.Request.Context(), userID)
	if err != nil {
		if contextutils.IsError(err, contextutils.ErrNoExamHistory) {
			c.JSON(http.StatusOK, gin.H{"has_data": false, "sections": []string{}})
			return
		}
		HandleAppError(c, err)
		return
	}

	sections := h.diagnosticsService.SuggestReviewSections(record)
	c.JSON(http.StatusOK, gin.H{
		"has_data":  true,
		"record_id": record.ID,
		"sections":  sections,
	})
}

// GetReviewAnalytics handles GET /v1/reviews/analytics. The window defaults
// to the user's strategy setting; a `window_days` query parameter overrides it.
func (h *ReviewHandler) GetReviewAnalytics(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "get_review_analytics")
	defer observability.FinishSpan(span, nil)

	userID, ok := requireSessionUserID(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	windowDays := 0
	if raw := c.Query("window_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			HandleValidationError(c, "window_days", raw, "must be a positive integer")
			return
		}
		windowDays = parsed
	} else {
		strategy, err := h.strategyService.GetStrategy(c.Request.Context(), userID)
		if err != nil {
			HandleAppError(c, err)
			return
		}
		windowDays = strategy.ReviewWindowDays
	}

	today, timezone, err := contextutils.TodayForUser(c.Request.Context(), userID, h.userService.GetUserByID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	span.SetAttributes(
		attribute.Int("user.id", userID),
		attribute.Int("review.window_days", windowDays),
		attribute.String("user.timezone", timezone),
	)

	analytics, err := h.reviewService.GetReviewAnalytics(c.Request.Context(), userID, windowDays, today)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, analytics)
}
