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

// ExamHandler handles exam-record entry, listing and per-record diagnostics.
type ExamHandler struct {
	examService        services.ExamServiceInterface
	diagnosticsService services.DiagnosticsServiceInterface
	strategyService    services.StrategyServiceInterface
	config             *config.Config
	logger             *observability.Logger
}

// NewExamHandler creates a new ExamHandler instance
func NewExamHandler(
	examService services.ExamServiceInterface,
	diagnosticsService services.DiagnosticsServiceInterface,
	strategyService services.StrategyServiceInterface,
	cfg *config.Config,
	logger *observability.Logger,
) *ExamHandler {
	return &ExamHandler{
		examService:        examService,
		diagnosticsService: diagnosticsService,
		strategyService:    strategyService,
		config:             cfg,
		logger:             logger,
	}
}

// recordIDParam parses the :id path parameter.
func recordIDParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		HandleValidationError(c, "record id", c.Param("id"), "must be a positive integer")
		return 0, false
	}
	return id, true
}

// CreateExam handles POST /v1/exams
func (h *ExamHandler) CreateExam(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "create_exam")
	defer observability.FinishSpan(span, nil)

	userID, ok := requireSessionUserID(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	var submission services.ExamSubmission
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
		attribute.String("exam.paper_name", submission.PaperName),
		attribute.Int("exam.section_count", len(submission.Sections)),
	)

	record, err := h.examService.CreateExamRecord(c.Request.Context(), userID, &submission)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	h.logger.Info(c.Request.Context(), "Exam record created", map[string]interface{}{
		"user_id":   userID,
		"record_id": record.ID,
		"paper":     record.PaperName,
		"score":     record.TotalScore,
	})

	c.JSON(http.StatusCreated, record)
}

// ListExams handles GET /v1/exams
func (h *ExamHandler) ListExams(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "list_exams")
	defer observability.FinishSpan(span, nil)

	userID, ok := requireSessionUserID(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}
	span.SetAttributes(attribute.Int("user.id", userID))

	records, err := h.examService.ListExamRecords(c.Request.Context(), userID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"count":   len(records),
	})
}

// GetLatestExam handles GET /v1/exams/latest
func (h *ExamHandler) GetLatestExam(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "get_latest_exam")
	defer observability.FinishSpan(span, nil)

	userID, ok := requireSessionUserID(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}
	span.SetAttributes(attribute.Int("user.id", userID))

	record, err := h.examService.GetLatestExamRecord(c.Request.Context(), userID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// GetExam handles GET /v1/exams/:id
func (h *ExamHandler) GetExam(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "get_exam")
	defer observability.FinishSpan(span, nil)

	userID, ok := requireSessionUserID(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	recordID, ok := recordIDParam(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("user.id", userID), attribute.Int("exam.record_id", recordID))

	record, err := h.examService.GetExamRecord(c.Request.Context(), userID, recordID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// DeleteExam handles DELETE /v1/exams/:id
func (h *ExamHandler) DeleteExam(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "delete_exam")
	defer observability.FinishSpan(span, nil)

	userID, ok := requireSessionUserID(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	recordID, ok := recordIDParam(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("user.id", userID), attribute.Int("exam.record_id", recordID))

	if err := h.examService.DeleteExamRecord(c.Request.Context(), userID, recordID); err != nil {
		HandleAppError(c, err)
		return
	}

	h.logger.Info(c.Request.Context(), "Exam record deleted", map[string]interface{}{
		"user_id":   userID,
		"record_id": recordID,
	})

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetExamDiagnostics handles GET /v1/exams/:id/diagnostics. The response
// bundles the per-section readout with the derived next-day drill plan.
func (h *ExamHandler) GetExamDiagnostics(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "get_exam_diagnostics")
	defer observability.FinishSpan(span, nil)

	userID, ok := requireSessionUserID(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	recordID, ok := recordIDParam(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("user.id", userID), attribute.Int("exam.record_id", recordID))

	record, err := h.examService.GetExamRecord(c.Request.Context(), userID, recordID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	strategy, err := h.strategyService.GetStrategy(c.Request.Context(), userID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	diagnostics, err := h.diagnosticsService.DiagnoseRecord(c.Request.Context(), record, strategy)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	plan, err := h.diagnosticsService.BuildNextDayPlan(c.Request.Context(), record, strategy)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"record":        record,
		"diagnostics":   diagnostics,
		"next_day_plan": plan,
	})
}

// GetExamDigest handles GET /v1/exams/:id/digest and returns the
// copy-paste-ready markdown review digest for one record.
func (h *ExamHandler) GetExamDigest(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "get_exam_digest")
	defer observability.FinishSpan(span, nil)

	userID, ok := requireSessionUserID(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	recordID, ok := recordIDParam(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("user.id", userID), attribute.Int("exam.record_id", recordID))

	record, err := h.examService.GetExamRecord(c.Request.Context(), userID, recordID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	strategy, err := h.strategyService.GetStrategy(c.Request.Context(), userID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	diagnostics, err := h.diagnosticsService.DiagnoseRecord(c.Request.Context(), record, strategy)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	plan, err := h.diagnosticsService.BuildNextDayPlan(c.Request.Context(), record, strategy)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	digest := h.diagnosticsService.RenderDigest(record, diagnostics, plan)

	c.JSON(http.StatusOK, gin.H{
		"record_id": record.ID,
		"digest":    digest,
	})
}
