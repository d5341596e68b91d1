package handlers

import (
	"net/http"
	"slices"

	"github.com/EchoAurora/xingcefupan/internal/config"
	"github.com/EchoAurora/xingcefupan/internal/observability"
	"github.com/EchoAurora/xingcefupan/internal/services"
	contextutils "github.com/EchoAurora/xingcefupan/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// DashboardHandler serves the headline KPI block for the review dashboard.
type DashboardHandler struct {
	examService        services.ExamServiceInterface
	diagnosticsService services.DiagnosticsServiceInterface
	config             *config.Config
	logger             *observability.Logger
}

// NewDashboardHandler creates a new DashboardHandler instance
func NewDashboardHandler(
	examService services.ExamServiceInterface,
	diagnosticsService services.DiagnosticsServiceInterface,
	cfg *config.Config,
	logger *observability.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		examService:        examService,
		diagnosticsService: diagnosticsService,
		config:             cfg,
		logger:             logger,
	}
}

// GetDashboard handles GET /v1/dashboard. An empty exam history is not an
// error; the summary reports has_data=false so the client can render the
// empty state.
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "get_dashboard")
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

	// ListExamRecords returns oldest first; the summary builder expects the
	// most recent record at index 0.
	slices.Reverse(records)

	summary, err := h.diagnosticsService.BuildDashboardSummary(c.Request.Context(), records)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	span.SetAttributes(
		attribute.Bool("dashboard.has_data", summary.HasData),
		attribute.Int("dashboard.record_count", summary.RecordCount),
	)

	c.JSON(http.StatusOK, summary)
}
