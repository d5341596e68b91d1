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

// PlanHandler serves the generated weekly study plan.
type PlanHandler struct {
	plannerService  services.PlannerServiceInterface
	examService     services.ExamServiceInterface
	strategyService services.StrategyServiceInterface
	userService     services.UserServiceInterface
	config          *config.Config
	logger          *observability.Logger
}

// NewPlanHandler creates a new PlanHandler instance
func NewPlanHandler(
	plannerService services.PlannerServiceInterface,
	examService services.ExamServiceInterface,
	strategyService services.StrategyServiceInterface,
	userService services.UserServiceInterface,
	cfg *config.Config,
	logger *observability.Logger,
) *PlanHandler {
	return &PlanHandler{
		plannerService:  plannerService,
		examService:     examService,
		strategyService: strategyService,
		userService:     userService,
		config:          cfg,
		logger:          logger,
	}
}

// GetWeekPlan handles GET /v1/plan/week. The plan is recomputed from recent
// exam records on every request; users with no history get an empty plan.
func (h *PlanHandler) GetWeekPlan(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "get_week_plan")
	defer observability.FinishSpan(span, nil)

	userID, ok := requireSessionUserID(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	records, err := h.examService.GetRecentExamRecords(c.Request.Context(), userID, config.WeeklyPlanHistoryDepth)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	strategy, err := h.strategyService.GetStrategy(c.Request.Context(), userID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	today, timezone, err := contextutils.TodayForUser(c.Request.Context(), userID, h.userService.GetUserByID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	span.SetAttributes(
		attribute.Int("user.id", userID),
		attribute.Int("plan.record_count", len(records)),
		attribute.String("user.timezone", timezone),
	)

	plan, err := h.plannerService.BuildWeekPlan(c.Request.Context(), records, strategy, today)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, plan)
}
