package handlers

import (
	"net/http"
	"time"

	"github.com/EchoAurora/xingcefupan/internal/config"
	"github.com/EchoAurora/xingcefupan/internal/observability"
	"github.com/EchoAurora/xingcefupan/internal/services"
	contextutils "github.com/EchoAurora/xingcefupan/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// CheckinHandler handles the daily task list and streak endpoints.
type CheckinHandler struct {
	checkinService  services.CheckinServiceInterface
	plannerService  services.PlannerServiceInterface
	examService     services.ExamServiceInterface
	strategyService services.StrategyServiceInterface
	userService     services.UserServiceInterface
	config          *config.Config
	logger          *observability.Logger
}

// NewCheckinHandler creates a new CheckinHandler instance
func NewCheckinHandler(
	checkinService services.CheckinServiceInterface,
	plannerService services.PlannerServiceInterface,
	examService services.ExamServiceInterface,
	strategyService services.StrategyServiceInterface,
	userService services.UserServiceInterface,
	cfg *config.Config,
	logger *observability.Logger,
) *CheckinHandler {
	return &CheckinHandler{
		checkinService:  checkinService,
		plannerService:  plannerService,
		examService:     examService,
		strategyService: strategyService,
		userService:     userService,
		config:          cfg,
		logger:          logger,
	}
}

type taskToggleRequest struct {
	Index int  `json:"index"`
	Done  bool `json:"done"`
}

type taskAddRequest struct {
	Text string `json:"text"`
}

// userToday resolves the current calendar date in the user's timezone.
func (h *CheckinHandler) userToday(c *gin.Context, userID int) (time.Time, bool) {
	today, _, err := contextutils.TodayForUser(c.Request.Context(), userID, h.userService.GetUserByID)
	if err != nil {
		HandleAppError(c, err)
		return time.Time{}, false
	}
	return today, true
}

// GetCheckin handles GET /v1/checkin. On day rollover the task list is
// refreshed from the current weekly plan before the state is returned.
func (h *CheckinHandler) GetCheckin(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "get_checkin")
	defer observability.FinishSpan(span, nil)

	userID, ok := requireSessionUserID(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	today, ok := h.userToday(c, userID)
	if !ok {
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

	plan, err := h.plannerService.BuildWeekPlan(c.Request.Context(), records, strategy, today)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	state, err := h.checkinService.RefreshTodayTasks(c.Request.Context(), userID, plan, today)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	span.SetAttributes(
		attribute.Int("user.id", userID),
		attribute.Int("checkin.streak", state.StreakCount),
		attribute.Int("checkin.task_count", len(state.Tasks)),
	)

	c.JSON(http.StatusOK, state)
}

// ToggleTask handles PUT /v1/checkin/tasks
func (h *CheckinHandler) ToggleTask(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "toggle_checkin_task")
	defer observability.FinishSpan(span, nil)

	userID, ok := requireSessionUserID(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	var req taskToggleRequest
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

	span.SetAttributes(
		attribute.Int("user.id", userID),
		attribute.Int("checkin.task_index", req.Index),
		attribute.Bool("checkin.task_done", req.Done),
	)

	state, err := h.checkinService.SetTaskDone(c.Request.Context(), userID, req.Index, req.Done)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

// AddTask handles POST /v1/checkin/tasks
func (h *CheckinHandler) AddTask(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "add_checkin_task")
	defer observability.FinishSpan(span, nil)

	userID, ok := requireSessionUserID(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	var req taskAddRequest
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

	today, ok := h.userToday(c, userID)
	if !ok {
		return
	}

	span.SetAttributes(attribute.Int("user.id", userID))

	state, err := h.checkinService.AddCustomTask(c.Request.Context(), userID, req.Text, today)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

// ResetTasks handles DELETE /v1/checkin/tasks. Custom edits are thrown away
// and today's list is rebuilt from the current weekly plan.
func (h *CheckinHandler) ResetTasks(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "reset_checkin_tasks")
	defer observability.FinishSpan(span, nil)

	userID, ok := requireSessionUserID(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	today, ok := h.userToday(c, userID)
	if !ok {
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

	plan, err := h.plannerService.BuildWeekPlan(c.Request.Context(), records, strategy, today)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	state, err := h.checkinService.ResetTasks(c.Request.Context(), userID, plan, today)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	span.SetAttributes(
		attribute.Int("user.id", userID),
		attribute.Int("checkin.task_count", len(state.Tasks)),
	)

	c.JSON(http.StatusOK, state)
}

// CompleteCheckin handles POST /v1/checkin/complete. It runs the streak
// update against the current task list; an incomplete list leaves the streak
// untouched.
func (h *CheckinHandler) CompleteCheckin(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "complete_checkin")
	defer observability.FinishSpan(span, nil)

	userID, ok := requireSessionUserID(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	today, ok := h.userToday(c, userID)
	if !ok {
		return
	}

	state, err := h.checkinService.CompleteCheckin(c.Request.Context(), userID, today)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	span.SetAttributes(
		attribute.Int("user.id", userID),
		attribute.Int("checkin.streak", state.StreakCount),
		attribute.Bool("checkin.all_done", state.AllTasksDone()),
	)

	h.logger.Info(c.Request.Context(), "Check-in completed", map[string]interface{}{
		"user_id": userID,
		"streak":  state.StreakCount,
	})

	c.JSON(http.StatusOK, state)
}
