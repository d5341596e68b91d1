package handlers

import (
	"net/http"

	"github.com/EchoAurora/xingcefupan/internal/config"
	"github.com/EchoAurora/xingcefupan/internal/models"
	"github.com/EchoAurora/xingcefupan/internal/observability"
	"github.com/EchoAurora/xingcefupan/internal/services"
	contextutils "github.com/EchoAurora/xingcefupan/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// StrategyHandler handles the per-user pacing strategy endpoints.
type StrategyHandler struct {
	strategyService services.StrategyServiceInterface
	config          *config.Config
	logger          *observability.Logger
}

// NewStrategyHandler creates a new StrategyHandler instance
func NewStrategyHandler(strategyService services.StrategyServiceInterface, cfg *config.Config, logger *observability.Logger) *StrategyHandler {
	return &StrategyHandler{
		strategyService: strategyService,
		config:          cfg,
		logger:          logger,
	}
}

// GetStrategy handles GET /v1/strategy. Users who never saved a strategy get
// the defaults.
func (h *StrategyHandler) GetStrategy(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "get_strategy")
	defer observability.FinishSpan(span, nil)

	userID, ok := requireSessionUserID(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}
	span.SetAttributes(attribute.Int("user.id", userID))

	strategy, err := h.strategyService.GetStrategy(c.Request.Context(), userID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, strategy)
}

// SaveStrategy handles PUT /v1/strategy
func (h *StrategyHandler) SaveStrategy(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "save_strategy")
	defer observability.FinishSpan(span, nil)

	userID, ok := requireSessionUserID(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	var strategy models.Strategy
	if err := c.ShouldBindJSON(&strategy); err != nil {
		HandleAppError(c, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeInvalidInput,
			contextutils.SeverityWarn,
			"Invalid request body",
			"",
			err,
		))
		return
	}

	// The strategy always belongs to the session user regardless of the payload
	strategy.UserID = userID
	span.SetAttributes(
		attribute.Int("user.id", userID),
		attribute.Int("strategy.quant_seconds", strategy.QuantSecondsPerQuestion),
		attribute.Int("strategy.review_window_days", strategy.ReviewWindowDays),
	)

	if err := h.strategyService.SaveStrategy(c.Request.Context(), &strategy); err != nil {
		HandleAppError(c, err)
		return
	}

	h.logger.Info(c.Request.Context(), "Strategy saved", map[string]interface{}{"user_id": userID})

	c.JSON(http.StatusOK, &strategy)
}
