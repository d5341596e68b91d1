package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/EchoAurora/xingcefupan/internal/config"
	"github.com/EchoAurora/xingcefupan/internal/models"
	"github.com/EchoAurora/xingcefupan/internal/observability"
	contextutils "github.com/EchoAurora/xingcefupan/internal/utils"
)

// StrategyServiceInterface defines the interface for pacing-strategy operations.
type StrategyServiceInterface interface {
	GetStrategy(ctx context.Context, userID int) (*models.Strategy, error)
	SaveStrategy(ctx context.Context, strategy *models.Strategy) error
}

// StrategyService manages the per-user pacing strategy singleton.
type StrategyService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
}

// NewStrategyServiceWithLogger creates a new StrategyService instance with logger
func NewStrategyServiceWithLogger(db *sql.DB, cfg *config.Config, logger *observability.Logger) *StrategyService {
	return &StrategyService{
		db:     db,
		cfg:    cfg,
		logger: logger,
	}
}

// DefaultStrategy returns the strategy applied before a user saves one.
func DefaultStrategy(userID int) *models.Strategy {
	return &models.Strategy{
		UserID:                  userID,
		QuantSecondsPerQuestion: config.DefaultQuantSecondsPerQuestion,
		DataMinutesPerPassage:   config.DefaultDataMinutesPerPassage,
		LogicSecondsPerQuestion: config.DefaultLogicSecondsPerQuestion,
		QuantEasyOnly:           config.DefaultQuantEasyOnly,
		DataSkipOnTimeout:       config.DefaultDataSkipOnTimeout,
		ReviewWindowDays:        config.DefaultReviewWindowDays,
	}
}

// GetStrategy returns the user's saved strategy, or the defaults when the
// user has never saved one.
func (s *StrategyService) GetStrategy(ctx context.Context, userID int) (result0 *models.Strategy, err error) {
	ctx, span := observability.TraceStrategyFunction(ctx, "get_strategy", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	query := `SELECT user_id, quant_seconds_per_question, data_minutes_per_passage, logic_seconds_per_question,
		quant_easy_only, data_skip_on_timeout, review_window_days, custom_notes, updated_at
		FROM strategies WHERE user_id = $1`

	strategy := &models.Strategy{}
	err = s.db.QueryRowContext(ctx, query, userID).Scan(
		&strategy.UserID, &strategy.QuantSecondsPerQuestion, &strategy.DataMinutesPerPassage,
		&strategy.LogicSecondsPerQuestion, &strategy.QuantEasyOnly, &strategy.DataSkipOnTimeout,
		&strategy.ReviewWindowDays, &strategy.CustomNotes, &strategy.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DefaultStrategy(userID), nil
		}
		return nil, contextutils.WrapError(err, "failed to query strategy")
	}
	return strategy, nil
}

// SaveStrategy upserts the user's strategy. Nonsensical values are rejected
// rather than clamped.
func (s *StrategyService) SaveStrategy(ctx context.Context, strategy *models.Strategy) (err error) {
	ctx, span := observability.TraceStrategyFunction(ctx, "save_strategy", observability.AttributeUserID(strategy.UserID))
	defer observability.FinishSpan(span, &err)

	if strategy.QuantSecondsPerQuestion <= 0 || strategy.DataMinutesPerPassage <= 0 || strategy.LogicSecondsPerQuestion <= 0 {
		return contextutils.WrapError(contextutils.ErrInvalidInput, "time caps must be positive")
	}
	if strategy.ReviewWindowDays <= 0 {
		return contextutils.WrapError(contextutils.ErrInvalidInput, "review window must be positive")
	}

	query := `INSERT INTO strategies (user_id, quant_seconds_per_question, data_minutes_per_passage,
		logic_seconds_per_question, quant_easy_only, data_skip_on_timeout, review_window_days, custom_notes, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			quant_seconds_per_question = EXCLUDED.quant_seconds_per_question,
			data_minutes_per_passage = EXCLUDED.data_minutes_per_passage,
			logic_seconds_per_question = EXCLUDED.logic_seconds_per_question,
			quant_easy_only = EXCLUDED.quant_easy_only,
			data_skip_on_timeout = EXCLUDED.data_skip_on_timeout,
			review_window_days = EXCLUDED.review_window_days,
			custom_notes = EXCLUDED.custom_notes,
			updated_at = EXCLUDED.updated_at`

	_, err = s.db.ExecContext(ctx, query,
		strategy.UserID, strategy.QuantSecondsPerQuestion, strategy.DataMinutesPerPassage,
		strategy.LogicSecondsPerQuestion, strategy.QuantEasyOnly, strategy.DataSkipOnTimeout,
		strategy.ReviewWindowDays, strategy.CustomNotes, time.Now(),
	)
	if err != nil {
		return contextutils.WrapError(err, "failed to save strategy")
	}
	return nil
}
