//go:build integration

package services

import (
	"context"
	"testing"

	"github.com/EchoAurora/xingcefupan/internal/config"
	"github.com/EchoAurora/xingcefupan/internal/observability"
	contextutils "github.com/EchoAurora/xingcefupan/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStrategyTest(t *testing.T) (*StrategyService, int) {
	db := SharedTestDBSetup(t)
	cfg := &config.Config{}
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})

	userService := NewUserServiceWithLogger(db, cfg, logger)
	user, err := userService.CreateUserWithPassword(context.Background(), "strategist", "password", "", "UTC")
	require.NoError(t, err)

	return NewStrategyServiceWithLogger(db, cfg, logger), user.ID
}

func TestStrategyService_DefaultsBeforeFirstSave(t *testing.T) {
	service, userID := setupStrategyTest(t)

	strategy, err := service.GetStrategy(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, config.DefaultQuantSecondsPerQuestion, strategy.QuantSecondsPerQuestion)
	assert.Equal(t, config.DefaultDataMinutesPerPassage, strategy.DataMinutesPerPassage)
	assert.Equal(t, config.DefaultLogicSecondsPerQuestion, strategy.LogicSecondsPerQuestion)
	assert.Equal(t, config.DefaultReviewWindowDays, strategy.ReviewWindowDays)
	assert.True(t, strategy.QuantEasyOnly)
	assert.True(t, strategy.DataSkipOnTimeout)
}

func TestStrategyService_SaveAndReload(t *testing.T) {
	service, userID := setupStrategyTest(t)
	ctx := context.Background()

	strategy := DefaultStrategy(userID)
	strategy.QuantSecondsPerQuestion = 45
	strategy.QuantEasyOnly = false
	strategy.ReviewWindowDays = 14
	strategy.CustomNotes = "数量关系先做工程和行程"

	require.NoError(t, service.SaveStrategy(ctx, strategy))

	loaded, err := service.GetStrategy(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 45, loaded.QuantSecondsPerQuestion)
	assert.False(t, loaded.QuantEasyOnly)
	assert.Equal(t, 14, loaded.ReviewWindowDays)
	assert.Equal(t, "数量关系先做工程和行程", loaded.CustomNotes)

	// Saving again overwrites the singleton
	strategy.ReviewWindowDays = 7
	require.NoError(t, service.SaveStrategy(ctx, strategy))
	loaded, err = service.GetStrategy(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.ReviewWindowDays)
}

func TestStrategyService_RejectsNonPositiveCaps(t *testing.T) {
	service, userID := setupStrategyTest(t)

	strategy := DefaultStrategy(userID)
	strategy.QuantSecondsPerQuestion = 0
	err := service.SaveStrategy(context.Background(), strategy)
	assert.ErrorIs(t, err, contextutils.ErrInvalidInput)

	strategy = DefaultStrategy(userID)
	strategy.ReviewWindowDays = -5
	err = service.SaveStrategy(context.Background(), strategy)
	assert.ErrorIs(t, err, contextutils.ErrInvalidInput)
}
