//go:build integration

package services

import (
	"context"
	"testing"

	"github.com/EchoAurora/xingcefupan/internal/config"
	"github.com/EchoAurora/xingcefupan/internal/models"
	"github.com/EchoAurora/xingcefupan/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCheckinTest(t *testing.T) (*CheckinService, int) {
	db := SharedTestDBSetup(t)
	cfg := &config.Config{}
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})

	userService := NewUserServiceWithLogger(db, cfg, logger)
	user, err := userService.CreateUserWithPassword(context.Background(), "checker", "password", "", "UTC")
	require.NoError(t, err)

	return NewCheckinServiceWithLogger(db, cfg, logger), user.ID
}

func weekPlanFor(dates ...string) *models.WeekPlan {
	plan := &models.WeekPlan{FocusSections: []string{"quantitative"}}
	for _, date := range dates {
		plan.Days = append(plan.Days, models.DayPlan{
			Date:  date,
			Focus: "quantitative",
			Tasks: []string{"资料分析2篇", "逻辑填空20题", "数量关系专项"},
		})
	}
	return plan
}

func TestCheckinService_FreshUserHasEmptyState(t *testing.T) {
	service, userID := setupCheckinTest(t)

	state, err := service.GetState(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 0, state.StreakCount)
	assert.False(t, state.LastCompletedDate.Valid)
	assert.Empty(t, state.Tasks)
}

func TestCheckinService_RefreshGeneratesTodayTasks(t *testing.T) {
	service, userID := setupCheckinTest(t)
	ctx := context.Background()
	today := day("2024-03-11")

	plan := weekPlanFor("2024-03-11", "2024-03-12")
	state, err := service.RefreshTodayTasks(ctx, userID, plan, today)
	require.NoError(t, err)

	require.Len(t, state.Tasks, 3)
	assert.Equal(t, models.TaskSourceWeekPlan, state.TaskSource)
	assert.Equal(t, "2024-03-11", state.TasksDate.String)

	// Same-day refresh leaves the list alone
	_, err = service.SetTaskDone(ctx, userID, 0, true)
	require.NoError(t, err)
	again, err := service.RefreshTodayTasks(ctx, userID, plan, today)
	require.NoError(t, err)
	assert.True(t, again.Tasks[0].Done)
}

func TestCheckinService_RefreshFallsBackToFirstPlanDay(t *testing.T) {
	service, userID := setupCheckinTest(t)

	// Today is outside the plan window
	plan := weekPlanFor("2024-03-01", "2024-03-02")
	state, err := service.RefreshTodayTasks(context.Background(), userID, plan, day("2024-03-11"))
	require.NoError(t, err)

	require.Len(t, state.Tasks, 3)
	assert.Equal(t, "2024-03-11", state.TasksDate.String)
}

func TestCheckinService_CustomTasksSurviveSameDayOnly(t *testing.T) {
	service, userID := setupCheckinTest(t)
	ctx := context.Background()

	plan := weekPlanFor("2024-03-11", "2024-03-12")
	_, err := service.RefreshTodayTasks(ctx, userID, plan, day("2024-03-11"))
	require.NoError(t, err)

	state, err := service.AddCustomTask(ctx, userID, "背常识50条", day("2024-03-11"))
	require.NoError(t, err)
	assert.Equal(t, models.TaskSourceCustom, state.TaskSource)
	require.Len(t, state.Tasks, 4)

	// Same day: custom list survives
	state, err = service.RefreshTodayTasks(ctx, userID, plan, day("2024-03-11"))
	require.NoError(t, err)
	assert.Len(t, state.Tasks, 4)

	// Next day: regenerated from the plan
	state, err = service.RefreshTodayTasks(ctx, userID, plan, day("2024-03-12"))
	require.NoError(t, err)
	assert.Len(t, state.Tasks, 3)
	assert.Equal(t, models.TaskSourceWeekPlan, state.TaskSource)
	assert.Equal(t, "2024-03-12", state.TasksDate.String)
}

func TestCheckinService_CompleteCheckinPersistsStreak(t *testing.T) {
	service, userID := setupCheckinTest(t)
	ctx := context.Background()

	plan := weekPlanFor("2024-03-11")
	state, err := service.RefreshTodayTasks(ctx, userID, plan, day("2024-03-11"))
	require.NoError(t, err)
	for i := range state.Tasks {
		_, err = service.SetTaskDone(ctx, userID, i, true)
		require.NoError(t, err)
	}

	state, err = service.CompleteCheckin(ctx, userID, day("2024-03-11"))
	require.NoError(t, err)
	assert.Equal(t, 1, state.StreakCount)
	assert.Equal(t, "2024-03-11", state.LastCompletedDate.String)

	// Re-saving the same day does not double count
	state, err = service.CompleteCheckin(ctx, userID, day("2024-03-11"))
	require.NoError(t, err)
	assert.Equal(t, 1, state.StreakCount)

	// The persisted streak survives a reload
	reloaded, err := service.GetState(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.StreakCount)
	assert.Equal(t, "2024-03-11", reloaded.LastCompletedDate.String)
}
