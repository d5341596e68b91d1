//go:build integration

package services

import (
	"context"
	"testing"

	"github.com/EchoAurora/xingcefupan/internal/config"
	"github.com/EchoAurora/xingcefupan/internal/models"
	"github.com/EchoAurora/xingcefupan/internal/observability"
	contextutils "github.com/EchoAurora/xingcefupan/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupExamTest(t *testing.T) (*ExamService, *models.User) {
	db := SharedTestDBSetup(t)
	cfg := &config.Config{}
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})

	userService := NewUserServiceWithLogger(db, cfg, logger)
	user, err := userService.CreateUserWithPassword(context.Background(), "examtester", "password", "", "UTC")
	require.NoError(t, err)

	return NewExamServiceWithLogger(db, cfg, logger), user
}

func provincialSubmission(date string) *ExamSubmission {
	sub := &ExamSubmission{
		ExamDate:     date,
		PaperName:    "provincial-125",
		TotalMinutes: 120,
	}
	template, _ := config.PaperTemplateByName("provincial-125")
	for _, sec := range config.Sections() {
		total := template.Totals[sec.Name]
		sub.Sections = append(sub.Sections, SectionSubmission{
			SectionName:    sec.Name,
			CorrectCount:   total * 7 / 10,
			TotalQuestions: total,
			MinutesUsed:    sec.PlanMinutes,
		})
	}
	return sub
}

func TestExamService_CreateAndGet(t *testing.T) {
	service, user := setupExamTest(t)
	ctx := context.Background()

	record, err := service.CreateExamRecord(ctx, user.ID, provincialSubmission("2024-03-10"))
	require.NoError(t, err)

	assert.Equal(t, user.ID, record.UserID)
	assert.Equal(t, "provincial-125", record.PaperName)
	assert.Len(t, record.Sections, len(config.Sections()))
	// Score is derived from counts at the template weight
	assert.InDelta(t, float64(record.TotalCorrect)*0.8, record.TotalScore, 1e-9)
	// Section rows carry the configured time budget
	for _, sec := range record.Sections {
		require.True(t, sec.PlannedMinutes.Valid)
		assert.Equal(t, config.PlanMinutesFor(sec.SectionName), sec.PlannedMinutes.Float64)
	}

	loaded, err := service.GetExamRecord(ctx, user.ID, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, loaded.ID)
	assert.Equal(t, record.TotalScore, loaded.TotalScore)
}

func TestExamService_CreateRejectsInvalidInput(t *testing.T) {
	service, user := setupExamTest(t)
	ctx := context.Background()

	t.Run("bad date", func(t *testing.T) {
		sub := provincialSubmission("10/03/2024")
		_, err := service.CreateExamRecord(ctx, user.ID, sub)
		assert.ErrorIs(t, err, contextutils.ErrInvalidInput)
	})

	t.Run("unknown section", func(t *testing.T) {
		sub := provincialSubmission("2024-03-10")
		sub.Sections[0].SectionName = "essay"
		_, err := service.CreateExamRecord(ctx, user.ID, sub)
		assert.ErrorIs(t, err, contextutils.ErrUnknownSection)
	})

	t.Run("correct exceeds total", func(t *testing.T) {
		sub := provincialSubmission("2024-03-10")
		sub.Sections[0].CorrectCount = sub.Sections[0].TotalQuestions + 1
		_, err := service.CreateExamRecord(ctx, user.ID, sub)
		assert.ErrorIs(t, err, contextutils.ErrInvalidInput)
	})

	t.Run("duplicate section", func(t *testing.T) {
		sub := provincialSubmission("2024-03-10")
		sub.Sections = append(sub.Sections, sub.Sections[0])
		_, err := service.CreateExamRecord(ctx, user.ID, sub)
		assert.ErrorIs(t, err, contextutils.ErrInvalidInput)
	})
}

func TestExamService_ListAndRecentOrdering(t *testing.T) {
	service, user := setupExamTest(t)
	ctx := context.Background()

	for _, date := range []string{"2024-03-01", "2024-03-05", "2024-03-10"} {
		_, err := service.CreateExamRecord(ctx, user.ID, provincialSubmission(date))
		require.NoError(t, err)
	}

	all, err := service.ListExamRecords(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Insertion order
	assert.Less(t, all[0].ID, all[1].ID)
	assert.Less(t, all[1].ID, all[2].ID)

	recent, err := service.GetRecentExamRecords(ctx, user.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	// Most recent first
	assert.Equal(t, all[2].ID, recent[0].ID)
	assert.Equal(t, all[1].ID, recent[1].ID)

	latest, err := service.GetLatestExamRecord(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, all[2].ID, latest.ID)
}

func TestExamService_EmptyHistory(t *testing.T) {
	service, user := setupExamTest(t)
	ctx := context.Background()

	records, err := service.ListExamRecords(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = service.GetLatestExamRecord(ctx, user.ID)
	assert.ErrorIs(t, err, contextutils.ErrNoExamHistory)
}

func TestExamService_DeleteRemovesSections(t *testing.T) {
	service, user := setupExamTest(t)
	ctx := context.Background()

	record, err := service.CreateExamRecord(ctx, user.ID, provincialSubmission("2024-03-10"))
	require.NoError(t, err)

	require.NoError(t, service.DeleteExamRecord(ctx, user.ID, record.ID))

	_, err = service.GetExamRecord(ctx, user.ID, record.ID)
	assert.ErrorIs(t, err, contextutils.ErrExamRecordNotFound)

	err = service.DeleteExamRecord(ctx, user.ID, record.ID)
	assert.ErrorIs(t, err, contextutils.ErrExamRecordNotFound)
}

func TestExamService_RecordsAreScopedToOwner(t *testing.T) {
	service, user := setupExamTest(t)
	ctx := context.Background()

	cfg := &config.Config{}
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	userService := NewUserServiceWithLogger(service.db, cfg, logger)
	other, err := userService.CreateUserWithPassword(ctx, "othertester", "password", "", "UTC")
	require.NoError(t, err)

	record, err := service.CreateExamRecord(ctx, user.ID, provincialSubmission("2024-03-10"))
	require.NoError(t, err)

	_, err = service.GetExamRecord(ctx, other.ID, record.ID)
	assert.ErrorIs(t, err, contextutils.ErrExamRecordNotFound)

	err = service.DeleteExamRecord(ctx, other.ID, record.ID)
	assert.ErrorIs(t, err, contextutils.ErrExamRecordNotFound)
}
