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

func setupReviewTest(t *testing.T) (*ReviewService, int) {
	db := SharedTestDBSetup(t)
	cfg := &config.Config{}
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})

	userService := NewUserServiceWithLogger(db, cfg, logger)
	user, err := userService.CreateUserWithPassword(context.Background(), "reviewer", "password", "", "UTC")
	require.NoError(t, err)

	return NewReviewServiceWithLogger(db, cfg, logger), user.ID
}

func reviewSubmission(date, section string, wrong int) *ReviewNoteSubmission {
	return &ReviewNoteSubmission{
		NoteDate:         date,
		PaperName:        "provincial-125",
		SectionName:      section,
		WrongCount:       wrong,
		KnowledgeGap:     wrong / 2,
		MethodUnfamiliar: wrong - wrong/2,
		ReasonText:       "公式记错",
		NextActionText:   "重做错题",
	}
}

func TestReviewService_CreateAndList(t *testing.T) {
	service, userID := setupReviewTest(t)
	ctx := context.Background()

	note, err := service.CreateReviewNote(ctx, userID, reviewSubmission("2024-03-10", "quantitative", 6))
	require.NoError(t, err)
	assert.NotZero(t, note.ID)
	assert.Equal(t, "quantitative", note.SectionName)

	_, err = service.CreateReviewNote(ctx, userID, reviewSubmission("2024-03-11", "verbal-cloze", 3))
	require.NoError(t, err)

	notes, err := service.ListReviewNotes(ctx, userID, ReviewNoteFilter{})
	require.NoError(t, err)
	require.Len(t, notes, 2)
	// Insertion order
	assert.Equal(t, "quantitative", notes[0].SectionName)

	filtered, err := service.ListReviewNotes(ctx, userID, ReviewNoteFilter{SectionName: "verbal-cloze"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "verbal-cloze", filtered[0].SectionName)

	byPaper, err := service.ListReviewNotes(ctx, userID, ReviewNoteFilter{PaperName: "provincial-125", SectionName: "quantitative"})
	require.NoError(t, err)
	require.Len(t, byPaper, 1)
}

func TestReviewService_ListFiltersByKeyword(t *testing.T) {
	service, userID := setupReviewTest(t)
	ctx := context.Background()

	careless := reviewSubmission("2024-03-10", "quantitative", 5)
	careless.ReasonText = "粗心看错选项"
	_, err := service.CreateReviewNote(ctx, userID, careless)
	require.NoError(t, err)

	_, err = service.CreateReviewNote(ctx, userID, reviewSubmission("2024-03-11", "verbal-cloze", 3))
	require.NoError(t, err)

	// Keyword matches reason_text and next_action_text, case-insensitively.
	matched, err := service.ListReviewNotes(ctx, userID, ReviewNoteFilter{Keyword: "粗心"})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "quantitative", matched[0].SectionName)

	byAction, err := service.ListReviewNotes(ctx, userID, ReviewNoteFilter{Keyword: "重做"})
	require.NoError(t, err)
	assert.Len(t, byAction, 2)

	none, err := service.ListReviewNotes(ctx, userID, ReviewNoteFilter{Keyword: "申论"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestReviewService_CreateRejectsUnknownSection(t *testing.T) {
	service, userID := setupReviewTest(t)

	sub := reviewSubmission("2024-03-10", "essay", 3)
	_, err := service.CreateReviewNote(context.Background(), userID, sub)
	assert.ErrorIs(t, err, contextutils.ErrUnknownSection)
}

func TestReviewService_Delete(t *testing.T) {
	service, userID := setupReviewTest(t)
	ctx := context.Background()

	note, err := service.CreateReviewNote(ctx, userID, reviewSubmission("2024-03-10", "quantitative", 6))
	require.NoError(t, err)

	require.NoError(t, service.DeleteReviewNote(ctx, userID, note.ID))
	err = service.DeleteReviewNote(ctx, userID, note.ID)
	assert.ErrorIs(t, err, contextutils.ErrReviewNoteNotFound)
}

func TestReviewService_GetReviewAnalytics(t *testing.T) {
	service, userID := setupReviewTest(t)
	ctx := context.Background()

	_, err := service.CreateReviewNote(ctx, userID, reviewSubmission("2024-03-01", "quantitative", 6))
	require.NoError(t, err)
	_, err = service.CreateReviewNote(ctx, userID, reviewSubmission("2024-01-01", "verbal-cloze", 4))
	require.NoError(t, err)

	analytics, err := service.GetReviewAnalytics(ctx, userID, 30, day("2024-03-10"))
	require.NoError(t, err)

	require.True(t, analytics.HasData)
	require.Len(t, analytics.SectionErrors, 1)
	assert.Equal(t, "quantitative", analytics.SectionErrors[0].SectionName)
	assert.Equal(t, 6, analytics.SectionErrors[0].WrongCount)
}
