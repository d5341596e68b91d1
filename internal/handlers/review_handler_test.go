package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/EchoAurora/xingcefupan/internal/models"
	"github.com/EchoAurora/xingcefupan/internal/services"
	contextutils "github.com/EchoAurora/xingcefupan/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCreateReviewNote(t *testing.T) {
	router, svcs := newTestRouter(t)
	cookies := loginSession(t, router, svcs)
	user := testUser()

	note := &models.ReviewNote{
		ID:           5,
		UserID:       user.ID,
		NoteDate:     time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		SectionName:  "quantitative",
		WrongCount:   3,
		KnowledgeGap: 2,
	}

	svcs.review.On("CreateReviewNote", mock.Anything, user.ID, mock.MatchedBy(func(s *services.ReviewNoteSubmission) bool {
		return s.SectionName == "quantitative" && s.WrongCount == 3
	})).Return(note, nil).Once()

	w := performJSON(router, http.MethodPost, "/v1/reviews", map[string]interface{}{
		"note_date":     "2024-03-10",
		"section_name":  "quantitative",
		"wrong_count":   3,
		"knowledge_gap": 2,
	}, cookies)

	require.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(5), body["id"])
	svcs.review.AssertExpectations(t)
}

func TestCreateReviewNote_SchemaRejectsNegativeCounts(t *testing.T) {
	router, svcs := newTestRouter(t)
	cookies := loginSession(t, router, svcs)

	w := performJSON(router, http.MethodPost, "/v1/reviews", map[string]interface{}{
		"note_date":    "2024-03-10",
		"section_name": "quantitative",
		"wrong_count":  -1,
	}, cookies)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svcs.review.AssertNotCalled(t, "CreateReviewNote")
}

func TestListReviewNotes_PassesFilters(t *testing.T) {
	router, svcs := newTestRouter(t)
	cookies := loginSession(t, router, svcs)
	user := testUser()

	svcs.review.On("ListReviewNotes", mock.Anything, user.ID, services.ReviewNoteFilter{
		PaperName:   "provincial-125",
		SectionName: "quantitative",
		Keyword:     "粗心",
	}).Return([]models.ReviewNote{}, nil).Once()

	w := performJSON(router, http.MethodGet, "/v1/reviews?paper=provincial-125&section=quantitative&q=%E7%B2%97%E5%BF%83", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code)
	svcs.review.AssertExpectations(t)
}

func TestGetReviewSuggestions_RanksWeakestSectionsFirst(t *testing.T) {
	router, svcs := newTestRouter(t)
	cookies := loginSession(t, router, svcs)
	user := testUser()

	svcs.exam.On("GetLatestExamRecord", mock.Anything, user.ID).
		Return(sampleRecord(user.ID), nil).Once()

	w := performJSON(router, http.MethodGet, "/v1/reviews/suggestions", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["has_data"])
	sections, ok := body["sections"].([]interface{})
	require.True(t, ok)
	require.NotEmpty(t, sections)
	assert.Equal(t, "quantitative", sections[0])
	assert.LessOrEqual(t, len(sections), 6)
}

func TestGetReviewSuggestions_NoHistory(t *testing.T) {
	router, svcs := newTestRouter(t)
	cookies := loginSession(t, router, svcs)
	user := testUser()

	svcs.exam.On("GetLatestExamRecord", mock.Anything, user.ID).
		Return(nil, contextutils.ErrNoExamHistory).Once()

	w := performJSON(router, http.MethodGet, "/v1/reviews/suggestions", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, false, body["has_data"])
	assert.Empty(t, body["sections"])
}

func TestDeleteReviewNote_NotFound(t *testing.T) {
	router, svcs := newTestRouter(t)
	cookies := loginSession(t, router, svcs)
	user := testUser()

	svcs.review.On("DeleteReviewNote", mock.Anything, user.ID, 44).
		Return(contextutils.ErrReviewNoteNotFound).Once()

	w := performJSON(router, http.MethodDelete, "/v1/reviews/44", nil, cookies)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetReviewAnalytics_WindowFromStrategy(t *testing.T) {
	router, svcs := newTestRouter(t)
	cookies := loginSession(t, router, svcs)
	user := testUser()

	strategy := defaultStrategy(user.ID)
	strategy.ReviewWindowDays = 14

	svcs.strategy.On("GetStrategy", mock.Anything, user.ID).Return(strategy, nil).Once()
	svcs.user.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)
	svcs.review.On("GetReviewAnalytics", mock.Anything, user.ID, 14, mock.AnythingOfType("time.Time")).
		Return(&models.ReviewAnalytics{HasData: true, WindowDays: 14}, nil).Once()

	w := performJSON(router, http.MethodGet, "/v1/reviews/analytics", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(14), body["window_days"])
	svcs.review.AssertExpectations(t)
}

func TestGetReviewAnalytics_WindowOverride(t *testing.T) {
	router, svcs := newTestRouter(t)
	cookies := loginSession(t, router, svcs)
	user := testUser()

	svcs.user.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)
	svcs.review.On("GetReviewAnalytics", mock.Anything, user.ID, 7, mock.AnythingOfType("time.Time")).
		Return(&models.ReviewAnalytics{HasData: false, WindowDays: 7}, nil).Once()

	w := performJSON(router, http.MethodGet, "/v1/reviews/analytics?window_days=7", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code)
	svcs.strategy.AssertNotCalled(t, "GetStrategy")
}

func TestGetReviewAnalytics_BadWindow(t *testing.T) {
	router, svcs := newTestRouter(t)
	cookies := loginSession(t, router, svcs)

	w := performJSON(router, http.MethodGet, "/v1/reviews/analytics?window_days=zero", nil, cookies)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svcs.review.AssertNotCalled(t, "GetReviewAnalytics")
}
