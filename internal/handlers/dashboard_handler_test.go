package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/EchoAurora/xingcefupan/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// scoreHistory builds an ascending (oldest first) record list, matching the
// order ListExamRecords returns.
func scoreHistory(userID int, scores ...float64) []models.ExamRecord {
	records := make([]models.ExamRecord, 0, len(scores))
	for i, score := range scores {
		records = append(records, models.ExamRecord{
			ID:             i + 1,
			UserID:         userID,
			ExamDate:       time.Date(2024, 3, 1+i, 0, 0, 0, 0, time.UTC),
			PaperName:      "provincial-125",
			TotalScore:     score,
			TotalCorrect:   90,
			TotalQuestions: 130,
			TotalMinutes:   120,
		})
	}
	return records
}

func TestGetDashboard_LatestRecordDrivesKPIs(t *testing.T) {
	router, svcs := newTestRouter(t)
	cookies := loginSession(t, router, svcs)
	user := testUser()

	svcs.exam.On("ListExamRecords", mock.Anything, user.ID).
		Return(scoreHistory(user.ID, 50, 60, 62, 64, 66, 80), nil).Once()

	w := performJSON(router, http.MethodGet, "/v1/dashboard", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["has_data"])
	assert.EqualValues(t, 6, body["record_count"])
	assert.InDelta(t, 80.0, body["latest_score"], 0.001)
	// Delta against the previous record, not the oldest pair.
	assert.InDelta(t, 14.0, body["score_delta"], 0.001)
	// Rolling average covers the five most recent scores.
	assert.InDelta(t, (80.0+66+64+62+60)/5, body["recent_average"], 0.001)
	assert.InDelta(t, 80.0/120, body["score_per_minute"], 0.001)

	svcs.exam.AssertExpectations(t)
}

func TestGetDashboard_SingleRecordHasNoDelta(t *testing.T) {
	router, svcs := newTestRouter(t)
	cookies := loginSession(t, router, svcs)
	user := testUser()

	svcs.exam.On("ListExamRecords", mock.Anything, user.ID).
		Return(scoreHistory(user.ID, 58), nil).Once()

	w := performJSON(router, http.MethodGet, "/v1/dashboard", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["has_data"])
	assert.InDelta(t, 58.0, body["latest_score"], 0.001)
	assert.InDelta(t, 58.0, body["recent_average"], 0.001)
	assert.Nil(t, body["score_delta"])
}

func TestGetDashboard_EmptyHistory(t *testing.T) {
	router, svcs := newTestRouter(t)
	cookies := loginSession(t, router, svcs)
	user := testUser()

	svcs.exam.On("ListExamRecords", mock.Anything, user.ID).
		Return([]models.ExamRecord{}, nil).Once()

	w := performJSON(router, http.MethodGet, "/v1/dashboard", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, false, body["has_data"])
	assert.EqualValues(t, 0, body["record_count"])
}
