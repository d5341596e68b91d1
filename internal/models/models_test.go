package models

import (
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSectionResult_Accuracy(t *testing.T) {
	s := SectionResult{CorrectCount: 12, TotalQuestions: 15}
	assert.InDelta(t, 0.8, s.Accuracy(), 0.0001)

	// Zero denominator yields 0, never NaN
	empty := SectionResult{CorrectCount: 0, TotalQuestions: 0}
	assert.Equal(t, 0.0, empty.Accuracy())

	negative := SectionResult{CorrectCount: 3, TotalQuestions: -1}
	assert.Equal(t, 0.0, negative.Accuracy())
}

func TestSectionResult_TimeDiff(t *testing.T) {
	planned := SectionResult{
		MinutesUsed:    30,
		PlannedMinutes: sql.NullFloat64{Float64: 25, Valid: true},
	}
	assert.InDelta(t, 5.0, planned.TimeDiff(), 0.0001)

	under := SectionResult{
		MinutesUsed:    20,
		PlannedMinutes: sql.NullFloat64{Float64: 25, Valid: true},
	}
	assert.InDelta(t, -5.0, under.TimeDiff(), 0.0001)

	// No plan means no overrun, regardless of minutes used
	unplanned := SectionResult{MinutesUsed: 40}
	assert.Equal(t, 0.0, unplanned.TimeDiff())
}

func TestExamRecord_OverallAccuracy(t *testing.T) {
	r := ExamRecord{TotalCorrect: 100, TotalQuestions: 125}
	assert.InDelta(t, 0.8, r.OverallAccuracy(), 0.0001)

	empty := ExamRecord{}
	assert.Equal(t, 0.0, empty.OverallAccuracy())
}

func TestCheckinState_AllTasksDone(t *testing.T) {
	// Empty task list never counts as done
	empty := CheckinState{}
	assert.False(t, empty.AllTasksDone())

	partial := CheckinState{Tasks: []TaskItem{
		{Text: "a", Done: true},
		{Text: "b", Done: false},
	}}
	assert.False(t, partial.AllTasksDone())

	complete := CheckinState{Tasks: []TaskItem{
		{Text: "a", Done: true},
		{Text: "b", Done: true},
	}}
	assert.True(t, complete.AllTasksDone())
}

func TestUser_MarshalJSON_NullFields(t *testing.T) {
	u := User{
		ID:       1,
		Username: "tester",
		Email:    sql.NullString{String: "t@example.com", Valid: true},
		PasswordHash: sql.NullString{
			String: "secret-hash",
			Valid:  true,
		},
	}

	data, err := json.Marshal(u)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "tester", decoded["username"])
	assert.Equal(t, "t@example.com", decoded["email"])
	assert.Nil(t, decoded["timezone"])

	// Password hash must never leak into JSON
	_, present := decoded["PasswordHash"]
	assert.False(t, present)
	assert.NotContains(t, string(data), "secret-hash")
}

func TestSectionResult_MarshalJSON_IncludesDerivedAccuracy(t *testing.T) {
	s := SectionResult{
		SectionName:    "data-analysis",
		CorrectCount:   15,
		TotalQuestions: 20,
		MinutesUsed:    28,
	}

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.InDelta(t, 0.75, decoded["accuracy"].(float64), 0.0001)
	assert.Nil(t, decoded["planned_minutes"])
}

func TestCheckinState_MarshalJSON_NullDates(t *testing.T) {
	c := CheckinState{UserID: 7, StreakCount: 3}

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Nil(t, decoded["last_completed_date"])
	assert.Nil(t, decoded["tasks_date"])
	assert.Equal(t, float64(3), decoded["streak_count"])
}
