// Package models defines data structures used throughout the exam review application.
package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// User represents a user in the system
type User struct {
	ID           int            `json:"id" yaml:"id"`
	Username     string         `json:"username" yaml:"username"`
	Email        sql.NullString `json:"email" yaml:"email"`
	Timezone     sql.NullString `json:"timezone" yaml:"timezone"`
	PasswordHash sql.NullString `json:"-" yaml:"-"` // Omit from JSON responses
	IsAdmin      bool           `json:"is_admin" yaml:"is_admin"`
	LastActive   sql.NullTime   `json:"last_active" yaml:"last_active"`
	CreatedAt    time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" yaml:"updated_at"`
}

// MarshalJSON customizes JSON marshaling for User to handle sql.NullString and sql.NullTime properly
func (u User) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID         int        `json:"id"`
		Username   string     `json:"username"`
		Email      *string    `json:"email"`
		Timezone   *string    `json:"timezone"`
		IsAdmin    bool       `json:"is_admin"`
		LastActive *time.Time `json:"last_active"`
		CreatedAt  time.Time  `json:"created_at"`
		UpdatedAt  time.Time  `json:"updated_at"`
	}{
		ID:         u.ID,
		Username:   u.Username,
		Email:      nullStringToPointer(u.Email),
		Timezone:   nullStringToPointer(u.Timezone),
		IsAdmin:    u.IsAdmin,
		LastActive: nullTimeToPointer(u.LastActive),
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	})
}

// Helper functions for converting sql.Null types to pointers
func nullStringToPointer(ns sql.NullString) *string {
	if ns.Valid {
		return &ns.String
	}
	return nil
}

func nullTimeToPointer(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

func nullFloatToPointer(nf sql.NullFloat64) *float64 {
	if nf.Valid {
		return &nf.Float64
	}
	return nil
}

// ExamRecord represents one full mock exam attempt. Records are append-only
// and ordered by insertion; edits are expressed as delete plus re-create.
type ExamRecord struct {
	ID             int             `json:"id"`
	UserID         int             `json:"user_id"`
	ExamDate       time.Time       `json:"exam_date"`
	PaperName      string          `json:"paper_name"`
	TotalScore     float64         `json:"total_score"`
	TotalCorrect   int             `json:"total_correct"`
	TotalQuestions int             `json:"total_questions"`
	TotalMinutes   float64         `json:"total_minutes"`
	CreatedAt      time.Time       `json:"created_at"`
	Sections       []SectionResult `json:"sections"`
}

// OverallAccuracy is the whole-paper accuracy, 0 when no questions were attempted.
func (r *ExamRecord) OverallAccuracy() float64 {
	if r.TotalQuestions <= 0 {
		return 0.0
	}
	return float64(r.TotalCorrect) / float64(r.TotalQuestions)
}

// SectionResult is the per-section outcome inside one exam record. Accuracy
// is never stored; it is always derived from the two counts.
type SectionResult struct {
	ID             int             `json:"id"`
	RecordID       int             `json:"record_id"`
	SectionName    string          `json:"section_name"`
	CorrectCount   int             `json:"correct_count"`
	TotalQuestions int             `json:"total_questions"`
	MinutesUsed    float64         `json:"minutes_used"`
	PlannedMinutes sql.NullFloat64 `json:"planned_minutes"`
}

// Accuracy returns correct/total, 0 when the section has no questions.
func (s *SectionResult) Accuracy() float64 {
	if s.TotalQuestions <= 0 {
		return 0.0
	}
	return float64(s.CorrectCount) / float64(s.TotalQuestions)
}

// TimeDiff returns minutes used minus planned minutes. Without a plan the
// overrun is 0, not the raw time used.
func (s *SectionResult) TimeDiff() float64 {
	if !s.PlannedMinutes.Valid {
		return 0.0
	}
	return s.MinutesUsed - s.PlannedMinutes.Float64
}

// MarshalJSON renders PlannedMinutes as a nullable number and includes the
// derived accuracy.
func (s SectionResult) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID             int      `json:"id"`
		RecordID       int      `json:"record_id"`
		SectionName    string   `json:"section_name"`
		CorrectCount   int      `json:"correct_count"`
		TotalQuestions int      `json:"total_questions"`
		MinutesUsed    float64  `json:"minutes_used"`
		PlannedMinutes *float64 `json:"planned_minutes"`
		Accuracy       float64  `json:"accuracy"`
	}{
		ID:             s.ID,
		RecordID:       s.RecordID,
		SectionName:    s.SectionName,
		CorrectCount:   s.CorrectCount,
		TotalQuestions: s.TotalQuestions,
		MinutesUsed:    s.MinutesUsed,
		PlannedMinutes: nullFloatToPointer(s.PlannedMinutes),
		Accuracy:       s.Accuracy(),
	})
}

// ReviewNote is one wrong-answer review entry with its three cause counts.
type ReviewNote struct {
	ID               int       `json:"id"`
	UserID           int       `json:"user_id"`
	NoteDate         time.Time `json:"note_date"`
	PaperName        string    `json:"paper_name"`
	SectionName      string    `json:"section_name"`
	WrongCount       int       `json:"wrong_count"`
	KnowledgeGap     int       `json:"knowledge_gap"`
	MethodUnfamiliar int       `json:"method_unfamiliar"`
	CarelessTrap     int       `json:"careless_trap"`
	ReasonText       string    `json:"reason_text"`
	NextActionText   string    `json:"next_action_text"`
	CreatedAt        time.Time `json:"created_at"`
}

// Strategy holds a user's pacing strategy for the timed sections.
type Strategy struct {
	UserID                  int       `json:"user_id"`
	QuantSecondsPerQuestion int       `json:"quant_seconds_per_question"`
	DataMinutesPerPassage   int       `json:"data_minutes_per_passage"`
	LogicSecondsPerQuestion int       `json:"logic_seconds_per_question"`
	QuantEasyOnly           bool      `json:"quant_easy_only"`
	DataSkipOnTimeout       bool      `json:"data_skip_on_timeout"`
	ReviewWindowDays        int       `json:"review_window_days"`
	CustomNotes             string    `json:"custom_notes"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// Task sources recorded in the check-in state.
const (
	// TaskSourceWeekPlan marks task lists derived from the weekly plan
	TaskSourceWeekPlan = "auto_week_plan"
	// TaskSourceCustom marks task lists the user has edited today
	TaskSourceCustom = "custom"
)

// TaskItem is a single check-in task for the day.
type TaskItem struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// CheckinState is the per-user streak and daily task state. The last
// completed date is kept as the raw stored string: an unparseable value is a
// defined condition (it resets the streak), not a decoding error.
type CheckinState struct {
	UserID            int            `json:"user_id"`
	StreakCount       int            `json:"streak_count"`
	LastCompletedDate sql.NullString `json:"last_completed_date"`
	TaskSource        string         `json:"task_source"`
	Tasks             []TaskItem     `json:"tasks"`
	TasksDate         sql.NullString `json:"tasks_date"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// AllTasksDone reports whether the task list is non-empty and fully checked off.
func (c *CheckinState) AllTasksDone() bool {
	if len(c.Tasks) == 0 {
		return false
	}
	for _, task := range c.Tasks {
		if !task.Done {
			return false
		}
	}
	return true
}

// MarshalJSON renders nullable date strings as plain nullable strings.
func (c CheckinState) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		UserID            int        `json:"user_id"`
		StreakCount       int        `json:"streak_count"`
		LastCompletedDate *string    `json:"last_completed_date"`
		TaskSource        string     `json:"task_source"`
		Tasks             []TaskItem `json:"tasks"`
		TasksDate         *string    `json:"tasks_date"`
		UpdatedAt         time.Time  `json:"updated_at"`
	}{
		UserID:            c.UserID,
		StreakCount:       c.StreakCount,
		LastCompletedDate: nullStringToPointer(c.LastCompletedDate),
		TaskSource:        c.TaskSource,
		Tasks:             c.Tasks,
		TasksDate:         nullStringToPointer(c.TasksDate),
		UpdatedAt:         c.UpdatedAt,
	})
}
