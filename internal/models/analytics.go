package models

// SectionMetric is the fixed-shape per-section diagnostic for one exam
// record. All values are derived; nothing here is persisted.
type SectionMetric struct {
	SectionName  string  `json:"section_name"`
	CorrectCount int     `json:"correct_count"`
	Questions    int     `json:"questions"`
	Accuracy     float64 `json:"accuracy"`
	MinutesUsed  float64 `json:"minutes_used"`
	PlanMinutes  float64 `json:"plan_minutes"`
	// TimeDiff is minutes used minus planned; 0 when the section has no plan
	TimeDiff float64 `json:"time_diff"`
	// HasPlan reports whether a planned-minutes budget was present
	HasPlan bool `json:"has_plan"`
}

// SectionScore pairs a section with a ranking value (accuracy or overrun).
type SectionScore struct {
	SectionName string  `json:"section_name"`
	Value       float64 `json:"value"`
}

// Advice tag values attached to per-section suggestions.
const (
	AdviceTagOverTime   = "over_time"
	AdviceTagStrong     = "strong"
	AdviceTagWeak       = "weak"
	AdviceTagImprovable = "improvable"
)

// SectionAdvice is the banded judgement plus concrete drill suggestions for
// one section of one exam record.
type SectionAdvice struct {
	SectionName string   `json:"section_name"`
	Tags        []string `json:"tags"`
	Actions     []string `json:"actions"`
}

// RecordDiagnostics is the full diagnostic readout for a single exam record.
type RecordDiagnostics struct {
	RecordID          int             `json:"record_id"`
	Metrics           []SectionMetric `json:"metrics"`
	WeakestByAccuracy []SectionScore  `json:"weakest_by_accuracy"`
	WorstByTime       []SectionScore  `json:"worst_by_time"`
	Advice            []SectionAdvice `json:"advice"`
}

// NextDayPlan is the focused 3-item drill list derived from one record.
type NextDayPlan struct {
	Tasks         []string     `json:"tasks"`
	WorstAccuracy SectionScore `json:"worst_accuracy"`
	WorstTime     SectionScore `json:"worst_time"`
}

// DayPlan is one day of a generated weekly study plan.
type DayPlan struct {
	Date  string   `json:"date"`
	Focus string   `json:"focus"`
	Tasks []string `json:"tasks"`
}

// WeekPlan is a 7-day rotation over the focus sections extracted from recent
// exam records.
type WeekPlan struct {
	FocusSections []string  `json:"focus_sections"`
	Days          []DayPlan `json:"days"`
}

// CauseTotals sums the three error causes over a window of review notes.
type CauseTotals struct {
	KnowledgeGap     int `json:"knowledge_gap"`
	MethodUnfamiliar int `json:"method_unfamiliar"`
	CarelessTrap     int `json:"careless_trap"`
}

// SectionErrorCount is the aggregated wrong count for one section.
type SectionErrorCount struct {
	SectionName string `json:"section_name"`
	WrongCount  int    `json:"wrong_count"`
}

// ReviewAnalytics is the windowed error-cause breakdown over review notes.
type ReviewAnalytics struct {
	HasData       bool                `json:"has_data"`
	WindowDays    int                 `json:"window_days"`
	CauseTotals   CauseTotals         `json:"cause_totals"`
	SectionErrors []SectionErrorCount `json:"section_errors"`
}

// DashboardSummary is the headline KPI block for the review dashboard.
type DashboardSummary struct {
	HasData         bool     `json:"has_data"`
	RecordCount     int      `json:"record_count"`
	LatestScore     float64  `json:"latest_score"`
	ScoreDelta      *float64 `json:"score_delta"`
	GoalScore       float64  `json:"goal_score"`
	OverallAccuracy float64  `json:"overall_accuracy"`
	RecentAverage   float64  `json:"recent_average"`
	ScorePerMinute  float64  `json:"score_per_minute"`
}
