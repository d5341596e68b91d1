package config

import "time"

// Timeout constants
const (
	// HTTP timeouts
	DefaultHTTPTimeout = 60 * time.Second
	ShutdownTimeout    = 30 * time.Second
	TestTimeout        = 100 * time.Millisecond

	// Database timeouts
	DatabaseConnMaxLifetime = 5 * time.Minute

	// Session timeouts
	SessionMaxAge = 7 * 24 * time.Hour // 7 days
)

// Session configuration constants
const (
	// Session settings
	SessionPath     = "/"
	SessionHTTPOnly = true
	SessionSecure   = false // Set to true in production with HTTPS

	// Session name
	SessionName = "xingce-session"
)

// Security configuration constants
const (
	// Content Security Policy
	DefaultCSP = "default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'; img-src 'self' data:; media-src 'self' blob: data:;"
)

// Scoring and planning defaults
const (
	// DefaultGoalScore is the target total score shown on the dashboard
	DefaultGoalScore = 75.0

	// DefaultReviewWindowDays bounds review analytics to a trailing window
	DefaultReviewWindowDays = 30

	// OvertimeGraceMinutes is how far a section may run past its planned
	// minutes before it is flagged as over time
	OvertimeGraceMinutes = 2.0

	// StrongAccuracy and WeakAccuracy are the band boundaries for section advice
	StrongAccuracy = 0.8
	WeakAccuracy   = 0.6

	// WeeklyPlanDays is the length of a generated study plan
	WeeklyPlanDays = 7

	// WeeklyPlanHistoryDepth is how many recent exam records feed the weekly plan
	WeeklyPlanHistoryDepth = 3

	// RecentScoreDepth is how many recent records feed the rolling score average
	RecentScoreDepth = 5

	// SectionErrorsTopN caps the per-section wrong-count ranking in review analytics
	SectionErrorsTopN = 10
)

// Strategy defaults applied when a user has not saved a strategy yet
const (
	DefaultQuantSecondsPerQuestion = 60
	DefaultDataMinutesPerPassage   = 6
	DefaultLogicSecondsPerQuestion = 90
	DefaultQuantEasyOnly           = true
	DefaultDataSkipOnTimeout       = true
)
