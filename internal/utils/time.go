package contextutils

import (
	"context"
	"time"

	"github.com/EchoAurora/xingcefupan/internal/models"
)

// DateOnlyLayout is the canonical YYYY-MM-DD layout used for exam dates,
// review note dates and check-in bookkeeping.
const DateOnlyLayout = "2006-01-02"

// ParseDateOnly parses a YYYY-MM-DD date string. The returned time is
// truncated to midnight UTC so date arithmetic is stable regardless of the
// caller's location.
func ParseDateOnly(dateStr string) (time.Time, error) {
	date, err := time.Parse(DateOnlyLayout, dateStr)
	if err != nil {
		return time.Time{}, WrapError(err, "invalid date format")
	}
	return date, nil
}

// FormatDateOnly renders a time as YYYY-MM-DD.
func FormatDateOnly(t time.Time) string {
	return t.Format(DateOnlyLayout)
}

// TruncateToDay drops the time-of-day portion, keeping the calendar date in UTC.
func TruncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole calendar days from a to b (positive when b is
// later). Both arguments are truncated to their dates first.
func DaysBetween(a, b time.Time) int {
	da := TruncateToDay(a)
	db := TruncateToDay(b)
	return int(db.Sub(da).Hours() / 24)
}

// TodayForUser returns the current calendar date in the user's configured
// timezone, truncated to midnight UTC. Falls back to UTC when the user has no
// timezone or the name does not resolve. The userLookup function is injected
// to fetch the user (to avoid tight coupling and enable testing).
func TodayForUser(
	ctx context.Context,
	userID int,
	userLookup func(context.Context, int) (*models.User, error),
) (time.Time, string, error) {
	user, err := userLookup(ctx, userID)
	if err != nil {
		return time.Time{}, "", err
	}

	timezone := "UTC"
	if user != nil && user.Timezone.Valid && user.Timezone.String != "" {
		timezone = user.Timezone.String
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		// Fallback to UTC if invalid timezone
		loc = time.UTC
		timezone = "UTC"
	}

	now := time.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return today, timezone, nil
}

// ParseDateInUserTimezone parses a YYYY-MM-DD date string in the user's
// timezone. Returns the parsed time (in the location), the effective timezone
// name (or "UTC" on fallback), and an error.
func ParseDateInUserTimezone(
	ctx context.Context,
	userID int,
	dateStr string,
	userLookup func(context.Context, int) (*models.User, error),
) (time.Time, string, error) {
	user, err := userLookup(ctx, userID)
	if err != nil {
		return time.Time{}, "", err
	}

	timezone := "UTC"
	if user != nil && user.Timezone.Valid && user.Timezone.String != "" {
		timezone = user.Timezone.String
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
		timezone = "UTC"
	}

	date, err := time.ParseInLocation(DateOnlyLayout, dateStr, loc)
	if err != nil {
		return time.Time{}, timezone, WrapError(err, "invalid date format")
	}

	return date, timezone, nil
}

// WindowStart returns the earliest date (inclusive) of a trailing window of
// windowDays calendar days ending at today. A window of zero or fewer days
// collapses to today itself.
func WindowStart(today time.Time, windowDays int) time.Time {
	if windowDays < 0 {
		windowDays = 0
	}
	return TruncateToDay(today).AddDate(0, 0, -windowDays)
}
