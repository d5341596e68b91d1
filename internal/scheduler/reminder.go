// Package scheduler contains the background loop that sends daily practice
// reminder emails. It runs inside the server process rather than as a
// separate worker: the sweep is cheap and the only scheduled job is the
// reminder, so a goroutine with a ticker is enough.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/EchoAurora/xingcefupan/internal/config"
	"github.com/EchoAurora/xingcefupan/internal/models"
	"github.com/EchoAurora/xingcefupan/internal/observability"
	"github.com/EchoAurora/xingcefupan/internal/services"
	contextutils "github.com/EchoAurora/xingcefupan/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// sweepInterval is how often the scheduler checks whether any user has
// crossed into their reminder hour. Short enough that an hour is never
// skipped entirely, long enough to stay off the query hot path.
const sweepInterval = 5 * time.Minute

// ReminderScheduler periodically sends the daily reminder email to users
// who have an email address and have not completed today's check-in.
// Reminder hour is evaluated in each user's own timezone.
type ReminderScheduler struct {
	userService    services.UserServiceInterface
	checkinService services.CheckinServiceInterface
	emailService   services.EmailServiceInterface
	cfg            *config.Config
	logger         *observability.Logger

	mu       sync.Mutex
	lastSent map[int]string // userID -> local date a reminder was last sent

	// Time function for testing - defaults to time.Now
	timeNow func() time.Time
}

// NewReminderScheduler creates a new ReminderScheduler instance
func NewReminderScheduler(
	userService services.UserServiceInterface,
	checkinService services.CheckinServiceInterface,
	emailService services.EmailServiceInterface,
	cfg *config.Config,
	logger *observability.Logger,
) *ReminderScheduler {
	return &ReminderScheduler{
		userService:    userService,
		checkinService: checkinService,
		emailService:   emailService,
		cfg:            cfg,
		logger:         logger,
		lastSent:       make(map[int]string),
		timeNow:        time.Now,
	}
}

// Start runs the reminder loop until the context is cancelled.
func (s *ReminderScheduler) Start(ctx context.Context) {
	s.logger.Info(ctx, "Reminder scheduler started", map[string]interface{}{
		"reminder_hour": s.cfg.Email.DailyReminder.Hour,
		"interval":      sweepInterval.String(),
	})

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Reminder scheduler stopped", nil)
			return
		case <-ticker.C:
			if err := s.runSweep(ctx); err != nil {
				s.logger.Error(ctx, "Reminder sweep failed", err, nil)
			}
		}
	}
}

// runSweep sends reminders to every user whose local time is currently in
// the reminder hour and who has not been reminded or checked in today.
func (s *ReminderScheduler) runSweep(ctx context.Context) (err error) {
	ctx, span := observability.TraceEmailFunction(ctx, "run_reminder_sweep",
		attribute.Int("reminder.hour", s.cfg.Email.DailyReminder.Hour),
		attribute.Bool("reminder.enabled", s.cfg.Email.DailyReminder.Enabled),
	)
	defer observability.FinishSpan(span, &err)

	if !s.cfg.Email.DailyReminder.Enabled || !s.emailService.IsEnabled() {
		return nil
	}

	users, err := s.userService.GetAllUsers(ctx)
	if err != nil {
		return contextutils.WrapError(err, "failed to list users for reminder sweep")
	}

	now := s.timeNow()
	sent := 0
	for i := range users {
		user := &users[i]
		if !user.Email.Valid || user.Email.String == "" {
			continue
		}

		localDate, due := s.dueNow(user, now)
		if !due {
			continue
		}
		if s.alreadySent(user.ID, localDate) {
			continue
		}

		state, err := s.checkinService.GetState(ctx, user.ID)
		if err != nil {
			s.logger.Error(ctx, "Failed to load checkin state for reminder", err, map[string]interface{}{
				"user_id": user.ID,
			})
			continue
		}

		// A completed check-in today means the reminder has nothing to say.
		if state.LastCompletedDate.Valid && state.LastCompletedDate.String == localDate {
			s.markSent(user.ID, localDate)
			continue
		}

		if err := s.emailService.SendDailyReminder(ctx, user, state); err != nil {
			s.logger.Error(ctx, "Failed to send daily reminder", err, map[string]interface{}{
				"user_id": user.ID,
			})
			continue
		}
		s.markSent(user.ID, localDate)
		sent++
	}

	span.SetAttributes(
		attribute.Int("users.total", len(users)),
		attribute.Int("reminders.sent", sent),
	)
	if sent > 0 {
		s.logger.Info(ctx, "Daily reminders processed", map[string]interface{}{
			"total_users":    len(users),
			"reminders_sent": sent,
		})
	}
	return nil
}

// dueNow reports whether the user's local clock is in the reminder hour,
// and returns the user's local calendar date. Unknown timezones fall back
// to UTC rather than skipping the user.
func (s *ReminderScheduler) dueNow(user *models.User, now time.Time) (string, bool) {
	loc := time.UTC
	if user.Timezone.Valid && user.Timezone.String != "" {
		if l, err := time.LoadLocation(user.Timezone.String); err == nil {
			loc = l
		}
	}
	local := now.In(loc)
	return contextutils.FormatDateOnly(local), local.Hour() == s.cfg.Email.DailyReminder.Hour
}

func (s *ReminderScheduler) alreadySent(userID int, localDate string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSent[userID] == localDate
}

func (s *ReminderScheduler) markSent(userID int, localDate string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSent[userID] = localDate
}
