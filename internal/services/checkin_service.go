package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/EchoAurora/xingcefupan/internal/config"
	"github.com/EchoAurora/xingcefupan/internal/models"
	"github.com/EchoAurora/xingcefupan/internal/observability"
	contextutils "github.com/EchoAurora/xingcefupan/internal/utils"
)

// CheckinServiceInterface defines the interface for daily check-in state.
type CheckinServiceInterface interface {
	GetState(ctx context.Context, userID int) (*models.CheckinState, error)
	SaveState(ctx context.Context, state *models.CheckinState) error
	RefreshTodayTasks(ctx context.Context, userID int, plan *models.WeekPlan, today time.Time) (*models.CheckinState, error)
	ResetTasks(ctx context.Context, userID int, plan *models.WeekPlan, today time.Time) (*models.CheckinState, error)
	SetTaskDone(ctx context.Context, userID, taskIndex int, done bool) (*models.CheckinState, error)
	AddCustomTask(ctx context.Context, userID int, text string, today time.Time) (*models.CheckinState, error)
	CompleteCheckin(ctx context.Context, userID int, today time.Time) (*models.CheckinState, error)
}

// CheckinService persists per-user streak and daily task state. The streak
// transition itself is the pure function UpdateStreak; everything else is
// load, apply, save.
type CheckinService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
}

// NewCheckinServiceWithLogger creates a new CheckinService instance with logger
func NewCheckinServiceWithLogger(db *sql.DB, cfg *config.Config, logger *observability.Logger) *CheckinService {
	return &CheckinService{
		db:     db,
		cfg:    cfg,
		logger: logger,
	}
}

// UpdateStreak applies one day's completion to the streak state machine and
// returns the new state without mutating the input.
//
// An empty task list means "not evaluated yet" and changes nothing. An
// unfinished list changes nothing either: the streak never decrements, a
// missed day just fails to advance it. When all tasks are done, a one-day
// gap increments, the same day is idempotent, and anything else (including
// an unparseable stored date) starts a fresh streak of 1.
func UpdateStreak(state models.CheckinState, today time.Time) models.CheckinState {
	if len(state.Tasks) == 0 || !state.AllTasksDone() {
		return state
	}

	today = contextutils.TruncateToDay(today)
	next := state

	if !state.LastCompletedDate.Valid {
		next.StreakCount = 1
	} else if last, err := contextutils.ParseDateOnly(state.LastCompletedDate.String); err != nil {
		next.StreakCount = 1
	} else {
		switch gap := contextutils.DaysBetween(last, today); gap {
		case 1:
			next.StreakCount = state.StreakCount + 1
		case 0:
			// already counted today
		default:
			next.StreakCount = 1
		}
	}

	next.LastCompletedDate = sql.NullString{String: contextutils.FormatDateOnly(today), Valid: true}
	return next
}

// GetState loads the user's check-in state, returning a zero-value state
// for users who have never checked in.
func (s *CheckinService) GetState(ctx context.Context, userID int) (result0 *models.CheckinState, err error) {
	ctx, span := observability.TraceCheckinFunction(ctx, "get_checkin_state", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	state := &models.CheckinState{UserID: userID, TaskSource: models.TaskSourceWeekPlan}
	var tasksJSON []byte
	err = s.db.QueryRowContext(ctx,
		`SELECT user_id, streak_count, last_completed_date, task_source, tasks, tasks_date, updated_at
		FROM checkins WHERE user_id = $1`, userID,
	).Scan(&state.UserID, &state.StreakCount, &state.LastCompletedDate, &state.TaskSource,
		&tasksJSON, &state.TasksDate, &state.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return state, nil
		}
		return nil, contextutils.WrapError(err, "failed to query checkin state")
	}

	if len(tasksJSON) > 0 {
		if err = json.Unmarshal(tasksJSON, &state.Tasks); err != nil {
			return nil, contextutils.WrapError(err, "failed to decode task list")
		}
	}
	return state, nil
}

// SaveState upserts the check-in state.
func (s *CheckinService) SaveState(ctx context.Context, state *models.CheckinState) (err error) {
	ctx, span := observability.TraceCheckinFunction(ctx, "save_checkin_state", observability.AttributeUserID(state.UserID))
	defer observability.FinishSpan(span, &err)

	tasks := state.Tasks
	if tasks == nil {
		tasks = []models.TaskItem{}
	}
	tasksJSON, err := json.Marshal(tasks)
	if err != nil {
		return contextutils.WrapError(err, "failed to encode task list")
	}

	query := `INSERT INTO checkins (user_id, streak_count, last_completed_date, task_source, tasks, tasks_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			streak_count = EXCLUDED.streak_count,
			last_completed_date = EXCLUDED.last_completed_date,
			task_source = EXCLUDED.task_source,
			tasks = EXCLUDED.tasks,
			tasks_date = EXCLUDED.tasks_date,
			updated_at = EXCLUDED.updated_at`

	_, err = s.db.ExecContext(ctx, query,
		state.UserID, state.StreakCount, state.LastCompletedDate, state.TaskSource,
		tasksJSON, state.TasksDate, time.Now(),
	)
	if err != nil {
		return contextutils.WrapError(err, "failed to save checkin state")
	}
	return nil
}

// RefreshTodayTasks replaces a stale task list with today's entry from the
// weekly plan, falling back to the plan's first day when today is outside
// it. A list already generated for today is left alone, so custom edits
// survive within the day but not across midnight.
func (s *CheckinService) RefreshTodayTasks(ctx context.Context, userID int, plan *models.WeekPlan, today time.Time) (result0 *models.CheckinState, err error) {
	ctx, span := observability.TraceCheckinFunction(ctx, "refresh_today_tasks",
		observability.AttributeUserID(userID),
		observability.AttributeDate(contextutils.FormatDateOnly(today)))
	defer observability.FinishSpan(span, &err)

	state, err := s.GetState(ctx, userID)
	if err != nil {
		return nil, err
	}

	todayStr := contextutils.FormatDateOnly(contextutils.TruncateToDay(today))
	if state.TasksDate.Valid && state.TasksDate.String == todayStr {
		return state, nil
	}

	var tasks []models.TaskItem
	if plan != nil && len(plan.Days) > 0 {
		day := plan.Days[0]
		for _, d := range plan.Days {
			if d.Date == todayStr {
				day = d
				break
			}
		}
		for _, text := range day.Tasks {
			tasks = append(tasks, models.TaskItem{Text: text})
		}
	}

	state.Tasks = tasks
	state.TaskSource = models.TaskSourceWeekPlan
	state.TasksDate = sql.NullString{String: todayStr, Valid: true}
	if err = s.SaveState(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// ResetTasks discards the current task list, including custom edits, and
// re-derives today's tasks from the weekly plan. Unlike RefreshTodayTasks
// this happens even when the list is already from today.
func (s *CheckinService) ResetTasks(ctx context.Context, userID int, plan *models.WeekPlan, today time.Time) (result0 *models.CheckinState, err error) {
	ctx, span := observability.TraceCheckinFunction(ctx, "reset_tasks",
		observability.AttributeUserID(userID),
		observability.AttributeDate(contextutils.FormatDateOnly(today)))
	defer observability.FinishSpan(span, &err)

	state, err := s.GetState(ctx, userID)
	if err != nil {
		return nil, err
	}

	state.Tasks = nil
	state.TasksDate = sql.NullString{}
	state.TaskSource = models.TaskSourceWeekPlan
	if err = s.SaveState(ctx, state); err != nil {
		return nil, err
	}
	return s.RefreshTodayTasks(ctx, userID, plan, today)
}

// SetTaskDone toggles one task's done flag by position.
func (s *CheckinService) SetTaskDone(ctx context.Context, userID, taskIndex int, done bool) (result0 *models.CheckinState, err error) {
	ctx, span := observability.TraceCheckinFunction(ctx, "set_task_done", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	state, err := s.GetState(ctx, userID)
	if err != nil {
		return nil, err
	}
	if taskIndex < 0 || taskIndex >= len(state.Tasks) {
		return nil, contextutils.WrapError(contextutils.ErrInvalidInput, "task index out of range")
	}

	state.Tasks[taskIndex].Done = done
	if err = s.SaveState(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// AddCustomTask appends a task for today and flips the source to custom so
// the list is not regenerated again today.
func (s *CheckinService) AddCustomTask(ctx context.Context, userID int, text string, today time.Time) (result0 *models.CheckinState, err error) {
	ctx, span := observability.TraceCheckinFunction(ctx, "add_custom_task", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	if text == "" {
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, "task text is required")
	}

	state, err := s.GetState(ctx, userID)
	if err != nil {
		return nil, err
	}

	state.Tasks = append(state.Tasks, models.TaskItem{Text: text})
	state.TaskSource = models.TaskSourceCustom
	state.TasksDate = sql.NullString{String: contextutils.FormatDateOnly(contextutils.TruncateToDay(today)), Valid: true}
	if err = s.SaveState(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// CompleteCheckin runs the streak transition for today and persists the
// result. The caller decides what "today" means for the user's timezone.
func (s *CheckinService) CompleteCheckin(ctx context.Context, userID int, today time.Time) (result0 *models.CheckinState, err error) {
	ctx, span := observability.TraceCheckinFunction(ctx, "complete_checkin",
		observability.AttributeUserID(userID),
		observability.AttributeDate(contextutils.FormatDateOnly(today)))
	defer observability.FinishSpan(span, &err)

	state, err := s.GetState(ctx, userID)
	if err != nil {
		return nil, err
	}

	next := UpdateStreak(*state, today)
	if err = s.SaveState(ctx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}
