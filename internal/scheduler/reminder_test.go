package scheduler

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/EchoAurora/xingcefupan/internal/config"
	"github.com/EchoAurora/xingcefupan/internal/models"
	"github.com/EchoAurora/xingcefupan/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockUserService struct {
	mock.Mock
}

func (m *mockUserService) CreateUserWithPassword(ctx context.Context, username, password, email, timezone string) (*models.User, error) {
	args := m.Called(ctx, username, password, email, timezone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserService) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserService) AuthenticateUser(ctx context.Context, username, password string) (*models.User, error) {
	args := m.Called(ctx, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserService) UpdateUserProfile(ctx context.Context, userID int, email, timezone string) error {
	args := m.Called(ctx, userID, email, timezone)
	return args.Error(0)
}

func (m *mockUserService) UpdateUserPassword(ctx context.Context, userID int, newPassword string) error {
	args := m.Called(ctx, userID, newPassword)
	return args.Error(0)
}

func (m *mockUserService) UpdateLastActive(ctx context.Context, userID int) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *mockUserService) GetAllUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *mockUserService) DeleteUser(ctx context.Context, userID int) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *mockUserService) EnsureAdminUserExists(ctx context.Context, adminUsername, adminPassword string) error {
	args := m.Called(ctx, adminUsername, adminPassword)
	return args.Error(0)
}

func (m *mockUserService) IsAdmin(ctx context.Context, userID int) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserService) ResetDatabase(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockUserService) GetDB() *sql.DB {
	return nil
}

type mockCheckinService struct {
	mock.Mock
}

func (m *mockCheckinService) GetState(ctx context.Context, userID int) (*models.CheckinState, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CheckinState), args.Error(1)
}

func (m *mockCheckinService) SaveState(ctx context.Context, state *models.CheckinState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *mockCheckinService) RefreshTodayTasks(ctx context.Context, userID int, plan *models.WeekPlan, today time.Time) (*models.CheckinState, error) {
	args := m.Called(ctx, userID, plan, today)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CheckinState), args.Error(1)
}

func (m *mockCheckinService) ResetTasks(ctx context.Context, userID int, plan *models.WeekPlan, today time.Time) (*models.CheckinState, error) {
	args := m.Called(ctx, userID, plan, today)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CheckinState), args.Error(1)
}

func (m *mockCheckinService) SetTaskDone(ctx context.Context, userID, taskIndex int, done bool) (*models.CheckinState, error) {
	args := m.Called(ctx, userID, taskIndex, done)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CheckinState), args.Error(1)
}

func (m *mockCheckinService) AddCustomTask(ctx context.Context, userID int, text string, today time.Time) (*models.CheckinState, error) {
	args := m.Called(ctx, userID, text, today)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CheckinState), args.Error(1)
}

func (m *mockCheckinService) CompleteCheckin(ctx context.Context, userID int, today time.Time) (*models.CheckinState, error) {
	args := m.Called(ctx, userID, today)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CheckinState), args.Error(1)
}

type mockEmailService struct {
	mock.Mock
}

func (m *mockEmailService) SendDailyReminder(ctx context.Context, user *models.User, state *models.CheckinState) error {
	args := m.Called(ctx, user, state)
	return args.Error(0)
}

func (m *mockEmailService) SendEmail(ctx context.Context, to, subject, templateName string, data map[string]interface{}) error {
	args := m.Called(ctx, to, subject, templateName, data)
	return args.Error(0)
}

func (m *mockEmailService) IsEnabled() bool {
	args := m.Called()
	return args.Bool(0)
}

func reminderConfig(hour int) *config.Config {
	return &config.Config{
		Email: config.EmailConfig{
			Enabled: true,
			SMTP:    config.SMTPConfig{Host: "smtp.example.com"},
			DailyReminder: config.DailyReminderConfig{
				Enabled: true,
				Hour:    hour,
			},
		},
	}
}

func newTestScheduler(t *testing.T, cfg *config.Config) (*ReminderScheduler, *mockUserService, *mockCheckinService, *mockEmailService) {
	t.Helper()
	users := new(mockUserService)
	checkins := new(mockCheckinService)
	emails := new(mockEmailService)
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	return NewReminderScheduler(users, checkins, emails, cfg, logger), users, checkins, emails
}

func userWithEmail(id int, username, email, timezone string) models.User {
	return models.User{
		ID:       id,
		Username: username,
		Email:    sql.NullString{String: email, Valid: email != ""},
		Timezone: sql.NullString{String: timezone, Valid: timezone != ""},
	}
}

func TestRunSweep_SendsReminderInUserLocalHour(t *testing.T) {
	// 13:00 UTC is 21:00 in Asia/Shanghai.
	now := time.Date(2024, 3, 10, 13, 30, 0, 0, time.UTC)

	s, users, checkins, emails := newTestScheduler(t, reminderConfig(21))
	s.timeNow = func() time.Time { return now }

	user := userWithEmail(1, "kaoshen", "kaoshen@example.com", "Asia/Shanghai")
	state := &models.CheckinState{UserID: 1, StreakCount: 4}

	emails.On("IsEnabled").Return(true)
	users.On("GetAllUsers", mock.Anything).Return([]models.User{user}, nil)
	checkins.On("GetState", mock.Anything, 1).Return(state, nil)
	emails.On("SendDailyReminder", mock.Anything, mock.AnythingOfType("*models.User"), state).Return(nil).Once()

	require.NoError(t, s.runSweep(context.Background()))

	// A second sweep in the same hour must not send again.
	require.NoError(t, s.runSweep(context.Background()))
	emails.AssertExpectations(t)
}

func TestRunSweep_SkipsOutsideReminderHour(t *testing.T) {
	now := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

	s, users, _, emails := newTestScheduler(t, reminderConfig(21))
	s.timeNow = func() time.Time { return now }

	emails.On("IsEnabled").Return(true)
	users.On("GetAllUsers", mock.Anything).Return([]models.User{
		userWithEmail(1, "kaoshen", "kaoshen@example.com", "UTC"),
	}, nil)

	require.NoError(t, s.runSweep(context.Background()))
	emails.AssertNotCalled(t, "SendDailyReminder", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunSweep_SkipsUsersWithoutEmailOrAlreadyCheckedIn(t *testing.T) {
	now := time.Date(2024, 3, 10, 21, 10, 0, 0, time.UTC)

	s, users, checkins, emails := newTestScheduler(t, reminderConfig(21))
	s.timeNow = func() time.Time { return now }

	noEmail := userWithEmail(1, "silent", "", "UTC")
	checkedIn := userWithEmail(2, "diligent", "d@example.com", "UTC")

	emails.On("IsEnabled").Return(true)
	users.On("GetAllUsers", mock.Anything).Return([]models.User{noEmail, checkedIn}, nil)
	checkins.On("GetState", mock.Anything, 2).Return(&models.CheckinState{
		UserID:            2,
		LastCompletedDate: sql.NullString{String: "2024-03-10", Valid: true},
	}, nil)

	require.NoError(t, s.runSweep(context.Background()))
	emails.AssertNotCalled(t, "SendDailyReminder", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunSweep_DisabledReminderDoesNothing(t *testing.T) {
	cfg := reminderConfig(21)
	cfg.Email.DailyReminder.Enabled = false

	s, users, _, _ := newTestScheduler(t, cfg)
	s.timeNow = func() time.Time { return time.Date(2024, 3, 10, 21, 0, 0, 0, time.UTC) }

	require.NoError(t, s.runSweep(context.Background()))
	users.AssertNotCalled(t, "GetAllUsers", mock.Anything)
}

func TestDueNow_UnknownTimezoneFallsBackToUTC(t *testing.T) {
	s, _, _, _ := newTestScheduler(t, reminderConfig(21))

	user := userWithEmail(3, "lost", "l@example.com", "Not/AZone")
	now := time.Date(2024, 3, 10, 21, 5, 0, 0, time.UTC)

	date, due := s.dueNow(&user, now)
	assert.True(t, due)
	assert.Equal(t, "2024-03-10", date)
}
