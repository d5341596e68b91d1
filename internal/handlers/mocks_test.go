package handlers

import (
	"context"
	"database/sql"
	"time"

	"github.com/EchoAurora/xingcefupan/internal/models"
	"github.com/EchoAurora/xingcefupan/internal/services"

	"github.com/stretchr/testify/mock"
)

// MockUserService implements services.UserServiceInterface for testing
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) CreateUserWithPassword(ctx context.Context, username, password, email, timezone string) (*models.User, error) {
	args := m.Called(ctx, username, password, email, timezone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) AuthenticateUser(ctx context.Context, username, password string) (*models.User, error) {
	args := m.Called(ctx, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) UpdateUserProfile(ctx context.Context, userID int, email, timezone string) error {
	args := m.Called(ctx, userID, email, timezone)
	return args.Error(0)
}

func (m *MockUserService) UpdateUserPassword(ctx context.Context, userID int, newPassword string) error {
	args := m.Called(ctx, userID, newPassword)
	return args.Error(0)
}

func (m *MockUserService) UpdateLastActive(ctx context.Context, userID int) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockUserService) GetAllUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserService) DeleteUser(ctx context.Context, userID int) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockUserService) EnsureAdminUserExists(ctx context.Context, adminUsername, adminPassword string) error {
	args := m.Called(ctx, adminUsername, adminPassword)
	return args.Error(0)
}

func (m *MockUserService) IsAdmin(ctx context.Context, userID int) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserService) ResetDatabase(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUserService) GetDB() *sql.DB {
	return nil
}

// MockExamService implements services.ExamServiceInterface for testing
type MockExamService struct {
	mock.Mock
}

func (m *MockExamService) CreateExamRecord(ctx context.Context, userID int, submission *services.ExamSubmission) (*models.ExamRecord, error) {
	args := m.Called(ctx, userID, submission)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExamRecord), args.Error(1)
}

func (m *MockExamService) GetExamRecord(ctx context.Context, userID, recordID int) (*models.ExamRecord, error) {
	args := m.Called(ctx, userID, recordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExamRecord), args.Error(1)
}

func (m *MockExamService) GetLatestExamRecord(ctx context.Context, userID int) (*models.ExamRecord, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExamRecord), args.Error(1)
}

func (m *MockExamService) ListExamRecords(ctx context.Context, userID int) ([]models.ExamRecord, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ExamRecord), args.Error(1)
}

func (m *MockExamService) GetRecentExamRecords(ctx context.Context, userID, limit int) ([]models.ExamRecord, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ExamRecord), args.Error(1)
}

func (m *MockExamService) DeleteExamRecord(ctx context.Context, userID, recordID int) error {
	args := m.Called(ctx, userID, recordID)
	return args.Error(0)
}

// MockStrategyService implements services.StrategyServiceInterface for testing
type MockStrategyService struct {
	mock.Mock
}

func (m *MockStrategyService) GetStrategy(ctx context.Context, userID int) (*models.Strategy, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Strategy), args.Error(1)
}

func (m *MockStrategyService) SaveStrategy(ctx context.Context, strategy *models.Strategy) error {
	args := m.Called(ctx, strategy)
	return args.Error(0)
}

// MockCheckinService implements services.CheckinServiceInterface for testing
type MockCheckinService struct {
	mock.Mock
}

func (m *MockCheckinService) GetState(ctx context.Context, userID int) (*models.CheckinState, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CheckinState), args.Error(1)
}

func (m *MockCheckinService) SaveState(ctx context.Context, state *models.CheckinState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *MockCheckinService) RefreshTodayTasks(ctx context.Context, userID int, plan *models.WeekPlan, today time.Time) (*models.CheckinState, error) {
	args := m.Called(ctx, userID, plan, today)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CheckinState), args.Error(1)
}

func (m *MockCheckinService) ResetTasks(ctx context.Context, userID int, plan *models.WeekPlan, today time.Time) (*models.CheckinState, error) {
	args := m.Called(ctx, userID, plan, today)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CheckinState), args.Error(1)
}

func (m *MockCheckinService) SetTaskDone(ctx context.Context, userID, taskIndex int, done bool) (*models.CheckinState, error) {
	args := m.Called(ctx, userID, taskIndex, done)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CheckinState), args.Error(1)
}

func (m *MockCheckinService) AddCustomTask(ctx context.Context, userID int, text string, today time.Time) (*models.CheckinState, error) {
	args := m.Called(ctx, userID, text, today)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CheckinState), args.Error(1)
}

func (m *MockCheckinService) CompleteCheckin(ctx context.Context, userID int, today time.Time) (*models.CheckinState, error) {
	args := m.Called(ctx, userID, today)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CheckinState), args.Error(1)
}

// MockReviewService implements services.ReviewServiceInterface for testing
type MockReviewService struct {
	mock.Mock
}

func (m *MockReviewService) CreateReviewNote(ctx context.Context, userID int, submission *services.ReviewNoteSubmission) (*models.ReviewNote, error) {
	args := m.Called(ctx, userID, submission)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReviewNote), args.Error(1)
}

func (m *MockReviewService) ListReviewNotes(ctx context.Context, userID int, filter services.ReviewNoteFilter) ([]models.ReviewNote, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ReviewNote), args.Error(1)
}

func (m *MockReviewService) DeleteReviewNote(ctx context.Context, userID, noteID int) error {
	args := m.Called(ctx, userID, noteID)
	return args.Error(0)
}

func (m *MockReviewService) GetReviewAnalytics(ctx context.Context, userID, windowDays int, today time.Time) (*models.ReviewAnalytics, error) {
	args := m.Called(ctx, userID, windowDays, today)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReviewAnalytics), args.Error(1)
}

// MockEmailService implements services.EmailServiceInterface for testing
type MockEmailService struct {
	mock.Mock
}

func (m *MockEmailService) SendDailyReminder(ctx context.Context, user *models.User, state *models.CheckinState) error {
	args := m.Called(ctx, user, state)
	return args.Error(0)
}

func (m *MockEmailService) SendEmail(ctx context.Context, to, subject, templateName string, data map[string]interface{}) error {
	args := m.Called(ctx, to, subject, templateName, data)
	return args.Error(0)
}

func (m *MockEmailService) IsEnabled() bool {
	args := m.Called()
	return args.Bool(0)
}
