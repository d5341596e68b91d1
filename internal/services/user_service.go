package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/EchoAurora/xingcefupan/internal/config"
	"github.com/EchoAurora/xingcefupan/internal/models"
	"github.com/EchoAurora/xingcefupan/internal/observability"
	contextutils "github.com/EchoAurora/xingcefupan/internal/utils"

	"github.com/lib/pq"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"
)

// UserServiceInterface defines the interface for user-related operations.
// This allows for easier mocking in tests.
type UserServiceInterface interface {
	CreateUserWithPassword(ctx context.Context, username, password, email, timezone string) (*models.User, error)
	GetUserByID(ctx context.Context, id int) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	AuthenticateUser(ctx context.Context, username, password string) (*models.User, error)
	UpdateUserProfile(ctx context.Context, userID int, email, timezone string) error
	UpdateUserPassword(ctx context.Context, userID int, newPassword string) error
	UpdateLastActive(ctx context.Context, userID int) error
	GetAllUsers(ctx context.Context) ([]models.User, error)
	DeleteUser(ctx context.Context, userID int) error
	EnsureAdminUserExists(ctx context.Context, adminUsername, adminPassword string) error
	IsAdmin(ctx context.Context, userID int) (bool, error)
	ResetDatabase(ctx context.Context) error
	GetDB() *sql.DB
}

// UserService provides methods for user management.
type UserService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
}

// userSelectFields contains all user fields for SELECT queries
const userSelectFields = `id, username, email, timezone, password_hash, is_admin, last_active, created_at, updated_at`

// NewUserServiceWithLogger creates a new UserService instance with logger
func NewUserServiceWithLogger(db *sql.DB, cfg *config.Config, logger *observability.Logger) *UserService {
	return &UserService{
		db:     db,
		cfg:    cfg,
		logger: logger,
	}
}

// scanUserFromRow scans a database row into a models.User struct
func (s *UserService) scanUserFromRow(row *sql.Row) (result0 *models.User, err error) {
	user := &models.User{}
	err = row.Scan(
		&user.ID, &user.Username, &user.Email, &user.Timezone, &user.PasswordHash,
		&user.IsAdmin, &user.LastActive, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// getUserByQuery is a shared method for getting a user by any query
func (s *UserService) getUserByQuery(ctx context.Context, query string, args ...interface{}) (result0 *models.User, err error) {
	row := s.db.QueryRowContext(ctx, query, args...)
	var user *models.User
	user, err = s.scanUserFromRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found is not an error here
		}
		return nil, err
	}
	return user, nil
}

// CreateUserWithPassword creates a new user with password authentication
func (s *UserService) CreateUserWithPassword(ctx context.Context, username, password, email, timezone string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "create_user_with_password", attribute.String("user.username", username))
	defer observability.FinishSpan(span, &err)

	// Validate username is not empty
	if username == "" || len(strings.TrimSpace(username)) == 0 {
		return nil, contextutils.WrapError(contextutils.ErrInvalidInput, "username cannot be empty")
	}
	if email != "" && !contextutils.IsValidEmail(email) {
		return nil, contextutils.WrapError(contextutils.ErrInvalidInput, "invalid email address")
	}
	if timezone == "" {
		timezone = "UTC"
	}

	// Hash the password using bcrypt
	var hashedPassword []byte
	hashedPassword, err = bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	query := `INSERT INTO users (username, password_hash, email, timezone, is_admin, last_active, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, FALSE, $5, $6, $7) RETURNING id`
	now := time.Now()
	var id int
	err = s.db.QueryRowContext(ctx, query, username, string(hashedPassword), email, timezone, now, now, now).Scan(&id)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, contextutils.ErrRecordExists
		}
		return nil, err
	}

	var user *models.User
	user, err = s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, contextutils.WrapError(contextutils.ErrDatabaseQuery, "user was created but could not be retrieved from database")
	}
	return user, nil
}

// AuthenticateUser verifies the username/password pair and returns the user on success
func (s *UserService) AuthenticateUser(ctx context.Context, username, password string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "authenticate_user", attribute.String("user.username", username))
	defer observability.FinishSpan(span, &err)

	var user *models.User
	user, err = s.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, contextutils.ErrInvalidCredentials
	}

	// Check if password hash exists
	if !user.PasswordHash.Valid {
		return nil, contextutils.ErrInvalidCredentials
	}

	// Compare provided password with stored hash
	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash.String), []byte(password))
	if err != nil {
		return nil, contextutils.ErrInvalidCredentials
	}

	return user, nil
}

// GetUserByID retrieves a user by their ID
func (s *UserService) GetUserByID(ctx context.Context, id int) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_user_by_id", observability.AttributeUserID(id))
	defer observability.FinishSpan(span, &err)

	query := `SELECT ` + userSelectFields + ` FROM users WHERE id = $1`
	return s.getUserByQuery(ctx, query, id)
}

// GetUserByUsername retrieves a user by their username
func (s *UserService) GetUserByUsername(ctx context.Context, username string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_user_by_username", attribute.String("user.username", username))
	defer observability.FinishSpan(span, &err)

	query := `SELECT ` + userSelectFields + ` FROM users WHERE username = $1`
	return s.getUserByQuery(ctx, query, username)
}

// UpdateUserProfile updates a user's email and timezone
func (s *UserService) UpdateUserProfile(ctx context.Context, userID int, email, timezone string) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "update_user_profile", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	if email != "" && !contextutils.IsValidEmail(email) {
		return contextutils.WrapError(contextutils.ErrInvalidInput, "invalid email address")
	}
	if timezone != "" {
		if _, locErr := time.LoadLocation(timezone); locErr != nil {
			return contextutils.WrapError(contextutils.ErrInvalidInput, "invalid timezone")
		}
	}

	query := `UPDATE users SET email = NULLIF($1, ''), timezone = COALESCE(NULLIF($2, ''), timezone), updated_at = $3 WHERE id = $4`
	result, err := s.db.ExecContext(ctx, query, email, timezone, time.Now(), userID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return contextutils.ErrRecordExists
		}
		return contextutils.WrapError(err, "failed to update user profile")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return contextutils.WrapError(err, "failed to check update result")
	}
	if rows == 0 {
		return contextutils.ErrRecordNotFound
	}
	return nil
}

// UpdateUserPassword sets a new bcrypt-hashed password for the user
func (s *UserService) UpdateUserPassword(ctx context.Context, userID int, newPassword string) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "update_user_password", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	if newPassword == "" {
		return contextutils.WrapError(contextutils.ErrInvalidInput, "password cannot be empty")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	query := `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`
	result, err := s.db.ExecContext(ctx, query, string(hashedPassword), time.Now(), userID)
	if err != nil {
		return contextutils.WrapError(err, "failed to update password")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return contextutils.WrapError(err, "failed to check update result")
	}
	if rows == 0 {
		return contextutils.ErrRecordNotFound
	}
	return nil
}

// UpdateLastActive stamps the user's last activity time
func (s *UserService) UpdateLastActive(ctx context.Context, userID int) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "update_last_active", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	query := `UPDATE users SET last_active = $1 WHERE id = $2`
	_, err = s.db.ExecContext(ctx, query, time.Now(), userID)
	if err != nil {
		return contextutils.WrapError(err, "failed to update last active")
	}
	return nil
}

// GetAllUsers returns all users ordered by username
func (s *UserService) GetAllUsers(ctx context.Context) (result0 []models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_all_users")
	defer observability.FinishSpan(span, &err)

	query := `SELECT ` + userSelectFields + ` FROM users ORDER BY username`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query users")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var users []models.User
	for rows.Next() {
		user := models.User{}
		err = rows.Scan(
			&user.ID, &user.Username, &user.Email, &user.Timezone, &user.PasswordHash,
			&user.IsAdmin, &user.LastActive, &user.CreatedAt, &user.UpdatedAt,
		)
		if err != nil {
			return nil, contextutils.WrapError(err, "failed to scan user")
		}
		users = append(users, user)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate users")
	}
	return users, nil
}

// DeleteUser removes a user and all dependent rows
func (s *UserService) DeleteUser(ctx context.Context, userID int) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "delete_user", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return contextutils.WrapError(err, "failed to delete user")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return contextutils.WrapError(err, "failed to check delete result")
	}
	if rows == 0 {
		return contextutils.ErrRecordNotFound
	}
	return nil
}

// EnsureAdminUserExists creates or updates the admin user with the given credentials
func (s *UserService) EnsureAdminUserExists(ctx context.Context, adminUsername, adminPassword string) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "ensure_admin_user", attribute.String("user.username", adminUsername))
	defer observability.FinishSpan(span, &err)

	if adminUsername == "" || adminPassword == "" {
		return contextutils.WrapError(contextutils.ErrInvalidInput, "admin username and password must be configured")
	}

	existing, err := s.GetUserByUsername(ctx, adminUsername)
	if err != nil {
		return err
	}

	if existing == nil {
		hashedPassword, hashErr := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
		if hashErr != nil {
			return hashErr
		}
		now := time.Now()
		query := `INSERT INTO users (username, password_hash, timezone, is_admin, last_active, created_at, updated_at)
			VALUES ($1, $2, 'UTC', TRUE, $3, $4, $5)`
		_, err = s.db.ExecContext(ctx, query, adminUsername, string(hashedPassword), now, now, now)
		if err != nil {
			return contextutils.WrapError(err, "failed to create admin user")
		}
		s.logger.Info(ctx, "Created admin user", map[string]interface{}{"username": adminUsername})
		return nil
	}

	// Make sure the existing user is an admin and the password matches config
	if !existing.IsAdmin {
		if _, err = s.db.ExecContext(ctx, `UPDATE users SET is_admin = TRUE, updated_at = $1 WHERE id = $2`, time.Now(), existing.ID); err != nil {
			return contextutils.WrapError(err, "failed to promote admin user")
		}
	}
	if !existing.PasswordHash.Valid || bcrypt.CompareHashAndPassword([]byte(existing.PasswordHash.String), []byte(adminPassword)) != nil {
		if err = s.UpdateUserPassword(ctx, existing.ID, adminPassword); err != nil {
			return err
		}
		s.logger.Info(ctx, "Updated admin user password", map[string]interface{}{"username": adminUsername})
	}
	return nil
}

// IsAdmin reports whether the user has admin rights
func (s *UserService) IsAdmin(ctx context.Context, userID int) (result0 bool, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "is_admin", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	var isAdmin bool
	err = s.db.QueryRowContext(ctx, `SELECT is_admin FROM users WHERE id = $1`, userID).Scan(&isAdmin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, contextutils.WrapError(err, "failed to query admin flag")
	}
	return isAdmin, nil
}

// ResetDatabase deletes all application data. Used by the admin CLI only.
func (s *UserService) ResetDatabase(ctx context.Context) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "reset_database")
	defer observability.FinishSpan(span, &err)

	// Order matters: child tables before users
	tables := []string{
		"checkins",
		"strategies",
		"review_notes",
		"exam_record_sections",
		"exam_records",
		"users",
	}

	for _, table := range tables {
		if _, err = s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return contextutils.WrapErrorf(err, "failed to clear table %s", table)
		}
	}

	s.logger.Warn(ctx, "Database reset: all application data deleted")
	return nil
}

// GetDB exposes the underlying database handle for infrastructure code
func (s *UserService) GetDB() *sql.DB {
	return s.db
}

// isDuplicateKeyError checks if the error is a duplicate key constraint violation
func isDuplicateKeyError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
