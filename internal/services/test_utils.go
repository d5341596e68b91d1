//go:build integration

package services

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/EchoAurora/xingcefupan/internal/config"
	"github.com/EchoAurora/xingcefupan/internal/database"
	"github.com/EchoAurora/xingcefupan/internal/observability"

	"github.com/stretchr/testify/require"
)

// SharedTestDBSetup provides a clean, isolated database for each integration test
func SharedTestDBSetup(t *testing.T) *sql.DB {
	observabilityLogger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	dbManager := database.NewManager(observabilityLogger)

	// Require TEST_DATABASE_URL environment variable to be set
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Fatal("TEST_DATABASE_URL environment variable must be set for integration tests")
	}

	db, err := dbManager.InitDB(databaseURL)
	require.NoError(t, err)

	CleanupTestDatabase(db, t)

	return db
}

// cleanupDatabase truncates every application table and resets id sequences
func cleanupDatabase(db *sql.DB, logger *observability.Logger) {
	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		if logger != nil {
			logger.Error(ctx, "Failed to begin cleanup transaction", err)
		}
		return
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	cleanupQueries := []string{
		"TRUNCATE TABLE checkins CASCADE",
		"TRUNCATE TABLE strategies CASCADE",
		"TRUNCATE TABLE review_notes CASCADE",
		"TRUNCATE TABLE exam_record_sections CASCADE",
		"TRUNCATE TABLE exam_records CASCADE",
		"TRUNCATE TABLE users CASCADE",
	}

	for _, query := range cleanupQueries {
		_, err := tx.ExecContext(ctx, query)
		if err != nil {
			if logger != nil {
				logger.Warn(ctx, "Could not execute cleanup query", map[string]interface{}{
					"query": query,
				})
			}
		}
	}

	sequenceQueries := []string{
		"ALTER SEQUENCE users_id_seq RESTART WITH 1",
		"ALTER SEQUENCE exam_records_id_seq RESTART WITH 1",
		"ALTER SEQUENCE exam_record_sections_id_seq RESTART WITH 1",
		"ALTER SEQUENCE review_notes_id_seq RESTART WITH 1",
	}

	for _, query := range sequenceQueries {
		_, err := tx.ExecContext(ctx, query)
		if err != nil {
			if logger != nil {
				logger.Warn(ctx, "Could not reset sequence", map[string]interface{}{
					"query": query,
				})
			}
		}
	}

	err = tx.Commit()
	if err != nil {
		if logger != nil {
			logger.Error(ctx, "Failed to commit cleanup transaction", err)
		}
	}
}

// CleanupTestDatabase cleans up the database for integration tests
func CleanupTestDatabase(db *sql.DB, t *testing.T) {
	cleanupDatabase(db, nil)
}
