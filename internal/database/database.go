// Package database provides the Postgres connection pool and schema
// migration runner.
package database

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/EchoAurora/xingcefupan/internal/config"
	"github.com/EchoAurora/xingcefupan/internal/observability"
	contextutils "github.com/EchoAurora/xingcefupan/internal/utils"

	_ "github.com/lib/pq" // postgres driver for database/sql

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // golang-migrate postgres driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // golang-migrate file source

	"go.nhat.io/otelsql"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// Manager opens instrumented database connections and applies migrations.
type Manager struct {
	logger *observability.Logger
}

// otelsql.Register may only run once per process; the instrumented driver
// name is cached for subsequent opens (tests open several pools).
var (
	otelDriverNameCache string
	otelDriverOnce      sync.Once
	otelDriverErr       error
)

// NewManager creates a new database manager with the provided logger.
func NewManager(logger *observability.Logger) *Manager {
	return &Manager{logger: logger}
}

// DefaultDatabaseConfig returns pool settings used when the caller supplies
// only a URL. TEST_DATABASE_URL takes effect for test runs.
func DefaultDatabaseConfig() config.DatabaseConfig {
	cfg := config.DatabaseConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: config.DatabaseConnMaxLifetime,
	}
	if testURL := os.Getenv("TEST_DATABASE_URL"); testURL != "" {
		cfg.URL = testURL
	}
	return cfg
}

// InitDB opens a connection pool with default settings and applies pending
// migrations.
func (dm *Manager) InitDB(databaseURL string) (result0 *sql.DB, err error) {
	_, span := observability.TraceDatabaseFunction(context.Background(), "InitDB",
		attribute.String("db.name", extractDatabaseName(databaseURL)),
		attribute.String("db.system", "postgresql"),
	)
	defer observability.FinishSpan(span, &err)

	cfg := DefaultDatabaseConfig()
	cfg.URL = databaseURL
	return dm.InitDBWithConfig(cfg)
}

// InitDBWithConfig opens a connection pool with the given settings and
// applies pending migrations.
func (dm *Manager) InitDBWithConfig(cfg config.DatabaseConfig) (result0 *sql.DB, err error) {
	_, span := observability.TraceDatabaseFunction(context.Background(), "InitDBWithConfig",
		attribute.String("db.name", extractDatabaseName(cfg.URL)),
		attribute.String("db.system", "postgresql"),
		attribute.Int("db.max_open_conns", cfg.MaxOpenConns),
		attribute.Int("db.max_idle_conns", cfg.MaxIdleConns),
		attribute.String("db.conn_max_lifetime", cfg.ConnMaxLifetime.String()),
	)
	defer observability.FinishSpan(span, &err)

	db, err := dm.InitDBWithoutMigrations(cfg)
	if err != nil {
		return nil, err
	}
	if err := dm.RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// extractDatabaseName pulls the database name out of a postgres URL for
// span attributes. Falls back to the configured default name.
func extractDatabaseName(databaseURL string) string {
	if u, err := url.Parse(databaseURL); err == nil && u.Path != "" {
		if name := strings.TrimPrefix(u.Path, "/"); name != "" {
			return name
		}
	}
	if idx := strings.LastIndex(databaseURL, "/"); idx >= 0 {
		name := databaseURL[idx+1:]
		if q := strings.Index(name, "?"); q != -1 {
			name = name[:q]
		}
		if name != "" {
			return name
		}
	}
	return "xingce_db"
}

// InitDBWithoutMigrations opens and pings an instrumented connection pool.
// The admin CLI uses this directly so it never races the server on schema
// changes.
func (dm *Manager) InitDBWithoutMigrations(cfg config.DatabaseConfig) (result0 *sql.DB, err error) {
	ctx, span := observability.TraceDatabaseFunction(context.Background(), "InitDBWithoutMigrations",
		attribute.String("db.name", extractDatabaseName(cfg.URL)),
	)
	defer observability.FinishSpan(span, &err)

	otelDriverOnce.Do(func() {
		otelDriverNameCache, otelDriverErr = otelsql.Register("postgres",
			otelsql.WithDatabaseName(extractDatabaseName(cfg.URL)),
			otelsql.TraceQueryWithArgs(),
			otelsql.WithSystem(semconv.DBSystemPostgreSQL),
			otelsql.TraceRowsAffected(),
		)
	})
	if otelDriverErr != nil {
		return nil, contextutils.WrapError(otelDriverErr, "failed to register otelsql driver")
	}

	db, err := sql.Open(otelDriverNameCache, cfg.URL)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to open database connection")
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			dm.logger.Error(ctx, "Failed to close database connection after ping failure", closeErr)
		}
		return nil, contextutils.WrapError(err, "failed to ping database")
	}

	dm.logger.Info(ctx, "Database connection established", map[string]interface{}{
		"max_open_conns":    cfg.MaxOpenConns,
		"max_idle_conns":    cfg.MaxIdleConns,
		"conn_max_lifetime": cfg.ConnMaxLifetime,
	})
	return db, nil
}

// RunMigrations applies any pending schema migrations.
func (dm *Manager) RunMigrations(_ *sql.DB) (err error) {
	_, span := observability.TraceDatabaseFunction(context.Background(), "RunMigrations",
		attribute.String("db.system", "postgresql"),
	)
	defer observability.FinishSpan(span, &err)

	if err := dm.runGolangMigrate(); err != nil {
		return contextutils.WrapError(err, "failed to run golang-migrate migrations")
	}
	dm.logger.Info(context.Background(), "Database migrations completed")
	return nil
}

func (dm *Manager) runGolangMigrate() (err error) {
	ctx := context.Background()

	migrationsPath, err := dm.GetMigrationsPath()
	if err != nil {
		dm.logger.Error(ctx, "Could not find migrations path", err)
		return err
	}

	_, span := observability.TraceDatabaseFunction(ctx, "runGolangMigrate",
		attribute.String("migration.path", migrationsPath),
	)
	defer observability.FinishSpan(span, &err)

	files, err := os.ReadDir(migrationsPath)
	if err != nil {
		dm.logger.Error(ctx, "Could not read migrations directory", err)
		return err
	}

	upCount := 0
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".up.sql") {
			upCount++
		}
	}
	span.SetAttributes(attribute.Int("migration.files.count", upCount))
	if upCount == 0 {
		dm.logger.Info(ctx, "No migration files found in "+migrationsPath+". Skipping golang-migrate.")
		return nil
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = os.Getenv("TEST_DATABASE_URL")
	}
	if dbURL == "" {
		err = errors.New("database_url or test_database_url must be set for migrations")
		return err
	}

	m, err := migrate.New("file://"+filepath.ToSlash(migrationsPath), dbURL)
	if err != nil {
		err = contextutils.WrapError(err, "failed to initialize golang-migrate")
		return err
	}
	defer func() {
		if _, closeErr := m.Close(); closeErr != nil {
			dm.logger.Error(ctx, "Error closing migration", closeErr)
		}
	}()

	switch err = m.Up(); err {
	case nil:
		dm.logger.Info(ctx, "golang-migrate migrations applied")
	case migrate.ErrNoChange:
		dm.logger.Info(ctx, "No new golang-migrate migrations to apply")
		err = nil
	default:
		err = contextutils.WrapError(err, "golang-migrate up failed")
		return err
	}
	return nil
}

// GetMigrationsPath walks up from the working directory until it finds a
// migrations directory. Binaries run from cmd/server, cmd/adm, and test
// packages all resolve the same tree this way.
func (dm *Manager) GetMigrationsPath() (result0 string, err error) {
	_, span := observability.TraceDatabaseFunction(context.Background(), "GetMigrationsPath")
	defer observability.FinishSpan(span, &err)

	currentDir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		migrationsPath := filepath.Join(currentDir, "migrations")
		if _, statErr := os.Stat(migrationsPath); statErr == nil {
			span.SetAttributes(attribute.String("migration.found_path", migrationsPath))
			return migrationsPath, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			err = contextutils.ErrorWithContextf("migrations directory not found in any parent directory")
			return "", err
		}
		currentDir = parentDir
	}
}
