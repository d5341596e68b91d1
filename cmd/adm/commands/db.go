// Package commands provides CLI commands for the admin tool
package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/EchoAurora/xingcefupan/internal/observability"
	"github.com/EchoAurora/xingcefupan/internal/services"
	contextutils "github.com/EchoAurora/xingcefupan/internal/utils"

	"github.com/spf13/cobra"
)

// DatabaseCommands returns the database management commands
func DatabaseCommands(userService *services.UserService, logger *observability.Logger, db *sql.DB) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands for the exam review application.

Available commands:
  stats - Show database statistics
  reset - Erase all data from the database`,
	}

	// Add subcommands
	dbCmd.AddCommand(statsCmd(userService, logger, db))
	dbCmd.AddCommand(resetCmd(userService, logger, db))

	return dbCmd
}

// statsCmd returns the stats command
func statsCmd(userService *services.UserService, logger *observability.Logger, db *sql.DB) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Long:  `Show database statistics including row counts per table.`,
		RunE:  runStats(userService, logger, db),
	}
}

// resetCmd returns the reset command
func resetCmd(userService *services.UserService, logger *observability.Logger, db *sql.DB) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Erase all data from the database",
		Long: `Erase all data from the database.

This removes every user, exam record, review note, strategy and check-in state.
The admin account is recreated the next time the server starts.`,
		RunE: runReset(userService, logger, &yes, db),
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Skip the confirmation prompt")

	return cmd
}

// runStats returns a function that shows database statistics
func runStats(userService *services.UserService, logger *observability.Logger, db *sql.DB) func(cmd *cobra.Command, args []string) error {
	return func(_ *cobra.Command, _ []string) error {
		ctx := context.Background()

		// Log diagnostic information
		logger.Info(ctx, "Diagnostic info", map[string]interface{}{"config_file": os.Getenv("XINGCE_CONFIG_FILE"), "database": describeConnection(db)})

		users, err := userService.GetAllUsers(ctx)
		if err != nil {
			logger.Error(ctx, "Failed to get user statistics", err, map[string]interface{}{})
			return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to get user statistics: %v", err)
		}

		fmt.Printf("%-25s %s\n", "users", fmt.Sprintf("%d", len(users)))

		// Per-table row counts for the rest of the schema
		for _, table := range []string{"exam_records", "exam_record_sections", "review_notes", "strategies", "checkins"} {
			var count int
			if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
				logger.Warn(ctx, "Failed to count table rows", map[string]interface{}{"table": table, "error": err.Error()})
				fmt.Printf("%-25s %s\n", table, "error")
				continue
			}
			fmt.Printf("%-25s %d\n", table, count)
		}

		logger.Info(ctx, "Database statistics", map[string]interface{}{"total_users": len(users), "database": "PostgreSQL", "status": "Connected"})

		return nil
	}
}

// runReset returns a function that erases all data from the database
func runReset(userService *services.UserService, logger *observability.Logger, yes *bool, db *sql.DB) func(cmd *cobra.Command, args []string) error {
	return func(_ *cobra.Command, _ []string) error {
		ctx := context.Background()

		// Log diagnostic information
		logger.Info(ctx, "Diagnostic info", map[string]interface{}{"config_file": os.Getenv("XINGCE_CONFIG_FILE"), "database": describeConnection(db)})

		if !*yes {
			fmt.Print("This will erase ALL data from the database. Type 'yes' to continue: ")
			var answer string
			if _, err := fmt.Scanln(&answer); err != nil {
				return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to read confirmation: %v", err)
			}
			if strings.TrimSpace(strings.ToLower(answer)) != "yes" {
				fmt.Println("Aborted.")
				return nil
			}
		}

		logger.Warn(ctx, "Resetting database", map[string]interface{}{"service": "admin_cli"})

		if err := userService.ResetDatabase(ctx); err != nil {
			logger.Error(ctx, "Database reset failed", err, map[string]interface{}{})
			return contextutils.WrapErrorf(contextutils.ErrInternalError, "database reset failed: %v", err)
		}

		fmt.Println("Database reset complete.")
		logger.Warn(ctx, "Database reset complete", map[string]interface{}{"service": "admin_cli"})
		return nil
	}
}
