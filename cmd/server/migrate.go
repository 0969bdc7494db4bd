package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/repograder/internal/config"
	"github.com/kiranshivaraju/repograder/internal/store"
)

var migrateDir string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long:  "Applies every pending migration in the migrations directory. Only DATABASE_URL is required.",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDir, "dir", "", "Migrations directory (default DATABASE_MIGRATIONS_DIR or ./migrations)")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(_ *cobra.Command, _ []string) error {
	db, err := config.LoadDatabase()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	dir := db.MigrationsDir
	if migrateDir != "" {
		dir = migrateDir
	}

	if err := store.RunMigrations(db.URL, dir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied", "dir", dir)
	return nil
}
