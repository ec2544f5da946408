package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-alarm/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-alarm/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-alarm/migrations"
)

// newMigrateCmd manages the journal schema without starting the controller.
func newMigrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the alarm journal schema",
		Long: `migrate applies, rolls back, or lists journal schema migrations.

alarmd applies pending migrations on every start, so "up" is only needed
to prepare a database ahead of time. "down" rolls back the newest one.`,
	}

	actions := []struct {
		use, short string
		fn         func(cmd *cobra.Command, db *database.DB) error
	}{
		{"up", "Apply pending migrations", func(cmd *cobra.Command, db *database.DB) error {
			if err := db.Migrate(cmd.Context(), migrations.FS, "."); err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}
			return printMigrationStatus(cmd, db)
		}},
		{"down", "Roll back the newest migration", func(cmd *cobra.Command, db *database.DB) error {
			if err := db.MigrateDown(cmd.Context(), migrations.FS, "."); err != nil {
				return fmt.Errorf("rolling back migration: %w", err)
			}
			return printMigrationStatus(cmd, db)
		}},
		{"status", "List applied and pending migrations", printMigrationStatus},
	}

	for _, a := range actions {
		fn := a.fn
		cmd.AddCommand(&cobra.Command{
			Use:   a.use,
			Short: a.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := openJournal(cmd, *configPath)
				if err != nil {
					return err
				}
				defer db.Close()
				return fn(cmd, db)
			},
		})
	}

	return cmd
}

// openJournal opens the journal database named by the config. The journal
// does not need to be enabled; only its path is used.
func openJournal(cmd *cobra.Command, configPath string) (*database.DB, error) {
	cfg, err := loadConfig(options{
		configPath:     configPath,
		configRequired: cmd.Flags().Changed("config") || os.Getenv("GRAYLOGIC_CONFIG") != "",
	})
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return openJournalAt(cfg.Database)
}

func openJournalAt(cfg config.DatabaseConfig) (*database.DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database.path is not set")
	}
	db, err := database.Open(database.ConfigFrom(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

func printMigrationStatus(cmd *cobra.Command, db *database.DB) error {
	applied, pending, err := db.MigrationStatus(cmd.Context(), migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	writeMigrationStatus(cmd.OutOrStdout(), applied, pending)
	return nil
}

func writeMigrationStatus(w io.Writer, applied []database.MigrationRecord, pending []database.Migration) {
	for _, m := range applied {
		fmt.Fprintf(w, "applied  %s  %s\n", m.Version, m.AppliedAt.UTC().Format(time.RFC3339))
	}
	for _, m := range pending {
		fmt.Fprintf(w, "pending  %s  %s\n", m.Version, m.Name)
	}
	if len(applied) == 0 && len(pending) == 0 {
		fmt.Fprintln(w, "no migrations")
	}
}
