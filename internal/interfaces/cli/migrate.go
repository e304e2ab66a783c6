package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/propsage/compval/internal/infrastructure/database/postgres"
)

func newMigrateCmd(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the closed-sales database schema",
	}

	cmd.AddCommand(newMigrateUpCmd(opts))
	cmd.AddCommand(newMigrateDownCmd(opts))
	cmd.AddCommand(newMigrateStatusCmd(opts))

	return cmd
}

func migrationTargets(opts *RootOptions) (dbURL, sourcePath string, err error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return "", "", err
	}
	sourcePath = cfg.Postgres.MigrationsPath
	if sourcePath == "" {
		sourcePath = "file://migrations"
	}
	return postgres.BuildDSN(cfg.Postgres), sourcePath, nil
}

func newMigrateUpCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbURL, sourcePath, err := migrationTargets(opts)
			if err != nil {
				return err
			}
			if err := postgres.RunMigrations(dbURL, sourcePath); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newMigrateDownCmd(opts *RootOptions) *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbURL, sourcePath, err := migrationTargets(opts)
			if err != nil {
				return err
			}
			if err := postgres.RollbackMigration(dbURL, sourcePath, steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	return cmd
}

func newMigrateStatusCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbURL, sourcePath, err := migrationTargets(opts)
			if err != nil {
				return err
			}
			version, dirty, err := postgres.MigrationStatus(dbURL, sourcePath)
			if err != nil {
				return err
			}
			state := "clean"
			if dirty {
				state = "dirty"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (%s)\n", version, state)
			return nil
		},
	}
}
