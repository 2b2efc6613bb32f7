package main

import (
	"fmt"

	"github.com/dangerclosesec/assessly"
	"github.com/dangerclosesec/assessly/internal/migrate"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		migrations, err := migrate.Load(assessly.MigrationsFS, "migrations")
		if err != nil {
			return err
		}

		pool, err := pgxpool.New(ctx, cfg.DSN())
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer pool.Close()

		applied, err := migrate.NewMigrator(pool).Up(ctx, migrations)
		for _, v := range applied {
			fmt.Printf("applied %04d\n", v)
		}
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Println("schema is up to date")
		}
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current schema version and pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		migrations, err := migrate.Load(assessly.MigrationsFS, "migrations")
		if err != nil {
			return err
		}

		pool, err := pgxpool.New(ctx, cfg.DSN())
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer pool.Close()

		migrator := migrate.NewMigrator(pool)
		if err := migrator.InitializeSchema(ctx); err != nil {
			return err
		}
		current, err := migrator.CurrentVersion(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("current version: %04d\n", current)
		for _, mig := range migrate.Pending(migrations, current) {
			fmt.Printf("pending: %04d_%s\n", mig.Version, mig.Name)
		}
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}
