package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"bookshelf/internal/logging"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var cfg migrateConfig
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply the server's Postgres migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			cfg = loadMigrateConfig()
		},
	}

	withDB := func(fn func(ctx context.Context, db *sql.DB, dir string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pool, err := pgxpool.New(ctx, cfg.DSN)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer pool.Close()

			db := stdlib.OpenDBFromPool(pool)
			defer db.Close()
			if err := goose.SetDialect("postgres"); err != nil {
				return err
			}
			return fn(ctx, db, cfg.Dir)
		}
	}

	logger, err := logging.New("info")
	if err != nil {
		logger = logging.Nop()
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: withDB(func(ctx context.Context, db *sql.DB, dir string) error {
				if err := goose.UpContext(ctx, db, dir); err != nil {
					return fmt.Errorf("run migrations: %w", err)
				}
				logger.Info(ctx, "migrations applied", "dir", dir)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			Args:  cobra.NoArgs,
			RunE: withDB(func(ctx context.Context, db *sql.DB, dir string) error {
				if err := goose.DownContext(ctx, db, dir); err != nil {
					return fmt.Errorf("roll back migration: %w", err)
				}
				logger.Info(ctx, "migration rolled back", "dir", dir)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print which migrations are applied",
			Args:  cobra.NoArgs,
			RunE: withDB(func(ctx context.Context, db *sql.DB, dir string) error {
				return goose.StatusContext(ctx, db, dir)
			}),
		},
		&cobra.Command{
			Use:   "create <name>",
			Short: "Create a new SQL migration file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := goose.Create(nil, cfg.Dir, args[0], "sql"); err != nil {
					return fmt.Errorf("create migration: %w", err)
				}
				return nil
			},
		},
	)
	return root
}
