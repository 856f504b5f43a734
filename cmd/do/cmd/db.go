package cmd

import (
	"fmt"
	"os"

	"github.com/householdhq/budget/internal/db"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const defaultConnection = "./data/budget.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

type dbFlags struct {
	driver     string
	connection string
}

func DBCmd() *cobra.Command {
	// Same variables the server reads, flags win
	_ = godotenv.Load()

	flags := &dbFlags{}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, roll back or inspect database migrations",
	}
	cmd.PersistentFlags().StringVar(&flags.driver, "driver", envOr("DB_DRIVER", "sqlite"), "database driver (sqlite or pgx)")
	cmd.PersistentFlags().StringVar(&flags.connection, "db", envOr("DB_CONNECTION", defaultConnection), "database connection string")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDB(flags, func(database *sqlx.DB) error {
					return db.RunMigrations(database.DB, flags.driver)
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDB(flags, func(database *sqlx.DB) error {
					return db.MigrateDown(database.DB, flags.driver)
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the current schema version",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDB(flags, func(database *sqlx.DB) error {
					version, err := db.MigrationVersion(database.DB, flags.driver)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
					return nil
				})
			},
		},
	)
	return cmd
}

func withDB(flags *dbFlags, fn func(database *sqlx.DB) error) error {
	database, err := db.Init(flags.driver, flags.connection)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()
	return fn(database)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
