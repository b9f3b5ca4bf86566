package db

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"
	"github/chapool/go-custody/internal/api"
	"github/chapool/go-custody/internal/config"
	"github/chapool/go-custody/migrations"
)

const (
	migrationTable = "migrations"
	downFlag       = "down"
)

func newMigrate() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Executes all migrations which are not yet applied.",
		Run: func(cmd *cobra.Command, _ []string) {
			down, err := cmd.Flags().GetBool(downFlag)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to parse args")
			}

			cfg := config.DefaultServiceConfigFromEnv()
			if err := runMigrate(cmd.Context(), cfg, down); err != nil {
				log.Fatal().Err(err).Msg("Failed to apply migrations")
			}
		},
	}

	cmd.Flags().Bool(downFlag, false, "Rolls back the most recent migration instead.")

	return cmd
}

func runMigrate(ctx context.Context, cfg config.Server, down bool) error {
	db, err := api.NewDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return errors.Wrap(err, "failed to connect to database")
	}

	n, err := ApplyMigrations(ctx, db, down)
	if err != nil {
		return err
	}

	log.Info().Int("count", n).Bool("down", down).Msg("Applied migrations")

	return nil
}

// ApplyMigrations runs the embedded migrations up, or rolls back the latest one.
func ApplyMigrations(ctx context.Context, db *sql.DB, down bool) (int, error) {
	migrate.SetTable(migrationTable)

	src := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrations.FS,
		Root:       ".",
	}

	if down {
		n, err := migrate.ExecMaxContext(ctx, db, "postgres", src, migrate.Down, 1)
		return n, errors.Wrap(err, "failed to roll back migration")
	}

	n, err := migrate.ExecContext(ctx, db, "postgres", src, migrate.Up)
	return n, errors.Wrap(err, "failed to apply migrations")
}
