package db

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/go-custody/internal/api"
	"github/chapool/go-custody/internal/config"
	"github/chapool/go-custody/internal/wallet/chain"
)

const fileFlag = "file"

func newSeed() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upserts the chain catalog into the database.",
		Long: `Upserts chains and tokens from a toml catalog file into the database.

Defaults to the file referenced by CUSTODY_CHAINS_FILE. Existing rows are updated in place.`,
		Run: func(cmd *cobra.Command, _ []string) {
			cfg := config.DefaultServiceConfigFromEnv()

			path, err := cmd.Flags().GetString(fileFlag)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to parse args")
			}
			if path == "" {
				path = cfg.Custody.ChainsFile
			}

			if err := runSeed(cmd.Context(), cfg, path); err != nil {
				log.Fatal().Err(err).Str("file", path).Msg("Failed to seed chain catalog")
			}
		},
	}

	cmd.Flags().StringP(fileFlag, "f", "", "Catalog file, overrides CUSTODY_CHAINS_FILE.")

	return cmd
}

func runSeed(ctx context.Context, cfg config.Server, path string) error {
	db, err := api.NewDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return errors.Wrap(err, "failed to connect to database")
	}

	return SeedCatalog(ctx, db, path)
}

// SeedCatalog upserts the catalog file at path.
func SeedCatalog(ctx context.Context, db *sql.DB, path string) error {
	f, err := chain.LoadCatalogFile(path)
	if err != nil {
		return err
	}

	return chain.Seed(ctx, chain.NewService(db), f)
}
