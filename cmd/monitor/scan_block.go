package monitor

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/go-custody/internal/api"
	"github/chapool/go-custody/internal/config"
	"github/chapool/go-custody/internal/util/command"
)

func newScanBlock() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan-block",
		Short: "Scans a single block for deposits",
		Long: `Scans a single block of one chain for deposits to user wallets.

The cursor of the chain is left untouched. Confirmed deposits are swept only when
CUSTODY_VAULT_PASSWORD unlocks the vault.`,
	}

	v := newFlags(cmd)

	cmd.Run = func(cmd *cobra.Command, _ []string) {
		pair, height, err := pairAndHeight(v)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid arguments")
		}

		cfg := config.DefaultServiceConfigFromEnv()
		if cfg.Custody.VaultPassword == "" {
			log.Warn().Msg("CUSTODY_VAULT_PASSWORD not set, sweeping disabled")
			cfg.Custody.SweepEnabled = false
		}

		err = command.WithServer(cmd.Context(), cfg, func(ctx context.Context, s *api.Server) error {
			if cfg.Custody.SweepEnabled {
				if err := s.Vault.Unlock(ctx, cfg.Custody.VaultPassword); err != nil {
					return err
				}
			}

			return s.Monitor.ScanHeight(ctx, pair, height)
		})
		if err != nil {
			log.Fatal().Err(err).Str("chain", pair.String()).Int64("height", height).Msg("Failed to scan block")
		}

		log.Info().Str("chain", pair.String()).Int64("height", height).Msg("Block scanned")
	}

	return cmd
}
