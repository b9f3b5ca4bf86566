package monitor

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/go-custody/internal/api"
	"github/chapool/go-custody/internal/config"
	"github/chapool/go-custody/internal/util/command"
)

func newSetStartBlock() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-start-block",
		Short: "Sets the start height of a chain",
		Long: `Sets the start height of a chain cursor. The last processed height is kept.

Intended for a stopped server, a running instance does not pick up the change until the chain is restarted.`,
	}

	v := newFlags(cmd)

	cmd.Run = func(cmd *cobra.Command, _ []string) {
		pair, height, err := pairAndHeight(v)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid arguments")
		}

		cfg := config.DefaultServiceConfigFromEnv()
		err = command.WithServer(cmd.Context(), cfg, func(ctx context.Context, s *api.Server) error {
			return s.Monitor.SetStartHeight(ctx, pair, height)
		})
		if err != nil {
			log.Fatal().Err(err).Str("chain", pair.String()).Msg("Failed to set start block")
		}

		log.Info().Str("chain", pair.String()).Int64("start_height", height).Msg("Start block updated")
	}

	return cmd
}
