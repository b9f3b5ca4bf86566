package probe

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/go-custody/internal/api"
	"github/chapool/go-custody/internal/api/handlers/common"
	"github/chapool/go-custody/internal/config"
)

func newLiveness() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "liveness",
		Short: "Runs liveness probes (database ping and query, writeable paths)",
		Long: `Runs liveness probes (database ping and query, writeable paths).
Exits with a non-zero code when a probe fails.`,
		Run: func(cmd *cobra.Command, _ []string) {
			verbose, err := cmd.Flags().GetBool(verboseFlag)
			if err != nil {
				log.Fatal().Err(err).Msgf("Failed to parse args")
			}

			cfg := config.DefaultServiceConfigFromEnv()
			if err := runLiveness(cfg, verbose); err != nil {
				os.Exit(1)
			}
		},
	}

	cmd.Flags().BoolP(verboseFlag, "v", false, "Show verbose output.")

	return cmd
}

//nolint:forbidigo // probes talk to stdout
func runLiveness(cfg config.Server, verbose bool) error {
	db, err := api.NewDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Management.LivenessTimeout)
	defer cancel()

	lines, err := common.ProbeLiveness(ctx, db, cfg.Management.ProbeWriteablePathsAbs)
	if verbose {
		for _, line := range lines {
			fmt.Println(line)
		}
	}
	if err != nil {
		fmt.Println(errors.Wrap(err, "liveness probe failed"))
		return err
	}

	if verbose {
		fmt.Println("Liveness probe passed.")
	}

	return nil
}
