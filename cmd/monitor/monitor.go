package monitor

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github/chapool/go-custody/internal/util/command"
	"github/chapool/go-custody/internal/wallet/chain"
)

const (
	envPrefix = "CUSTODY"

	chainFlag   = "chain"
	networkFlag = "network"
	heightFlag  = "height"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("monitor",
		newScanBlock(),
		newSetStartBlock(),
	)
}

// newFlags binds the pair flags of cmd so they can also be set through CUSTODY_CHAIN, CUSTODY_NETWORK and CUSTODY_HEIGHT.
func newFlags(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd.Flags().String(chainFlag, "", "Blockchain, e.g. bsc")
	cmd.Flags().String(networkFlag, "", "Network, e.g. testnet")
	cmd.Flags().Int64(heightFlag, -1, "Block height")

	// only fails for unknown flags
	_ = v.BindPFlags(cmd.Flags())

	return v
}

func pairAndHeight(v *viper.Viper) (chain.Pair, int64, error) {
	blockchain := strings.ToLower(strings.TrimSpace(v.GetString(chainFlag)))
	network := strings.ToLower(strings.TrimSpace(v.GetString(networkFlag)))

	if blockchain == "" || network == "" {
		return chain.Pair{}, 0, errors.New("--chain and --network are required")
	}

	height := v.GetInt64(heightFlag)
	if height < 0 {
		return chain.Pair{}, 0, errors.New("--height is required and must not be negative")
	}

	return chain.NewPair(blockchain, network), height, nil
}
