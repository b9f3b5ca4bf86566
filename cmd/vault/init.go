package vault

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/go-custody/internal/api"
	"github/chapool/go-custody/internal/config"
	"github/chapool/go-custody/internal/util/command"
	"github/chapool/go-custody/internal/wallet/keyvault"
)

func newInit() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Creates the vault keystore",
		Long: `Creates the vault keystore holding a fresh random master key.

The keystore is sealed with CUSTODY_VAULT_PASSWORD or a password read from the terminal.
Fails when a keystore already exists.`,
		Run: func(cmd *cobra.Command, _ []string) {
			cfg := config.DefaultServiceConfigFromEnv()

			if err := command.WithServer(cmd.Context(), cfg, runInit); err != nil {
				log.Fatal().Err(err).Msg("Failed to initialize vault")
			}
		},
	}
}

func runInit(ctx context.Context, s *api.Server) error {
	password := s.Config.Custody.VaultPassword
	if password == "" {
		var err error
		password, err = keyvault.PromptNewPassword("vault password")
		if err != nil {
			return err
		}
	}

	if err := s.Vault.Init(ctx, password); err != nil {
		return err
	}

	log.Info().Msg("Vault initialized. Keep the password safe, it cannot be recovered")

	return nil
}
