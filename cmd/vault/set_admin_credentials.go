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

func newSetAdminCredentials() *cobra.Command {
	return &cobra.Command{
		Use:   "set-admin-credentials",
		Short: "Sets the admin password and secret key",
		Long: `Sets the admin password and secret key required to reveal wallet keys.

Both are read from the terminal and stored as bcrypt hashes. Existing credentials are replaced.`,
		Run: func(cmd *cobra.Command, _ []string) {
			cfg := config.DefaultServiceConfigFromEnv()

			if err := command.WithServer(cmd.Context(), cfg, runSetAdminCredentials); err != nil {
				log.Fatal().Err(err).Msg("Failed to set admin credentials")
			}
		},
	}
}

func runSetAdminCredentials(ctx context.Context, s *api.Server) error {
	password, err := keyvault.PromptNewPassword("admin password")
	if err != nil {
		return err
	}

	secret, err := keyvault.PromptNewPassword("admin secret key")
	if err != nil {
		return err
	}

	if err := s.Vault.SetAdminCredentials(ctx, password, secret); err != nil {
		return err
	}

	log.Info().Msg("Admin credentials updated")

	return nil
}
