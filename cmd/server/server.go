package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/go-custody/cmd/db"
	"github/chapool/go-custody/internal/api"
	"github/chapool/go-custody/internal/api/router"
	"github/chapool/go-custody/internal/config"
	"github/chapool/go-custody/internal/util/command"
	"github/chapool/go-custody/internal/wallet/deposit"
	"github/chapool/go-custody/internal/wallet/keyvault"
)

const (
	migrateFlag     = "migrate"
	seedFlag        = "seed"
	shutdownTimeout = 30 * time.Second
)

type Flags struct {
	ApplyMigrations bool
	SeedCatalog     bool
}

func New() *cobra.Command {
	var flags Flags

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Starts the server",
		Long: `Starts the custody server

Unlocks the vault with CUSTODY_VAULT_PASSWORD or asks for the password on the terminal.
Chain monitoring starts right away when CUSTODY_MONITOR_AUTOSTART is set.
Requires configuration through ENV and a migrated PostgreSQL database.`,
		Run: func(_ *cobra.Command, _ []string) {
			runServer(flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.ApplyMigrations, migrateFlag, "m", false, "If set, applies migrations before starting the server.")
	cmd.Flags().BoolVarP(&flags.SeedCatalog, seedFlag, "s", false, "If set, seeds the chain catalog before starting the server.")

	return cmd
}

func runServer(flags Flags) {
	cfg := config.DefaultServiceConfigFromEnv()
	command.SetupLogger(cfg)

	ctx := context.Background()

	s, err := api.InitNewServer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server")
	}

	if flags.ApplyMigrations {
		n, err := db.ApplyMigrations(ctx, s.DB, false)
		if err != nil {
			log.Fatal().Err(err).Msg("Error while applying migrations")
		}
		log.Info().Int("count", n).Msg("Applied migrations")
	}

	if flags.SeedCatalog {
		if err := db.SeedCatalog(ctx, s.DB, cfg.Custody.ChainsFile); err != nil {
			log.Fatal().Err(err).Str("file", cfg.Custody.ChainsFile).Msg("Error while seeding chain catalog")
		}
	}

	if err := keyvault.UnlockAtStartup(ctx, s.Vault, cfg.Custody.VaultPassword); err != nil {
		if !errors.Is(err, keyvault.ErrNotInitialized) {
			log.Fatal().Err(err).Msg("Failed to unlock vault")
		}
		log.Warn().Msg("Vault not initialized, run `app vault init`. Sweeps and key reveal stay unavailable")
	}

	router.Init(s)

	if err := s.Sweeps.Reconcile(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to reconcile pending sweeps")
	}

	if cfg.Custody.MonitorAutoStart != "" {
		startPoint, err := deposit.ParseStartPoint(cfg.Custody.MonitorAutoStart)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid monitor autostart")
		}

		pairs, err := s.Monitor.StartAll(ctx, startPoint)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to start chain monitoring")
		}
		log.Info().Int("chains", len(pairs)).Str("start_point", string(startPoint)).Msg("Chain monitoring started")
	}

	go func() {
		if err := s.Start(); err != nil {
			if errors.Is(err, http.ErrServerClosed) {
				log.Info().Msg("Server closed")
			} else {
				log.Fatal().Err(err).Msg("Failed to start server")
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if errs := s.Shutdown(shutdownCtx); len(errs) > 0 {
		log.Fatal().Errs("shutdownErrors", errs).Msg("Failed to gracefully shut down server")
	}
}
