package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/dropbox/godropbox/time2"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github/chapool/go-custody/internal/config"
	"github/chapool/go-custody/internal/mailer"
	"github/chapool/go-custody/internal/metrics"
	"github/chapool/go-custody/internal/util"
	"github/chapool/go-custody/internal/wallet"
	"github/chapool/go-custody/internal/wallet/chain"
	"github/chapool/go-custody/internal/wallet/cursor"
	"github/chapool/go-custody/internal/wallet/deposit"
	"github/chapool/go-custody/internal/wallet/keyvault"
	"github/chapool/go-custody/internal/wallet/monitor"
	"github/chapool/go-custody/internal/wallet/registry"
	"github/chapool/go-custody/internal/wallet/signer"
	"github/chapool/go-custody/internal/wallet/sweep"

	// Import postgres driver for database/sql package
	_ "github.com/lib/pq"
)

type Router struct {
	Routes     []*echo.Route
	Root       *echo.Group
	Management *echo.Group
	APIV1Admin *echo.Group
}

// Server is a central struct keeping all the dependencies.
// It is initialized with wire, which handles making the new instances of the components
// in the right order. To add a new component, 3 steps are required:
// - declaring it in this struct
// - adding a provider function in providers.go
// - adding the provider's function name to the arguments of wire.Build() in wire.go
//
// Components labeled as `wire:"-"` will be skipped and have to be initialized after the InitNewServer* call.
// For more information about wire refer to https://pkg.go.dev/github.com/google/wire
type Server struct {
	// skip wire:
	// -> initialized with router.Init(s) function
	Echo   *echo.Echo `wire:"-"`
	Router *Router    `wire:"-"`

	Config   config.Server
	DB       *sql.DB
	Mailer   *mailer.Mailer
	Clock    time2.Clock
	Metrics  *metrics.Custody
	Catalog  chain.Service
	Clients  *chain.Clients
	Vault    keyvault.Service
	Cursors  cursor.Service
	Deposits deposit.Store
	Wallets  wallet.Store
	Signer   signer.Service
	Admin    registry.Service
	GasTank  registry.GasTank
	Sweeps   sweep.Service
	Monitor  *monitor.Supervisor
}

// newServerWithComponents is used by wire to initialize the server components.
// Components not listed here won't be handled by wire and should be initialized separately.
// Components which shouldn't be handled must be labeled `wire:"-"` in Server struct.
func newServerWithComponents(
	cfg config.Server,
	db *sql.DB,
	mail *mailer.Mailer,
	clock time2.Clock,
	metrics *metrics.Custody,
	catalog chain.Service,
	clients *chain.Clients,
	vault keyvault.Service,
	cursors cursor.Service,
	deposits deposit.Store,
	wallets wallet.Store,
	signer signer.Service,
	admin registry.Service,
	gasTank registry.GasTank,
	sweeps sweep.Service,
	supervisor *monitor.Supervisor,
) *Server {
	return &Server{
		Config:   cfg,
		DB:       db,
		Mailer:   mail,
		Clock:    clock,
		Metrics:  metrics,
		Catalog:  catalog,
		Clients:  clients,
		Vault:    vault,
		Cursors:  cursors,
		Deposits: deposits,
		Wallets:  wallets,
		Signer:   signer,
		Admin:    admin,
		GasTank:  gasTank,
		Sweeps:   sweeps,
		Monitor:  supervisor,
	}
}

func NewServer(config config.Server) *Server {
	s := &Server{
		Config: config,
	}

	return s
}

func (s *Server) Ready() bool {
	if err := util.IsStructInitialized(s); err != nil {
		log.Debug().Err(err).Msg("Server is not fully initialized")
		return false
	}

	return true
}

func (s *Server) Start() error {
	if !s.Ready() {
		return errors.New("server is not ready")
	}

	if err := s.Echo.Start(s.Config.Echo.ListenAddress); err != nil {
		return fmt.Errorf("failed to start echo server: %w", err)
	}

	return nil
}

// Shutdown stops the detectors, waits for running sweeps and closes everything else.
func (s *Server) Shutdown(ctx context.Context) []error {
	log.Warn().Msg("Shutting down server")

	var errs []error

	if s.Monitor != nil {
		log.Debug().Msg("Stopping chain monitoring")
		s.Monitor.StopAll()
	}

	if s.Sweeps != nil {
		log.Debug().Msg("Waiting for running sweeps")
		s.Sweeps.Wait()
	}

	if s.Monitor != nil {
		// closes the chain clients as well
		s.Monitor.Close()
	}

	if s.Echo != nil {
		log.Debug().Msg("Shutting down echo server")

		if err := s.Echo.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Failed to shutdown echo server")
			errs = append(errs, err)
		}
	}

	if s.Vault != nil {
		s.Vault.Lock()
	}

	if s.DB != nil {
		log.Debug().Msg("Closing database connection")

		if err := s.DB.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
			log.Error().Err(err).Msg("Failed to close database connection")
			errs = append(errs, err)
		}
	}

	return errs
}
