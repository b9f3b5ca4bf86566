package api

import (
	"database/sql"
	"testing"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github/chapool/go-custody/internal/config"
	"github/chapool/go-custody/internal/mailer"
	"github/chapool/go-custody/internal/mailer/transport"
	"github/chapool/go-custody/internal/metrics"
	"github/chapool/go-custody/internal/wallet"
	"github/chapool/go-custody/internal/wallet/chain"
	"github/chapool/go-custody/internal/wallet/chain/account"
	"github/chapool/go-custody/internal/wallet/chain/evm"
	"github/chapool/go-custody/internal/wallet/chain/utxo"
	"github/chapool/go-custody/internal/wallet/cursor"
	"github/chapool/go-custody/internal/wallet/deposit"
	"github/chapool/go-custody/internal/wallet/keyvault"
	"github/chapool/go-custody/internal/wallet/monitor"
	"github/chapool/go-custody/internal/wallet/registry"
	"github/chapool/go-custody/internal/wallet/signer"
	"github/chapool/go-custody/internal/wallet/sweep"
)

// PROVIDERS - define here only providers that for various reasons (e.g. cyclic dependency) can't live in their corresponding packages
// or for wrapping providers that only accept sub-configs to prevent the requirement for defining providers for sub-configs.
// https://github.com/google/wire/blob/main/docs/guide.md#defining-providers

// NoTest is used as an empty test argument for the injectors that take variadic *testing.T
func NoTest() []*testing.T {
	return nil
}

func NewDB(cfg config.Server) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)

	return db, nil
}

func NewClock(t ...*testing.T) time2.Clock {
	var clock time2.Clock

	useMock := len(t) > 0 && t[0] != nil

	if useMock {
		clock = time2.NewMockClock(time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC))
	} else {
		clock = time2.DefaultClock
	}

	return clock
}

func NewMailer(cfg config.Server, t ...*testing.T) *mailer.Mailer {
	var mailTransport transport.MailTransporter

	useMock := len(t) > 0 && t[0] != nil

	switch {
	case useMock:
		mailTransport = transport.NewMock()
	case cfg.Mailer.UseSMTP:
		mailTransport = transport.NewSMTP(cfg.Mailer)
	default:
		log.Warn().Msg("Initializing mock mailer")
		mailTransport = transport.NewMock()
	}

	return mailer.New(cfg.Mailer, mailTransport)
}

func NewMetrics(db *sql.DB) (*metrics.Custody, error) {
	m := metrics.New()

	if err := m.RegisterDB("custody", db); err != nil {
		return nil, err
	}

	return m, nil
}

// NewClientFactories wires one adapter constructor per chain family.
func NewClientFactories(cfg config.Server) map[chain.Family]chain.ClientFactory {
	return map[chain.Family]chain.ClientFactory{
		chain.FamilyEVM:     evm.Factory,
		chain.FamilyUTXO:    utxo.NewFactory(cfg.Custody.HTTPClientTimeout),
		chain.FamilyAccount: account.NewFactory(cfg.Custody.TronAPIKey, cfg.Custody.HTTPClientTimeout),
	}
}

//nolint:ireturn
func NewVault(cfg config.Server, store keyvault.Store, wallets wallet.Store, clock time2.Clock) keyvault.Service {
	vc := keyvault.DefaultConfig()
	if cfg.Custody.RevealWindow > 0 {
		vc.RevealWindow = cfg.Custody.RevealWindow
	}

	return keyvault.NewService(vc, store, wallets, clock)
}

//nolint:ireturn
func NewCursors(store cursor.Store, tasks *monitor.TaskRegistry) cursor.Service {
	return cursor.NewService(store, tasks)
}

func NewDepositConfig(cfg config.Server) deposit.Config {
	dc := deposit.DefaultConfig()

	if cfg.Custody.PollInterval > 0 {
		dc.PollInterval = cfg.Custody.PollInterval
	}
	if cfg.Custody.OpenDepositWindow > 0 {
		dc.OpenWindow = cfg.Custody.OpenDepositWindow
	}
	if cfg.Custody.RetryMaxAttempts > 0 {
		dc.Retry.MaxAttempts = cfg.Custody.RetryMaxAttempts
	}
	if cfg.Custody.RetryInitialBackoff > 0 {
		dc.Retry.InitialBackoff = cfg.Custody.RetryInitialBackoff
	}
	if cfg.Custody.RetryMaxBackoff > 0 {
		dc.Retry.MaxBackoff = cfg.Custody.RetryMaxBackoff
	}

	return dc
}

func NewDepositDeps(
	cursors cursor.Store,
	deposits deposit.Store,
	wallets wallet.Store,
	catalog chain.Service,
	sweeps sweep.Service,
	m *metrics.Custody,
) deposit.Deps {
	return deposit.Deps{
		Cursors:  cursors,
		Deposits: deposits,
		Wallets:  wallets,
		Catalog:  catalog,
		Handler:  sweeps,
		Metrics:  m,
	}
}

func NewSweepConfig(cfg config.Server) sweep.Config {
	sc := sweep.DefaultConfig()
	sc.Enabled = cfg.Custody.SweepEnabled

	if cfg.Custody.FeeBumpPercent > 0 {
		sc.FeeBumpPercent = cfg.Custody.FeeBumpPercent
	}
	if cfg.Custody.ReceiptPollInterval > 0 {
		sc.ReceiptPollInterval = cfg.Custody.ReceiptPollInterval
	}
	if cfg.Custody.ReceiptTimeout > 0 {
		sc.ReceiptTimeout = cfg.Custody.ReceiptTimeout
	}

	return sc
}

//nolint:ireturn
func NewSweeps(
	config sweep.Config,
	store sweep.Store,
	deposits deposit.Store,
	wallets wallet.Store,
	catalog chain.Service,
	clients *chain.Clients,
	admin registry.Service,
	gasTank registry.GasTank,
	signer signer.Service,
	mail *mailer.Mailer,
	m *metrics.Custody,
	clock time2.Clock,
) sweep.Service {
	return sweep.NewOrchestrator(sweep.Deps{
		Store:     store,
		Deposits:  deposits,
		Wallets:   wallets,
		Catalog:   catalog,
		Clients:   clients,
		Admin:     admin,
		GasTank:   gasTank,
		Signer:    signer,
		Mailer:    mail,
		Metrics:   m,
		Clock:     clock,
		Executors: sweep.DefaultExecutors(),
	}, config)
}
