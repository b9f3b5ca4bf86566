package test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dropbox/godropbox/time2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github/chapool/go-custody/internal/api"
	"github/chapool/go-custody/internal/api/router"
	"github/chapool/go-custody/internal/config"
	"github/chapool/go-custody/internal/mailer/transport"
	"github/chapool/go-custody/internal/metrics"
	"github/chapool/go-custody/internal/wallet/chain"
	"github/chapool/go-custody/internal/wallet/cursor"
	"github/chapool/go-custody/internal/wallet/deposit"
	"github/chapool/go-custody/internal/wallet/monitor"
	"github/chapool/go-custody/internal/wallet/registry"
	"github/chapool/go-custody/internal/wallet/signer"
	"github/chapool/go-custody/internal/wallet/sweep"
)

const (
	TestAdminToken = "test-admin-token"
	TestMgmtSecret = "test-mgmt-secret"
)

// ServerFixture exposes the in-memory backends of a test server.
type ServerFixture struct {
	Mock     sqlmock.Sqlmock
	Catalog  *Catalog
	Wallets  *Wallets
	Cursors  *Cursors
	Deposits *Deposits
	Sweeps   *Sweeps
	Mail     *transport.MockMailTransport
	Clock    *time2.MockClock
	Executor *Executor

	// one fake node per catalog chain
	Nodes map[chain.Pair]*ChainClient
}

var (
	BSCTestnet  = chain.NewPair("bsc", "testnet")
	ETHSepolia  = chain.NewPair("eth", "sepolia")
	PolygonAmoy = chain.NewPair("polygon", "amoy")
)

// NewTestServerConfig returns the env config with fixed secrets and fast timeouts.
func NewTestServerConfig() config.Server {
	cfg := config.DefaultServiceConfigFromEnv()

	cfg.Custody.AdminToken = TestAdminToken
	cfg.Custody.PollInterval = 5 * time.Millisecond
	cfg.Custody.RetryMaxAttempts = 1
	cfg.Custody.ReceiptPollInterval = 5 * time.Millisecond
	cfg.Custody.ReceiptTimeout = time.Second
	cfg.Custody.SweepEnabled = true
	cfg.Management.Secret = TestMgmtSecret
	cfg.Management.ProbeWriteablePathsAbs = nil
	cfg.Mailer.OpsRecipients = []string{"ops@example.com"}

	return cfg
}

// WithTestServer runs closure against a fully routed server backed by in-memory stores.
func WithTestServer(t *testing.T, closure func(s *api.Server)) {
	t.Helper()

	WithTestServerFixture(t, func(s *api.Server, _ *ServerFixture) {
		closure(s)
	})
}

// WithTestServerFixture is WithTestServer with access to the backing fakes.
// The catalog holds bsc/testnet and eth/sepolia as active evm chains and polygon/amoy as inactive one.
func WithTestServerFixture(t *testing.T, closure func(s *api.Server, f *ServerFixture)) {
	t.Helper()

	s, f := NewTestServer(t, NewTestServerConfig())
	closure(s, f)
}

// NewTestServer builds the server by hand, the way wire would, swapping the stores for fakes.
func NewTestServer(t *testing.T, cfg config.Server) (*api.Server, *ServerFixture) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	bsc := EVMChain("bsc", "testnet", 3)
	eth := EVMChain("eth", "sepolia", 3)
	eth.NativeSymbol = "ETH"
	eth.EVMChainID = 11155111
	off := EVMChain("polygon", "amoy", 3)
	off.NativeSymbol = "POL"
	off.EVMChainID = 80002
	off.IsActive = false

	mail, mailMock := NewTestMailer(t)
	clock := NewTestClock()

	f := &ServerFixture{
		Mock:     mock,
		Catalog:  NewTestCatalog(bsc, eth, off),
		Wallets:  NewTestWallets(),
		Cursors:  NewTestCursors(),
		Deposits: NewTestDeposits(),
		Sweeps:   NewTestSweeps(),
		Mail:     mailMock,
		Clock:    clock,
		Executor: &Executor{},
		Nodes: map[chain.Pair]*ChainClient{
			bsc.Pair(): NewTestChainClient(100),
			eth.Pair(): NewTestChainClient(2000),
			off.Pair(): NewTestChainClient(1),
		},
	}

	m := metrics.New()
	require.NoError(t, m.RegisterDB("custody", db))

	clients := chain.NewClients(f.Catalog, map[chain.Family]chain.ClientFactory{
		chain.FamilyEVM: func(c *chain.Chain) (chain.Client, error) {
			node, ok := f.Nodes[c.Pair()]
			if !ok {
				return nil, errors.Wrapf(chain.ErrUnknownChain, "no test node for %s", c.Pair())
			}
			return node, nil
		},
	})

	vault := NewTestVault(t, f.Wallets, clock)
	sign := signer.NewService(vault)
	admin := registry.NewAdminRegistry(f.Catalog, f.Wallets, vault)
	gasTank := registry.NewGasTankRegistry(f.Catalog, f.Wallets, vault, clients)

	executors := map[chain.Family]sweep.ExecutorFactory{}
	for _, family := range []chain.Family{chain.FamilyEVM, chain.FamilyUTXO, chain.FamilyAccount} {
		executors[family] = f.Executor.Factory
	}

	sweeps := sweep.NewOrchestrator(sweep.Deps{
		Store:     f.Sweeps,
		Deposits:  f.Deposits,
		Wallets:   f.Wallets,
		Catalog:   f.Catalog,
		Clients:   clients,
		Admin:     admin,
		GasTank:   gasTank,
		Signer:    sign,
		Mailer:    mail,
		Metrics:   m,
		Clock:     clock,
		Executors: executors,
	}, api.NewSweepConfig(cfg))

	tasks := monitor.NewTaskRegistry()
	cursors := cursor.NewService(f.Cursors, tasks)
	supervisor := monitor.NewSupervisor(
		tasks,
		f.Catalog,
		clients,
		cursors,
		deposit.Deps{
			Cursors:  f.Cursors,
			Deposits: f.Deposits,
			Wallets:  f.Wallets,
			Catalog:  f.Catalog,
			Handler:  sweeps,
			Metrics:  m,
		},
		api.NewDepositConfig(cfg),
	)

	s := &api.Server{
		Config:   cfg,
		DB:       db,
		Mailer:   mail,
		Clock:    clock,
		Metrics:  m,
		Catalog:  f.Catalog,
		Clients:  clients,
		Vault:    vault,
		Cursors:  cursors,
		Deposits: f.Deposits,
		Wallets:  f.Wallets,
		Signer:   sign,
		Admin:    admin,
		GasTank:  gasTank,
		Sweeps:   sweeps,
		Monitor:  supervisor,
	}

	router.Init(s)

	t.Cleanup(func() {
		mock.ExpectClose()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		// a test may have closed the database already
		_ = s.Shutdown(ctx)
	})

	return s, f
}
