package monitor_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-custody/internal/metrics"
	"github/chapool/go-custody/internal/test"
	"github/chapool/go-custody/internal/wallet/chain"
	"github/chapool/go-custody/internal/wallet/cursor"
	"github/chapool/go-custody/internal/wallet/deposit"
	"github/chapool/go-custody/internal/wallet/monitor"
)

type env struct {
	sup     *monitor.Supervisor
	cursors *test.Cursors
	clients map[chain.Pair]*test.ChainClient
	gated   map[chain.Pair]*gatedClient
}

// gatedClient parks CurrentHeight once armed, holding the detector inside an iteration.
type gatedClient struct {
	*test.ChainClient

	armed   atomic.Bool
	entered chan struct{}
	enter   sync.Once
	release chan struct{}
	open    sync.Once
}

func newGatedClient(c *test.ChainClient) *gatedClient {
	return &gatedClient{ChainClient: c, entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedClient) CurrentHeight(ctx context.Context) (int64, error) {
	if g.armed.Load() {
		g.enter.Do(func() { close(g.entered) })
		<-g.release
	}
	return g.ChainClient.CurrentHeight(ctx)
}

func (g *gatedClient) Open() {
	g.open.Do(func() { close(g.release) })
}

func newEnv(t *testing.T) *env {
	t.Helper()

	bsc := test.EVMChain("bsc", "testnet", 3)
	eth := test.EVMChain("eth", "sepolia", 3)
	off := test.EVMChain("polygon", "amoy", 3)
	off.IsActive = false

	catalog := test.NewTestCatalog(bsc, eth, off)
	e := &env{
		cursors: test.NewTestCursors(),
		clients: map[chain.Pair]*test.ChainClient{
			bsc.Pair(): test.NewTestChainClient(100),
			eth.Pair(): test.NewTestChainClient(2000),
			off.Pair(): test.NewTestChainClient(1),
		},
	}

	clients := chain.NewClients(catalog, map[chain.Family]chain.ClientFactory{
		chain.FamilyEVM: func(c *chain.Chain) (chain.Client, error) {
			if g, ok := e.gated[c.Pair()]; ok {
				return g, nil
			}
			return e.clients[c.Pair()], nil
		},
	})

	registry := monitor.NewTaskRegistry()
	e.sup = monitor.NewSupervisor(
		registry,
		catalog,
		clients,
		cursor.NewService(e.cursors, registry),
		deposit.Deps{
			Cursors:  e.cursors,
			Deposits: test.NewTestDeposits(),
			Wallets:  test.NewTestWallets(),
			Catalog:  catalog,
			Handler:  &test.Handoffs{},
			Metrics:  metrics.New(),
		},
		deposit.Config{PollInterval: 5 * time.Millisecond, Retry: chain.RetryPolicy{MaxAttempts: 1}},
	)
	t.Cleanup(e.sup.Close)

	return e
}

var bscTestnet = chain.NewPair("bsc", "testnet")

func TestSetStartHeightOnRunningPairIsInvalidState(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	require.NoError(t, e.sup.StartChain(ctx, bscTestnet, deposit.StartLast, nil))
	assert.True(t, e.sup.IsRunning(bscTestnet))

	err := e.sup.SetStartHeight(ctx, bscTestnet, 50)
	require.ErrorIs(t, err, cursor.ErrInvalidState)

	e.sup.StopChain(bscTestnet)
	assert.False(t, e.sup.IsRunning(bscTestnet))

	require.NoError(t, e.sup.SetStartHeight(ctx, bscTestnet, 50))
	cur, err := e.cursors.Get(ctx, bscTestnet)
	require.NoError(t, err)
	assert.Equal(t, int64(50), cur.StartHeight)
}

func TestStartChainIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	require.NoError(t, e.sup.StartChain(ctx, bscTestnet, deposit.StartLast, nil))
	require.NoError(t, e.sup.StartChain(ctx, bscTestnet, deposit.StartCurrent, nil))
	assert.Equal(t, []chain.Pair{bscTestnet}, e.sup.Running())

	h := int64(10)
	err := e.sup.StartChain(ctx, bscTestnet, deposit.StartLast, &h)
	require.ErrorIs(t, err, cursor.ErrInvalidState)

	// stopping twice is fine
	e.sup.StopChain(bscTestnet)
	e.sup.StopChain(bscTestnet)
	assert.Empty(t, e.sup.Running())
}

func TestStartChainWithExplicitStartHeight(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.cursors.Put(&cursor.Cursor{Blockchain: "bsc", Network: "testnet", StartHeight: 0, LastProcessedHeight: 10})

	h := int64(90)
	require.NoError(t, e.sup.StartChain(ctx, bscTestnet, deposit.StartLast, &h))

	require.Eventually(t, func() bool {
		cur, err := e.cursors.Get(ctx, bscTestnet)
		return err == nil && cur.LastProcessedHeight == 100
	}, time.Second, 5*time.Millisecond)

	e.sup.StopChain(bscTestnet)

	assert.Equal(t, 0, e.clients[bscTestnet].BlockCalls(11))
	assert.Equal(t, 1, e.clients[bscTestnet].BlockCalls(90))
	assert.Equal(t, int64(90), e.cursors.Advances(bscTestnet)[0])
}

func TestStartAllSkipsInactiveChains(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	started, err := e.sup.StartAll(ctx, deposit.StartCurrent)
	require.NoError(t, err)
	assert.ElementsMatch(t, []chain.Pair{bscTestnet, chain.NewPair("eth", "sepolia")}, started)

	err = e.sup.StartChain(ctx, chain.NewPair("polygon", "amoy"), deposit.StartLast, nil)
	require.ErrorIs(t, err, monitor.ErrChainInactive)

	_, err = e.sup.StartAll(ctx, deposit.StartCurrent)
	require.NoError(t, err)
	assert.Len(t, e.sup.Running(), 2)

	e.sup.StopAll()
	assert.Empty(t, e.sup.Running())
}

func TestStatusReportsEveryPair(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	require.NoError(t, e.sup.StartChain(ctx, bscTestnet, deposit.StartCurrent, nil))

	require.Eventually(t, func() bool {
		st, err := e.sup.Status(ctx)
		require.NoError(t, err)
		for _, s := range st {
			if s.Pair == bscTestnet {
				return s.State == deposit.StateRunning && s.LastHead == 100
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	st, err := e.sup.Status(ctx)
	require.NoError(t, err)
	require.Len(t, st, 3)
	assert.Equal(t, chain.NewPair("eth", "sepolia"), st[1].Pair)
	assert.Equal(t, deposit.StateStopped, st[1].State)

	e.sup.StopChain(bscTestnet)
	st, err = e.sup.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, bscTestnet, st[0].Pair)
	assert.Equal(t, deposit.StateStopped, st[0].State)
	assert.Equal(t, int64(100), st[0].LastHead)
}

func TestBlocks(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.cursors.Put(&cursor.Cursor{Blockchain: "bsc", Network: "testnet", StartHeight: 40, LastProcessedHeight: 77})

	b, err := e.sup.Blocks(ctx)
	require.NoError(t, err)

	assert.Equal(t, map[string]int64{"bsc_testnet": 100, "eth_sepolia": 2000}, b.CurrentBlocks)
	assert.Equal(t, map[string]int64{"bsc_testnet": 40}, b.SavedBlocks)
	assert.Equal(t, map[string]int64{"bsc_testnet": 77}, b.LastProcessedBlocks)
}

func TestScanHeightLeavesCursorAlone(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	require.NoError(t, e.sup.ScanHeight(ctx, bscTestnet, 42))
	assert.Equal(t, 1, e.clients[bscTestnet].BlockCalls(42))
	assert.Empty(t, e.cursors.Advances(bscTestnet))
}

func TestStopChainReleasesPairWhileIterationDrains(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	gate := newGatedClient(e.clients[bscTestnet])
	e.gated = map[chain.Pair]*gatedClient{bscTestnet: gate}
	defer gate.Open()

	require.NoError(t, e.sup.StartChain(ctx, bscTestnet, deposit.StartLast, nil))
	gate.armed.Store(true)

	select {
	case <-gate.entered:
	case <-time.After(time.Second):
		t.Fatal("detector never polled the head")
	}

	stopped := make(chan struct{})
	go func() {
		e.sup.StopChain(bscTestnet)
		close(stopped)
	}()

	// the pair reads as stopped while its last iteration is still running
	require.Eventually(t, func() bool { return !e.sup.IsRunning(bscTestnet) }, time.Second, 5*time.Millisecond)
	assert.Empty(t, e.sup.Running())

	select {
	case <-stopped:
		t.Fatal("StopChain returned before the iteration ended")
	default:
	}

	// cursor changes still wait for the detector to be gone
	heightSet := make(chan error, 1)
	go func() { heightSet <- e.sup.SetStartHeight(ctx, bscTestnet, 50) }()

	select {
	case <-heightSet:
		t.Fatal("start height changed while the detector was still running")
	case <-time.After(50 * time.Millisecond):
	}

	gate.Open()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("StopChain did not return")
	}
	require.NoError(t, <-heightSet)

	cur, err := e.cursors.Get(ctx, bscTestnet)
	require.NoError(t, err)
	assert.Equal(t, int64(50), cur.StartHeight)
}
