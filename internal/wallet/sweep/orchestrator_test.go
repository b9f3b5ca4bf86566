package sweep_test

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/dropbox/godropbox/time2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-custody/internal/mailer/transport"
	"github/chapool/go-custody/internal/metrics"
	"github/chapool/go-custody/internal/test"
	"github/chapool/go-custody/internal/wallet"
	"github/chapool/go-custody/internal/wallet/chain"
	"github/chapool/go-custody/internal/wallet/registry"
	"github/chapool/go-custody/internal/wallet/signer"
	"github/chapool/go-custody/internal/wallet/sweep"
)

var suggestedFee = big.NewInt(100)

// fakeExecutor records jobs. A broadcast transaction settles with the configured outcome,
// one that never left the process is not found.
type fakeExecutor struct {
	mu           sync.Mutex
	jobs         []sweep.Job
	succeeded    bool
	submitErr    error
	broadcastErr error
	outcomes     map[string]outcome
	block        chan struct{}
}

type outcome struct {
	included  bool
	succeeded bool
}

func (e *fakeExecutor) factory(chain.Client, signer.Service, sweep.Config) (sweep.Executor, error) {
	return e, nil
}

func (e *fakeExecutor) Submit(ctx context.Context, job *sweep.Job) (*sweep.Submission, error) {
	if e.block != nil {
		<-e.block
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.jobs = append(e.jobs, *job)
	if e.submitErr != nil {
		return nil, e.submitErr
	}

	sub := &sweep.Submission{
		TxHash: "0xsweep" + job.Sweep.ID,
		Amount: job.Deposit.Amount.BigInt(),
		Fee:    sweep.ChooseFee(job.PriorFee, job.Option, suggestedFee, sweep.DefaultFeeBumpPercent),
	}
	if job.Replaces != nil && job.Replaces.Nonce.Valid {
		n := uint64(job.Replaces.Nonce.Int64)
		sub.Nonce = &n
	}
	if err := job.Signed(ctx, sub); err != nil {
		return nil, err
	}

	if e.broadcastErr != nil {
		e.settle(sub.TxHash, outcome{})
		return nil, e.broadcastErr
	}

	e.settle(sub.TxHash, outcome{included: true, succeeded: e.succeeded})
	return sub, nil
}

func (e *fakeExecutor) settle(txHash string, o outcome) {
	if e.outcomes == nil {
		e.outcomes = map[string]outcome{}
	}
	e.outcomes[txHash] = o
}

// Settle fixes the outcome of a transaction the executor did not send itself.
func (e *fakeExecutor) Settle(txHash string, included, succeeded bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.settle(txHash, outcome{included: included, succeeded: succeeded})
}

func (e *fakeExecutor) Outcome(_ context.Context, txHash string) (bool, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if o, ok := e.outcomes[txHash]; ok {
		return o.included, o.succeeded, nil
	}
	return true, e.succeeded, nil
}

func (e *fakeExecutor) Jobs() []sweep.Job {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]sweep.Job(nil), e.jobs...)
}

type fixture struct {
	catalog  *test.Catalog
	wallets  *test.Wallets
	deposits *test.Deposits
	sweeps   *test.Sweeps
	admin    registry.Service
	exec     *fakeExecutor
	mail     *transport.MockMailTransport
	metrics  *metrics.Custody
	clock    *time2.MockClock
	svc      sweep.Service
}

func tronChain() *chain.Chain {
	return &chain.Chain{
		Blockchain: "trx", Network: "mainnet", Family: chain.FamilyAccount, RPCURLs: "https://api.trongrid.io",
		RequiredConfirmations: 19, NativeSymbol: "TRX", NativeDecimals: 6, FeeMode: chain.FeeModeSeparate, IsActive: true,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		catalog:  test.NewTestCatalog(test.EVMChain("bsc", "testnet", 3), tronChain()),
		wallets:  test.NewTestWallets(),
		deposits: test.NewTestDeposits(),
		sweeps:   test.NewTestSweeps(),
		exec:     &fakeExecutor{succeeded: true},
		metrics:  metrics.New(),
		clock:    test.NewTestClock(),
	}

	ctx := t.Context()
	require.NoError(t, f.catalog.UpsertToken(ctx, &chain.Token{ID: "tok-bnb", Blockchain: "bsc", Network: "testnet", Symbol: "BNB", Decimals: 18, IsActive: true}))
	require.NoError(t, f.catalog.UpsertToken(ctx, &chain.Token{ID: "tok-usdt", Blockchain: "bsc", Network: "testnet", Symbol: "USDT", ContractAddress: "0x55d398326f99059ff775485246999027b3197955", Decimals: 18, IsActive: true}))
	require.NoError(t, f.catalog.UpsertToken(ctx, &chain.Token{ID: "tok-trx", Blockchain: "trx", Network: "mainnet", Symbol: "TRX", Decimals: 6, IsActive: true}))

	f.wallets.Add(&wallet.Wallet{ID: "w-user", OwnerID: "u-1", OwnerKind: wallet.OwnerUser, Blockchain: "bsc", Network: "testnet", Address: "0x70997970c51812dc3a010c7d01b50e0d17dc79c8"})
	f.wallets.Add(&wallet.Wallet{ID: "w-admin", OwnerID: wallet.SystemOwnerID, OwnerKind: wallet.OwnerAdmin, Blockchain: "bsc", Network: "testnet", Address: "0x3c44cdddb6a900fa2b585dd299e03d12fa4293bc"})
	f.wallets.Add(&wallet.Wallet{ID: "w-tron-user", OwnerID: "u-1", OwnerKind: wallet.OwnerUser, Blockchain: "trx", Network: "mainnet", Address: "TJRabPrwbZy45sbavfcjinPJC18kjpRTv8"})

	vault := test.NewTestVault(t, f.wallets, test.NewTestClock())
	clients := chain.NewClients(f.catalog, nil)
	clients.Set(chain.NewPair("bsc", "testnet"), test.NewTestChainClient(100))
	clients.Set(chain.NewPair("trx", "mainnet"), test.NewTestChainClient(100))

	f.admin = registry.NewAdminRegistry(f.catalog, f.wallets, vault)

	mailer, mock := test.NewTestMailer(t)
	f.mail = mock

	f.svc = sweep.NewOrchestrator(sweep.Deps{
		Store:    f.sweeps,
		Deposits: f.deposits,
		Wallets:  f.wallets,
		Catalog:  f.catalog,
		Clients:  clients,
		Admin:    f.admin,
		GasTank:  registry.NewGasTankRegistry(f.catalog, f.wallets, vault, clients),
		Signer:   signer.NewService(vault),
		Mailer:   mailer,
		Metrics:  f.metrics,
		Clock:    f.clock,
		Executors: map[chain.Family]sweep.ExecutorFactory{
			chain.FamilyEVM:     f.exec.factory,
			chain.FamilyAccount: f.exec.factory,
		},
	}, sweep.Config{
		Enabled:             true,
		ReceiptPollInterval: 5 * time.Millisecond,
		ReceiptTimeout:      time.Second,
	})

	return f
}

func (f *fixture) confirmed(id, walletID, tokenID string, pair chain.Pair) *wallet.Deposit {
	d := &wallet.Deposit{
		ID: id, UserID: "u-1", WalletID: walletID, TokenID: tokenID, TxHash: "0xdep" + id,
		FromAddress: "0xfrom", Amount: decimal.NewFromInt(5_000_000), Blockchain: pair.Blockchain, Network: pair.Network,
		BlockNumber: 90, Confirmations: 3, Status: wallet.DepositConfirmed,
	}
	f.deposits.Put(d)
	return d
}

func TestConfirmedDepositIsSwept(t *testing.T) {
	f := newFixture(t)
	d := f.confirmed("d-1", "w-user", "tok-bnb", chain.NewPair("bsc", "testnet"))

	f.svc.OnDepositConfirmed(t.Context(), d)
	f.svc.Wait()

	rows := f.sweeps.ByDeposit("d-1")
	require.Len(t, rows, 1)
	assert.Equal(t, wallet.SweepCompleted, rows[0].Status)
	assert.Equal(t, "w-admin", rows[0].ToAdminWalletID.String)
	assert.Equal(t, "w-user", rows[0].FromWalletID)
	assert.Equal(t, 1, rows[0].Attempt)
	assert.True(t, rows[0].TxHash.Valid)
	assert.True(t, rows[0].Fee.Decimal.Equal(decimal.NewFromInt(100)))

	jobs := f.exec.Jobs()
	require.Len(t, jobs, 1)
	assert.Nil(t, jobs[0].GasTank, "native sweeps never use the gas tank")
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.SweepOutcomes.WithLabelValues("bsc", "testnet", "completed")), 0)
}

func TestDuplicateConfirmationSweepsOnce(t *testing.T) {
	f := newFixture(t)
	f.exec.block = make(chan struct{})
	d := f.confirmed("d-1", "w-user", "tok-bnb", chain.NewPair("bsc", "testnet"))

	f.svc.OnDepositConfirmed(t.Context(), d)
	f.svc.OnDepositConfirmed(t.Context(), d)
	close(f.exec.block)
	f.svc.Wait()

	f.svc.OnDepositConfirmed(t.Context(), d)
	f.svc.Wait()

	rows := f.sweeps.ByDeposit("d-1")
	require.Len(t, rows, 1)
	assert.Equal(t, wallet.SweepCompleted, rows[0].Status)
	assert.Len(t, f.exec.Jobs(), 1)
}

func TestMissingAdminWalletSkipsSweep(t *testing.T) {
	f := newFixture(t)
	d := f.confirmed("d-tron", "w-tron-user", "tok-trx", chain.NewPair("trx", "mainnet"))

	f.mail.Expect(1)
	f.svc.OnDepositConfirmed(t.Context(), d)
	f.svc.Wait()
	require.True(t, f.mail.WaitWithTimeout(time.Second))

	rows := f.sweeps.ByDeposit("d-tron")
	require.Len(t, rows, 1)
	assert.Equal(t, wallet.SweepSkipped, rows[0].Status)
	assert.Contains(t, rows[0].Message, "trx/mainnet")
	assert.False(t, rows[0].ToAdminWalletID.Valid)
	assert.Empty(t, f.exec.Jobs())

	assert.Equal(t, "[custody] sweep skipped", f.mail.GetLastSentMail().Subject)

	missing, err := f.admin.ScanMissing(t.Context())
	require.NoError(t, err)
	assert.Contains(t, missing, chain.NewPair("trx", "mainnet"))
}

func TestTokenSweepWithoutGasTankFails(t *testing.T) {
	f := newFixture(t)
	d := f.confirmed("d-usdt", "w-user", "tok-usdt", chain.NewPair("bsc", "testnet"))

	f.svc.OnDepositConfirmed(t.Context(), d)
	f.svc.Wait()

	rows := f.sweeps.ByDeposit("d-usdt")
	require.Len(t, rows, 1)
	assert.Equal(t, wallet.SweepFailed, rows[0].Status)
	assert.Contains(t, rows[0].Message, sweep.ErrInsufficientGasTank.Error())
	assert.Empty(t, f.exec.Jobs())
}

func TestTokenSweepUsesGasTank(t *testing.T) {
	f := newFixture(t)
	f.wallets.Add(&wallet.Wallet{ID: "w-tank", OwnerID: wallet.SystemOwnerID, OwnerKind: wallet.OwnerGasTank, Blockchain: "bsc", Network: "testnet", Address: "0x90f79bf6eb2c4f870365e785982e1f101e93b906"})
	d := f.confirmed("d-usdt", "w-user", "tok-usdt", chain.NewPair("bsc", "testnet"))

	f.svc.OnDepositConfirmed(t.Context(), d)
	f.svc.Wait()

	jobs := f.exec.Jobs()
	require.Len(t, jobs, 1)
	require.NotNil(t, jobs[0].GasTank)
	assert.Equal(t, "w-tank", jobs[0].GasTank.ID)
	assert.Equal(t, wallet.SweepCompleted, f.sweeps.ByDeposit("d-usdt")[0].Status)
}

func TestRetryWithHigherFee(t *testing.T) {
	f := newFixture(t)
	f.exec.succeeded = false
	d := f.confirmed("d-1", "w-user", "tok-bnb", chain.NewPair("bsc", "testnet"))

	f.svc.OnDepositConfirmed(t.Context(), d)
	f.svc.Wait()

	first := f.sweeps.ByDeposit("d-1")
	require.Len(t, first, 1)
	require.Equal(t, wallet.SweepFailed, first[0].Status)
	assert.Contains(t, first[0].Message, sweep.ErrInclusionFailed.Error())

	f.exec.mu.Lock()
	f.exec.succeeded = true
	f.exec.mu.Unlock()

	row, err := f.svc.Retry(t.Context(), first[0].ID, sweep.FeeHigher)
	require.NoError(t, err)
	assert.Equal(t, 2, row.Attempt)
	assert.NotEqual(t, first[0].ID, row.ID)
	f.svc.Wait()

	rows := f.sweeps.ByDeposit("d-1")
	require.Len(t, rows, 2)
	assert.Equal(t, wallet.SweepFailed, rows[0].Status, "the retried attempt stays as it was")
	assert.Equal(t, wallet.SweepCompleted, rows[1].Status)
	assert.True(t, rows[1].Fee.Decimal.GreaterThan(rows[0].Fee.Decimal))

	jobs := f.exec.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, 0, jobs[1].PriorFee.Cmp(big.NewInt(100)))
	assert.Equal(t, sweep.FeeHigher, jobs[1].Option)
}

func TestRetryWithSameFee(t *testing.T) {
	f := newFixture(t)
	f.exec.submitErr = assert.AnError
	d := f.confirmed("d-1", "w-user", "tok-bnb", chain.NewPair("bsc", "testnet"))

	f.svc.OnDepositConfirmed(t.Context(), d)
	f.svc.Wait()

	first := f.sweeps.ByDeposit("d-1")
	require.Len(t, first, 1)
	require.Equal(t, wallet.SweepFailed, first[0].Status)
	assert.Contains(t, first[0].Message, sweep.ErrSubmissionFailed.Error())
	assert.False(t, first[0].TxHash.Valid)

	f.exec.mu.Lock()
	f.exec.submitErr = nil
	f.exec.mu.Unlock()

	_, err := f.svc.Retry(t.Context(), first[0].ID, sweep.FeeSame)
	require.NoError(t, err)
	f.svc.Wait()

	rows := f.sweeps.ByDeposit("d-1")
	require.Len(t, rows, 2)
	assert.Equal(t, wallet.SweepCompleted, rows[1].Status)
}

func TestHigherFeeOutbidsEveryEarlierAttempt(t *testing.T) {
	f := newFixture(t)
	f.exec.succeeded = false
	d := f.confirmed("d-1", "w-user", "tok-bnb", chain.NewPair("bsc", "testnet"))

	f.svc.OnDepositConfirmed(t.Context(), d)
	f.svc.Wait()

	first := f.sweeps.ByDeposit("d-1")
	require.Len(t, first, 1)
	require.Equal(t, wallet.SweepFailed, first[0].Status)
	require.True(t, first[0].Fee.Decimal.Equal(decimal.NewFromInt(100)))

	// the second attempt is signed but never reaches the node
	f.exec.mu.Lock()
	f.exec.broadcastErr = assert.AnError
	f.exec.mu.Unlock()

	_, err := f.svc.Retry(t.Context(), first[0].ID, sweep.FeeSame)
	require.NoError(t, err)
	f.svc.Wait()

	second := f.sweeps.ByDeposit("d-1")
	require.Len(t, second, 2)
	assert.Equal(t, wallet.SweepFailed, second[1].Status)
	assert.Contains(t, second[1].Message, sweep.ErrSubmissionFailed.Error())
	assert.Equal(t, "0xsweep"+second[1].ID, second[1].TxHash.String, "the transaction is recorded before it is broadcast")
	assert.True(t, second[1].Fee.Decimal.Equal(decimal.NewFromInt(100)))

	f.exec.mu.Lock()
	f.exec.broadcastErr = nil
	f.exec.succeeded = true
	f.exec.mu.Unlock()

	_, err = f.svc.Retry(t.Context(), second[1].ID, sweep.FeeHigher)
	require.NoError(t, err)
	f.svc.Wait()

	rows := f.sweeps.ByDeposit("d-1")
	require.Len(t, rows, 3)
	assert.Equal(t, wallet.SweepCompleted, rows[2].Status)
	assert.Equal(t, 3, rows[2].Attempt)
	assert.True(t, rows[2].Fee.Decimal.GreaterThan(decimal.NewFromInt(100)))

	jobs := f.exec.Jobs()
	require.Len(t, jobs, 3)
	require.NotNil(t, jobs[2].PriorFee)
	assert.Equal(t, 0, jobs[2].PriorFee.Cmp(big.NewInt(100)))
	require.NotNil(t, jobs[2].Replaces, "the unsent transaction is the one replaced")
	assert.Equal(t, second[1].ID, jobs[2].Replaces.ID)
}

func TestRetryAdoptsLateInclusion(t *testing.T) {
	f := newFixture(t)
	f.confirmed("d-1", "w-user", "tok-bnb", chain.NewPair("bsc", "testnet"))
	f.sweeps.Put(&wallet.SweepTransaction{
		ID: "s-1", DepositID: "d-1", FromWalletID: "w-user", Status: wallet.SweepFailed, Blockchain: "bsc", Network: "testnet", TokenID: "tok-bnb", Attempt: 1,
		TxHash: null.StringFrom("0xlate"), Amount: decimal.NewFromInt(5_000_000), Fee: decimal.NewNullDecimal(decimal.NewFromInt(100)), Nonce: null.Int64From(0),
	})
	f.exec.Settle("0xlate", true, true)

	row, err := f.svc.Retry(t.Context(), "s-1", sweep.FeeHigher)
	require.NoError(t, err)
	f.svc.Wait()

	assert.Empty(t, f.exec.Jobs(), "nothing is resubmitted")

	got, err := f.sweeps.Get(t.Context(), row.ID)
	require.NoError(t, err)
	assert.Equal(t, wallet.SweepCompleted, got.Status)
	assert.Equal(t, "0xlate", got.TxHash.String)
	assert.Equal(t, null.Int64From(0), got.Nonce)
	assert.Contains(t, got.Message, "attempt 1")

	_, err = f.svc.Retry(t.Context(), row.ID, sweep.FeeHigher)
	require.ErrorIs(t, err, sweep.ErrNotRetryable)
}

func TestRetryReplacesStuckTransaction(t *testing.T) {
	f := newFixture(t)
	f.confirmed("d-1", "w-user", "tok-bnb", chain.NewPair("bsc", "testnet"))
	f.sweeps.Put(&wallet.SweepTransaction{
		ID: "s-1", DepositID: "d-1", FromWalletID: "w-user", Status: wallet.SweepFailed, Blockchain: "bsc", Network: "testnet", TokenID: "tok-bnb", Attempt: 1,
		TxHash: null.StringFrom("0xstuck"), Amount: decimal.NewFromInt(5_000_000), Fee: decimal.NewNullDecimal(decimal.NewFromInt(100)), Nonce: null.Int64From(7),
	})
	f.exec.Settle("0xstuck", false, false)

	row, err := f.svc.Retry(t.Context(), "s-1", sweep.FeeHigher)
	require.NoError(t, err)
	f.svc.Wait()

	jobs := f.exec.Jobs()
	require.Len(t, jobs, 1)
	require.NotNil(t, jobs[0].Replaces)
	assert.Equal(t, "s-1", jobs[0].Replaces.ID)

	got, err := f.sweeps.Get(t.Context(), row.ID)
	require.NoError(t, err)
	assert.Equal(t, wallet.SweepCompleted, got.Status)
	assert.Equal(t, null.Int64From(7), got.Nonce, "the replacement reuses the stuck nonce")
	assert.True(t, got.Fee.Decimal.GreaterThan(decimal.NewFromInt(100)))
}

func TestRetryResolvesStalePendingSweep(t *testing.T) {
	f := newFixture(t)
	f.confirmed("d-1", "w-user", "tok-bnb", chain.NewPair("bsc", "testnet"))
	f.confirmed("d-2", "w-user", "tok-bnb", chain.NewPair("bsc", "testnet"))
	f.sweeps.Put(&wallet.SweepTransaction{
		ID: "s-1", DepositID: "d-1", FromWalletID: "w-user", Status: wallet.SweepPending, Blockchain: "bsc", Network: "testnet", TokenID: "tok-bnb", Attempt: 1,
		TxHash: null.StringFrom("0xlost"), Amount: decimal.NewFromInt(5_000_000), Fee: decimal.NewNullDecimal(decimal.NewFromInt(100)),
	})
	f.sweeps.Put(&wallet.SweepTransaction{
		ID: "s-2", DepositID: "d-2", FromWalletID: "w-user", Status: wallet.SweepPending, Blockchain: "bsc", Network: "testnet", TokenID: "tok-bnb", Attempt: 1,
		TxHash: null.StringFrom("0xmined"), Amount: decimal.NewFromInt(5_000_000), Fee: decimal.NewNullDecimal(decimal.NewFromInt(100)),
	})
	f.exec.Settle("0xlost", false, false)
	f.exec.Settle("0xmined", true, true)

	// still within the receipt timeout
	_, err := f.svc.Retry(t.Context(), "s-1", sweep.FeeHigher)
	require.ErrorIs(t, err, sweep.ErrNotRetryable)

	f.clock.Advance(time.Minute)

	row, err := f.svc.Retry(t.Context(), "s-1", sweep.FeeHigher)
	require.NoError(t, err)
	assert.Equal(t, 2, row.Attempt)
	f.svc.Wait()

	rows := f.sweeps.ByDeposit("d-1")
	require.Len(t, rows, 2)
	assert.Equal(t, wallet.SweepFailed, rows[0].Status)
	assert.Contains(t, rows[0].Message, "not included")
	assert.Equal(t, wallet.SweepCompleted, rows[1].Status)

	_, err = f.svc.Retry(t.Context(), "s-2", sweep.FeeHigher)
	require.ErrorIs(t, err, sweep.ErrNotRetryable)

	mined, err := f.sweeps.Get(t.Context(), "s-2")
	require.NoError(t, err)
	assert.Equal(t, wallet.SweepCompleted, mined.Status)
	assert.Len(t, f.sweeps.ByDeposit("d-2"), 1)
}

func TestReconcileResolvesStalePendingSweeps(t *testing.T) {
	f := newFixture(t)
	f.sweeps.Put(&wallet.SweepTransaction{
		ID: "s-1", DepositID: "d-1", FromWalletID: "w-user", Status: wallet.SweepPending, Blockchain: "bsc", Network: "testnet", TokenID: "tok-bnb", Attempt: 1,
		TxHash: null.StringFrom("0xmined"), Amount: decimal.NewFromInt(5_000_000), Fee: decimal.NewNullDecimal(decimal.NewFromInt(100)),
	})
	f.sweeps.Put(&wallet.SweepTransaction{ID: "s-2", DepositID: "d-2", FromWalletID: "w-user", Status: wallet.SweepPending, Blockchain: "bsc", Network: "testnet", TokenID: "tok-bnb", Attempt: 1})
	f.sweeps.Put(&wallet.SweepTransaction{
		ID: "s-3", DepositID: "d-3", FromWalletID: "w-user", Status: wallet.SweepPending, Blockchain: "bsc", Network: "testnet", TokenID: "tok-bnb", Attempt: 1,
		TxHash: null.StringFrom("0xreverted"), Amount: decimal.NewFromInt(5_000_000), Fee: decimal.NewNullDecimal(decimal.NewFromInt(100)),
	})
	f.exec.Settle("0xmined", true, true)
	f.exec.Settle("0xreverted", true, false)

	f.clock.Advance(time.Minute)
	require.NoError(t, f.svc.Reconcile(t.Context()))
	f.svc.Wait()

	pending, err := f.sweeps.Pending(t.Context())
	require.NoError(t, err)
	assert.Empty(t, pending)

	mined, err := f.sweeps.Get(t.Context(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, wallet.SweepCompleted, mined.Status)

	unsigned, err := f.sweeps.Get(t.Context(), "s-2")
	require.NoError(t, err)
	assert.Equal(t, wallet.SweepFailed, unsigned.Status)
	assert.Contains(t, unsigned.Message, "before the transaction was signed")

	reverted, err := f.sweeps.Get(t.Context(), "s-3")
	require.NoError(t, err)
	assert.Equal(t, wallet.SweepFailed, reverted.Status)
	assert.Contains(t, reverted.Message, "reverted")

	assert.Empty(t, f.exec.Jobs())
}

func TestReconcileWatchesRecentSweep(t *testing.T) {
	f := newFixture(t)
	f.sweeps.Put(&wallet.SweepTransaction{
		ID: "s-1", DepositID: "d-1", FromWalletID: "w-user", Status: wallet.SweepPending, Blockchain: "bsc", Network: "testnet", TokenID: "tok-bnb", Attempt: 1,
		TxHash: null.StringFrom("0xrecent"), Amount: decimal.NewFromInt(5_000_000), Fee: decimal.NewNullDecimal(decimal.NewFromInt(100)),
	})

	require.NoError(t, f.svc.Reconcile(t.Context()))
	f.svc.Wait()

	got, err := f.sweeps.Get(t.Context(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, wallet.SweepCompleted, got.Status)
	assert.Empty(t, f.exec.Jobs())
}

func TestRetryNotRetryable(t *testing.T) {
	f := newFixture(t)
	d := f.confirmed("d-1", "w-user", "tok-bnb", chain.NewPair("bsc", "testnet"))

	f.svc.OnDepositConfirmed(t.Context(), d)
	f.svc.Wait()

	rows := f.sweeps.ByDeposit("d-1")
	require.Len(t, rows, 1)
	require.Equal(t, wallet.SweepCompleted, rows[0].Status)

	_, err := f.svc.Retry(t.Context(), rows[0].ID, sweep.FeeHigher)
	require.ErrorIs(t, err, sweep.ErrNotRetryable)

	// a pending attempt blocks retries of older ones
	f.confirmed("d-2", "w-user", "tok-bnb", chain.NewPair("bsc", "testnet"))
	f.sweeps.Put(&wallet.SweepTransaction{ID: "s-old", DepositID: "d-2", FromWalletID: "w-user", Status: wallet.SweepFailed, Blockchain: "bsc", Network: "testnet", TokenID: "tok-bnb", Attempt: 1})
	f.sweeps.Put(&wallet.SweepTransaction{ID: "s-new", DepositID: "d-2", FromWalletID: "w-user", Status: wallet.SweepPending, Blockchain: "bsc", Network: "testnet", TokenID: "tok-bnb", Attempt: 2})

	_, err = f.svc.Retry(t.Context(), "s-old", sweep.FeeSame)
	require.ErrorIs(t, err, sweep.ErrNotRetryable)

	_, err = f.svc.Retry(t.Context(), "s-missing", sweep.FeeSame)
	require.ErrorIs(t, err, sweep.ErrSweepNotFound)

	_, err = f.svc.Retry(t.Context(), "s-old", sweep.FeeOption("cheaper"))
	require.ErrorIs(t, err, sweep.ErrInvalidFeeOption)
	assert.Len(t, f.sweeps.ByDeposit("d-2"), 2)
}

func TestRetryOfFailedDepositIsRejected(t *testing.T) {
	f := newFixture(t)
	d := f.confirmed("d-1", "w-user", "tok-bnb", chain.NewPair("bsc", "testnet"))
	d.Status = wallet.DepositFailed
	f.deposits.Put(d)
	f.sweeps.Put(&wallet.SweepTransaction{ID: "s-1", DepositID: "d-1", FromWalletID: "w-user", Status: wallet.SweepFailed, Blockchain: "bsc", Network: "testnet", TokenID: "tok-bnb", Attempt: 1})

	_, err := f.svc.Retry(t.Context(), "s-1", sweep.FeeHigher)
	require.ErrorIs(t, err, sweep.ErrNotRetryable)
}

func TestReorgAfterSweepRaisesAnomaly(t *testing.T) {
	f := newFixture(t)
	d := f.confirmed("d-1", "w-user", "tok-bnb", chain.NewPair("bsc", "testnet"))

	f.svc.OnDepositConfirmed(t.Context(), d)
	f.svc.Wait()

	d.Status = wallet.DepositFailed
	f.mail.Expect(1)
	f.svc.OnDepositReorged(t.Context(), d)
	require.True(t, f.mail.WaitWithTimeout(time.Second))

	mail := f.mail.GetLastSentMail()
	assert.Equal(t, "[custody] reorg after sweep", mail.Subject)
	assert.Contains(t, string(mail.Text), "deposit_id: d-1")
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.ReorgAnomalies.WithLabelValues("bsc", "testnet")), 0)

	// the completed sweep is left untouched
	rows := f.sweeps.ByDeposit("d-1")
	require.Len(t, rows, 1)
	assert.Equal(t, wallet.SweepCompleted, rows[0].Status)
}

func TestReorgWithoutSweepIsQuiet(t *testing.T) {
	f := newFixture(t)
	d := f.confirmed("d-1", "w-user", "tok-bnb", chain.NewPair("bsc", "testnet"))
	d.Status = wallet.DepositFailed

	f.svc.OnDepositReorged(t.Context(), d)

	assert.Empty(t, f.mail.GetSentMails())
	assert.InDelta(t, 0, testutil.ToFloat64(f.metrics.ReorgAnomalies.WithLabelValues("bsc", "testnet")), 0)
}

func TestListFiltersByStatus(t *testing.T) {
	f := newFixture(t)
	f.sweeps.Put(&wallet.SweepTransaction{ID: "s-1", DepositID: "d-1", Status: wallet.SweepFailed, Blockchain: "bsc", Network: "testnet", Attempt: 1})
	f.sweeps.Put(&wallet.SweepTransaction{ID: "s-2", DepositID: "d-1", Status: wallet.SweepCompleted, Blockchain: "bsc", Network: "testnet", Attempt: 2})
	f.sweeps.Put(&wallet.SweepTransaction{ID: "s-3", DepositID: "d-2", Status: wallet.SweepCompleted, Blockchain: "bsc", Network: "testnet", Attempt: 1})

	rows, total, err := f.svc.List(t.Context(), sweep.Filter{Limit: 1, Status: wallet.SweepCompleted})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, rows, 1)
	assert.Equal(t, "s-3", rows[0].ID)
}

func TestDisabledSweepingLeavesDeposit(t *testing.T) {
	f := newFixture(t)
	svc := sweep.NewOrchestrator(sweep.Deps{Store: f.sweeps, Metrics: f.metrics}, sweep.Config{Enabled: false})
	d := f.confirmed("d-1", "w-user", "tok-bnb", chain.NewPair("bsc", "testnet"))

	svc.OnDepositConfirmed(t.Context(), d)
	svc.Wait()

	assert.Empty(t, f.sweeps.ByDeposit("d-1"))
}
