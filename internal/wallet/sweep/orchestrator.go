package sweep

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/dropbox/godropbox/time2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github/chapool/go-custody/internal/mailer"
	"github/chapool/go-custody/internal/metrics"
	"github/chapool/go-custody/internal/wallet"
	"github/chapool/go-custody/internal/wallet/chain"
	"github/chapool/go-custody/internal/wallet/deposit"
	"github/chapool/go-custody/internal/wallet/registry"
	"github/chapool/go-custody/internal/wallet/signer"
)

type Config struct {
	Enabled             bool
	FeeBumpPercent      int64
	ReceiptPollInterval time.Duration
	ReceiptTimeout      time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:             true,
		FeeBumpPercent:      DefaultFeeBumpPercent,
		ReceiptPollInterval: 3 * time.Second,
		ReceiptTimeout:      2 * time.Minute,
	}
}

type Deps struct {
	Store    Store
	Deposits deposit.Store
	Wallets  wallet.Store
	Catalog  chain.Service
	Clients  *chain.Clients
	Admin    registry.Service
	GasTank  registry.Service
	Signer   signer.Service
	Mailer   *mailer.Mailer
	Metrics  *metrics.Custody
	// Clock defaults to the wall clock.
	Clock time2.Clock

	// Executors defaults to DefaultExecutors.
	Executors map[chain.Family]ExecutorFactory
}

type orchestrator struct {
	deps   Deps
	config Config

	// deposit id -> struct{}, guards against concurrent attempts within this process
	inflight sync.Map
	wg       sync.WaitGroup
}

var _ deposit.ConfirmedHandler = (*orchestrator)(nil)

// NewOrchestrator 创建归集编排服务
//
//nolint:ireturn // Returning interface is intentional for DI
func NewOrchestrator(deps Deps, config Config) Service {
	if deps.Executors == nil {
		deps.Executors = DefaultExecutors()
	}
	if deps.Clock == nil {
		deps.Clock = time2.DefaultClock
	}
	if config.FeeBumpPercent <= 0 {
		config.FeeBumpPercent = DefaultFeeBumpPercent
	}
	if config.ReceiptPollInterval <= 0 {
		config.ReceiptPollInterval = DefaultConfig().ReceiptPollInterval
	}
	if config.ReceiptTimeout <= 0 {
		config.ReceiptTimeout = DefaultConfig().ReceiptTimeout
	}

	return &orchestrator{deps: deps, config: config}
}

func (o *orchestrator) OnDepositConfirmed(ctx context.Context, d *wallet.Deposit) {
	if !o.config.Enabled {
		log.Info().Str("deposit_id", d.ID).Msg("Sweeping disabled, confirmed deposit left in place")
		return
	}

	// the sweep outlives the detector iteration that confirmed the deposit
	ctx = context.WithoutCancel(ctx)

	// later attempts only start through Retry
	if latest, err := o.deps.Store.LatestByDeposit(ctx, d.ID); err == nil {
		log.Debug().Str("deposit_id", d.ID).Str("sweep_id", latest.ID).Str("status", string(latest.Status)).Msg("Deposit already has a sweep, skipping")
		return
	} else if !errors.Is(err, ErrSweepNotFound) {
		log.Error().Err(err).Str("deposit_id", d.ID).Msg("Failed to look up sweeps of deposit")
		return
	}

	row, j, err := o.begin(ctx, d, "")
	if err != nil {
		if errors.Is(err, ErrInFlight) {
			log.Debug().Str("deposit_id", d.ID).Msg("Sweep already in flight, skipping")
			return
		}
		log.Error().Err(err).Str("deposit_id", d.ID).Msg("Failed to start sweep")
		return
	}

	if j == nil {
		log.Info().Str("deposit_id", d.ID).Str("sweep_id", row.ID).Str("status", string(row.Status)).Msg("Sweep not started")
		return
	}

	o.run(ctx, j)
}

func (o *orchestrator) Retry(ctx context.Context, sweepID string, option FeeOption) (*wallet.SweepTransaction, error) {
	if option != FeeSame && option != FeeHigher {
		return nil, errors.Wrapf(ErrInvalidFeeOption, "%q", option)
	}

	prior, err := o.deps.Store.Get(ctx, sweepID)
	if err != nil {
		return nil, err
	}

	latest, err := o.deps.Store.LatestByDeposit(ctx, prior.DepositID)
	if err != nil {
		return nil, err
	}

	switch latest.Status {
	case wallet.SweepCompleted:
		return nil, errors.Wrapf(ErrNotRetryable, "deposit %s was already swept", prior.DepositID)
	case wallet.SweepPending:
		// a pending row nobody works on is resolved from the chain first
		status, err := o.resolveOrphan(ctx, latest)
		if err != nil {
			return nil, err
		}
		if status == wallet.SweepCompleted {
			return nil, errors.Wrapf(ErrNotRetryable, "deposit %s was already swept", prior.DepositID)
		}
	}

	if _, err := o.deps.Store.CompletedByDeposit(ctx, prior.DepositID); err == nil {
		return nil, errors.Wrapf(ErrNotRetryable, "deposit %s was already swept", prior.DepositID)
	} else if !errors.Is(err, ErrSweepNotFound) {
		return nil, err
	}

	d, err := o.deps.Deposits.Get(ctx, prior.DepositID)
	if err != nil {
		return nil, err
	}
	if d.Status != wallet.DepositConfirmed {
		return nil, errors.Wrapf(ErrNotRetryable, "deposit %s is %s", d.ID, d.Status)
	}

	ctx = context.WithoutCancel(ctx)

	row, j, err := o.begin(ctx, d, option)
	if err != nil {
		if errors.Is(err, ErrInFlight) {
			return nil, errors.Wrapf(ErrNotRetryable, "deposit %s has a sweep in flight", d.ID)
		}
		return nil, err
	}

	log.Info().
		Str("deposit_id", d.ID).
		Str("sweep_id", row.ID).
		Str("retried_sweep_id", sweepID).
		Str("fee_option", string(option)).
		Int("attempt", row.Attempt).
		Msg("Sweep retry requested")

	// the running attempt keeps updating row
	out := *row

	if j != nil {
		o.run(ctx, j)
	}

	return &out, nil
}

// Reconcile settles the pending sweeps an earlier run left behind. Sweeps signed within the
// receipt timeout are watched until they are included, older ones are resolved right away.
func (o *orchestrator) Reconcile(ctx context.Context) error {
	rows, err := o.deps.Store.Pending(ctx)
	if err != nil {
		return err
	}

	ctx = context.WithoutCancel(ctx)

	for _, row := range rows {
		release, ok := o.guard(row.DepositID)
		if !ok {
			continue
		}

		if row.TxHash.Valid && !o.stale(row) {
			log.Info().Str("sweep_id", row.ID).Str("tx_hash", row.TxHash.String).Msg("Watching pending sweep of an earlier run")
			o.watch(ctx, row, release)
			continue
		}

		err := o.resolve(ctx, row)
		release()
		if err != nil {
			log.Error().Err(err).Str("sweep_id", row.ID).Msg("Failed to resolve pending sweep")
			continue
		}

		log.Info().
			Str("deposit_id", row.DepositID).
			Str("sweep_id", row.ID).
			Str("status", string(row.Status)).
			Msg("Resolved pending sweep of an earlier run")
	}

	return nil
}

// resolveOrphan settles a pending row nothing in this process works on. Rows signed within
// the receipt timeout stay pending.
func (o *orchestrator) resolveOrphan(ctx context.Context, row *wallet.SweepTransaction) (wallet.SweepStatus, error) {
	release, ok := o.guard(row.DepositID)
	if !ok || !o.stale(row) {
		if ok {
			release()
		}
		return "", errors.Wrapf(ErrNotRetryable, "deposit %s has a sweep in flight", row.DepositID)
	}
	defer release()

	if err := o.resolve(ctx, row); err != nil {
		return "", err
	}

	log.Info().Str("deposit_id", row.DepositID).Str("sweep_id", row.ID).Str("status", string(row.Status)).Msg("Resolved orphaned pending sweep")

	return row.Status, nil
}

func (o *orchestrator) stale(row *wallet.SweepTransaction) bool {
	return o.deps.Clock.Since(row.UpdatedAt) >= o.config.ReceiptTimeout
}

// resolve finishes a pending row from the chain state of its transaction.
func (o *orchestrator) resolve(ctx context.Context, row *wallet.SweepTransaction) error {
	if !row.TxHash.Valid {
		return o.finish(ctx, row, wallet.SweepFailed, "interrupted before the transaction was signed")
	}

	c, err := o.deps.Catalog.GetChain(ctx, row.Pair())
	if err != nil {
		return err
	}

	exec, err := o.executor(ctx, c)
	if err != nil {
		return err
	}

	included, succeeded, err := exec.Outcome(ctx, row.TxHash.String)
	if err != nil {
		return errors.Wrapf(err, "failed to check transaction of sweep %s", row.ID)
	}

	switch {
	case included && succeeded:
		return o.finish(ctx, row, wallet.SweepCompleted, "")
	case included:
		return o.finish(ctx, row, wallet.SweepFailed, errors.Wrapf(ErrInclusionFailed, "transaction %s reverted", row.TxHash.String).Error())
	default:
		return o.finish(ctx, row, wallet.SweepFailed,
			errors.Wrapf(ErrInclusionFailed, "transaction %s not included within %s", row.TxHash.String, o.config.ReceiptTimeout).Error())
	}
}

// watch waits for the transaction of a pending row in the background.
func (o *orchestrator) watch(ctx context.Context, row *wallet.SweepTransaction, release func()) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer release()

		status, message := wallet.SweepCompleted, ""
		if err := o.await(ctx, row); err != nil {
			status, message = wallet.SweepFailed, err.Error()
		}

		if err := o.finish(ctx, row, status, message); err != nil {
			log.Error().Err(err).Str("sweep_id", row.ID).Msg("Failed to record sweep outcome")
		}
	}()
}

func (o *orchestrator) await(ctx context.Context, row *wallet.SweepTransaction) error {
	c, err := o.deps.Catalog.GetChain(ctx, row.Pair())
	if err != nil {
		return err
	}

	exec, err := o.executor(ctx, c)
	if err != nil {
		return err
	}

	return waitIncluded(ctx, exec, row.TxHash.String, o.config)
}

func (o *orchestrator) OnDepositReorged(ctx context.Context, d *wallet.Deposit) {
	swept, err := o.deps.Store.CompletedByDeposit(ctx, d.ID)
	if errors.Is(err, ErrSweepNotFound) {
		return
	}
	if err != nil {
		log.Error().Err(err).Str("deposit_id", d.ID).Msg("Failed to look up sweep of reorged deposit")
		return
	}

	o.deps.Metrics.ReorgAnomalies.WithLabelValues(d.Blockchain, d.Network).Inc()
	log.Error().
		Str("blockchain", d.Blockchain).
		Str("network", d.Network).
		Str("deposit_id", d.ID).
		Str("tx_hash", d.TxHash).
		Str("sweep_id", swept.ID).
		Str("sweep_tx_hash", swept.TxHash.String).
		Msg("Deposit reorged after its sweep completed, sweep is not reversed")

	o.notify(ctx, mailer.Anomaly{
		Kind:    "reorg_after_sweep",
		Message: "A confirmed deposit disappeared from the chain after its funds were swept. The sweep was not reversed.",
		Fields: []mailer.Field{
			{Key: "pair", Value: d.Pair().String()},
			{Key: "deposit_id", Value: d.ID},
			{Key: "deposit_tx_hash", Value: d.TxHash},
			{Key: "amount", Value: d.Amount.String()},
			{Key: "sweep_id", Value: swept.ID},
			{Key: "sweep_tx_hash", Value: swept.TxHash.String},
		},
	})
}

func (o *orchestrator) List(ctx context.Context, filter Filter) ([]*wallet.SweepTransaction, int64, error) {
	return o.deps.Store.List(ctx, filter)
}

func (o *orchestrator) Wait() {
	o.wg.Wait()
}

// job is a started attempt holding the in-process guard of its deposit.
type job struct {
	Job
	earlier []*wallet.SweepTransaction
	release func()
}

// guard claims d for this process, the returned func releases it.
func (o *orchestrator) guard(depositID string) (func(), bool) {
	if _, loaded := o.inflight.LoadOrStore(depositID, struct{}{}); loaded {
		return nil, false
	}
	return func() { o.inflight.Delete(depositID) }, true
}

// begin inserts the attempt row. The returned job is nil when the row is already terminal.
// An empty option starts the first attempt of d.
func (o *orchestrator) begin(ctx context.Context, d *wallet.Deposit, option FeeOption) (*wallet.SweepTransaction, *job, error) {
	release, ok := o.guard(d.ID)
	if !ok {
		return nil, nil, errors.Wrapf(ErrInFlight, "deposit %s", d.ID)
	}

	var earlier []*wallet.SweepTransaction
	if option != "" {
		var err error
		if earlier, err = o.deps.Store.Attempts(ctx, d.ID); err != nil {
			release()
			return nil, nil, err
		}
	}

	row, j, err := o.prepare(ctx, d, earlier, option)
	if err != nil || j == nil {
		release()
		return row, nil, err
	}

	j.release = release
	return row, j, nil
}

func (o *orchestrator) prepare(ctx context.Context, d *wallet.Deposit, earlier []*wallet.SweepTransaction, option FeeOption) (*wallet.SweepTransaction, *job, error) {
	pair := d.Pair()

	c, err := o.deps.Catalog.GetChain(ctx, pair)
	if err != nil {
		return nil, nil, err
	}

	token, err := o.deps.Catalog.GetToken(ctx, d.TokenID)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to load token of deposit %s", d.ID)
	}

	from, err := o.deps.Wallets.GetWallet(ctx, d.WalletID)
	if err != nil {
		return nil, nil, err
	}

	row := &wallet.SweepTransaction{
		ID:           uuid.NewString(),
		DepositID:    d.ID,
		FromWalletID: from.ID,
		Amount:       d.Amount,
		Status:       wallet.SweepPending,
		Blockchain:   d.Blockchain,
		Network:      d.Network,
		TokenID:      d.TokenID,
		Attempt:      1,
	}

	// "higher" must outbid every fee already signed for the deposit, not only the last one
	var priorFee *big.Int
	for _, a := range earlier {
		row.Attempt = max(row.Attempt, a.Attempt+1)
		if a.Fee.Valid && (priorFee == nil || a.Fee.Decimal.BigInt().Cmp(priorFee) > 0) {
			priorFee = a.Fee.Decimal.BigInt()
		}
	}

	admin, err := o.deps.Admin.Active(ctx, pair)
	if errors.Is(err, wallet.ErrWalletNotFound) {
		row.Status = wallet.SweepSkipped
		row.Message = fmt.Sprintf("no active admin wallet for %s/%s", pair.Blockchain, pair.Network)
		return o.terminal(ctx, row, d)
	}
	if err != nil {
		return nil, nil, err
	}
	row.ToAdminWalletID = null.StringFrom(admin.ID)

	var gasTank *wallet.Wallet
	if c.FeeMode == chain.FeeModeSeparate && !token.IsNative() {
		gasTank, err = o.deps.GasTank.Active(ctx, pair)
		if errors.Is(err, wallet.ErrWalletNotFound) {
			row.Status = wallet.SweepFailed
			row.Message = fmt.Sprintf("%v: no active gas tank wallet for %s/%s", ErrInsufficientGasTank, pair.Blockchain, pair.Network)
			return o.terminal(ctx, row, d)
		}
		if err != nil {
			return nil, nil, err
		}
	}

	if err := o.deps.Store.Insert(ctx, row); err != nil {
		return nil, nil, err
	}

	return row, &job{
		Job: Job{
			Sweep:    row,
			Deposit:  d,
			Chain:    c,
			Token:    token,
			From:     from,
			To:       admin,
			GasTank:  gasTank,
			PriorFee: priorFee,
			Option:   option,
		},
		earlier: earlier,
	}, nil
}

// terminal stores an attempt that ends before anything is submitted.
func (o *orchestrator) terminal(ctx context.Context, row *wallet.SweepTransaction, d *wallet.Deposit) (*wallet.SweepTransaction, *job, error) {
	if err := o.deps.Store.Insert(ctx, row); err != nil {
		return nil, nil, err
	}

	o.deps.Metrics.SweepOutcomes.WithLabelValues(row.Blockchain, row.Network, string(row.Status)).Inc()
	log.Warn().
		Str("deposit_id", d.ID).
		Str("sweep_id", row.ID).
		Str("status", string(row.Status)).
		Str("message", row.Message).
		Msg("Sweep not executed")

	if row.Status == wallet.SweepSkipped {
		o.notify(ctx, mailer.Anomaly{
			Kind:    "sweep_skipped",
			Message: row.Message,
			Fields: []mailer.Field{
				{Key: "pair", Value: d.Pair().String()},
				{Key: "deposit_id", Value: d.ID},
				{Key: "sweep_id", Value: row.ID},
			},
		})
	}

	return row, nil, nil
}

func (o *orchestrator) run(ctx context.Context, j *job) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer j.release()

		o.execute(ctx, j)
	}()
}

func (o *orchestrator) execute(ctx context.Context, j *job) {
	row := j.Sweep

	status, message := wallet.SweepCompleted, ""
	adopted, err := o.submitAndWait(ctx, j)
	if err != nil {
		status, message = wallet.SweepFailed, err.Error()
		log.Error().
			Err(err).
			Str("deposit_id", row.DepositID).
			Str("sweep_id", row.ID).
			Int("attempt", row.Attempt).
			Msg("Sweep failed")
	} else if adopted != nil {
		message = fmt.Sprintf("transaction of attempt %d was included", adopted.Attempt)
	}

	if err := o.finish(ctx, row, status, message); err != nil {
		log.Error().Err(err).Str("sweep_id", row.ID).Msg("Failed to record sweep outcome")
	}
}

func (o *orchestrator) finish(ctx context.Context, row *wallet.SweepTransaction, status wallet.SweepStatus, message string) error {
	if err := o.deps.Store.Finish(ctx, row.ID, status, message); err != nil {
		return err
	}
	row.Status = status
	row.Message = message

	o.deps.Metrics.SweepOutcomes.WithLabelValues(row.Blockchain, row.Network, string(status)).Inc()

	if status == wallet.SweepCompleted {
		log.Info().
			Str("deposit_id", row.DepositID).
			Str("sweep_id", row.ID).
			Str("tx_hash", row.TxHash.String).
			Str("amount", row.Amount.String()).
			Msg("Sweep completed")
	}

	return nil
}

func (o *orchestrator) executor(ctx context.Context, c *chain.Chain) (Executor, error) {
	client, err := o.deps.Clients.Get(ctx, c.Pair())
	if err != nil {
		return nil, errors.Wrapf(ErrSubmissionFailed, "%v", err)
	}

	factory, ok := o.deps.Executors[c.Family]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedFamily, "%s", c.Family)
	}

	return factory(client, o.deps.Signer, o.config)
}

// submitAndWait runs the attempt. When an earlier attempt turns out to be included the
// attempt records that transaction instead of sending a new one and returns it.
func (o *orchestrator) submitAndWait(ctx context.Context, j *job) (*wallet.SweepTransaction, error) {
	exec, err := o.executor(ctx, j.Chain)
	if err != nil {
		return nil, err
	}

	adopted, err := o.settleEarlier(ctx, exec, j)
	if err != nil {
		return nil, errors.Wrapf(ErrSubmissionFailed, "%v", err)
	}
	if adopted != nil {
		return adopted, nil
	}

	row := j.Sweep
	j.OnSigned = func(ctx context.Context, sub *Submission) error {
		return o.recordSigned(ctx, row, sub)
	}

	sub, err := exec.Submit(ctx, &j.Job)
	if err != nil {
		if errors.Is(err, ErrInsufficientGasTank) || errors.Is(err, ErrAmountBelowFee) {
			return nil, err
		}
		return nil, errors.Wrapf(ErrSubmissionFailed, "%v", err)
	}

	log.Info().
		Str("deposit_id", row.DepositID).
		Str("sweep_id", row.ID).
		Str("tx_hash", sub.TxHash).
		Str("amount", sub.Amount.String()).
		Str("fee", sub.Fee.String()).
		Msg("Sweep submitted")

	return nil, waitIncluded(ctx, exec, sub.TxHash, o.config)
}

// settleEarlier checks the transactions of earlier attempts, which may still be mined after
// they were given up on. An included success is adopted by the running attempt. Otherwise
// the newest one whose nonce is still free becomes the one the attempt replaces.
func (o *orchestrator) settleEarlier(ctx context.Context, exec Executor, j *job) (*wallet.SweepTransaction, error) {
	var open []*wallet.SweepTransaction
	used := map[int64]bool{}

	for _, a := range j.earlier {
		if !a.TxHash.Valid {
			continue
		}

		included, succeeded, err := exec.Outcome(ctx, a.TxHash.String)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to check transaction of sweep %s", a.ID)
		}

		switch {
		case included && succeeded:
			if err := o.recordSigned(ctx, j.Sweep, submissionOf(a)); err != nil {
				return nil, err
			}
			log.Warn().
				Str("deposit_id", a.DepositID).
				Str("sweep_id", j.Sweep.ID).
				Str("included_sweep_id", a.ID).
				Str("tx_hash", a.TxHash.String).
				Msg("Earlier sweep attempt was included, not resubmitting")
			return a, nil
		case included:
			if a.Nonce.Valid {
				used[a.Nonce.Int64] = true
			}
		default:
			open = append(open, a)
		}
	}

	for i := len(open) - 1; i >= 0; i-- {
		if a := open[i]; !a.Nonce.Valid || !used[a.Nonce.Int64] {
			j.Replaces = a
			break
		}
	}

	return nil, nil
}

func submissionOf(s *wallet.SweepTransaction) *Submission {
	sub := &Submission{TxHash: s.TxHash.String, Amount: s.Amount.BigInt(), Fee: big.NewInt(0)}
	if s.Fee.Valid {
		sub.Fee = s.Fee.Decimal.BigInt()
	}
	if s.Nonce.Valid {
		n := uint64(s.Nonce.Int64) //nolint:gosec // stored from a uint64
		sub.Nonce = &n
	}
	return sub
}

// recordSigned stores the transaction of row before it leaves the process.
func (o *orchestrator) recordSigned(ctx context.Context, row *wallet.SweepTransaction, sub *Submission) error {
	row.TxHash = null.StringFrom(sub.TxHash)
	row.Amount = decimal.NewFromBigInt(sub.Amount, 0)
	row.Fee = decimal.NewNullDecimal(decimal.NewFromBigInt(sub.Fee, 0))
	if sub.Nonce != nil {
		row.Nonce = null.Int64From(int64(*sub.Nonce)) //nolint:gosec // account nonces fit in int64
	}

	return o.deps.Store.SetSigned(ctx, row.ID, sub.TxHash, row.Amount, row.Fee.Decimal, row.Nonce)
}

func (o *orchestrator) notify(ctx context.Context, a mailer.Anomaly) {
	if o.deps.Mailer == nil {
		return
	}

	if err := o.deps.Mailer.SendOpsAnomaly(ctx, a); err != nil {
		log.Warn().Err(err).Str("kind", a.Kind).Msg("Failed to mail ops anomaly")
	}
}
