package deposit

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github/chapool/go-custody/internal/metrics"
	"github/chapool/go-custody/internal/wallet"
	"github/chapool/go-custody/internal/wallet/address"
	"github/chapool/go-custody/internal/wallet/chain"
	"github/chapool/go-custody/internal/wallet/cursor"
)

// unresolved marks a next height that still waits for the chain head (start point "current").
const unresolved int64 = -1

type Config struct {
	PollInterval          time.Duration
	OpenWindow            int
	MaxBlocksPerIteration int
	Retry                 chain.RetryPolicy
}

func DefaultConfig() Config {
	return Config{
		PollInterval:          5 * time.Second,
		OpenWindow:            500,
		MaxBlocksPerIteration: 100,
		Retry:                 chain.DefaultRetryPolicy(),
	}
}

// Deps are the collaborators of a detector, shared by all pairs.
type Deps struct {
	Cursors  cursor.Store
	Deposits Store
	Wallets  wallet.Store
	Catalog  chain.Service
	Handler  ConfirmedHandler
	Metrics  *metrics.Custody
}

// Detector scans one (blockchain, network) pair for deposits into user wallets
// and drives them to confirmed. Only its own goroutine writes the pair's cursor.
type Detector struct {
	chain  *chain.Chain
	client chain.Client
	deps   Deps
	config Config

	mu     sync.RWMutex
	next   int64
	start  int64
	last   int64
	status Status
}

func NewDetector(c *chain.Chain, client chain.Client, deps Deps, config Config) *Detector {
	if config.OpenWindow <= 0 {
		config.OpenWindow = DefaultConfig().OpenWindow
	}
	if config.MaxBlocksPerIteration <= 0 {
		config.MaxBlocksPerIteration = DefaultConfig().MaxBlocksPerIteration
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}

	return &Detector{
		chain:  c,
		client: client,
		deps:   deps,
		config: config,
		next:   unresolved,
		last:   -1,
		status: Status{Pair: c.Pair(), State: StateStopped, NextHeight: unresolved},
	}
}

func (d *Detector) Pair() chain.Pair {
	return d.chain.Pair()
}

// Init loads the cursor and positions the detector according to startPoint.
func (d *Detector) Init(ctx context.Context, startPoint StartPoint) error {
	cur, err := d.deps.Cursors.Get(ctx, d.Pair())
	if err != nil {
		return errors.Wrapf(err, "failed to load cursor of %s", d.Pair())
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.start = cur.StartHeight
	d.last = cur.LastProcessedHeight

	switch startPoint {
	case StartStart:
		d.next = cur.StartHeight
	case StartCurrent:
		// head is resolved lazily so an unreachable node does not block the start
		d.next = unresolved
		head, err := d.client.CurrentHeight(ctx)
		if err == nil {
			d.next = max(head, cur.StartHeight)
		}
	default:
		d.next = cur.NextHeight()
	}

	d.status.NextHeight = d.next

	log.Info().
		Str("blockchain", d.chain.Blockchain).
		Str("network", d.chain.Network).
		Str("start_point", string(startPoint)).
		Int64("start_height", cur.StartHeight).
		Int64("last_processed_height", cur.LastProcessedHeight).
		Int64("next_height", d.next).
		Msg("Detector initialized")

	return nil
}

// Run loops until stop is closed or ctx is done. The running iteration always finishes.
func (d *Detector) Run(ctx context.Context, stop <-chan struct{}) {
	defer d.setState(StateStopped, nil)

	log.Info().Str("blockchain", d.chain.Blockchain).Str("network", d.chain.Network).Msg("Detector started")

	for {
		if stopRequested(ctx, stop) {
			log.Info().Str("blockchain", d.chain.Blockchain).Str("network", d.chain.Network).Msg("Detector stopped")
			return
		}

		processed, err := d.Iterate(ctx, stop)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().
				Err(err).
				Str("blockchain", d.chain.Blockchain).
				Str("network", d.chain.Network).
				Msg("Detector iteration failed")
		}

		// caught up or failing: wait for new blocks
		if err != nil || processed < d.config.MaxBlocksPerIteration {
			timer := time.NewTimer(d.config.PollInterval)
			select {
			case <-ctx.Done():
				timer.Stop()
			case <-stop:
				timer.Stop()
			case <-timer.C:
			}
		}
	}
}

// Iterate scans at most MaxBlocksPerIteration heights and re-checks the open deposits.
// It returns the number of heights processed.
func (d *Detector) Iterate(ctx context.Context, stop <-chan struct{}) (int, error) {
	head, err := d.currentHeight(ctx)
	if err != nil {
		return 0, err
	}

	d.mu.Lock()
	if d.next == unresolved {
		d.next = max(head, d.start)
	}
	next := d.next
	d.mu.Unlock()

	tokens, err := d.tokenIndex(ctx)
	if err != nil {
		d.setState(StateRunning, err)
		return 0, err
	}

	processed := 0
	for h := next; h <= head && processed < d.config.MaxBlocksPerIteration; h++ {
		if stopRequested(ctx, stop) {
			return processed, nil
		}

		if err := d.scanHeight(ctx, h, head, tokens); err != nil {
			d.setState(stateFor(err), err)
			return processed, errors.Wrapf(err, "failed to scan height %d", h)
		}

		if err := d.advance(ctx, h); err != nil {
			d.setState(StateRunning, err)
			return processed, err
		}
		processed++
	}

	if err := d.recheck(ctx, head); err != nil {
		d.setState(stateFor(err), err)
		return processed, err
	}

	d.setState(StateRunning, nil)
	return processed, nil
}

// ScanHeight processes one height and re-checks open deposits without touching the cursor.
func (d *Detector) ScanHeight(ctx context.Context, height int64) error {
	if height < 0 {
		return errors.Wrapf(cursor.ErrNegativeHeight, "height %d", height)
	}

	head, err := d.currentHeight(ctx)
	if err != nil {
		return err
	}
	if height > head {
		return errors.Wrapf(chain.ErrNotFound, "height %d is above head %d", height, head)
	}

	tokens, err := d.tokenIndex(ctx)
	if err != nil {
		return err
	}

	if err := d.scanHeight(ctx, height, head, tokens); err != nil {
		return errors.Wrapf(err, "failed to scan height %d", height)
	}

	return d.recheck(ctx, head)
}

func (d *Detector) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s := d.status
	s.NextHeight = d.next
	return s
}

func (d *Detector) currentHeight(ctx context.Context) (int64, error) {
	head, err := chain.Retry(ctx, d.config.Retry, "current_height", d.client.CurrentHeight)
	if err != nil {
		if chain.IsTransient(err) {
			d.deps.Metrics.ChainUnavailable.WithLabelValues(d.chain.Blockchain, d.chain.Network).Inc()
		}
		d.setState(stateFor(err), err)
		return 0, errors.Wrap(err, "failed to get chain head")
	}

	d.mu.Lock()
	d.status.LastHead = head
	d.mu.Unlock()

	d.deps.Metrics.ChainHead.WithLabelValues(d.chain.Blockchain, d.chain.Network).Set(float64(head))
	return head, nil
}

// tokenIndex maps the normalized tokenRef of the pair's active tokens to the token.
func (d *Detector) tokenIndex(ctx context.Context) (map[string]*chain.Token, error) {
	tokens, err := d.deps.Catalog.ListTokens(ctx, d.Pair())
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tokens")
	}

	index := make(map[string]*chain.Token, len(tokens))
	for _, t := range tokens {
		index[address.Normalize(d.chain.Family, t.ContractAddress)] = t
	}
	return index, nil
}

func (d *Detector) scanHeight(ctx context.Context, height, head int64, tokens map[string]*chain.Token) error {
	transfers, err := chain.Retry(ctx, d.config.Retry, "transfers_in_block", func(ctx context.Context) ([]chain.RawTransfer, error) {
		return d.client.TransfersInBlock(ctx, height)
	})
	if err != nil {
		return err
	}
	if len(transfers) == 0 {
		return nil
	}

	addrs := make([]string, 0, len(transfers))
	for _, tr := range transfers {
		addrs = append(addrs, address.Normalize(d.chain.Family, tr.To))
	}

	wallets, err := d.deps.Wallets.ActiveUserWallets(ctx, d.Pair(), addrs)
	if err != nil {
		return errors.Wrap(err, "failed to load user wallets")
	}
	if len(wallets) == 0 {
		return nil
	}

	confirmations := head - height + 1
	for _, tr := range transfers {
		w, ok := wallets[address.Normalize(d.chain.Family, tr.To)]
		if !ok {
			continue
		}

		token, ok := tokens[address.Normalize(d.chain.Family, tr.TokenRef)]
		if !ok {
			log.Debug().
				Str("tx_hash", tr.TxHash).
				Str("token_ref", tr.TokenRef).
				Msg("Transfer of unknown token ignored")
			continue
		}

		if tr.Amount == nil || tr.Amount.Sign() <= 0 {
			continue
		}

		dep := &wallet.Deposit{
			ID:             uuid.NewString(),
			UserID:         w.OwnerID,
			WalletID:       w.ID,
			TokenID:        token.ID,
			TxHash:         tr.TxHash,
			FromAddress:    tr.From,
			Amount:         decimal.NewFromBigInt(tr.Amount, 0),
			Blockchain:     d.chain.Blockchain,
			Network:        d.chain.Network,
			NetworkVersion: d.networkVersion(),
			BlockNumber:    height,
			Confirmations:  confirmations,
			Status:         statusFor(confirmations),
		}

		inserted, err := d.deps.Deposits.Upsert(ctx, dep)
		if err != nil {
			return err
		}

		if inserted {
			d.deps.Metrics.DepositsDetected.WithLabelValues(d.chain.Blockchain, d.chain.Network).Inc()
			log.Info().
				Str("blockchain", d.chain.Blockchain).
				Str("network", d.chain.Network).
				Int64("height", height).
				Str("tx_hash", dep.TxHash).
				Str("wallet_id", dep.WalletID).
				Str("token", token.Symbol).
				Str("amount", dep.Amount.String()).
				Msg("Deposit detected")
		}
	}

	return nil
}

// advance persists height as processed. Heights at or below the persisted cursor are only re-scanned.
func (d *Detector) advance(ctx context.Context, height int64) error {
	d.mu.Lock()
	last := d.last
	d.mu.Unlock()

	if height > last {
		if err := d.deps.Cursors.AdvanceLastProcessed(ctx, d.Pair(), height); err != nil {
			return errors.Wrapf(err, "failed to advance cursor to %d", height)
		}
		d.deps.Metrics.ScannedHeight.WithLabelValues(d.chain.Blockchain, d.chain.Network).Set(float64(height))
	}

	d.mu.Lock()
	d.last = max(d.last, height)
	d.next = height + 1
	d.mu.Unlock()

	return nil
}

// recheck refreshes confirmations of open deposits and looks for confirmed deposits that fell out of the chain.
func (d *Detector) recheck(ctx context.Context, head int64) error {
	open, err := d.deps.Deposits.OpenDeposits(ctx, d.Pair(), d.config.OpenWindow)
	if err != nil {
		return errors.Wrap(err, "failed to load open deposits")
	}

	for _, dep := range open {
		if err := d.recheckOpen(ctx, dep); err != nil {
			return err
		}
	}

	from := max(head-2*d.required(), 0)
	confirmed, err := d.deps.Deposits.RecentConfirmed(ctx, d.Pair(), from)
	if err != nil {
		return errors.Wrap(err, "failed to load recently confirmed deposits")
	}

	for _, dep := range confirmed {
		if err := d.recheckConfirmed(ctx, dep); err != nil {
			return err
		}
	}

	return nil
}

func (d *Detector) recheckOpen(ctx context.Context, dep *wallet.Deposit) error {
	conf, err := d.confirmationsOf(ctx, dep.TxHash)
	if errors.Is(err, chain.ErrNotFound) {
		// still in the mempool
		if dep.Confirmations < 1 {
			return nil
		}

		ok, err := d.deps.Deposits.MarkFailed(ctx, dep.ID, wallet.DepositPending, wallet.DepositConfirming)
		if err != nil {
			return err
		}
		if ok {
			d.deps.Metrics.DepositsFailed.WithLabelValues(d.chain.Blockchain, d.chain.Network).Inc()
			log.Warn().
				Str("blockchain", d.chain.Blockchain).
				Str("network", d.chain.Network).
				Str("deposit_id", dep.ID).
				Str("tx_hash", dep.TxHash).
				Int64("confirmations", dep.Confirmations).
				Msg("Deposit dropped from chain, marked failed")
		}
		return nil
	}
	if err != nil {
		return err
	}

	conf = max(conf, dep.Confirmations)

	if conf >= d.required() {
		ok, err := d.deps.Deposits.MarkConfirmed(ctx, dep.ID, conf)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		dep.Confirmations = conf
		dep.Status = wallet.DepositConfirmed
		d.deps.Metrics.DepositsConfirmed.WithLabelValues(d.chain.Blockchain, d.chain.Network).Inc()
		log.Info().
			Str("blockchain", d.chain.Blockchain).
			Str("network", d.chain.Network).
			Str("deposit_id", dep.ID).
			Str("tx_hash", dep.TxHash).
			Int64("confirmations", conf).
			Msg("Deposit confirmed")

		if d.deps.Handler != nil {
			d.deps.Handler.OnDepositConfirmed(ctx, dep)
		}
		return nil
	}

	status := statusFor(conf)
	if conf == dep.Confirmations && status == dep.Status {
		return nil
	}

	return d.deps.Deposits.UpdateConfirmations(ctx, dep.ID, conf, status)
}

func (d *Detector) recheckConfirmed(ctx context.Context, dep *wallet.Deposit) error {
	_, err := d.confirmationsOf(ctx, dep.TxHash)
	if err == nil {
		return nil
	}
	if !errors.Is(err, chain.ErrNotFound) {
		return err
	}

	ok, err := d.deps.Deposits.MarkFailed(ctx, dep.ID, wallet.DepositConfirmed)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	dep.Status = wallet.DepositFailed
	d.deps.Metrics.DepositsFailed.WithLabelValues(d.chain.Blockchain, d.chain.Network).Inc()
	log.Warn().
		Str("blockchain", d.chain.Blockchain).
		Str("network", d.chain.Network).
		Str("deposit_id", dep.ID).
		Str("tx_hash", dep.TxHash).
		Int64("block_number", dep.BlockNumber).
		Msg("Confirmed deposit reorged out of chain, marked failed")

	if d.deps.Handler != nil {
		d.deps.Handler.OnDepositReorged(ctx, dep)
	}
	return nil
}

func (d *Detector) confirmationsOf(ctx context.Context, txHash string) (int64, error) {
	return chain.Retry(ctx, d.config.Retry, "confirmations_of", func(ctx context.Context) (int64, error) {
		return d.client.ConfirmationsOf(ctx, txHash)
	})
}

func (d *Detector) required() int64 {
	return max(d.chain.RequiredConfirmations, 1)
}

func (d *Detector) networkVersion() string {
	if d.chain.Family == chain.FamilyEVM && d.chain.EVMChainID > 0 {
		return strconv.FormatInt(d.chain.EVMChainID, 10)
	}
	return d.chain.Network
}

func (d *Detector) setState(state State, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.status.State = state
	d.status.LastError = ""
	if err != nil {
		d.status.LastError = err.Error()
	}
	d.status.UpdatedAt = time.Now()
}

func stateFor(err error) State {
	if chain.IsTransient(err) {
		return StateConnectionError
	}
	return StateRunning
}

func statusFor(confirmations int64) wallet.DepositStatus {
	if confirmations >= 1 {
		return wallet.DepositConfirming
	}
	return wallet.DepositPending
}

func stopRequested(ctx context.Context, stop <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return true
	case <-stop:
		return true
	default:
		return false
	}
}
