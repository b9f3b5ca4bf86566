package monitor

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github/chapool/go-custody/internal/wallet/chain"
	"github/chapool/go-custody/internal/wallet/cursor"
	"github/chapool/go-custody/internal/wallet/deposit"
)

var ErrChainInactive = errors.New("chain is not active")

// Blocks is the per pair height overview keyed by "<chain>_<network>".
type Blocks struct {
	CurrentBlocks       map[string]int64
	SavedBlocks         map[string]int64
	LastProcessedBlocks map[string]int64
}

// Supervisor owns the detector goroutines, one per monitored pair.
type Supervisor struct {
	registry *TaskRegistry
	catalog  chain.Service
	clients  *chain.Clients
	cursors  cursor.Service
	deps     deposit.Deps
	config   deposit.Config

	// detectors outlive the request that started them
	ctx    context.Context
	cancel context.CancelFunc
}

func NewSupervisor(registry *TaskRegistry, catalog chain.Service, clients *chain.Clients, cursors cursor.Service, deps deposit.Deps, config deposit.Config) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())

	return &Supervisor{
		registry: registry,
		catalog:  catalog,
		clients:  clients,
		cursors:  cursors,
		deps:     deps,
		config:   config,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// StartAll starts every active catalog pair that is not running yet.
// Pairs that fail to start are logged and skipped.
func (s *Supervisor) StartAll(ctx context.Context, startPoint deposit.StartPoint) ([]chain.Pair, error) {
	chains, err := s.catalog.GetActiveChains(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get active chains")
	}

	if len(chains) == 0 {
		log.Warn().Msg("No active chains found")
		return []chain.Pair{}, nil
	}

	started := make([]chain.Pair, 0, len(chains))
	for _, c := range chains {
		if err := s.StartChain(ctx, c.Pair(), startPoint, nil); err != nil {
			log.Error().
				Err(err).
				Str("blockchain", c.Blockchain).
				Str("network", c.Network).
				Msg("Failed to start chain monitoring")
			continue
		}
		started = append(started, c.Pair())
	}

	log.Info().Int("active_chains_count", len(chains)).Int("started", len(started)).Msg("Multi-chain monitoring started")
	return started, nil
}

// StopAll stops every running detector and waits for them.
func (s *Supervisor) StopAll() {
	var wg sync.WaitGroup
	for _, pair := range s.registry.pairs() {
		wg.Add(1)
		go func(p chain.Pair) {
			defer wg.Done()
			s.StopChain(p)
		}(pair)
	}
	wg.Wait()
}

// StartChain starts the detector of pair. Starting a running pair is a no-op unless an
// explicit start height is requested, which is only allowed while stopped.
func (s *Supervisor) StartChain(ctx context.Context, pair chain.Pair, startPoint deposit.StartPoint, startHeight *int64) error {
	slot := s.registry.slot(pair)
	slot.lockSettled()
	defer slot.mu.Unlock()

	if slot.task != nil {
		if startHeight != nil {
			return errors.Wrapf(cursor.ErrInvalidState, "%s", pair)
		}
		return nil
	}

	c, err := s.catalog.GetChain(ctx, pair)
	if err != nil {
		return err
	}
	if !c.IsActive {
		return errors.Wrapf(ErrChainInactive, "%s", pair)
	}

	if startHeight != nil {
		if err := s.deps.Cursors.SetStartHeight(ctx, pair, *startHeight); err != nil {
			return errors.Wrapf(err, "failed to set start height of %s", pair)
		}
		startPoint = deposit.StartStart
	}

	client, err := s.clients.Get(ctx, pair)
	if err != nil {
		return err
	}

	det := deposit.NewDetector(c, client, s.deps, s.config)
	if err := det.Init(ctx, startPoint); err != nil {
		return err
	}

	t := &task{detector: det, stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(t.done)
		det.Run(s.ctx, t.stop)
	}()

	slot.task = t
	slot.last = det

	log.Info().
		Str("blockchain", pair.Blockchain).
		Str("network", pair.Network).
		Str("start_point", string(startPoint)).
		Msg("Chain monitoring started")

	return nil
}

// StopChain stops the detector of pair and returns once its current iteration ended.
// The pair reads as stopped right away, the pair lock is not held while waiting.
// Stopping a stopped pair is a no-op.
func (s *Supervisor) StopChain(pair chain.Pair) {
	slot := s.registry.slot(pair)
	slot.mu.Lock()
	t := slot.task
	if t != nil {
		close(t.stop)
		slot.task = nil
		slot.stopping = t.done
	}
	done := slot.stopping
	slot.mu.Unlock()

	if done == nil {
		return
	}
	<-done

	slot.mu.Lock()
	if slot.stopping == done {
		slot.stopping = nil
	}
	slot.mu.Unlock()

	if t != nil {
		log.Info().Str("blockchain", pair.Blockchain).Str("network", pair.Network).Msg("Chain monitoring stopped")
	}
}

func (s *Supervisor) IsRunning(pair chain.Pair) bool {
	return s.registry.IsRunning(pair)
}

// Running returns the pairs with a running detector.
func (s *Supervisor) Running() []chain.Pair {
	res := []chain.Pair{}
	for _, p := range s.registry.pairs() {
		if s.registry.IsRunning(p) {
			res = append(res, p)
		}
	}
	sortPairs(res)
	return res
}

// Status reports every catalog pair. Pairs that never ran are stopped.
func (s *Supervisor) Status(ctx context.Context) ([]deposit.Status, error) {
	chains, err := s.catalog.ListChains(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list chains")
	}

	seen := map[chain.Pair]bool{}
	res := make([]deposit.Status, 0, len(chains))

	add := func(pair chain.Pair) {
		if seen[pair] {
			return
		}
		seen[pair] = true

		if det := s.registry.detector(pair); det != nil {
			st := det.Status()
			if !s.registry.IsRunning(pair) {
				st.State = deposit.StateStopped
			}
			res = append(res, st)
			return
		}
		res = append(res, deposit.Status{Pair: pair, State: deposit.StateStopped, NextHeight: -1})
	}

	for _, c := range chains {
		add(c.Pair())
	}
	for _, p := range s.registry.pairs() {
		add(p)
	}

	sort.Slice(res, func(i, j int) bool { return res[i].Pair.String() < res[j].Pair.String() })
	return res, nil
}

// SetStartHeight moves the start height of a stopped pair.
func (s *Supervisor) SetStartHeight(ctx context.Context, pair chain.Pair, height int64) error {
	if _, err := s.catalog.GetChain(ctx, pair); err != nil {
		return err
	}
	return s.cursors.SetStartHeight(ctx, pair, height)
}

// Blocks returns live heads of active pairs next to the persisted cursors.
// Unreachable heads are left out of CurrentBlocks.
func (s *Supervisor) Blocks(ctx context.Context) (*Blocks, error) {
	res := &Blocks{
		CurrentBlocks:       map[string]int64{},
		SavedBlocks:         map[string]int64{},
		LastProcessedBlocks: map[string]int64{},
	}

	cursors, err := s.cursors.ListCursors(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list cursors")
	}
	for _, c := range cursors {
		res.SavedBlocks[c.Pair().String()] = c.StartHeight
		res.LastProcessedBlocks[c.Pair().String()] = c.LastProcessedHeight
	}

	chains, err := s.catalog.GetActiveChains(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get active chains")
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, c := range chains {
		wg.Add(1)
		go func(pair chain.Pair) {
			defer wg.Done()

			head, err := s.head(ctx, pair)
			if err != nil {
				log.Warn().Err(err).Str("pair", pair.String()).Msg("Failed to read chain head")
				return
			}

			mu.Lock()
			res.CurrentBlocks[pair.String()] = head
			mu.Unlock()
		}(c.Pair())
	}
	wg.Wait()

	return res, nil
}

// ScanHeight runs a one-off scan of height for pair without moving its cursor.
func (s *Supervisor) ScanHeight(ctx context.Context, pair chain.Pair, height int64) error {
	c, err := s.catalog.GetChain(ctx, pair)
	if err != nil {
		return err
	}

	client, err := s.clients.Get(ctx, pair)
	if err != nil {
		return err
	}

	return deposit.NewDetector(c, client, s.deps, s.config).ScanHeight(ctx, height)
}

// Close stops all detectors and releases the chain clients.
func (s *Supervisor) Close() {
	s.StopAll()
	s.cancel()
	s.clients.Close()
}

func (s *Supervisor) head(ctx context.Context, pair chain.Pair) (int64, error) {
	client, err := s.clients.Get(ctx, pair)
	if err != nil {
		return 0, err
	}
	return client.CurrentHeight(ctx)
}

func sortPairs(pairs []chain.Pair) {
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].String() < pairs[j].String() })
}
