package test

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github/chapool/go-custody/internal/wallet"
	"github/chapool/go-custody/internal/wallet/chain"
	"github/chapool/go-custody/internal/wallet/deposit"
)

// Deposits is an in-memory deposit.Store keyed like the SQL unique index.
type Deposits struct {
	mu       sync.Mutex
	byID     map[string]*wallet.Deposit
	byTx     map[string]string
	confHist map[string][]int64
}

var _ deposit.Store = (*Deposits)(nil)

func NewTestDeposits() *Deposits {
	return &Deposits{byID: map[string]*wallet.Deposit{}, byTx: map[string]string{}, confHist: map[string][]int64{}}
}

func txKey(d *wallet.Deposit) string {
	return d.TxHash + "/" + d.Blockchain + "/" + d.Network
}

// Put stores d as is, replacing a deposit with the same id.
func (s *Deposits) Put(d *wallet.Deposit) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *d
	s.byID[d.ID] = &cp
	s.byTx[txKey(d)] = d.ID
}

// All returns every stored deposit ordered by block and tx.
func (s *Deposits) All() []*wallet.Deposit {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := make([]*wallet.Deposit, 0, len(s.byID))
	for _, d := range s.byID {
		cp := *d
		res = append(res, &cp)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].BlockNumber != res[j].BlockNumber {
			return res[i].BlockNumber < res[j].BlockNumber
		}
		return res[i].TxHash < res[j].TxHash
	})
	return res
}

// ConfirmationHistory returns every confirmations value written for the deposit.
func (s *Deposits) ConfirmationHistory(id string) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.confHist[id]...)
}

func (s *Deposits) Upsert(_ context.Context, d *wallet.Deposit) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byTx[txKey(d)]; ok {
		existing := s.byID[id]
		if existing.Status.IsOpen() {
			existing.Confirmations = max(existing.Confirmations, d.Confirmations)
			s.confHist[id] = append(s.confHist[id], existing.Confirmations)
		}
		return false, nil
	}

	cp := *d
	s.byID[d.ID] = &cp
	s.byTx[txKey(d)] = d.ID
	s.confHist[d.ID] = append(s.confHist[d.ID], d.Confirmations)
	return true, nil
}

func (s *Deposits) Get(_ context.Context, id string) (*wallet.Deposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.byID[id]
	if !ok {
		return nil, errors.Wrapf(deposit.ErrDepositNotFound, "id %s", id)
	}
	cp := *d
	return &cp, nil
}

func (s *Deposits) filter(pair chain.Pair, keep func(d *wallet.Deposit) bool) []*wallet.Deposit {
	res := []*wallet.Deposit{}
	for _, d := range s.byID {
		if d.Pair() == pair && keep(d) {
			cp := *d
			res = append(res, &cp)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].BlockNumber < res[j].BlockNumber })
	return res
}

func (s *Deposits) OpenDeposits(_ context.Context, pair chain.Pair, limit int) ([]*wallet.Deposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.filter(pair, func(d *wallet.Deposit) bool { return d.Status.IsOpen() })
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (s *Deposits) RecentConfirmed(_ context.Context, pair chain.Pair, fromHeight int64) ([]*wallet.Deposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.filter(pair, func(d *wallet.Deposit) bool {
		return d.Status == wallet.DepositConfirmed && d.BlockNumber >= fromHeight
	}), nil
}

func (s *Deposits) UpdateConfirmations(_ context.Context, id string, confirmations int64, status wallet.DepositStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.byID[id]
	if !ok || !d.Status.IsOpen() {
		return nil
	}
	d.Confirmations = max(d.Confirmations, confirmations)
	d.Status = status
	s.confHist[id] = append(s.confHist[id], d.Confirmations)
	return nil
}

func (s *Deposits) MarkConfirmed(_ context.Context, id string, confirmations int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.byID[id]
	if !ok || !d.Status.IsOpen() {
		return false, nil
	}
	d.Confirmations = max(d.Confirmations, confirmations)
	d.Status = wallet.DepositConfirmed
	s.confHist[id] = append(s.confHist[id], d.Confirmations)
	return true, nil
}

func (s *Deposits) MarkFailed(_ context.Context, id string, from ...wallet.DepositStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.byID[id]
	if !ok || !slices.Contains(from, d.Status) {
		return false, nil
	}
	d.Status = wallet.DepositFailed
	return true, nil
}

// Handoffs records ConfirmedHandler calls.
type Handoffs struct {
	mu        sync.Mutex
	Confirmed []*wallet.Deposit
	Reorged   []*wallet.Deposit
}

var _ deposit.ConfirmedHandler = (*Handoffs)(nil)

func (h *Handoffs) OnDepositConfirmed(_ context.Context, d *wallet.Deposit) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cp := *d
	h.Confirmed = append(h.Confirmed, &cp)
}

func (h *Handoffs) OnDepositReorged(_ context.Context, d *wallet.Deposit) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cp := *d
	h.Reorged = append(h.Reorged, &cp)
}

func (h *Handoffs) Counts() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.Confirmed), len(h.Reorged)
}
