package test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github/chapool/go-custody/internal/wallet"
	"github/chapool/go-custody/internal/wallet/sweep"
)

// Sweeps is an in-memory sweep.Store enforcing one pending row per deposit.
type Sweeps struct {
	mu   sync.Mutex
	rows map[string]*wallet.SweepTransaction
	seq  time.Duration
	base time.Time
}

var _ sweep.Store = (*Sweeps)(nil)

func NewTestSweeps() *Sweeps {
	return &Sweeps{
		rows: map[string]*wallet.SweepTransaction{},
		base: time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC),
	}
}

// Put stores s as is, assigning a creation time after every existing row.
func (s *Sweeps) Put(row *wallet.SweepTransaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.put(row)
}

func (s *Sweeps) put(row *wallet.SweepTransaction) {
	s.seq += time.Second
	cp := *row
	cp.CreatedAt = s.base.Add(s.seq)
	cp.UpdatedAt = cp.CreatedAt
	row.CreatedAt, row.UpdatedAt = cp.CreatedAt, cp.UpdatedAt
	s.rows[row.ID] = &cp
}

// ByDeposit returns all attempts of a deposit, oldest first.
func (s *Sweeps) ByDeposit(depositID string) []*wallet.SweepTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.byDeposit(depositID)
}

func (s *Sweeps) byDeposit(depositID string) []*wallet.SweepTransaction {
	res := []*wallet.SweepTransaction{}
	for _, r := range s.rows {
		if r.DepositID == depositID {
			cp := *r
			res = append(res, &cp)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res
}

func (s *Sweeps) Insert(_ context.Context, row *wallet.SweepTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if row.Status == wallet.SweepPending {
		for _, r := range s.rows {
			if r.DepositID == row.DepositID && r.Status == wallet.SweepPending {
				return errors.Wrapf(sweep.ErrInFlight, "deposit %s", row.DepositID)
			}
		}
	}

	s.put(row)
	return nil
}

func (s *Sweeps) SetSigned(_ context.Context, id string, txHash string, amount decimal.Decimal, fee decimal.Decimal, nonce null.Int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[id]
	if !ok || r.Status != wallet.SweepPending {
		return errors.Wrapf(sweep.ErrSweepNotFound, "pending sweep %s", id)
	}
	r.TxHash = null.StringFrom(txHash)
	r.Amount = amount
	r.Fee = decimal.NewNullDecimal(fee)
	r.Nonce = nonce
	return nil
}

func (s *Sweeps) Finish(_ context.Context, id string, status wallet.SweepStatus, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[id]
	if !ok || r.Status != wallet.SweepPending {
		return errors.Wrapf(sweep.ErrSweepNotFound, "pending sweep %s", id)
	}
	r.Status = status
	r.Message = message
	return nil
}

func (s *Sweeps) Get(_ context.Context, id string) (*wallet.SweepTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[id]
	if !ok {
		return nil, errors.Wrapf(sweep.ErrSweepNotFound, "id %s", id)
	}
	cp := *r
	return &cp, nil
}

func (s *Sweeps) LatestByDeposit(_ context.Context, depositID string) (*wallet.SweepTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.byDeposit(depositID)
	if len(rows) == 0 {
		return nil, errors.Wrapf(sweep.ErrSweepNotFound, "deposit %s", depositID)
	}
	return rows[len(rows)-1], nil
}

func (s *Sweeps) CompletedByDeposit(_ context.Context, depositID string) (*wallet.SweepTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.byDeposit(depositID) {
		if r.Status == wallet.SweepCompleted {
			return r, nil
		}
	}
	return nil, errors.Wrapf(sweep.ErrSweepNotFound, "completed sweep of deposit %s", depositID)
}

func (s *Sweeps) Attempts(_ context.Context, depositID string) ([]*wallet.SweepTransaction, error) {
	return s.ByDeposit(depositID), nil
}

func (s *Sweeps) Pending(_ context.Context) ([]*wallet.SweepTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := []*wallet.SweepTransaction{}
	for _, r := range s.rows {
		if r.Status == wallet.SweepPending {
			cp := *r
			res = append(res, &cp)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (s *Sweeps) List(_ context.Context, filter sweep.Filter) ([]*wallet.SweepTransaction, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := []*wallet.SweepTransaction{}
	for _, r := range s.rows {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if q := strings.ToLower(filter.Search); q != "" &&
			!strings.Contains(strings.ToLower(r.TxHash.String), q) &&
			!strings.Contains(r.ID, q) && !strings.Contains(r.DepositID, q) {
			continue
		}
		cp := *r
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	if filter.Offset >= len(all) {
		return []*wallet.SweepTransaction{}, total, nil
	}
	all = all[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(all) {
		all = all[:filter.Limit]
	}
	return all, total, nil
}
