package test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github/chapool/go-custody/internal/wallet/chain"
	"github/chapool/go-custody/internal/wallet/cursor"
)

// Cursors is an in-memory cursor.Store with the same monotonic rules as the SQL store.
type Cursors struct {
	mu       sync.Mutex
	cursors  map[chain.Pair]*cursor.Cursor
	history  map[chain.Pair][]int64
	failNext error
}

var _ cursor.Store = (*Cursors)(nil)

func NewTestCursors() *Cursors {
	return &Cursors{cursors: map[chain.Pair]*cursor.Cursor{}, history: map[chain.Pair][]int64{}}
}

// Put stores a cursor as is.
func (s *Cursors) Put(c *cursor.Cursor) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	s.cursors[c.Pair()] = &cp
}

// FailNextAdvance makes the next AdvanceLastProcessed return err.
func (s *Cursors) FailNextAdvance(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

// Advances returns every height AdvanceLastProcessed persisted for pair, in order.
func (s *Cursors) Advances(pair chain.Pair) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.history[pair]...)
}

func (s *Cursors) Get(_ context.Context, pair chain.Pair) (*cursor.Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cursors[pair]
	if !ok {
		return &cursor.Cursor{Blockchain: pair.Blockchain, Network: pair.Network, LastProcessedHeight: -1}, nil
	}
	cp := *c
	return &cp, nil
}

func (s *Cursors) List(_ context.Context) ([]*cursor.Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := make([]*cursor.Cursor, 0, len(s.cursors))
	for _, c := range s.cursors {
		cp := *c
		res = append(res, &cp)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Pair().String() < res[j].Pair().String() })
	return res, nil
}

func (s *Cursors) SetStartHeight(_ context.Context, pair chain.Pair, height int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if height < 0 {
		return errors.Wrapf(cursor.ErrNegativeHeight, "height %d", height)
	}

	c, ok := s.cursors[pair]
	if !ok {
		c = &cursor.Cursor{Blockchain: pair.Blockchain, Network: pair.Network, LastProcessedHeight: -1}
		s.cursors[pair] = c
	}
	c.StartHeight = height
	c.LastProcessedHeight = max(c.LastProcessedHeight, height-1)
	c.UpdatedAt = time.Now()
	return nil
}

func (s *Cursors) AdvanceLastProcessed(_ context.Context, pair chain.Pair, height int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}

	c, ok := s.cursors[pair]
	if !ok {
		c = &cursor.Cursor{Blockchain: pair.Blockchain, Network: pair.Network, LastProcessedHeight: -1}
		s.cursors[pair] = c
	}
	if height < c.LastProcessedHeight {
		return errors.Wrapf(cursor.ErrNonMonotonic, "%s: %d < %d", pair, height, c.LastProcessedHeight)
	}
	c.LastProcessedHeight = height
	c.UpdatedAt = time.Now()
	s.history[pair] = append(s.history[pair], height)
	return nil
}
