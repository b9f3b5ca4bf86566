package test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github/chapool/go-custody/internal/wallet"
	"github/chapool/go-custody/internal/wallet/chain"
)

// Wallets is an in-memory wallet.Store enforcing one active pool wallet per pair and kind.
type Wallets struct {
	mu      sync.RWMutex
	wallets map[string]*wallet.Wallet
	keys    map[string]*wallet.WalletKey
}

var _ wallet.Store = (*Wallets)(nil)

func NewTestWallets() *Wallets {
	return &Wallets{wallets: map[string]*wallet.Wallet{}, keys: map[string]*wallet.WalletKey{}}
}

// Add stores w without a key, for wallets that are never signed for.
func (s *Wallets) Add(w *wallet.Wallet) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *w
	if cp.Status == "" {
		cp.Status = wallet.WalletActive
	}
	s.wallets[w.ID] = &cp
}

func (s *Wallets) GetWallet(_ context.Context, id string) (*wallet.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wallets[id]
	if !ok {
		return nil, errors.Wrapf(wallet.ErrWalletNotFound, "id %s", id)
	}
	cp := *w
	return &cp, nil
}

func (s *Wallets) GetKey(_ context.Context, keyID string) (*wallet.WalletKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k, ok := s.keys[keyID]
	if !ok {
		return nil, errors.Wrapf(wallet.ErrKeyNotFound, "id %s", keyID)
	}
	cp := *k
	return &cp, nil
}

func (s *Wallets) ActiveUserWallets(_ context.Context, pair chain.Pair, addresses []string) (map[string]*wallet.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[string]bool, len(addresses))
	for _, a := range addresses {
		want[a] = true
	}

	res := map[string]*wallet.Wallet{}
	for _, w := range s.wallets {
		if w.OwnerKind == wallet.OwnerUser && w.Status == wallet.WalletActive && w.Pair() == pair && want[w.Address] {
			cp := *w
			res[w.Address] = &cp
		}
	}
	return res, nil
}

func (s *Wallets) ActivePoolWallet(_ context.Context, pair chain.Pair, kind wallet.OwnerKind) (*wallet.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, w := range s.wallets {
		if w.OwnerKind == kind && w.Status == wallet.WalletActive && w.Pair() == pair {
			cp := *w
			return &cp, nil
		}
	}
	return nil, errors.Wrapf(wallet.ErrWalletNotFound, "%s wallet for %s", kind, pair)
}

func (s *Wallets) ListWallets(_ context.Context, kind wallet.OwnerKind) ([]*wallet.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := []*wallet.Wallet{}
	for _, w := range s.wallets {
		if w.OwnerKind == kind {
			cp := *w
			res = append(res, &cp)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Pair().String() < res[j].Pair().String() })
	return res, nil
}

func (s *Wallets) PairsWithActiveWallet(_ context.Context, kind wallet.OwnerKind) ([]chain.Pair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[chain.Pair]bool{}
	res := []chain.Pair{}
	for _, w := range s.wallets {
		if w.OwnerKind == kind && w.Status == wallet.WalletActive && !seen[w.Pair()] {
			seen[w.Pair()] = true
			res = append(res, w.Pair())
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].String() < res[j].String() })
	return res, nil
}

func (s *Wallets) CreateWithKey(_ context.Context, w *wallet.Wallet, key *wallet.WalletKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w.OwnerKind != wallet.OwnerUser && w.Status == wallet.WalletActive {
		for _, existing := range s.wallets {
			if existing.OwnerKind == w.OwnerKind && existing.Status == wallet.WalletActive && existing.Pair() == w.Pair() {
				return errors.Wrapf(wallet.ErrActiveWalletExists, "%s wallet for %s", w.OwnerKind, w.Pair())
			}
		}
	}

	now := time.Now()
	w.CreatedAt, w.UpdatedAt = now, now

	kc := *key
	wc := *w
	s.keys[key.ID] = &kc
	s.wallets[w.ID] = &wc
	return nil
}
