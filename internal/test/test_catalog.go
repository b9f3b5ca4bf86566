package test

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github/chapool/go-custody/internal/wallet/chain"
)

// Catalog is an in-memory chain.Service.
type Catalog struct {
	mu     sync.RWMutex
	chains map[chain.Pair]*chain.Chain
	tokens map[string]*chain.Token
}

var _ chain.Service = (*Catalog)(nil)

func NewTestCatalog(chains ...*chain.Chain) *Catalog {
	c := &Catalog{chains: map[chain.Pair]*chain.Chain{}, tokens: map[string]*chain.Token{}}
	for _, ch := range chains {
		c.chains[ch.Pair()] = ch
	}
	return c
}

// EVMChain returns an active evm catalog entry.
func EVMChain(blockchain, network string, confirmations int64) *chain.Chain {
	return &chain.Chain{
		Blockchain: blockchain, Network: network, Family: chain.FamilyEVM, RPCURLs: "http://localhost:8545",
		RequiredConfirmations: confirmations, EVMChainID: 56, NativeSymbol: "BNB", NativeDecimals: 18,
		FeeMode: chain.FeeModeSeparate, IsActive: true,
	}
}

func (c *Catalog) GetChain(_ context.Context, pair chain.Pair) (*chain.Chain, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ch, ok := c.chains[pair]
	if !ok {
		return nil, errors.Wrapf(chain.ErrUnknownChain, "%s", pair)
	}
	cp := *ch
	return &cp, nil
}

func (c *Catalog) ListChains(_ context.Context) ([]*chain.Chain, error) {
	return c.list(false), nil
}

func (c *Catalog) GetActiveChains(_ context.Context) ([]*chain.Chain, error) {
	return c.list(true), nil
}

func (c *Catalog) list(activeOnly bool) []*chain.Chain {
	c.mu.RLock()
	defer c.mu.RUnlock()

	res := []*chain.Chain{}
	for _, ch := range c.chains {
		if activeOnly && !ch.IsActive {
			continue
		}
		cp := *ch
		res = append(res, &cp)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Pair().String() < res[j].Pair().String() })
	return res
}

func (c *Catalog) ListTokens(_ context.Context, pair chain.Pair) ([]*chain.Token, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	res := []*chain.Token{}
	for _, t := range c.tokens {
		if t.IsActive && t.Blockchain == pair.Blockchain && t.Network == pair.Network {
			cp := *t
			res = append(res, &cp)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (c *Catalog) GetToken(_ context.Context, id string) (*chain.Token, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.tokens[id]
	if !ok {
		return nil, errors.Errorf("token %s not found", id)
	}
	cp := *t
	return &cp, nil
}

func (c *Catalog) UpsertChain(_ context.Context, ch *chain.Chain) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cp := *ch
	c.chains[ch.Pair()] = &cp
	return nil
}

func (c *Catalog) UpsertToken(_ context.Context, t *chain.Token) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cp := *t
	c.tokens[t.ID] = &cp
	return nil
}
