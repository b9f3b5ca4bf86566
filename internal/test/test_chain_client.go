package test

import (
	"context"
	"math/big"
	"sync"

	"github.com/pkg/errors"
	"github/chapool/go-custody/internal/wallet/chain"
)

// ChainClient is a scriptable chain.Client. Confirmations are derived from the head
// and the height a tx was mined at, like a real node.
type ChainClient struct {
	mu       sync.Mutex
	head     int64
	headErr  error
	blocks   map[int64][]chain.RawTransfer
	blockErr map[int64]error
	mined    map[string]int64
	dropped  map[string]bool
	balances map[string]*big.Int
	balErr   error
	calls    map[int64]int
}

var _ chain.Client = (*ChainClient)(nil)

func NewTestChainClient(head int64) *ChainClient {
	return &ChainClient{
		head:     head,
		blocks:   map[int64][]chain.RawTransfer{},
		blockErr: map[int64]error{},
		mined:    map[string]int64{},
		dropped:  map[string]bool{},
		balances: map[string]*big.Int{},
		calls:    map[int64]int{},
	}
}

func (c *ChainClient) SetHead(h int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.head = h
}

// SetHeadError makes CurrentHeight fail until it is reset with nil.
func (c *ChainClient) SetHeadError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headErr = err
}

// AddTransfer puts tr into the block at tr.Height.
func (c *ChainClient) AddTransfer(tr chain.RawTransfer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocks[tr.Height] = append(c.blocks[tr.Height], tr)
	c.mined[tr.TxHash] = tr.Height
}

func (c *ChainClient) SetBlockError(height int64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.blockErr, height)
		return
	}
	c.blockErr[height] = err
}

// Drop makes the node forget txHash, as after a reorg.
func (c *ChainClient) Drop(txHash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropped[txHash] = true
}

func (c *ChainClient) SetBalance(address, tokenRef string, v *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[address+"/"+tokenRef] = v
}

// BlockCalls returns how often TransfersInBlock was called for height.
func (c *ChainClient) BlockCalls(height int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[height]
}

func (c *ChainClient) CurrentHeight(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.headErr != nil {
		return 0, c.headErr
	}
	return c.head, nil
}

func (c *ChainClient) TransfersInBlock(_ context.Context, height int64) ([]chain.RawTransfer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls[height]++
	if err := c.blockErr[height]; err != nil {
		return nil, err
	}
	if height > c.head {
		return nil, errors.Wrapf(chain.ErrNotFound, "block %d", height)
	}

	res := make([]chain.RawTransfer, len(c.blocks[height]))
	copy(res, c.blocks[height])
	return res, nil
}

func (c *ChainClient) ConfirmationsOf(_ context.Context, txHash string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.mined[txHash]
	if !ok || c.dropped[txHash] {
		return 0, errors.Wrapf(chain.ErrNotFound, "tx %s", txHash)
	}
	if h > c.head {
		return 0, nil
	}
	return c.head - h + 1, nil
}

// SetBalanceError makes BalanceOf fail until it is reset with nil.
func (c *ChainClient) SetBalanceError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balErr = err
}

func (c *ChainClient) BalanceOf(_ context.Context, address string, tokenRef string) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.balErr != nil {
		return nil, c.balErr
	}

	if v, ok := c.balances[address+"/"+tokenRef]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}
