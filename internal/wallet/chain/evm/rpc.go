package evm

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github/chapool/go-custody/internal/wallet/chain"
)

var balanceOfMethodID = common.Hex2Bytes("70a08231")

// RPCClient 封装以太坊 RPC 客户端，支持多个 URL 和故障转移
type RPCClient struct {
	urls    []string
	mu      sync.Mutex
	clients []*ethclient.Client
	current int
}

// NewRPCClient 创建新的 RPC 客户端。连接在首次调用时建立。
func NewRPCClient(urls []string) (*RPCClient, error) {
	if len(urls) == 0 {
		return nil, errors.New("at least one RPC URL is required")
	}

	return &RPCClient{
		urls:    urls,
		clients: make([]*ethclient.Client, len(urls)),
	}, nil
}

// Close 关闭所有客户端连接
func (c *RPCClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, client := range c.clients {
		if client != nil {
			client.Close()
			c.clients[i] = nil
		}
	}

	return nil
}

// do runs fn against the current endpoint and fails over to the next one on transport errors.
// Node side errors (JSON-RPC error responses, not found) are returned as is.
func (c *RPCClient) do(ctx context.Context, op string, fn func(client *ethclient.Client) error) error {
	var lastErr error

	for i := range c.urls {
		idx, client, err := c.clientAt(ctx, i)
		if err != nil {
			lastErr = err
			continue
		}

		err = fn(client)
		if err == nil {
			c.markHealthy(idx)
			return nil
		}

		if !isTransportError(err) {
			return err
		}

		lastErr = err
		log.Warn().
			Str("url", c.urls[idx]).
			Str("op", op).
			Err(err).
			Msg("RPC call failed, trying next endpoint")
	}

	return chain.Unavailable(lastErr, op)
}

func (c *RPCClient) clientAt(ctx context.Context, offset int) (int, *ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := (c.current + offset) % len(c.urls)
	if c.clients[idx] != nil {
		return idx, c.clients[idx], nil
	}

	client, err := ethclient.DialContext(ctx, c.urls[idx])
	if err != nil {
		return idx, nil, errors.Wrapf(err, "failed to dial %s", c.urls[idx])
	}

	c.clients[idx] = client

	return idx, client, nil
}

func (c *RPCClient) markHealthy(idx int) {
	c.mu.Lock()
	c.current = idx
	c.mu.Unlock()
}

func isTransportError(err error) bool {
	if errors.Is(err, ethereum.NotFound) || errors.Is(err, context.Canceled) {
		return false
	}

	var rpcErr rpc.Error
	return !errors.As(err, &rpcErr)
}

// BlockNumber 获取最新区块号
func (c *RPCClient) BlockNumber(ctx context.Context) (uint64, error) {
	var n uint64
	err := c.do(ctx, "eth_blockNumber", func(client *ethclient.Client) (err error) {
		n, err = client.BlockNumber(ctx)
		return err
	})

	return n, err
}

// BlockByNumber 根据区块号获取区块
func (c *RPCClient) BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error) {
	var block *types.Block
	err := c.do(ctx, "eth_getBlockByNumber", func(client *ethclient.Client) (err error) {
		block, err = client.BlockByNumber(ctx, number)
		return err
	})

	return block, err
}

// HeaderByNumber returns the header at number, or the latest one when number is nil.
func (c *RPCClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	var header *types.Header
	err := c.do(ctx, "eth_getHeaderByNumber", func(client *ethclient.Client) (err error) {
		header, err = client.HeaderByNumber(ctx, number)
		return err
	})

	return header, err
}

// TransactionReceipt 获取交易回执
func (c *RPCClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := c.do(ctx, "eth_getTransactionReceipt", func(client *ethclient.Client) (err error) {
		receipt, err = client.TransactionReceipt(ctx, txHash)
		return err
	})

	return receipt, err
}

// TransactionByHash reports whether the transaction is still pending.
func (c *RPCClient) TransactionByHash(ctx context.Context, txHash common.Hash) (*types.Transaction, bool, error) {
	var (
		tx      *types.Transaction
		pending bool
	)
	err := c.do(ctx, "eth_getTransactionByHash", func(client *ethclient.Client) (err error) {
		tx, pending, err = client.TransactionByHash(ctx, txHash)
		return err
	})

	return tx, pending, err
}

// SendTransaction 发送已签名的交易
func (c *RPCClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return c.do(ctx, "eth_sendRawTransaction", func(client *ethclient.Client) error {
		return client.SendTransaction(ctx, tx)
	})
}

// SuggestGasTipCap 建议 Gas 小费上限 (EIP-1559)
func (c *RPCClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	var tip *big.Int
	err := c.do(ctx, "eth_maxPriorityFeePerGas", func(client *ethclient.Client) (err error) {
		tip, err = client.SuggestGasTipCap(ctx)
		return err
	})

	return tip, err
}

// EstimateGas 估算 Gas 用量
func (c *RPCClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	var gas uint64
	err := c.do(ctx, "eth_estimateGas", func(client *ethclient.Client) (err error) {
		gas, err = client.EstimateGas(ctx, msg)
		return err
	})

	return gas, err
}

// BalanceAt returns the balance of an address at the latest known block.
func (c *RPCClient) BalanceAt(ctx context.Context, address common.Address) (*big.Int, error) {
	var balance *big.Int
	err := c.do(ctx, "eth_getBalance", func(client *ethclient.Client) (err error) {
		balance, err = client.BalanceAt(ctx, address, nil)
		return err
	})

	return balance, err
}

// PendingNonceAt returns the pending nonce for the given address.
func (c *RPCClient) PendingNonceAt(ctx context.Context, address common.Address) (uint64, error) {
	var nonce uint64
	err := c.do(ctx, "eth_getTransactionCount", func(client *ethclient.Client) (err error) {
		nonce, err = client.PendingNonceAt(ctx, address)
		return err
	})

	return nonce, err
}

// NonceAt returns the nonce of the given address at the latest block, only mined transactions count.
func (c *RPCClient) NonceAt(ctx context.Context, address common.Address) (uint64, error) {
	var nonce uint64
	err := c.do(ctx, "eth_getTransactionCount", func(client *ethclient.Client) (err error) {
		nonce, err = client.NonceAt(ctx, address, nil)
		return err
	})

	return nonce, err
}

// TokenBalance returns the ERC20 token balance for the given account.
func (c *RPCClient) TokenBalance(ctx context.Context, tokenAddress, account common.Address) (*big.Int, error) {
	const abiPaddedAddressLength = 32
	data := make([]byte, 0, len(balanceOfMethodID)+abiPaddedAddressLength)
	data = append(data, balanceOfMethodID...)
	data = append(data, common.LeftPadBytes(account.Bytes(), abiPaddedAddressLength)...)

	var resp []byte
	err := c.do(ctx, "eth_call", func(client *ethclient.Client) (err error) {
		resp, err = client.CallContract(ctx, ethereum.CallMsg{To: &tokenAddress, Data: data}, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	return new(big.Int).SetBytes(resp), nil
}
