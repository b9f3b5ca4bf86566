package evm

import (
	"context"
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github/chapool/go-custody/internal/wallet/chain"
)

const minTransferEventTopics = 3 // ERC20 Transfer 事件至少需要 3 个 topics

// Transfer(address indexed from, address indexed to, uint256 value)
var transferEventSignature = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

// Client is the EVM chain adapter. Addresses and hashes it returns are lower case hex.
type Client struct {
	rpc     *RPCClient
	chainID *big.Int
}

var _ chain.Client = (*Client)(nil)

// NewClient creates an adapter for the given RPC endpoints (failover in order).
func NewClient(urls []string, chainID int64) (*Client, error) {
	rpcClient, err := NewRPCClient(urls)
	if err != nil {
		return nil, err
	}

	return &Client{rpc: rpcClient, chainID: big.NewInt(chainID)}, nil
}

// Factory builds an adapter from a catalog entry.
//
//nolint:ireturn
func Factory(c *chain.Chain) (chain.Client, error) {
	if c.EVMChainID <= 0 {
		return nil, errors.Errorf("chain %s has no evm chain id", c.Pair())
	}

	return NewClient(chain.ParseRPCURLs(c.RPCURLs), c.EVMChainID)
}

func (c *Client) Close() error {
	return c.rpc.Close()
}

// ChainID returns the EIP-155 chain id used for signing.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

func (c *Client) CurrentHeight(ctx context.Context) (int64, error) {
	n, err := c.rpc.BlockNumber(ctx)
	if err != nil {
		return 0, err
	}

	if n > math.MaxInt64 {
		return 0, errors.New("block number exceeds int64 maximum")
	}

	return int64(n), nil
}

func (c *Client) TransfersInBlock(ctx context.Context, height int64) ([]chain.RawTransfer, error) {
	block, err := c.rpc.BlockByNumber(ctx, big.NewInt(height))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, errors.Wrapf(chain.ErrNotFound, "block %d", height)
		}
		return nil, err
	}

	receipts := make([]*types.Receipt, 0, len(block.Transactions()))
	for _, tx := range block.Transactions() {
		receipt, err := c.rpc.TransactionReceipt(ctx, tx.Hash())
		if err != nil {
			// 区块已出但回执不可得时视为节点暂不可用，整块重试
			return nil, chain.Unavailable(err, "receipt "+tx.Hash().Hex())
		}
		receipts = append(receipts, receipt)
	}

	return ExtractTransfers(c.chainID, block, receipts), nil
}

// ExtractTransfers returns native value transfers and ERC20 Transfer events of successful
// transactions. receipts must be in block transaction order.
func ExtractTransfers(chainID *big.Int, block *types.Block, receipts []*types.Receipt) []chain.RawTransfer {
	signer := types.LatestSignerForChainID(chainID)
	height := block.Number().Int64()
	transfers := []chain.RawTransfer{}

	for i, tx := range block.Transactions() {
		if i >= len(receipts) || receipts[i] == nil || receipts[i].Status != types.ReceiptStatusSuccessful {
			continue
		}

		txHash := strings.ToLower(tx.Hash().Hex())

		if to := tx.To(); to != nil && tx.Value().Sign() > 0 {
			from, err := types.Sender(signer, tx)
			if err != nil {
				log.Warn().Str("tx_hash", txHash).Err(err).Msg("Failed to recover transaction sender, skipping")
			} else {
				transfers = append(transfers, chain.RawTransfer{
					TxHash: txHash,
					From:   strings.ToLower(from.Hex()),
					To:     strings.ToLower(to.Hex()),
					Amount: new(big.Int).Set(tx.Value()),
					Height: height,
				})
			}
		}

		for _, entry := range receipts[i].Logs {
			if len(entry.Topics) < minTransferEventTopics || entry.Topics[0] != transferEventSignature {
				continue
			}

			transfers = append(transfers, chain.RawTransfer{
				TxHash:   txHash,
				From:     strings.ToLower(common.BytesToAddress(entry.Topics[1].Bytes()).Hex()),
				To:       strings.ToLower(common.BytesToAddress(entry.Topics[2].Bytes()).Hex()),
				Amount:   new(big.Int).SetBytes(entry.Data),
				TokenRef: strings.ToLower(entry.Address.Hex()),
				Height:   height,
			})
		}
	}

	return transfers
}

func (c *Client) ConfirmationsOf(ctx context.Context, txHash string) (int64, error) {
	hash := common.HexToHash(txHash)

	receipt, err := c.rpc.TransactionReceipt(ctx, hash)
	if err != nil {
		if !errors.Is(err, ethereum.NotFound) {
			return 0, err
		}

		_, pending, err := c.rpc.TransactionByHash(ctx, hash)
		if err != nil {
			if errors.Is(err, ethereum.NotFound) {
				return 0, errors.Wrapf(chain.ErrNotFound, "tx %s", txHash)
			}
			return 0, err
		}

		if pending {
			return 0, nil
		}

		return 0, errors.Wrapf(chain.ErrNotFound, "tx %s", txHash)
	}

	head, err := c.CurrentHeight(ctx)
	if err != nil {
		return 0, err
	}

	if receipt.BlockNumber == nil {
		return 0, nil
	}

	return max(head-receipt.BlockNumber.Int64()+1, 0), nil
}

func (c *Client) BalanceOf(ctx context.Context, address string, tokenRef string) (*big.Int, error) {
	if !common.IsHexAddress(address) {
		return nil, errors.Errorf("invalid evm address %q", address)
	}

	if tokenRef == "" {
		return c.rpc.BalanceAt(ctx, common.HexToAddress(address))
	}

	return c.rpc.TokenBalance(ctx, common.HexToAddress(tokenRef), common.HexToAddress(address))
}

// Receipt returns the receipt of txHash or chain.ErrNotFound while it is not yet included.
func (c *Client) Receipt(ctx context.Context, txHash string) (*types.Receipt, error) {
	receipt, err := c.rpc.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, errors.Wrapf(chain.ErrNotFound, "receipt %s", txHash)
		}
		return nil, err
	}

	return receipt, nil
}

func (c *Client) PendingNonceAt(ctx context.Context, address string) (uint64, error) {
	return c.rpc.PendingNonceAt(ctx, common.HexToAddress(address))
}

func (c *Client) NonceAt(ctx context.Context, address string) (uint64, error) {
	return c.rpc.NonceAt(ctx, common.HexToAddress(address))
}

func (c *Client) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return c.rpc.SuggestGasTipCap(ctx)
}

// BaseFee returns the base fee of the latest block, zero on pre-London chains.
func (c *Client) BaseFee(ctx context.Context) (*big.Int, error) {
	header, err := c.rpc.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, err
	}

	if header.BaseFee == nil {
		return big.NewInt(0), nil
	}

	return header.BaseFee, nil
}

func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return c.rpc.SendTransaction(ctx, tx)
}
