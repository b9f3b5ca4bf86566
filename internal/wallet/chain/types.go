package chain

import (
	"context"
	"math/big"
)

// Family groups chains that share one client implementation.
type Family string

const (
	FamilyEVM     Family = "evm"
	FamilyUTXO    Family = "utxo"
	FamilyAccount Family = "account"
)

func (f Family) Valid() bool {
	switch f {
	case FamilyEVM, FamilyUTXO, FamilyAccount:
		return true
	default:
		return false
	}
}

// FeeMode tells whether token transfers need native currency from a gas tank.
type FeeMode string

const (
	// FeeModeSeparate chains pay fees in a native asset that may differ from the swept asset.
	FeeModeSeparate FeeMode = "separate"
	// FeeModeInclusive chains deduct the fee from the swept amount.
	FeeModeInclusive FeeMode = "inclusive"
)

// Pair identifies one (blockchain, network) combination, e.g. eth/mainnet.
type Pair struct {
	Blockchain string `db:"blockchain" json:"blockchain"`
	Network    string `db:"network" json:"network"`
}

func NewPair(blockchain, network string) Pair {
	return Pair{Blockchain: blockchain, Network: network}
}

// String returns the "<chain>_<network>" key used in status maps.
func (p Pair) String() string {
	return p.Blockchain + "_" + p.Network
}

func (p Pair) IsZero() bool {
	return p.Blockchain == "" || p.Network == ""
}

// Chain is one row of the chain catalog.
type Chain struct {
	Blockchain            string  `db:"blockchain"`
	Network               string  `db:"network"`
	Family                Family  `db:"family"`
	RPCURLs               string  `db:"rpc_urls"`
	RequiredConfirmations int64   `db:"required_confirmations"`
	EVMChainID            int64   `db:"evm_chain_id"`
	NativeSymbol          string  `db:"native_symbol"`
	NativeDecimals        int32   `db:"native_decimals"`
	FeeMode               FeeMode `db:"fee_mode"`
	IsActive              bool    `db:"is_active"`
}

func (c *Chain) Pair() Pair {
	return NewPair(c.Blockchain, c.Network)
}

// Token is a sweepable asset on a pair. ContractAddress is empty for the native coin.
type Token struct {
	ID              string `db:"id"`
	Blockchain      string `db:"blockchain"`
	Network         string `db:"network"`
	Symbol          string `db:"symbol"`
	ContractAddress string `db:"contract_address"`
	Decimals        int32  `db:"decimals"`
	IsActive        bool   `db:"is_active"`
}

func (t *Token) IsNative() bool {
	return t.ContractAddress == ""
}

// RawTransfer is a value movement observed in a block. TokenRef is the contract
// address for token transfers and empty for native transfers.
type RawTransfer struct {
	TxHash   string
	From     string
	To       string
	Amount   *big.Int
	TokenRef string
	Height   int64
}

// Client is the read side every chain adapter implements.
//
// Transport failures are reported as ErrChainUnavailable, unknown transactions as ErrNotFound.
type Client interface {
	// CurrentHeight returns the latest block height the node knows about.
	CurrentHeight(ctx context.Context) (int64, error)

	// TransfersInBlock lists native and token transfers contained in the block at height.
	TransfersInBlock(ctx context.Context, height int64) ([]RawTransfer, error)

	// ConfirmationsOf returns 0 for a pending transaction and head-height+1 once included.
	ConfirmationsOf(ctx context.Context, txHash string) (int64, error)

	// BalanceOf returns the balance of address for tokenRef ("" = native) in base units.
	BalanceOf(ctx context.Context, address string, tokenRef string) (*big.Int, error)
}

// ClientFactory builds the adapter for a catalog entry.
type ClientFactory func(c *Chain) (Client, error)

// Service 链配置服务接口
type Service interface {
	// GetChain 查询单条链配置
	GetChain(ctx context.Context, pair Pair) (*Chain, error)

	// ListChains 查询所有链配置
	ListChains(ctx context.Context) ([]*Chain, error)

	// GetActiveChains 查询启用的链配置
	GetActiveChains(ctx context.Context) ([]*Chain, error)

	// ListTokens returns the active tokens of a pair.
	ListTokens(ctx context.Context, pair Pair) ([]*Token, error)

	// GetToken returns a token by id.
	GetToken(ctx context.Context, id string) (*Token, error)

	// UpsertChain inserts or updates a catalog entry.
	UpsertChain(ctx context.Context, c *Chain) error

	// UpsertToken inserts or updates a token keyed by (blockchain, network, contract_address).
	UpsertToken(ctx context.Context, t *Token) error
}
