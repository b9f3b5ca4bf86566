package signer

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github/chapool/go-custody/internal/wallet/chain/account"
	"github/chapool/go-custody/internal/wallet/chain/utxo"
)

// Service signs transactions with wallet keys taken from the vault. Keys never leave this package.
type Service interface {
	// SignEVMTransaction signs an EIP-1559 transaction
	SignEVMTransaction(ctx context.Context, walletID string, req *SignEVMRequest) (*types.Transaction, error)

	// SignUTXOTransaction builds and signs a P2PKH transaction spending all inputs to one output.
	SignUTXOTransaction(ctx context.Context, walletID string, req *SignUTXORequest) (*SignUTXOResponse, error)

	// SignTronTransaction appends the wallet signature to tx.
	SignTronTransaction(ctx context.Context, walletID string, tx *account.Transaction) error
}

// SignEVMRequest represents a request to sign an EVM transaction
type SignEVMRequest struct {
	ChainID              *big.Int
	FromAddress          string // must match the wallet key
	To                   string
	Value                *big.Int // wei
	GasLimit             uint64
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	Nonce                uint64
	Data                 []byte // contract call data
}

// SignUTXORequest spends Inputs of FromAddress, sending Amount satoshi to To.
// Whatever is not sent is the fee.
type SignUTXORequest struct {
	Network     string
	FromAddress string
	Inputs      []utxo.UTXO
	To          string
	Amount      int64
}

type SignUTXOResponse struct {
	RawHex string
	TxID   string
}
