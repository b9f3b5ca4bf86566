package registry

import (
	"context"
	"math/big"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github/chapool/go-custody/internal/wallet"
	"github/chapool/go-custody/internal/wallet/chain"
)

var (
	// ErrAlreadyExists is returned when the pair already has an active wallet of the kind.
	ErrAlreadyExists = errors.New("active wallet already exists")
	ErrChainInactive = errors.New("chain is not active")
	ErrWrongKind     = errors.New("wallet belongs to another registry")
)

// Service manages the pooled system wallets of one kind (admin or gas tank).
type Service interface {
	Kind() wallet.OwnerKind

	// List returns all wallets of the kind, retired ones included.
	List(ctx context.Context) ([]*wallet.Wallet, error)

	// Active returns the active wallet of pair or wallet.ErrWalletNotFound.
	Active(ctx context.Context, pair chain.Pair) (*wallet.Wallet, error)

	// ScanMissing lists configured pairs that have no active wallet of the kind.
	ScanMissing(ctx context.Context) ([]chain.Pair, error)

	// CreateWallet generates a key through the vault and stores an active wallet for pair.
	CreateWallet(ctx context.Context, pair chain.Pair) (*wallet.Wallet, error)
}

// Balance of a gas tank in its native currency.
type Balance struct {
	Wallet   *wallet.Wallet
	Symbol   string
	Decimals int32
	Raw      *big.Int
	Amount   decimal.Decimal
}

// GasTank is the gas tank registry, which also reports balances.
type GasTank interface {
	Service

	Balance(ctx context.Context, walletID string) (*Balance, error)
}
