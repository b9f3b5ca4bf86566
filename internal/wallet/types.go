package wallet

import (
	"time"

	"github.com/aarondl/null/v8"
	"github.com/shopspring/decimal"
	"github/chapool/go-custody/internal/wallet/chain"
)

// OwnerKind tells who a wallet belongs to.
type OwnerKind string

const (
	OwnerUser    OwnerKind = "user"
	OwnerAdmin   OwnerKind = "admin"
	OwnerGasTank OwnerKind = "gasTank"
)

// SystemOwnerID is the owner id of admin and gas tank wallets.
const SystemOwnerID = "system"

type WalletStatus string

const (
	WalletActive  WalletStatus = "active"
	WalletRetired WalletStatus = "retired"
)

// Wallet is an on-chain address the custodian holds the key for. Wallets are retired, never deleted.
type Wallet struct {
	ID         string       `db:"id"`
	OwnerID    string       `db:"owner_id"`
	OwnerKind  OwnerKind    `db:"owner_kind"`
	Blockchain string       `db:"blockchain"`
	Network    string       `db:"network"`
	Address    string       `db:"address"`
	KeyID      string       `db:"key_id"`
	Status     WalletStatus `db:"status"`
	Memo       null.String  `db:"memo"`
	CreatedAt  time.Time    `db:"created_at"`
	UpdatedAt  time.Time    `db:"updated_at"`
}

func (w *Wallet) Pair() chain.Pair {
	return chain.NewPair(w.Blockchain, w.Network)
}

const KeyTypeHot = "hot"

// WalletKey holds the encrypted private key of exactly one wallet.
type WalletKey struct {
	ID                  string    `db:"id"`
	EncryptedPrivateKey string    `db:"encrypted_private_key"`
	EncryptionVersion   string    `db:"encryption_version"`
	KeyType             string    `db:"key_type"`
	CreatedAt           time.Time `db:"created_at"`
}

type DepositStatus string

const (
	DepositPending    DepositStatus = "pending"
	DepositConfirming DepositStatus = "confirming"
	DepositConfirmed  DepositStatus = "confirmed"
	DepositFailed     DepositStatus = "failed"
)

// IsOpen reports whether the detector still tracks confirmations for the deposit.
func (s DepositStatus) IsOpen() bool {
	return s == DepositPending || s == DepositConfirming
}

// Deposit is an incoming transfer to a user wallet. Amount is in base units.
type Deposit struct {
	ID             string          `db:"id"`
	UserID         string          `db:"user_id"`
	WalletID       string          `db:"wallet_id"`
	TokenID        string          `db:"token_id"`
	TxHash         string          `db:"tx_hash"`
	FromAddress    string          `db:"from_address"`
	Amount         decimal.Decimal `db:"amount"`
	Blockchain     string          `db:"blockchain"`
	Network        string          `db:"network"`
	NetworkVersion string          `db:"network_version"`
	BlockNumber    int64           `db:"block_number"`
	Confirmations  int64           `db:"confirmations"`
	Status         DepositStatus   `db:"status"`
	ConfirmedAt    null.Time       `db:"confirmed_at"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

func (d *Deposit) Pair() chain.Pair {
	return chain.NewPair(d.Blockchain, d.Network)
}

type SweepStatus string

const (
	SweepPending   SweepStatus = "pending"
	SweepCompleted SweepStatus = "completed"
	SweepFailed    SweepStatus = "failed"
	SweepSkipped   SweepStatus = "skipped"
)

func (s SweepStatus) IsTerminal() bool {
	return s != SweepPending
}

// SweepTransaction is one attempt to move a confirmed deposit to the admin wallet.
// Retries insert a new row, the newest row is the current one.
type SweepTransaction struct {
	ID              string              `db:"id"`
	DepositID       string              `db:"deposit_id"`
	FromWalletID    string              `db:"from_wallet_id"`
	ToAdminWalletID null.String         `db:"to_admin_wallet_id"`
	TxHash          null.String         `db:"tx_hash"`
	Amount          decimal.Decimal     `db:"amount"`
	Fee             decimal.NullDecimal `db:"fee"`
	Nonce           null.Int64          `db:"nonce"` // evm only
	Status          SweepStatus         `db:"status"`
	Message         string              `db:"message"`
	Blockchain      string              `db:"blockchain"`
	Network         string              `db:"network"`
	TokenID         string              `db:"token_id"`
	Attempt         int                 `db:"attempt"`
	CreatedAt       time.Time           `db:"created_at"`
	UpdatedAt       time.Time           `db:"updated_at"`
}

func (s *SweepTransaction) Pair() chain.Pair {
	return chain.NewPair(s.Blockchain, s.Network)
}
