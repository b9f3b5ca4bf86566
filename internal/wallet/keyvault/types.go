package keyvault

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github/chapool/go-custody/internal/wallet"
	"github/chapool/go-custody/internal/wallet/chain"
)

// EncryptionV1 is AES-256-GCM under the vault master key, nonce prepended, base64 encoded.
const EncryptionV1 = "v1"

// MaxRevealWindow caps how long a revealed key is advertised as valid.
const MaxRevealWindow = 30 * time.Second

var (
	// ErrInvalidCredentials is returned when the admin password or secret key does not match.
	ErrInvalidCredentials = errors.New("invalid admin credentials")
	ErrInvalidPassword    = errors.New("invalid vault password")
	ErrLocked             = errors.New("vault is locked")
	ErrNotInitialized     = errors.New("vault not initialized")
	ErrAlreadyInitialized = errors.New("vault already initialized")
	ErrCredentialsNotSet  = errors.New("admin credentials not set")
	ErrUnsupportedVersion = errors.New("unsupported encryption version")
)

// Reveal is the one-shot answer to an admin key reveal. Nothing about it is kept server side.
type Reveal struct {
	WalletID         string
	Address          string
	PrivateKey       string
	ExpiresInSeconds int64
	ExpiresAt        time.Time
}

// GeneratedKey is a fresh wallet key, already encrypted, plus the address it controls.
type GeneratedKey struct {
	Key     *wallet.WalletKey
	Address string
}

// Service 密钥库服务接口
type Service interface {
	// Init creates the vault keystore protecting a new random master key.
	Init(ctx context.Context, password string) error

	// Unlock decrypts the master key into memory.
	Unlock(ctx context.Context, password string) error

	IsUnlocked() bool

	// Lock clears the master key from memory.
	Lock()

	// SetAdminCredentials stores bcrypt hashes of the admin password and secret key.
	SetAdminCredentials(ctx context.Context, adminPassword string, adminSecretKey string) error

	// GenerateKey creates a keypair for the family and returns it encrypted.
	GenerateKey(ctx context.Context, family chain.Family, network string) (*GeneratedKey, error)

	// DecryptForSigning hands the raw key of walletID to fn and zeroes it afterwards.
	// The key must not escape fn.
	DecryptForSigning(ctx context.Context, walletID string, fn func(key []byte) error) error

	// RevealForAdmin returns the hex private key of walletID when both admin secrets match.
	RevealForAdmin(ctx context.Context, walletID string, adminPassword string, adminSecretKey string) (*Reveal, error)
}

// Config of the vault service.
type Config struct {
	RevealWindow time.Duration
	Scrypt       ScryptParams
}

func DefaultConfig() Config {
	return Config{
		RevealWindow: MaxRevealWindow,
		Scrypt:       DefaultScryptParams(),
	}
}
