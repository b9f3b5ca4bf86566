package keyvault

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tyler-smith/go-bip32"
	"github/chapool/go-custody/internal/wallet"
	"github/chapool/go-custody/internal/wallet/address"
	"github/chapool/go-custody/internal/wallet/chain"
	"golang.org/x/crypto/bcrypt"
)

const masterKeySize = 32

type service struct {
	config  Config
	store   Store
	wallets wallet.Store
	clock   time2.Clock
	master  masterKey
}

// NewService 创建密钥库服务
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewService(config Config, store Store, wallets wallet.Store, clock time2.Clock) Service {
	if config.RevealWindow <= 0 || config.RevealWindow > MaxRevealWindow {
		config.RevealWindow = MaxRevealWindow
	}
	if config.Scrypt.N == 0 {
		config.Scrypt = DefaultScryptParams()
	}

	return &service{
		config:  config,
		store:   store,
		wallets: wallets,
		clock:   clock,
	}
}

func (s *service) Init(ctx context.Context, password string) error {
	key := make([]byte, masterKeySize)
	if _, err := rand.Read(key); err != nil {
		return errors.Wrap(err, "failed to generate master key")
	}
	defer zero(key)

	keystore, err := sealKeystore(key, password, s.config.Scrypt)
	if err != nil {
		return errors.Wrap(err, "failed to seal master key")
	}

	if err := s.store.Create(ctx, keystore); err != nil {
		return err
	}

	s.master.set(key)
	log.Info().Msg("Vault keystore created")

	return nil
}

func (s *service) Unlock(ctx context.Context, password string) error {
	record, err := s.store.Get(ctx)
	if err != nil {
		return err
	}

	key, err := openKeystore(record.Keystore, password)
	if err != nil {
		return err
	}
	defer zero(key)

	if len(key) != masterKeySize {
		return errors.New("vault keystore holds a malformed master key")
	}

	s.master.set(key)
	log.Info().Msg("Vault unlocked")

	return nil
}

func (s *service) IsUnlocked() bool {
	return s.master.isSet()
}

func (s *service) Lock() {
	s.master.clear()
}

func (s *service) SetAdminCredentials(ctx context.Context, adminPassword string, adminSecretKey string) error {
	if adminPassword == "" || adminSecretKey == "" {
		return errors.New("admin password and secret key must not be empty")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "failed to hash admin password")
	}

	secretHash, err := bcrypt.GenerateFromPassword([]byte(adminSecretKey), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "failed to hash admin secret key")
	}

	return s.store.SetAdminCredentials(ctx, string(passwordHash), string(secretHash))
}

func (s *service) GenerateKey(_ context.Context, family chain.Family, network string) (*GeneratedKey, error) {
	seed, err := bip32.NewSeed()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate seed")
	}
	defer zero(seed)

	priv, err := address.DerivePrivateKey(seed, address.Path(family, network))
	if err != nil {
		return nil, err
	}
	defer zero(priv)

	addr, err := address.FromPrivateKey(family, network, priv)
	if err != nil {
		return nil, err
	}

	keyID := uuid.New().String()

	var encrypted string
	err = s.master.with(func(master []byte) error {
		var err error
		encrypted, err = encryptV1(master, keyID, priv)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &GeneratedKey{
		Key: &wallet.WalletKey{
			ID:                  keyID,
			EncryptedPrivateKey: encrypted,
			EncryptionVersion:   EncryptionV1,
			KeyType:             wallet.KeyTypeHot,
		},
		Address: addr,
	}, nil
}

func (s *service) DecryptForSigning(ctx context.Context, walletID string, fn func(key []byte) error) error {
	w, err := s.wallets.GetWallet(ctx, walletID)
	if err != nil {
		return err
	}

	return s.withWalletKey(ctx, w, fn)
}

func (s *service) withWalletKey(ctx context.Context, w *wallet.Wallet, fn func(key []byte) error) error {
	wk, err := s.wallets.GetKey(ctx, w.KeyID)
	if err != nil {
		return err
	}

	if wk.EncryptionVersion != EncryptionV1 {
		return errors.Wrapf(ErrUnsupportedVersion, "%q", wk.EncryptionVersion)
	}

	var key []byte
	err = s.master.with(func(master []byte) error {
		var err error
		key, err = decryptV1(master, wk.ID, wk.EncryptedPrivateKey)
		return err
	})
	if err != nil {
		return errors.Wrapf(err, "wallet %s", w.ID)
	}
	defer zero(key)

	return fn(key)
}

func (s *service) RevealForAdmin(ctx context.Context, walletID string, adminPassword string, adminSecretKey string) (*Reveal, error) {
	record, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}

	if !record.AdminPasswordHash.Valid || !record.AdminSecretHash.Valid {
		return nil, ErrCredentialsNotSet
	}

	// both hashes are always checked
	pwErr := bcrypt.CompareHashAndPassword([]byte(record.AdminPasswordHash.String), []byte(adminPassword))
	secretErr := bcrypt.CompareHashAndPassword([]byte(record.AdminSecretHash.String), []byte(adminSecretKey))
	if pwErr != nil || secretErr != nil {
		log.Warn().Str("wallet_id", walletID).Msg("Key reveal rejected")
		return nil, ErrInvalidCredentials
	}

	w, err := s.wallets.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}

	reveal := &Reveal{
		WalletID:         w.ID,
		Address:          w.Address,
		ExpiresInSeconds: int64(s.config.RevealWindow / time.Second),
		ExpiresAt:        s.clock.Now().Add(s.config.RevealWindow),
	}

	err = s.withWalletKey(ctx, w, func(key []byte) error {
		reveal.PrivateKey = hex.EncodeToString(key)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("wallet_id", w.ID).Str("blockchain", w.Blockchain).Str("network", w.Network).Msg("Private key revealed to admin")

	return reveal, nil
}
