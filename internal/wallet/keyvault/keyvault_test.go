package keyvault_test

import (
	"context"
	"encoding/hex"
	"sync"
	"testing"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/dropbox/godropbox/time2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-custody/internal/wallet"
	"github/chapool/go-custody/internal/wallet/address"
	"github/chapool/go-custody/internal/wallet/chain"
	"github/chapool/go-custody/internal/wallet/keyvault"
	"golang.org/x/crypto/bcrypt"
)

// memVault keeps the vault row in memory
type memVault struct {
	mu     sync.Mutex
	record *keyvault.Record
}

func (m *memVault) Get(_ context.Context) (*keyvault.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.record == nil {
		return nil, keyvault.ErrNotInitialized
	}
	r := *m.record
	return &r, nil
}

func (m *memVault) Create(_ context.Context, keystore []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.record != nil {
		return keyvault.ErrAlreadyInitialized
	}
	m.record = &keyvault.Record{Keystore: keystore}
	return nil
}

func (m *memVault) SetAdminCredentials(_ context.Context, passwordHash string, secretHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.record == nil {
		return keyvault.ErrNotInitialized
	}
	m.record.AdminPasswordHash = null.StringFrom(passwordHash)
	m.record.AdminSecretHash = null.StringFrom(secretHash)
	return nil
}

// memWallets implements the parts of wallet.Store the vault reads.
type memWallets struct {
	wallet.Store
	wallets map[string]*wallet.Wallet
	keys    map[string]*wallet.WalletKey
}

func (m *memWallets) GetWallet(_ context.Context, id string) (*wallet.Wallet, error) {
	w, ok := m.wallets[id]
	if !ok {
		return nil, wallet.ErrWalletNotFound
	}
	return w, nil
}

func (m *memWallets) GetKey(_ context.Context, id string) (*wallet.WalletKey, error) {
	k, ok := m.keys[id]
	if !ok {
		return nil, wallet.ErrKeyNotFound
	}
	return k, nil
}

// cheap scrypt parameters so the tests run fast
var testConfig = keyvault.Config{
	RevealWindow: 30 * time.Second,
	Scrypt:       keyvault.ScryptParams{DKLen: 32, N: 1024, R: 8, P: 1},
}

type fixture struct {
	vault   keyvault.Service
	store   *memVault
	wallets *memWallets
	clock   *time2.MockClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:   &memVault{},
		wallets: &memWallets{wallets: map[string]*wallet.Wallet{}, keys: map[string]*wallet.WalletKey{}},
		clock:   time2.NewMockClock(time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)),
	}
	f.vault = keyvault.NewService(testConfig, f.store, f.wallets, f.clock)
	require.NoError(t, f.vault.Init(t.Context(), "correct horse"))

	return f
}

func (f *fixture) addWallet(t *testing.T, family chain.Family, blockchain, network string) *wallet.Wallet {
	t.Helper()

	gen, err := f.vault.GenerateKey(t.Context(), family, network)
	require.NoError(t, err)

	w := &wallet.Wallet{
		ID: "w-" + gen.Key.ID, OwnerKind: wallet.OwnerAdmin, Blockchain: blockchain, Network: network,
		Address: gen.Address, KeyID: gen.Key.ID, Status: wallet.WalletActive,
	}
	f.wallets.wallets[w.ID] = w
	f.wallets.keys[gen.Key.ID] = gen.Key

	return w
}

func TestInitTwice(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.vault.Init(t.Context(), "other password"), keyvault.ErrAlreadyInitialized)
}

func TestUnlock(t *testing.T) {
	f := newFixture(t)
	w := f.addWallet(t, chain.FamilyEVM, "eth", "mainnet")

	f.vault.Lock()
	assert.False(t, f.vault.IsUnlocked())

	err := f.vault.DecryptForSigning(t.Context(), w.ID, func([]byte) error { return nil })
	require.ErrorIs(t, err, keyvault.ErrLocked)

	require.ErrorIs(t, f.vault.Unlock(t.Context(), "wrong horse"), keyvault.ErrInvalidPassword)
	assert.False(t, f.vault.IsUnlocked())

	require.NoError(t, f.vault.Unlock(t.Context(), "correct horse"))
	assert.True(t, f.vault.IsUnlocked())
}

func TestDecryptForSigningZeroesKey(t *testing.T) {
	f := newFixture(t)

	for _, tc := range []struct {
		family     chain.Family
		blockchain string
		network    string
	}{
		{chain.FamilyEVM, "eth", "mainnet"},
		{chain.FamilyUTXO, "btc", "testnet"},
		{chain.FamilyAccount, "trx", "mainnet"},
	} {
		w := f.addWallet(t, tc.family, tc.blockchain, tc.network)

		var leaked []byte
		err := f.vault.DecryptForSigning(t.Context(), w.ID, func(key []byte) error {
			require.Len(t, key, 32)

			addr, err := address.FromPrivateKey(tc.family, tc.network, key)
			require.NoError(t, err)
			assert.Equal(t, w.Address, addr)

			leaked = key
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, make([]byte, 32), leaked, "key must be zeroed after use")
	}
}

func TestDecryptForSigningTamperedKey(t *testing.T) {
	f := newFixture(t)
	w := f.addWallet(t, chain.FamilyEVM, "eth", "mainnet")

	other := f.addWallet(t, chain.FamilyEVM, "eth", "mainnet")
	// ciphertext is bound to its key id
	f.wallets.keys[w.KeyID].EncryptedPrivateKey = f.wallets.keys[other.KeyID].EncryptedPrivateKey

	err := f.vault.DecryptForSigning(t.Context(), w.ID, func([]byte) error { return nil })
	require.Error(t, err)

	f.wallets.keys[other.KeyID].EncryptionVersion = "v0"
	err = f.vault.DecryptForSigning(t.Context(), other.ID, func([]byte) error { return nil })
	require.ErrorIs(t, err, keyvault.ErrUnsupportedVersion)
}

func TestRevealForAdmin(t *testing.T) {
	f := newFixture(t)
	w := f.addWallet(t, chain.FamilyEVM, "bsc", "testnet")

	_, err := f.vault.RevealForAdmin(t.Context(), w.ID, "pw", "secret")
	require.ErrorIs(t, err, keyvault.ErrCredentialsNotSet)

	require.NoError(t, f.vault.SetAdminCredentials(t.Context(), "admin-password", "admin-secret"))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(f.store.record.AdminPasswordHash.String), []byte("admin-password")))

	_, err = f.vault.RevealForAdmin(t.Context(), w.ID, "admin-password", "wrong-secret")
	require.ErrorIs(t, err, keyvault.ErrInvalidCredentials)

	_, err = f.vault.RevealForAdmin(t.Context(), w.ID, "wrong-password", "admin-secret")
	require.ErrorIs(t, err, keyvault.ErrInvalidCredentials)

	reveal, err := f.vault.RevealForAdmin(t.Context(), w.ID, "admin-password", "admin-secret")
	require.NoError(t, err)

	assert.LessOrEqual(t, reveal.ExpiresInSeconds, int64(30))
	assert.Equal(t, f.clock.Now().Add(30*time.Second), reveal.ExpiresAt)
	assert.Equal(t, w.Address, reveal.Address)

	key, err := hex.DecodeString(reveal.PrivateKey)
	require.NoError(t, err)
	addr, err := address.FromPrivateKey(chain.FamilyEVM, "testnet", key)
	require.NoError(t, err)
	assert.Equal(t, w.Address, addr)
}

func TestRevealWindowIsCapped(t *testing.T) {
	store := &memVault{}
	wallets := &memWallets{wallets: map[string]*wallet.Wallet{}, keys: map[string]*wallet.WalletKey{}}
	cfg := testConfig
	cfg.RevealWindow = 10 * time.Minute

	vault := keyvault.NewService(cfg, store, wallets, time2.NewMockClock(time.Unix(0, 0)))
	require.NoError(t, vault.Init(t.Context(), "correct horse"))
	require.NoError(t, vault.SetAdminCredentials(t.Context(), "p", "s"))

	gen, err := vault.GenerateKey(t.Context(), chain.FamilyAccount, "mainnet")
	require.NoError(t, err)
	wallets.wallets["w-1"] = &wallet.Wallet{ID: "w-1", KeyID: gen.Key.ID, Address: gen.Address}
	wallets.keys[gen.Key.ID] = gen.Key

	reveal, err := vault.RevealForAdmin(t.Context(), "w-1", "p", "s")
	require.NoError(t, err)
	assert.Equal(t, int64(30), reveal.ExpiresInSeconds)
}
