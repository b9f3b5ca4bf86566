package test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/dropbox/godropbox/time2"
	"github.com/stretchr/testify/require"
	"github/chapool/go-custody/internal/wallet"
	"github/chapool/go-custody/internal/wallet/keyvault"
)

const (
	TestVaultPassword  = "vault-password"
	TestAdminPassword  = "admin-password"
	TestAdminSecretKey = "admin-secret-key"
)

// VaultStore is an in-memory keyvault.Store.
type VaultStore struct {
	mu     sync.Mutex
	record *keyvault.Record
}

func (v *VaultStore) Get(_ context.Context) (*keyvault.Record, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.record == nil {
		return nil, keyvault.ErrNotInitialized
	}
	r := *v.record
	return &r, nil
}

func (v *VaultStore) Create(_ context.Context, keystore []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.record != nil {
		return keyvault.ErrAlreadyInitialized
	}
	v.record = &keyvault.Record{Keystore: keystore}
	return nil
}

func (v *VaultStore) SetAdminCredentials(_ context.Context, passwordHash string, secretHash string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.record == nil {
		return keyvault.ErrNotInitialized
	}
	v.record.AdminPasswordHash = null.StringFrom(passwordHash)
	v.record.AdminSecretHash = null.StringFrom(secretHash)
	return nil
}

// NewTestVault returns an unlocked vault with admin credentials set, backed by memory.
func NewTestVault(t *testing.T, wallets wallet.Store, clock time2.Clock) keyvault.Service {
	t.Helper()

	cfg := keyvault.Config{
		RevealWindow: keyvault.MaxRevealWindow,
		Scrypt:       keyvault.ScryptParams{DKLen: 32, N: 1024, R: 8, P: 1},
	}

	vault := keyvault.NewService(cfg, &VaultStore{}, wallets, clock)
	require.NoError(t, vault.Init(t.Context(), TestVaultPassword))
	require.NoError(t, vault.SetAdminCredentials(t.Context(), TestAdminPassword, TestAdminSecretKey))

	return vault
}

// NewTestClock returns a mock clock at a fixed instant.
func NewTestClock() *time2.MockClock {
	return time2.NewMockClock(time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC))
}
