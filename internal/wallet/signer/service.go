package signer

import (
	"context"

	"github/chapool/go-custody/internal/wallet/keyvault"
)

type service struct {
	vault keyvault.Service
}

// NewService creates a new SignerService
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewService(vault keyvault.Service) Service {
	return &service{vault: vault}
}

// withKey 解密私钥，用完清零
func (s *service) withKey(ctx context.Context, walletID string, fn func(key []byte) error) error {
	return s.vault.DecryptForSigning(ctx, walletID, fn)
}
