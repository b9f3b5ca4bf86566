package signer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	troaddr "github.com/fbsobreira/gotron-sdk/pkg/address"
	"github.com/pkg/errors"
	"github/chapool/go-custody/internal/wallet/chain/account"
)

// SignTronTransaction signs sha256(raw_data) which is the txID.
func (s *service) SignTronTransaction(ctx context.Context, walletID string, tx *account.Transaction) error {
	raw, err := hex.DecodeString(tx.RawDataHex)
	if err != nil {
		return errors.Wrap(err, "invalid raw_data_hex")
	}

	sum := sha256.Sum256(raw)
	if !strings.EqualFold(hex.EncodeToString(sum[:]), tx.TxID) {
		return errors.New("txID does not match raw data")
	}

	owner, _ := tx.RawData["contract"].([]any)

	return s.withKey(ctx, walletID, func(key []byte) error {
		priv, err := crypto.ToECDSA(key)
		if err != nil {
			return errors.Wrap(err, "failed to convert private key to ECDSA")
		}

		if from := ownerAddress(owner); from != "" && from != troaddr.PubkeyToAddress(priv.PublicKey).String() {
			return errors.New("owner address does not match private key")
		}

		sig, err := crypto.Sign(sum[:], priv)
		if err != nil {
			return errors.Wrap(err, "failed to sign transaction")
		}

		tx.Signature = append(tx.Signature, hex.EncodeToString(sig))

		return nil
	})
}

// ownerAddress reads owner_address of the first contract, "" if absent
func ownerAddress(contracts []any) string {
	if len(contracts) == 0 {
		return ""
	}

	c, _ := contracts[0].(map[string]any)
	param, _ := c["parameter"].(map[string]any)
	value, _ := param["value"].(map[string]any)
	owner, _ := value["owner_address"].(string)

	return owner
}
