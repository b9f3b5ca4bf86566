// Package address turns secp256k1 keys into the address format of each chain family.
package address

import (
	"crypto/ecdsa"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/ethereum/go-ethereum/crypto"
	troaddr "github.com/fbsobreira/gotron-sdk/pkg/address"
	"github.com/pkg/errors"
	"github/chapool/go-custody/internal/wallet/chain"
	"github/chapool/go-custody/internal/wallet/chain/utxo"
)

// FromPrivateKey returns the address controlled by the raw private key.
func FromPrivateKey(family chain.Family, network string, key []byte) (string, error) {
	priv, err := crypto.ToECDSA(key)
	if err != nil {
		return "", errors.Wrap(err, "failed to convert to ECDSA private key")
	}

	return FromPublicKey(family, network, &priv.PublicKey)
}

// FromPublicKey formats pub for the family.
// EVM addresses are lowercase hex, UTXO addresses P2PKH, account addresses Tron base58.
func FromPublicKey(family chain.Family, network string, pub *ecdsa.PublicKey) (string, error) {
	switch family {
	case chain.FamilyEVM:
		return strings.ToLower(crypto.PubkeyToAddress(*pub).Hex()), nil

	case chain.FamilyUTXO:
		params, err := utxo.NetworkParams(network)
		if err != nil {
			return "", err
		}

		addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(crypto.CompressPubkey(pub)), params)
		if err != nil {
			return "", errors.Wrap(err, "failed to build p2pkh address")
		}

		return addr.EncodeAddress(), nil

	case chain.FamilyAccount:
		return troaddr.PubkeyToAddress(*pub).String(), nil

	default:
		return "", errors.Errorf("unsupported chain family: %s", family)
	}
}

// Normalize brings addr into the form stored in the wallets table.
func Normalize(family chain.Family, addr string) string {
	addr = strings.TrimSpace(addr)
	if family == chain.FamilyEVM {
		return strings.ToLower(addr)
	}

	return addr
}
