package address

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip32"
	"github/chapool/go-custody/internal/wallet/chain"
)

const hardenedOffset = 0x80000000

// BIP44 coin types
const (
	coinTypeBitcoin = 0
	coinTypeTestnet = 1
	coinTypeEther   = 60
	coinTypeTron    = 195
)

// CoinType returns the BIP44 coin type used for wallets of the family.
func CoinType(family chain.Family, network string) uint32 {
	switch family {
	case chain.FamilyUTXO:
		if network == "mainnet" {
			return coinTypeBitcoin
		}
		return coinTypeTestnet
	case chain.FamilyAccount:
		return coinTypeTron
	default:
		return coinTypeEther
	}
}

// Path returns the derivation path of the single key generated per wallet.
// Format: m/44'/{coin}'/0'/0/0
func Path(family chain.Family, network string) string {
	return fmt.Sprintf("m/44'/%d'/0'/0/0", CoinType(family, network))
}

// DerivePrivateKey derives the 32 byte private key at path from seed.
// WARNING: Caller must clear the private key after use
func DerivePrivateKey(seed []byte, path string) ([]byte, error) {
	indices, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create master key")
	}

	for _, index := range indices {
		key, err = key.NewChildKey(index)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to derive child key at index %d", index)
		}
	}

	return key.Key, nil
}

// parsePath parses "m/44'/60'/0'/0/0" into child indices
func parsePath(path string) ([]uint32, error) {
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] != "m" {
		return nil, errors.Errorf("invalid derivation path: %s", path)
	}

	indices := make([]uint32, 0, len(parts)-1)
	for _, part := range parts[1:] {
		hardened := strings.HasSuffix(part, "'")
		part = strings.TrimSuffix(part, "'")

		n, err := strconv.ParseUint(part, 10, 31)
		if err != nil {
			return nil, errors.Errorf("invalid path segment %q in %s", part, path)
		}

		index := uint32(n)
		if hardened {
			index += hardenedOffset
		}

		indices = append(indices, index)
	}

	return indices, nil
}
