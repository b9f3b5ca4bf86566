package address

import (
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/ethereum/go-ethereum/common"
	troaddr "github.com/fbsobreira/gotron-sdk/pkg/address"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-custody/internal/wallet/chain"
	"github/chapool/go-custody/internal/wallet/chain/utxo"
)

// well known hardhat account #0
const (
	testKeyHex  = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"
)

func TestParsePath(t *testing.T) {
	indices, err := parsePath("m/44'/60'/0'/0/7")
	require.NoError(t, err)
	assert.Equal(t, []uint32{hardenedOffset + 44, hardenedOffset + 60, hardenedOffset, 0, 7}, indices)

	_, err = parsePath("44'/60'")
	require.Error(t, err)

	_, err = parsePath("m/44'/x")
	require.Error(t, err)
}

func TestPath(t *testing.T) {
	assert.Equal(t, "m/44'/60'/0'/0/0", Path(chain.FamilyEVM, "mainnet"))
	assert.Equal(t, "m/44'/0'/0'/0/0", Path(chain.FamilyUTXO, "mainnet"))
	assert.Equal(t, "m/44'/1'/0'/0/0", Path(chain.FamilyUTXO, "testnet"))
	assert.Equal(t, "m/44'/195'/0'/0/0", Path(chain.FamilyAccount, "nile"))
}

func TestDerivePrivateKeyIsDeterministic(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}

	a, err := DerivePrivateKey(seed, Path(chain.FamilyEVM, "mainnet"))
	require.NoError(t, err)
	b, err := DerivePrivateKey(seed, Path(chain.FamilyEVM, "mainnet"))
	require.NoError(t, err)
	c, err := DerivePrivateKey(seed, Path(chain.FamilyAccount, "mainnet"))
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestFromPrivateKey(t *testing.T) {
	key := common.Hex2Bytes(testKeyHex)

	evmAddr, err := FromPrivateKey(chain.FamilyEVM, "mainnet", key)
	require.NoError(t, err)
	assert.Equal(t, testAddress, evmAddr)

	btcAddr, err := FromPrivateKey(chain.FamilyUTXO, "testnet", key)
	require.NoError(t, err)
	params, err := utxo.NetworkParams("testnet")
	require.NoError(t, err)
	decoded, err := btcutil.DecodeAddress(btcAddr, params)
	require.NoError(t, err)
	assert.True(t, decoded.IsForNet(params))

	tronAddr, err := FromPrivateKey(chain.FamilyAccount, "mainnet", key)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tronAddr, "T"))
	parsed, err := troaddr.Base58ToAddress(tronAddr)
	require.NoError(t, err)
	// tron addresses share the 20 byte hash with EVM
	assert.Equal(t, strings.TrimPrefix(testAddress, "0x"), common.Bytes2Hex(parsed.Bytes()[1:]))

	_, err = FromPrivateKey("cosmos", "mainnet", key)
	require.Error(t, err)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, testAddress, Normalize(chain.FamilyEVM, " 0xF39Fd6e51aad88F6F4ce6aB8827279cffFb92266 "))
	assert.Equal(t, "TJRabPrwbZy45sbavfcjinPJC18kjpRTv8", Normalize(chain.FamilyAccount, "TJRabPrwbZy45sbavfcjinPJC18kjpRTv8"))
}
