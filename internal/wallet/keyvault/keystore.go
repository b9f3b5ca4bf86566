package keyvault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/scrypt"
)

// KeystoreJSON is the Ethereum keystore v3 layout. The vault uses it to wrap the master key.
//
//nolint:revive // KeystoreJSON is the standard name for Ethereum keystore JSON structure
type KeystoreJSON struct {
	Version int    `json:"version"`
	ID      string `json:"id"`
	Crypto  struct {
		Ciphertext   string `json:"ciphertext"`
		CipherParams struct {
			IV string `json:"iv"`
		} `json:"cipherparams"`
		Cipher    string `json:"cipher"`
		KDF       string `json:"kdf"`
		KDFParams struct {
			DKLen int    `json:"dklen"`
			Salt  string `json:"salt"`
			N     int    `json:"n"`
			R     int    `json:"r"`
			P     int    `json:"p"`
		} `json:"kdfparams"`
		MAC string `json:"mac"`
	} `json:"crypto"`
}

// ScryptParams defines scrypt KDF parameters
type ScryptParams struct {
	DKLen int
	N     int
	R     int
	P     int
}

// DefaultScryptParams returns the standard keystore v3 parameters (N = 2^18).
func DefaultScryptParams() ScryptParams {
	return ScryptParams{DKLen: 32, N: 262144, R: 8, P: 1}
}

// sealKeystore encrypts secret with a scrypt derived AES-128-CTR key.
//
//nolint:varnamelen // iv is a common abbreviation for initialization vector
func sealKeystore(secret []byte, password string, params ScryptParams) ([]byte, error) {
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Wrap(err, "failed to generate salt")
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, errors.Wrap(err, "failed to generate IV")
	}

	derivedKey, err := scrypt.Key([]byte(password), salt, params.N, params.R, params.P, params.DKLen)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive key")
	}
	defer zero(derivedKey)

	ciphertext, err := aes128CTR(derivedKey[:16], iv, secret)
	if err != nil {
		return nil, err
	}

	ks := &KeystoreJSON{Version: 3, ID: uuid.New().String()}
	ks.Crypto.Ciphertext = hex.EncodeToString(ciphertext)
	ks.Crypto.CipherParams.IV = hex.EncodeToString(iv)
	ks.Crypto.Cipher = "aes-128-ctr"
	ks.Crypto.KDF = "scrypt"
	ks.Crypto.KDFParams.DKLen = params.DKLen
	ks.Crypto.KDFParams.Salt = hex.EncodeToString(salt)
	ks.Crypto.KDFParams.N = params.N
	ks.Crypto.KDFParams.R = params.R
	ks.Crypto.KDFParams.P = params.P
	ks.Crypto.MAC = hex.EncodeToString(keystoreMAC(derivedKey[16:32], ciphertext))

	data, err := json.Marshal(ks)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal keystore")
	}

	return data, nil
}

// openKeystore returns the wrapped secret, ErrInvalidPassword on MAC mismatch.
//
//nolint:varnamelen // iv is a common abbreviation for initialization vector
func openKeystore(data []byte, password string) ([]byte, error) {
	var ks KeystoreJSON
	if err := json.Unmarshal(data, &ks); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal keystore")
	}

	if ks.Crypto.KDF != "scrypt" || ks.Crypto.Cipher != "aes-128-ctr" {
		return nil, errors.Errorf("unsupported keystore %s/%s", ks.Crypto.KDF, ks.Crypto.Cipher)
	}

	salt, err := hex.DecodeString(ks.Crypto.KDFParams.Salt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode salt")
	}

	iv, err := hex.DecodeString(ks.Crypto.CipherParams.IV)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode IV")
	}

	ciphertext, err := hex.DecodeString(ks.Crypto.Ciphertext)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode ciphertext")
	}

	expectedMAC, err := hex.DecodeString(ks.Crypto.MAC)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode MAC")
	}

	p := ks.Crypto.KDFParams
	derivedKey, err := scrypt.Key([]byte(password), salt, p.N, p.R, p.P, p.DKLen)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive key")
	}
	defer zero(derivedKey)

	if subtle.ConstantTimeCompare(keystoreMAC(derivedKey[16:32], ciphertext), expectedMAC) != 1 {
		return nil, ErrInvalidPassword
	}

	return aes128CTR(derivedKey[:16], iv, ciphertext)
}

// CTR is symmetric, the same call encrypts and decrypts.
//
//nolint:varnamelen // iv is a common abbreviation for initialization vector
func aes128CTR(key []byte, iv []byte, in []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create cipher")
	}

	out := make([]byte, len(in))
	cipher.NewCTR(block, iv).XORKeyStream(out, in)

	return out, nil
}

// keystoreMAC = Keccak256(derivedKey[16:32] || ciphertext)
func keystoreMAC(key []byte, ciphertext []byte) []byte {
	return crypto.Keccak256(key, ciphertext)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
