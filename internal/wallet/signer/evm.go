package signer

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// SignEVMTransaction signs an EIP-1559 transaction
func (s *service) SignEVMTransaction(ctx context.Context, walletID string, req *SignEVMRequest) (*types.Transaction, error) {
	if req.ChainID == nil || req.Value == nil || req.MaxFeePerGas == nil || req.MaxPriorityFeePerGas == nil {
		return nil, errors.New("incomplete EVM sign request")
	}

	if !common.IsHexAddress(req.To) {
		return nil, errors.Errorf("invalid recipient address %q", req.To)
	}

	toAddress := common.HexToAddress(req.To)

	//nolint:varnamelen // tx is a common abbreviation for transaction
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   req.ChainID,
		Nonce:     req.Nonce,
		GasTipCap: req.MaxPriorityFeePerGas,
		GasFeeCap: req.MaxFeePerGas,
		Gas:       req.GasLimit,
		To:        &toAddress,
		Value:     req.Value,
		Data:      req.Data,
	})

	var signed *types.Transaction
	err := s.withKey(ctx, walletID, func(key []byte) error {
		ecdsaPrivateKey, err := crypto.ToECDSA(key)
		if err != nil {
			return errors.Wrap(err, "failed to convert private key to ECDSA")
		}

		derived := crypto.PubkeyToAddress(ecdsaPrivateKey.PublicKey)
		if !strings.EqualFold(derived.Hex(), req.FromAddress) {
			return errors.New("from address does not match private key")
		}

		signed, err = types.SignTx(tx, types.NewLondonSigner(req.ChainID), ecdsaPrivateKey)
		if err != nil {
			return errors.Wrap(err, "failed to sign transaction")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return signed, nil
}
