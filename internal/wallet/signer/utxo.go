package signer

import (
	"bytes"
	"context"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"github/chapool/go-custody/internal/wallet/chain/utxo"
)

// BIP125, a retry with a higher fee rate may replace the transaction.
const replaceableSequence = wire.MaxTxInSequenceNum - 2

// P2PKH sizes in bytes, legacy inputs have no witness so vsize equals size.
const (
	p2pkhTxOverhead = 10
	p2pkhInputSize  = 148
	p2pkhOutputSize = 34
)

// EstimateP2PKHSize returns the virtual size of a P2PKH transaction.
func EstimateP2PKHSize(inputs, outputs int) int64 {
	return int64(p2pkhTxOverhead + inputs*p2pkhInputSize + outputs*p2pkhOutputSize)
}

func (s *service) SignUTXOTransaction(ctx context.Context, walletID string, req *SignUTXORequest) (*SignUTXOResponse, error) {
	if len(req.Inputs) == 0 {
		return nil, errors.New("no inputs to spend")
	}

	if req.Amount <= 0 {
		return nil, errors.Errorf("invalid amount %d", req.Amount)
	}

	params, err := utxo.NetworkParams(req.Network)
	if err != nil {
		return nil, err
	}

	fromAddr, err := btcutil.DecodeAddress(req.FromAddress, params)
	if err != nil {
		return nil, errors.Wrap(err, "invalid from address")
	}

	toAddr, err := btcutil.DecodeAddress(req.To, params)
	if err != nil {
		return nil, errors.Wrap(err, "invalid recipient address")
	}

	fromScript, err := txscript.PayToAddrScript(fromAddr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build source script")
	}

	toScript, err := txscript.PayToAddrScript(toAddr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build destination script")
	}

	msgTx := wire.NewMsgTx(wire.TxVersion)
	var total int64
	for _, in := range req.Inputs {
		hash, err := chainhash.NewHashFromStr(in.TxID)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid input txid %s", in.TxID)
		}

		txIn := wire.NewTxIn(wire.NewOutPoint(hash, in.Vout), nil, nil)
		txIn.Sequence = replaceableSequence
		msgTx.AddTxIn(txIn)
		total += in.Value
	}

	if req.Amount > total {
		return nil, errors.Errorf("amount %d exceeds inputs %d", req.Amount, total)
	}

	msgTx.AddTxOut(wire.NewTxOut(req.Amount, toScript))

	err = s.withKey(ctx, walletID, func(key []byte) error {
		priv, pub := btcec.PrivKeyFromBytes(key)

		if !bytes.Equal(btcutil.Hash160(pub.SerializeCompressed()), fromAddr.ScriptAddress()) {
			return errors.New("from address does not match private key")
		}

		for i := range msgTx.TxIn {
			sigScript, err := txscript.SignatureScript(msgTx, i, fromScript, txscript.SigHashAll, priv, true)
			if err != nil {
				return errors.Wrapf(err, "failed to sign input %d", i)
			}
			msgTx.TxIn[i].SignatureScript = sigScript
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := msgTx.Serialize(&buf); err != nil {
		return nil, errors.Wrap(err, "failed to serialize transaction")
	}

	return &SignUTXOResponse{
		RawHex: hex.EncodeToString(buf.Bytes()),
		TxID:   msgTx.TxHash().String(),
	}, nil
}
