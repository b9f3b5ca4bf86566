package sweep

import (
	"context"
	"math/big"

	"github.com/pkg/errors"
	"github/chapool/go-custody/internal/wallet/chain"
	"github/chapool/go-custody/internal/wallet/chain/utxo"
	"github/chapool/go-custody/internal/wallet/signer"
)

const (
	utxoFeeTarget = 6
	// outputs below the P2PKH dust limit are not relayed
	utxoDustLimit int64 = 546
)

type utxoClient interface {
	OutputsTo(ctx context.Context, txid, address string) ([]utxo.UTXO, error)
	FeeRate(ctx context.Context, target int) (int64, error)
	Broadcast(ctx context.Context, rawHex string) (string, error)
	ConfirmationsOf(ctx context.Context, txHash string) (int64, error)
}

type utxoExecutor struct {
	client utxoClient
	signer signer.Service
	config Config
}

//nolint:ireturn
func NewUTXOExecutor(client chain.Client, signer signer.Service, config Config) (Executor, error) {
	c, ok := client.(utxoClient)
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedTransport, "%T", client)
	}

	return &utxoExecutor{client: c, signer: signer, config: config}, nil
}

// UTXO transactions cannot revert, inclusion means success.
func (e *utxoExecutor) Outcome(ctx context.Context, txHash string) (bool, bool, error) {
	conf, err := e.client.ConfirmationsOf(ctx, txHash)
	if err != nil {
		if errors.Is(err, chain.ErrNotFound) {
			return false, false, nil
		}
		return false, false, err
	}

	return conf > 0, conf > 0, nil
}

// Submit spends the outputs of the deposit transaction to the admin address, the fee is
// deducted from the amount. Other deposits to the same wallet are left to their own sweeps.
// A retry spends the same outputs again, replacing an earlier attempt still in the mempool.
func (e *utxoExecutor) Submit(ctx context.Context, job *Job) (*Submission, error) {
	inputs, err := e.client.OutputsTo(ctx, job.Deposit.TxHash, job.From.Address)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list deposit outputs")
	}
	if len(inputs) == 0 {
		return nil, errors.Wrapf(ErrOutputsSpent, "deposit tx %s has no spendable outputs to %s", job.Deposit.TxHash, job.From.Address)
	}

	var total int64
	for _, in := range inputs {
		total += in.Value
	}

	suggested, err := e.client.FeeRate(ctx, utxoFeeTarget)
	if err != nil {
		return nil, errors.Wrap(err, "failed to estimate fee rate")
	}

	rate := ChooseFee(job.PriorFee, job.Option, big.NewInt(suggested), e.config.FeeBumpPercent)
	fee := signer.EstimateP2PKHSize(len(inputs), 1) * rate.Int64()

	amount := total - fee
	if amount < utxoDustLimit {
		return nil, errors.Wrapf(ErrAmountBelowFee, "inputs %d sat, fee %d sat", total, fee)
	}

	signed, err := e.signer.SignUTXOTransaction(ctx, job.From.ID, &signer.SignUTXORequest{
		Network:     job.Chain.Network,
		FromAddress: job.From.Address,
		Inputs:      inputs,
		To:          job.To.Address,
		Amount:      amount,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}

	sub := &Submission{TxHash: signed.TxID, Amount: big.NewInt(amount), Fee: rate}
	if err := job.Signed(ctx, sub); err != nil {
		return nil, err
	}

	if _, err := e.client.Broadcast(ctx, signed.RawHex); err != nil {
		return nil, errors.Wrap(err, "failed to broadcast transaction")
	}

	return sub, nil
}
