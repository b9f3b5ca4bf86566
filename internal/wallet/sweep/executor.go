package sweep

import (
	"context"
	"math/big"
	"time"

	"github.com/pkg/errors"
	"github/chapool/go-custody/internal/wallet"
	"github/chapool/go-custody/internal/wallet/chain"
	"github/chapool/go-custody/internal/wallet/signer"
)

// Job is everything an executor needs for one attempt.
type Job struct {
	Sweep   *wallet.SweepTransaction
	Deposit *wallet.Deposit
	Chain   *chain.Chain
	Token   *chain.Token
	From    *wallet.Wallet
	To      *wallet.Wallet
	// GasTank is nil unless the chain has a separate fee asset and the token is not native.
	GasTank *wallet.Wallet

	// PriorFee is the highest fee any earlier attempt of the deposit signed with.
	PriorFee *big.Int
	Option   FeeOption

	// Replaces is the newest earlier attempt whose transaction was signed but never
	// included. Evm sweeps take over its nonce so the retry replaces it on the node.
	Replaces *wallet.SweepTransaction

	// OnSigned persists the signed sweep before it is broadcast.
	OnSigned func(ctx context.Context, sub *Submission) error
}

// Signed is called by executors between signing and broadcasting the sweep.
// An error aborts the broadcast.
func (j *Job) Signed(ctx context.Context, sub *Submission) error {
	if j.OnSigned == nil {
		return nil
	}

	if err := j.OnSigned(ctx, sub); err != nil {
		return errors.Wrap(err, "failed to record signed transaction")
	}

	return nil
}

// Submission is a signed sweep. Fee is the chain specific fee parameter.
type Submission struct {
	TxHash string
	Amount *big.Int
	Fee    *big.Int
	// Nonce is only set for evm sweeps.
	Nonce *uint64
}

// Executor builds, signs and broadcasts sweeps for one chain family.
type Executor interface {
	Submit(ctx context.Context, job *Job) (*Submission, error)

	// Outcome reports whether txHash is included and whether it succeeded.
	Outcome(ctx context.Context, txHash string) (included bool, succeeded bool, err error)
}

type ExecutorFactory func(client chain.Client, signer signer.Service, config Config) (Executor, error)

func DefaultExecutors() map[chain.Family]ExecutorFactory {
	return map[chain.Family]ExecutorFactory{
		chain.FamilyEVM:     NewEVMExecutor,
		chain.FamilyUTXO:    NewUTXOExecutor,
		chain.FamilyAccount: NewTronExecutor,
	}
}

// waitIncluded polls until txHash is included, fails with ErrInclusionFailed on revert or timeout.
func waitIncluded(ctx context.Context, exec Executor, txHash string, config Config) error {
	localCtx, cancel := context.WithTimeout(ctx, config.ReceiptTimeout)
	defer cancel()

	ticker := time.NewTicker(config.ReceiptPollInterval)
	defer ticker.Stop()

	for {
		included, succeeded, err := exec.Outcome(localCtx, txHash)
		switch {
		case err != nil && !chain.IsTransient(err) && !errors.Is(err, chain.ErrNotFound):
			if localCtx.Err() == nil {
				return err
			}
		case included && succeeded:
			return nil
		case included:
			return errors.Wrapf(ErrInclusionFailed, "transaction %s reverted", txHash)
		}

		select {
		case <-localCtx.Done():
			if ctx.Err() != nil {
				return errors.Wrap(ctx.Err(), "context canceled while waiting for inclusion")
			}
			return errors.Wrapf(ErrInclusionFailed, "transaction %s not included within %s", txHash, config.ReceiptTimeout)
		case <-ticker.C:
			continue
		}
	}
}
