package sweep

import (
	"context"
	"math/big"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github/chapool/go-custody/internal/wallet/chain"
	"github/chapool/go-custody/internal/wallet/chain/account"
	"github/chapool/go-custody/internal/wallet/signer"
)

const (
	// 345 bandwidth units at 1000 sun
	tronBandwidthFeeSun int64 = 345_000
	tronDefaultFeeLimit int64 = 30_000_000
)

type tronClient interface {
	BalanceOf(ctx context.Context, address string, tokenRef string) (*big.Int, error)
	CreateTransfer(ctx context.Context, from, to string, amount int64) (*account.Transaction, error)
	CreateTokenTransfer(ctx context.Context, from, contract, to string, amount *big.Int, feeLimit int64) (*account.Transaction, error)
	Broadcast(ctx context.Context, tx *account.Transaction) (string, error)
	Outcome(ctx context.Context, txID string) (bool, bool, error)
}

type tronExecutor struct {
	client tronClient
	signer signer.Service
	config Config
}

//nolint:ireturn
func NewTronExecutor(client chain.Client, signer signer.Service, config Config) (Executor, error) {
	c, ok := client.(tronClient)
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedTransport, "%T", client)
	}

	return &tronExecutor{client: c, signer: signer, config: config}, nil
}

func (e *tronExecutor) Outcome(ctx context.Context, txHash string) (bool, bool, error) {
	return e.client.Outcome(ctx, txHash)
}

func (e *tronExecutor) Submit(ctx context.Context, job *Job) (*Submission, error) {
	deposited := job.Deposit.Amount.BigInt()

	if job.Token.IsNative() {
		fee := ChooseFee(job.PriorFee, job.Option, big.NewInt(tronBandwidthFeeSun), e.config.FeeBumpPercent)

		balance, err := e.client.BalanceOf(ctx, job.From.Address, "")
		if err != nil {
			return nil, errors.Wrap(err, "failed to query wallet balance")
		}

		amount := new(big.Int).Sub(minBig(deposited, balance), fee)
		if amount.Sign() <= 0 || !amount.IsInt64() {
			return nil, errors.Wrapf(ErrAmountBelowFee, "balance %s, bandwidth fee %s", balance, fee)
		}

		tx, err := e.client.CreateTransfer(ctx, job.From.Address, job.To.Address, amount.Int64())
		if err != nil {
			return nil, errors.Wrap(err, "failed to build transfer")
		}

		return e.sweep(ctx, job, tx, amount, fee)
	}

	feeLimit := ChooseFee(job.PriorFee, job.Option, big.NewInt(tronDefaultFeeLimit), e.config.FeeBumpPercent)

	tokenBalance, err := e.client.BalanceOf(ctx, job.From.Address, job.Token.ContractAddress)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query token balance")
	}

	amount := minBig(deposited, tokenBalance)
	if amount.Sign() <= 0 {
		return nil, errors.Wrapf(ErrAmountBelowFee, "token balance %s", tokenBalance)
	}

	if err := e.ensureTRX(ctx, job, feeLimit); err != nil {
		return nil, err
	}

	tx, err := e.client.CreateTokenTransfer(ctx, job.From.Address, job.Token.ContractAddress, job.To.Address, amount, feeLimit.Int64())
	if err != nil {
		return nil, errors.Wrap(err, "failed to build token transfer")
	}

	return e.sweep(ctx, job, tx, amount, feeLimit)
}

// sweep signs tx, records it and broadcasts it. Tron transactions expire, an attempt that
// timed out cannot be included later and a retry builds a fresh transaction.
func (e *tronExecutor) sweep(ctx context.Context, job *Job, tx *account.Transaction, amount, fee *big.Int) (*Submission, error) {
	if err := e.signer.SignTronTransaction(ctx, job.From.ID, tx); err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}

	sub := &Submission{TxHash: tx.TxID, Amount: amount, Fee: fee}
	if err := job.Signed(ctx, sub); err != nil {
		return nil, err
	}

	if _, err := e.client.Broadcast(ctx, tx); err != nil {
		return nil, errors.Wrap(err, "failed to broadcast transaction")
	}

	return sub, nil
}

// ensureTRX tops the user wallet up from the gas tank so it can burn up to feeLimit.
func (e *tronExecutor) ensureTRX(ctx context.Context, job *Job, feeLimit *big.Int) error {
	current, err := e.client.BalanceOf(ctx, job.From.Address, "")
	if err != nil {
		return errors.Wrap(err, "failed to query TRX balance")
	}

	if current.Cmp(feeLimit) >= 0 {
		return nil
	}

	if job.GasTank == nil {
		return errors.Wrapf(ErrInsufficientGasTank, "no gas tank for %s", job.Chain.Pair())
	}

	shortfall := new(big.Int).Sub(feeLimit, current)

	tankBalance, err := e.client.BalanceOf(ctx, job.GasTank.Address, "")
	if err != nil {
		return errors.Wrap(err, "failed to query gas tank balance")
	}

	totalCost := new(big.Int).Add(shortfall, big.NewInt(tronBandwidthFeeSun))
	if tankBalance.Cmp(totalCost) < 0 {
		return errors.Wrapf(ErrInsufficientGasTank, "gas tank %s has %s, needs %s", job.GasTank.Address, tankBalance, totalCost)
	}

	hash, err := e.transfer(ctx, job.GasTank.ID, job.GasTank.Address, job.From.Address, shortfall.Int64())
	if err != nil {
		return errors.Wrap(err, "failed to send TRX top-up")
	}

	if err := waitIncluded(ctx, e, hash, e.config); err != nil {
		return errors.Wrap(err, "TRX top-up not included")
	}

	log.Info().
		Str("wallet_id", job.From.ID).
		Str("gas_tank_id", job.GasTank.ID).
		Str("tx_hash", hash).
		Str("topup_amount", shortfall.String()).
		Msg("Topped up TRX for token sweep")

	return nil
}

func (e *tronExecutor) transfer(ctx context.Context, walletID, from, to string, amount int64) (string, error) {
	tx, err := e.client.CreateTransfer(ctx, from, to, amount)
	if err != nil {
		return "", errors.Wrap(err, "failed to build transfer")
	}

	return e.signAndBroadcast(ctx, walletID, tx)
}

func (e *tronExecutor) signAndBroadcast(ctx context.Context, walletID string, tx *account.Transaction) (string, error) {
	if err := e.signer.SignTronTransaction(ctx, walletID, tx); err != nil {
		return "", errors.Wrap(err, "failed to sign transaction")
	}

	hash, err := e.client.Broadcast(ctx, tx)
	if err != nil {
		return "", errors.Wrap(err, "failed to broadcast transaction")
	}

	return hash, nil
}
