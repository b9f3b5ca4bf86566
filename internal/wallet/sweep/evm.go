package sweep

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github/chapool/go-custody/internal/wallet/chain"
	"github/chapool/go-custody/internal/wallet/signer"
)

const (
	evmNativeGasLimit        uint64 = 21000
	evmTokenGasLimit         uint64 = 120000
	evmBaseFeeMultiplier     int64  = 2
	abiPaddedAddressLength          = 32
	evmTopUpBufferPercent    int64  = 10
	evmTopUpMinimumBufferWei int64  = 50_000_000_000_000 // 0.00005 native
)

var erc20TransferMethodID = common.FromHex("a9059cbb")

// evmClient is the part of the evm adapter used for sweeping.
type evmClient interface {
	ChainID() *big.Int
	BalanceOf(ctx context.Context, address string, tokenRef string) (*big.Int, error)
	Receipt(ctx context.Context, txHash string) (*types.Receipt, error)
	PendingNonceAt(ctx context.Context, address string) (uint64, error)
	NonceAt(ctx context.Context, address string) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	BaseFee(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

type evmExecutor struct {
	client evmClient
	signer signer.Service
	config Config
}

//nolint:ireturn
func NewEVMExecutor(client chain.Client, signer signer.Service, config Config) (Executor, error) {
	c, ok := client.(evmClient)
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedTransport, "%T", client)
	}

	return &evmExecutor{client: c, signer: signer, config: config}, nil
}

func (e *evmExecutor) Outcome(ctx context.Context, txHash string) (bool, bool, error) {
	receipt, err := e.client.Receipt(ctx, txHash)
	if err != nil {
		if errors.Is(err, chain.ErrNotFound) {
			return false, false, nil
		}
		return false, false, err
	}

	return true, receipt.Status == types.ReceiptStatusSuccessful, nil
}

// fees returns maxFeePerGas and the tip for the attempt.
func (e *evmExecutor) fees(ctx context.Context, job *Job) (*big.Int, *big.Int, error) {
	tipCap, err := e.client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to suggest gas tip cap")
	}

	baseFee, err := e.client.BaseFee(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to fetch base fee")
	}

	suggested := new(big.Int).Add(new(big.Int).Mul(baseFee, big.NewInt(evmBaseFeeMultiplier)), tipCap)
	maxFee := ChooseFee(job.PriorFee, job.Option, suggested, e.config.FeeBumpPercent)

	if job.Option == FeeHigher && job.PriorFee != nil {
		tipCap = Bump(tipCap, e.config.FeeBumpPercent)
		if replacing(job) {
			// nodes want the tip bumped too, the replaced tip was at most the replaced cap
			tipCap = new(big.Int).Set(maxFee)
		}
	}
	if tipCap.Cmp(maxFee) > 0 {
		tipCap = new(big.Int).Set(maxFee)
	}

	return maxFee, tipCap, nil
}

func (e *evmExecutor) Submit(ctx context.Context, job *Job) (*Submission, error) {
	maxFee, tipCap, err := e.fees(ctx, job)
	if err != nil {
		return nil, err
	}

	deposited := job.Deposit.Amount.BigInt()

	if job.Token.IsNative() {
		balance, err := e.client.BalanceOf(ctx, job.From.Address, "")
		if err != nil {
			return nil, errors.Wrap(err, "failed to query wallet balance")
		}

		gasFee := new(big.Int).Mul(maxFee, new(big.Int).SetUint64(evmNativeGasLimit))
		amount := new(big.Int).Sub(minBig(deposited, balance), gasFee)
		if amount.Sign() <= 0 {
			return nil, errors.Wrapf(ErrAmountBelowFee, "balance %s, gas fee %s", balance, gasFee)
		}

		return e.sweep(ctx, job, job.To.Address, amount, amount, evmNativeGasLimit, maxFee, tipCap, nil)
	}

	tokenBalance, err := e.client.BalanceOf(ctx, job.From.Address, job.Token.ContractAddress)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query token balance")
	}

	amount := minBig(deposited, tokenBalance)
	if amount.Sign() <= 0 {
		return nil, errors.Wrapf(ErrAmountBelowFee, "token balance %s", tokenBalance)
	}

	gasFee := new(big.Int).Mul(maxFee, new(big.Int).SetUint64(evmTokenGasLimit))
	if err := e.ensureNativeGas(ctx, job, gasFee, maxFee, tipCap); err != nil {
		return nil, err
	}

	toAddr := common.HexToAddress(job.To.Address)
	data := make([]byte, 0, len(erc20TransferMethodID)+abiPaddedAddressLength*2)
	data = append(data, erc20TransferMethodID...)
	data = append(data, common.LeftPadBytes(toAddr.Bytes(), abiPaddedAddressLength)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), abiPaddedAddressLength)...)

	return e.sweep(ctx, job, job.Token.ContractAddress, big.NewInt(0), amount, evmTokenGasLimit, maxFee, tipCap, data)
}

func replacing(job *Job) bool {
	return job.Replaces != nil && job.Replaces.Nonce.Valid
}

// sweepNonce returns the nonce of the sweep. A retry takes over the nonce of the attempt
// it replaces, as long as no transaction with that nonce was mined.
func (e *evmExecutor) sweepNonce(ctx context.Context, job *Job) (uint64, error) {
	if !replacing(job) {
		nonce, err := e.client.PendingNonceAt(ctx, job.From.Address)
		if err != nil {
			return 0, errors.Wrap(err, "failed to fetch pending nonce")
		}
		return nonce, nil
	}

	nonce := uint64(job.Replaces.Nonce.Int64) //nolint:gosec // stored from a uint64
	mined, err := e.client.NonceAt(ctx, job.From.Address)
	if err != nil {
		return 0, errors.Wrap(err, "failed to fetch account nonce")
	}
	if mined > nonce {
		return 0, errors.Wrapf(ErrNonceUsed, "nonce %d of sweep %s", nonce, job.Replaces.ID)
	}

	return nonce, nil
}

// sweep signs the sweep transaction, records it and broadcasts it.
func (e *evmExecutor) sweep(ctx context.Context, job *Job, to string, value, amount *big.Int, gasLimit uint64, maxFee, tipCap *big.Int, data []byte) (*Submission, error) {
	nonce, err := e.sweepNonce(ctx, job)
	if err != nil {
		return nil, err
	}

	tx, err := e.sign(ctx, job.From.ID, job.From.Address, to, value, gasLimit, maxFee, tipCap, data, nonce)
	if err != nil {
		return nil, err
	}

	sub := &Submission{TxHash: tx.Hash().Hex(), Amount: amount, Fee: maxFee, Nonce: &nonce}
	if err := job.Signed(ctx, sub); err != nil {
		return nil, err
	}

	if replacing(job) {
		log.Info().
			Str("sweep_id", job.Sweep.ID).
			Str("replaced_sweep_id", job.Replaces.ID).
			Str("replaced_tx_hash", job.Replaces.TxHash.String).
			Uint64("nonce", nonce).
			Msg("Replacing stuck sweep transaction")
	}

	if err := e.client.SendTransaction(ctx, tx); err != nil {
		return nil, errors.Wrap(err, "failed to broadcast transaction")
	}

	return sub, nil
}

// ensureNativeGas tops the user wallet up from the gas tank until it covers required.
func (e *evmExecutor) ensureNativeGas(ctx context.Context, job *Job, required, maxFee, tipCap *big.Int) error {
	current, err := e.client.BalanceOf(ctx, job.From.Address, "")
	if err != nil {
		return errors.Wrap(err, "failed to query native balance")
	}

	if current.Cmp(required) >= 0 {
		return nil
	}

	if job.GasTank == nil {
		return errors.Wrapf(ErrInsufficientGasTank, "no gas tank for %s", job.Chain.Pair())
	}

	shortfall := new(big.Int).Sub(required, current)
	buffer := new(big.Int).Quo(new(big.Int).Mul(shortfall, big.NewInt(evmTopUpBufferPercent)), big.NewInt(100))
	if buffer.Cmp(big.NewInt(evmTopUpMinimumBufferWei)) < 0 {
		buffer.SetInt64(evmTopUpMinimumBufferWei)
	}
	shortfall.Add(shortfall, buffer)

	tankBalance, err := e.client.BalanceOf(ctx, job.GasTank.Address, "")
	if err != nil {
		return errors.Wrap(err, "failed to query gas tank balance")
	}

	totalCost := new(big.Int).Add(shortfall, new(big.Int).Mul(maxFee, new(big.Int).SetUint64(evmNativeGasLimit)))
	if tankBalance.Cmp(totalCost) < 0 {
		return errors.Wrapf(ErrInsufficientGasTank, "gas tank %s has %s, needs %s", job.GasTank.Address, tankBalance, totalCost)
	}

	hash, err := e.send(ctx, job.GasTank.ID, job.GasTank.Address, job.From.Address, shortfall, evmNativeGasLimit, maxFee, tipCap, nil)
	if err != nil {
		return errors.Wrap(err, "failed to send gas top-up")
	}

	if err := waitIncluded(ctx, e, hash, e.config); err != nil {
		return errors.Wrap(err, "gas top-up not included")
	}

	log.Info().
		Str("wallet_id", job.From.ID).
		Str("gas_tank_id", job.GasTank.ID).
		Str("tx_hash", hash).
		Str("topup_amount", shortfall.String()).
		Msg("Topped up native gas for token sweep")

	return nil
}

// send signs and broadcasts a transaction at the pending nonce of from.
func (e *evmExecutor) send(ctx context.Context, walletID, from, to string, value *big.Int, gasLimit uint64, maxFee, tipCap *big.Int, data []byte) (string, error) {
	nonce, err := e.client.PendingNonceAt(ctx, from)
	if err != nil {
		return "", errors.Wrap(err, "failed to fetch pending nonce")
	}

	tx, err := e.sign(ctx, walletID, from, to, value, gasLimit, maxFee, tipCap, data, nonce)
	if err != nil {
		return "", err
	}

	if err := e.client.SendTransaction(ctx, tx); err != nil {
		return "", errors.Wrap(err, "failed to broadcast transaction")
	}

	return tx.Hash().Hex(), nil
}

func (e *evmExecutor) sign(ctx context.Context, walletID, from, to string, value *big.Int, gasLimit uint64, maxFee, tipCap *big.Int, data []byte, nonce uint64) (*types.Transaction, error) {
	tx, err := e.signer.SignEVMTransaction(ctx, walletID, &signer.SignEVMRequest{
		ChainID:              e.client.ChainID(),
		FromAddress:          from,
		To:                   to,
		Value:                value,
		GasLimit:             gasLimit,
		MaxFeePerGas:         maxFee,
		MaxPriorityFeePerGas: tipCap,
		Nonce:                nonce,
		Data:                 data,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}

	return tx, nil
}
