package sweep

import (
	"context"
	"strings"

	"github.com/aarondl/null/v8"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github/chapool/go-custody/internal/wallet"
)

var (
	// ErrNotRetryable is returned when the deposit was already swept or a sweep is in flight.
	ErrNotRetryable = errors.New("sweep is not retryable")
	// ErrSubmissionFailed marks attempts that never reached the chain.
	ErrSubmissionFailed = errors.New("sweep submission failed")
	// ErrInclusionFailed marks attempts that were not included in time or reverted.
	ErrInclusionFailed = errors.New("sweep inclusion failed")
	// ErrInFlight is returned when the deposit already has a pending sweep.
	ErrInFlight             = errors.New("sweep already in flight for deposit")
	ErrSweepNotFound        = errors.New("sweep not found")
	ErrInsufficientGasTank  = errors.New("gas tank balance insufficient")
	ErrAmountBelowFee       = errors.New("amount does not cover the fee")
	ErrInvalidFeeOption     = errors.New("invalid fee option")
	ErrUnsupportedFamily    = errors.New("no sweep executor for chain family")
	ErrUnsupportedTransport = errors.New("chain client does not support sweeping")
	// ErrNonceUsed is returned when the nonce of a replaced evm sweep was mined meanwhile.
	ErrNonceUsed = errors.New("nonce of the replaced sweep is already used")
	// ErrOutputsSpent is returned when the deposit outputs were spent by a confirmed transaction.
	ErrOutputsSpent = errors.New("deposit outputs already spent")
)

// FeeOption selects the fee of a retried sweep.
type FeeOption string

const (
	// FeeSame reuses the fee parameter of the retried attempt.
	FeeSame FeeOption = "same"
	// FeeHigher bumps it, strictly above the retried attempt.
	FeeHigher FeeOption = "higher"
)

func ParseFeeOption(s string) (FeeOption, error) {
	switch o := FeeOption(strings.ToLower(strings.TrimSpace(s))); o {
	case FeeSame, FeeHigher:
		return o, nil
	default:
		return "", errors.Wrapf(ErrInvalidFeeOption, "%q", s)
	}
}

// Filter narrows List. Search matches tx hash, sweep id and deposit id.
type Filter struct {
	Offset int
	Limit  int
	Status wallet.SweepStatus
	Search string
}

// Store persists sweep attempts. A deposit has at most one pending row.
type Store interface {
	// Insert stores s. A second pending row for the deposit fails with ErrInFlight.
	Insert(ctx context.Context, s *wallet.SweepTransaction) error

	// SetSigned records the signed transaction of a pending sweep. It runs before the
	// broadcast so the fee and nonce of the attempt survive a failed submission.
	SetSigned(ctx context.Context, id string, txHash string, amount decimal.Decimal, fee decimal.Decimal, nonce null.Int64) error

	// Finish moves a pending sweep to a terminal status.
	Finish(ctx context.Context, id string, status wallet.SweepStatus, message string) error

	Get(ctx context.Context, id string) (*wallet.SweepTransaction, error)

	// LatestByDeposit returns the current (newest) attempt of a deposit.
	LatestByDeposit(ctx context.Context, depositID string) (*wallet.SweepTransaction, error)

	// CompletedByDeposit returns the completed attempt of a deposit, if any.
	CompletedByDeposit(ctx context.Context, depositID string) (*wallet.SweepTransaction, error)

	// Attempts returns every attempt of a deposit, oldest first.
	Attempts(ctx context.Context, depositID string) ([]*wallet.SweepTransaction, error)

	// Pending returns all pending sweeps, oldest first.
	Pending(ctx context.Context) ([]*wallet.SweepTransaction, error)

	List(ctx context.Context, filter Filter) ([]*wallet.SweepTransaction, int64, error)
}

// Service is the sweep API used by the detector and the admin surface.
type Service interface {
	// OnDepositConfirmed starts sweeping d in the background.
	OnDepositConfirmed(ctx context.Context, d *wallet.Deposit)

	// OnDepositReorged flags a deposit that failed after it may have been swept. Sweeps are never reversed.
	OnDepositReorged(ctx context.Context, d *wallet.Deposit)

	// Retry inserts a new attempt for the deposit of sweepID and executes it in the background.
	// The returned row is pending, or terminal if the attempt could not start. A pending
	// attempt left behind after the receipt timeout is resolved from the chain first.
	Retry(ctx context.Context, sweepID string, option FeeOption) (*wallet.SweepTransaction, error)

	List(ctx context.Context, filter Filter) ([]*wallet.SweepTransaction, int64, error)

	// Reconcile settles pending sweeps left behind by an earlier run, at startup.
	Reconcile(ctx context.Context) error

	// Wait blocks until all background sweeps finished.
	Wait()
}
