package deposit

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github/chapool/go-custody/internal/wallet"
	"github/chapool/go-custody/internal/wallet/chain"
)

// StartPoint selects the first height a detector scans. It only affects the initial next height.
type StartPoint string

const (
	// StartCurrent begins at the chain head.
	StartCurrent StartPoint = "current"
	// StartStart begins at the cursor's start height.
	StartStart StartPoint = "start"
	// StartLast resumes after the last processed height.
	StartLast StartPoint = "last"
)

var ErrInvalidStartPoint = errors.New("invalid start point")

func ParseStartPoint(s string) (StartPoint, error) {
	switch p := StartPoint(strings.ToLower(strings.TrimSpace(s))); p {
	case StartCurrent, StartStart, StartLast:
		return p, nil
	case "":
		return StartLast, nil
	default:
		return "", errors.Wrapf(ErrInvalidStartPoint, "%q", s)
	}
}

// State of a pair's detector.
type State string

const (
	StateRunning         State = "running"
	StateConnectionError State = "connection_error"
	StateStopped         State = "stopped"
)

// Status is the observable state of one detector.
type Status struct {
	Pair       chain.Pair
	State      State
	LastError  string
	LastHead   int64
	NextHeight int64
	UpdatedAt  time.Time
}

// ConfirmedHandler receives deposits leaving the detector's care.
type ConfirmedHandler interface {
	// OnDepositConfirmed is called exactly once per deposit, after the confirmed transition was persisted.
	OnDepositConfirmed(ctx context.Context, d *wallet.Deposit)

	// OnDepositReorged is called once when a confirmed deposit vanished from the chain and was marked failed.
	OnDepositReorged(ctx context.Context, d *wallet.Deposit)
}

// Store persists deposits. Only the detector writes until a deposit is confirmed.
type Store interface {
	// Upsert inserts d, or raises the confirmations of the open deposit with the same tx.
	// It reports whether a new row was created.
	Upsert(ctx context.Context, d *wallet.Deposit) (bool, error)

	Get(ctx context.Context, id string) (*wallet.Deposit, error)

	// OpenDeposits returns up to limit pending/confirming deposits of pair in block order.
	OpenDeposits(ctx context.Context, pair chain.Pair, limit int) ([]*wallet.Deposit, error)

	// RecentConfirmed returns confirmed deposits of pair mined at or above fromHeight.
	RecentConfirmed(ctx context.Context, pair chain.Pair, fromHeight int64) ([]*wallet.Deposit, error)

	// UpdateConfirmations never lowers the stored confirmations.
	UpdateConfirmations(ctx context.Context, id string, confirmations int64, status wallet.DepositStatus) error

	// MarkConfirmed moves an open deposit to confirmed. False if it was not open anymore.
	MarkConfirmed(ctx context.Context, id string, confirmations int64) (bool, error)

	// MarkFailed moves a deposit in one of from to failed. False if it was in another state.
	MarkFailed(ctx context.Context, id string, from ...wallet.DepositStatus) (bool, error)
}

var ErrDepositNotFound = errors.New("deposit not found")
