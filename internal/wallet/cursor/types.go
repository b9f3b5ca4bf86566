package cursor

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github/chapool/go-custody/internal/wallet/chain"
)

var (
	// ErrNonMonotonic is returned when lastProcessedHeight would move backwards.
	ErrNonMonotonic = errors.New("last processed height must not decrease")
	// ErrInvalidState is returned when the start height of a running pair is changed.
	ErrInvalidState   = errors.New("chain monitoring is running")
	ErrNegativeHeight = errors.New("height must not be negative")
)

// Cursor is the persisted scan progress of a pair.
// Invariant: LastProcessedHeight >= StartHeight-1.
type Cursor struct {
	Blockchain          string    `db:"blockchain"`
	Network             string    `db:"network"`
	StartHeight         int64     `db:"start_height"`
	LastProcessedHeight int64     `db:"last_processed_height"`
	UpdatedAt           time.Time `db:"updated_at"`
}

func (c *Cursor) Pair() chain.Pair {
	return chain.NewPair(c.Blockchain, c.Network)
}

// NextHeight is the first height that has not been processed yet.
func (c *Cursor) NextHeight() int64 {
	return max(c.LastProcessedHeight+1, c.StartHeight)
}

// Guard serializes cursor changes with the pair's monitoring lifecycle.
type Guard interface {
	// WhileStopped runs fn under the pair lock if the pair is not being monitored,
	// otherwise it returns ErrInvalidState.
	WhileStopped(pair chain.Pair, fn func() error) error
}

// Store persists cursors. It does not check whether a pair is running.
type Store interface {
	Get(ctx context.Context, pair chain.Pair) (*Cursor, error)
	List(ctx context.Context) ([]*Cursor, error)
	SetStartHeight(ctx context.Context, pair chain.Pair, height int64) error
	AdvanceLastProcessed(ctx context.Context, pair chain.Pair, height int64) error
}

// Service is the cursor API used by operators.
type Service interface {
	// GetCursor returns the cursor of pair, a fresh one (start 0, nothing processed) if none is stored.
	GetCursor(ctx context.Context, pair chain.Pair) (*Cursor, error)

	ListCursors(ctx context.Context) ([]*Cursor, error)

	// SetStartHeight moves the operator floor. Fails with ErrInvalidState while the pair is running.
	SetStartHeight(ctx context.Context, pair chain.Pair, height int64) error

	// AdvanceLastProcessed records progress. Lower heights fail with ErrNonMonotonic, equal ones are a no-op.
	AdvanceLastProcessed(ctx context.Context, pair chain.Pair, height int64) error
}
