package chain

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrChainUnavailable marks transport level failures. They are retried and never abort a scan loop.
	ErrChainUnavailable = errors.New("chain unavailable")
	// ErrNotFound is returned when the chain does not know the requested transaction or block.
	ErrNotFound = errors.New("not found on chain")
	// ErrUnknownChain is returned when a pair is missing from the catalog.
	ErrUnknownChain = errors.New("unknown chain")
)

// Unavailable wraps err so that IsTransient reports true for it.
func Unavailable(err error, msg string) error {
	if err == nil {
		return nil
	}

	return errors.Wrapf(ErrChainUnavailable, "%s: %v", msg, err)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	return errors.Is(err, ErrChainUnavailable)
}
