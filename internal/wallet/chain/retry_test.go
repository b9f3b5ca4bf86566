package chain_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-custody/internal/wallet/chain"
)

func fastPolicy(attempts int) chain.RetryPolicy {
	return chain.RetryPolicy{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestRetryTransientThenSuccess(t *testing.T) {
	calls := 0
	v, err := chain.Retry(t.Context(), fastPolicy(3), "head", func(_ context.Context) (int64, error) {
		calls++
		if calls < 3 {
			return 0, chain.Unavailable(errors.New("dial tcp: refused"), "head")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnFatal(t *testing.T) {
	calls := 0
	_, err := chain.Retry(t.Context(), fastPolicy(5), "tx", func(_ context.Context) (int64, error) {
		calls++
		return 0, errors.Wrap(chain.ErrNotFound, "0xabc")
	})

	require.ErrorIs(t, err, chain.ErrNotFound)
	assert.Equal(t, 1, calls)
}

func TestRetryExhausted(t *testing.T) {
	calls := 0
	_, err := chain.Retry(t.Context(), fastPolicy(4), "head", func(_ context.Context) (int64, error) {
		calls++
		return 0, chain.Unavailable(errors.New("timeout"), "head")
	})

	require.ErrorIs(t, err, chain.ErrChainUnavailable)
	assert.Equal(t, 4, calls)
}

func TestRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	policy := chain.RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Hour}
	_, err := chain.Retry(ctx, policy, "head", func(_ context.Context) (int64, error) {
		return 0, chain.Unavailable(errors.New("timeout"), "head")
	})

	require.ErrorIs(t, err, context.Canceled)
}

func TestBackoffCapped(t *testing.T) {
	p := chain.RetryPolicy{MaxAttempts: 10, InitialBackoff: time.Second, MaxBackoff: 5 * time.Second}

	assert.Equal(t, time.Second, p.Backoff(1))
	assert.Equal(t, 2*time.Second, p.Backoff(2))
	assert.Equal(t, 4*time.Second, p.Backoff(3))
	assert.Equal(t, 5*time.Second, p.Backoff(4))
	assert.Equal(t, 5*time.Second, p.Backoff(9))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, chain.IsTransient(chain.Unavailable(errors.New("eof"), "x")))
	assert.False(t, chain.IsTransient(chain.ErrNotFound))
	assert.False(t, chain.IsTransient(context.Canceled))
	assert.False(t, chain.IsTransient(nil))
	assert.Nil(t, chain.Unavailable(nil, "x"))
}
