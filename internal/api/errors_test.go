package api_test

import (
	"errors"
	"net/http"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-custody/internal/api"
	"github/chapool/go-custody/internal/api/httperrors"
	"github/chapool/go-custody/internal/wallet"
	"github/chapool/go-custody/internal/wallet/chain"
	"github/chapool/go-custody/internal/wallet/cursor"
	"github/chapool/go-custody/internal/wallet/deposit"
	"github/chapool/go-custody/internal/wallet/keyvault"
	"github/chapool/go-custody/internal/wallet/monitor"
	"github/chapool/go-custody/internal/wallet/registry"
	"github/chapool/go-custody/internal/wallet/sweep"
)

func TestHTTPError(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{cursor.ErrInvalidState, http.StatusConflict},
		{cursor.ErrNonMonotonic, http.StatusConflict},
		{cursor.ErrNegativeHeight, http.StatusBadRequest},
		{keyvault.ErrInvalidCredentials, http.StatusUnauthorized},
		{keyvault.ErrCredentialsNotSet, http.StatusUnauthorized},
		{keyvault.ErrLocked, http.StatusServiceUnavailable},
		{keyvault.ErrNotInitialized, http.StatusServiceUnavailable},
		{registry.ErrAlreadyExists, http.StatusConflict},
		{wallet.ErrActiveWalletExists, http.StatusConflict},
		{registry.ErrChainInactive, http.StatusConflict},
		{monitor.ErrChainInactive, http.StatusConflict},
		{registry.ErrWrongKind, http.StatusNotFound},
		{wallet.ErrWalletNotFound, http.StatusNotFound},
		{sweep.ErrNotRetryable, http.StatusConflict},
		{sweep.ErrInFlight, http.StatusConflict},
		{sweep.ErrSweepNotFound, http.StatusNotFound},
		{sweep.ErrInvalidFeeOption, http.StatusBadRequest},
		{deposit.ErrInvalidStartPoint, http.StatusBadRequest},
		{chain.ErrUnknownChain, http.StatusBadRequest},
		{chain.ErrChainUnavailable, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			wrapped := pkgerrors.Wrap(tt.err, "context")

			var httpErr *httperrors.HTTPError
			require.ErrorAs(t, api.HTTPError(wrapped), &httpErr)
			assert.Equal(t, int64(tt.code), *httpErr.Code)
			assert.Equal(t, wrapped, httpErr.Internal)
		})
	}
}

func TestHTTPErrorDoesNotMutateSharedErrors(t *testing.T) {
	first := api.HTTPError(pkgerrors.Wrap(sweep.ErrSweepNotFound, "id 1"))
	second := api.HTTPError(pkgerrors.Wrap(sweep.ErrSweepNotFound, "id 2"))

	assert.NotSame(t, first, second)
	assert.Nil(t, httperrors.ErrNotFoundSweep.Internal)
}

func TestHTTPErrorPassesUnknownErrors(t *testing.T) {
	assert.NoError(t, api.HTTPError(nil))

	err := errors.New("boom")
	assert.Same(t, err, api.HTTPError(err))
}
