package api

import (
	"net/http"

	"github.com/pkg/errors"
	"github/chapool/go-custody/internal/api/httperrors"
	"github/chapool/go-custody/internal/types"
	"github/chapool/go-custody/internal/wallet"
	"github/chapool/go-custody/internal/wallet/chain"
	"github/chapool/go-custody/internal/wallet/cursor"
	"github/chapool/go-custody/internal/wallet/deposit"
	"github/chapool/go-custody/internal/wallet/keyvault"
	"github/chapool/go-custody/internal/wallet/monitor"
	"github/chapool/go-custody/internal/wallet/registry"
	"github/chapool/go-custody/internal/wallet/sweep"
)

// HTTPError translates domain errors into their public HTTP representation.
// Unknown errors are returned unchanged and end up as 500 in the error handler.
func HTTPError(err error) error {
	if err == nil {
		return nil
	}

	var mapped *httperrors.HTTPError

	switch {
	case errors.Is(err, cursor.ErrInvalidState):
		mapped = httperrors.ErrConflictChainRunning
	case errors.Is(err, cursor.ErrNonMonotonic):
		mapped = httperrors.ErrConflictNonMonotonic
	case errors.Is(err, cursor.ErrNegativeHeight):
		mapped = httperrors.NewHTTPError(http.StatusBadRequest, types.PublicHTTPErrorTypeGeneric, "Height must not be negative.")
	case errors.Is(err, keyvault.ErrInvalidCredentials):
		mapped = httperrors.ErrUnauthorizedCredentials
	case errors.Is(err, keyvault.ErrCredentialsNotSet):
		mapped = httperrors.NewHTTPError(http.StatusUnauthorized, types.PublicHTTPErrorTypeINVALIDCREDENTIALS, "Admin credentials are not configured.")
	case errors.Is(err, keyvault.ErrLocked), errors.Is(err, keyvault.ErrNotInitialized):
		mapped = httperrors.ErrServiceUnavailableVault
	case errors.Is(err, registry.ErrAlreadyExists), errors.Is(err, wallet.ErrActiveWalletExists):
		mapped = httperrors.ErrConflictWalletExists
	case errors.Is(err, sweep.ErrNotRetryable):
		mapped = httperrors.ErrConflictNotRetryable
	case errors.Is(err, sweep.ErrInFlight):
		mapped = httperrors.ErrConflictSweepInFlight
	case errors.Is(err, sweep.ErrSweepNotFound):
		mapped = httperrors.ErrNotFoundSweep
	case errors.Is(err, wallet.ErrWalletNotFound), errors.Is(err, registry.ErrWrongKind):
		mapped = httperrors.ErrNotFoundWallet
	case errors.Is(err, chain.ErrUnknownChain):
		mapped = httperrors.ErrBadRequestInvalidPair
	case errors.Is(err, registry.ErrChainInactive), errors.Is(err, monitor.ErrChainInactive):
		mapped = httperrors.NewHTTPError(http.StatusConflict, types.PublicHTTPErrorTypeINVALIDSTATE, "Chain is not active.")
	case errors.Is(err, sweep.ErrInvalidFeeOption), errors.Is(err, deposit.ErrInvalidStartPoint):
		mapped = httperrors.NewHTTPErrorWithDetail(http.StatusBadRequest, types.PublicHTTPErrorTypeGeneric, http.StatusText(http.StatusBadRequest), err.Error())
	case errors.Is(err, chain.ErrChainUnavailable):
		mapped = httperrors.ErrBadGatewayChain
	default:
		return err
	}

	// copy, the predefined errors are shared
	out := *mapped
	out.Internal = err

	return &out
}
