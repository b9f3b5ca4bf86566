package httperrors

import (
	"net/http"

	"github/chapool/go-custody/internal/types"
)

var (
	ErrBadRequestInvalidPair   = NewHTTPError(http.StatusBadRequest, types.PublicHTTPErrorTypeGeneric, "Unknown blockchain/network pair.")
	ErrNotFoundWallet          = NewHTTPError(http.StatusNotFound, types.PublicHTTPErrorTypeGeneric, "Wallet not found.")
	ErrNotFoundSweep           = NewHTTPError(http.StatusNotFound, types.PublicHTTPErrorTypeGeneric, "Sweep transaction not found.")
	ErrUnauthorizedAdminToken  = NewHTTPError(http.StatusUnauthorized, types.PublicHTTPErrorTypeGeneric, "Missing or invalid admin token.")
	ErrUnauthorizedCredentials = NewHTTPError(http.StatusUnauthorized, types.PublicHTTPErrorTypeINVALIDCREDENTIALS, "Invalid admin credentials.")
	ErrConflictChainRunning    = NewHTTPError(http.StatusConflict, types.PublicHTTPErrorTypeINVALIDSTATE, "Chain monitoring is running, stop it first.")
	ErrConflictNonMonotonic    = NewHTTPError(http.StatusConflict, types.PublicHTTPErrorTypeNONMONOTONIC, "Height is below the last processed height.")
	ErrConflictWalletExists    = NewHTTPError(http.StatusConflict, types.PublicHTTPErrorTypeALREADYEXISTS, "An active wallet already covers this pair.")
	ErrConflictNotRetryable    = NewHTTPError(http.StatusConflict, types.PublicHTTPErrorTypeNOTRETRYABLE, "Completed sweep transactions cannot be retried.")
	ErrConflictSweepInFlight   = NewHTTPError(http.StatusConflict, types.PublicHTTPErrorTypeINVALIDSTATE, "Another sweep for this deposit is still pending.")
	ErrServiceUnavailableVault = NewHTTPError(http.StatusServiceUnavailable, types.PublicHTTPErrorTypeVAULTLOCKED, "Key vault is locked.")
	ErrBadGatewayChain         = NewHTTPError(http.StatusBadGateway, types.PublicHTTPErrorTypeCHAINUNAVAILABLE, "Chain node is unavailable.")
)
