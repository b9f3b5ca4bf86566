package admin

import (
	"net/http"

	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/swag"
	"github.com/labstack/echo/v4"
	"github/chapool/go-custody/internal/api"
	"github/chapool/go-custody/internal/auth"
	"github/chapool/go-custody/internal/types"
	"github/chapool/go-custody/internal/util"
)

func PostDecryptKeyRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Admin.POST("/wallet-balances/decrypt-key/:walletId", postDecryptKeyHandler(s))
}

// postDecryptKeyHandler reveals a wallet's private key once. Nothing about the key is kept or logged.
func postDecryptKeyHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		walletID := c.Param("walletId")

		var body types.PostDecryptKeyPayload
		if err := util.BindAndValidateBody(c, &body); err != nil {
			return err
		}

		var token string
		if p := auth.PrincipalFromContext(ctx); p != nil {
			token = p.TokenFingerprint
		}

		reveal, err := s.Vault.RevealForAdmin(ctx, walletID, body.AdminPassword.String(), body.AdminSecretKey.String())
		if err != nil {
			util.LogFromContext(ctx).Warn().Err(err).Str("wallet_id", walletID).Str("admin_token", token).Msg("Key reveal failed")
			return api.HTTPError(err)
		}

		util.LogFromContext(ctx).Info().Str("wallet_id", walletID).Str("admin_token", token).Msg("Key revealed")

		id := strfmt.UUID(reveal.WalletID)
		expiresAt := strfmt.DateTime(reveal.ExpiresAt)

		c.Response().Header().Set(echo.HeaderCacheControl, "no-store")

		return util.ValidateAndReturn(c, http.StatusOK, &types.DecryptKeyResponse{
			WalletID:         &id,
			Address:          swag.String(reveal.Address),
			PrivateKey:       swag.String(reveal.PrivateKey),
			ExpiresInSeconds: swag.Int64(reveal.ExpiresInSeconds),
			ExpiresAt:        &expiresAt,
		})
	}
}
