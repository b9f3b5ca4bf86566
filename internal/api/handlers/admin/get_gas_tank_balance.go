package admin

import (
	"net/http"

	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/swag"
	"github.com/labstack/echo/v4"
	"github/chapool/go-custody/internal/api"
	"github/chapool/go-custody/internal/types"
	"github/chapool/go-custody/internal/util"
)

func GetGasTankBalanceRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Admin.GET("/gas-tank-wallets/:id/balance", getGasTankBalanceHandler(s))
}

func getGasTankBalanceHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		balance, err := s.GasTank.Balance(ctx, c.Param("id"))
		if err != nil {
			util.LogFromContext(ctx).Debug().Err(err).Str("wallet_id", c.Param("id")).Msg("Failed to get gas tank balance")
			return api.HTTPError(err)
		}

		id := strfmt.UUID(balance.Wallet.ID)

		return util.ValidateAndReturn(c, http.StatusOK, &types.GasTankBalanceResponse{
			WalletID:       &id,
			Address:        swag.String(balance.Wallet.Address),
			Blockchain:     swag.String(balance.Wallet.Blockchain),
			Network:        swag.String(balance.Wallet.Network),
			Symbol:         balance.Symbol,
			Balance:        swag.String(balance.Raw.String()),
			BalanceDecimal: swag.String(balance.Amount.String()),
		})
	}
}
