package admin

import (
	"github.com/labstack/echo/v4"
	"github/chapool/go-custody/internal/api"
	"github/chapool/go-custody/internal/wallet"
)

func GetGasTankWalletsRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Admin.GET("/gas-tank-wallets", listPoolWalletsHandler(s.GasTank))
}

func GetGasTankWalletsScanRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Admin.GET("/gas-tank-wallets/scan", scanPoolWalletsHandler(s.GasTank))
}

func PostGasTankWalletRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Admin.POST("/gas-tank-wallets", createPoolWalletHandler(s, wallet.OwnerGasTank))
}
