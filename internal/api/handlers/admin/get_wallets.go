package admin

import (
	"github.com/labstack/echo/v4"
	"github/chapool/go-custody/internal/api"
	"github/chapool/go-custody/internal/wallet"
)

func GetWalletsRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Admin.GET("/wallets", listPoolWalletsHandler(s.Admin))
}

func GetWalletsScanRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Admin.GET("/wallets/scan", scanPoolWalletsHandler(s.Admin))
}

func PostWalletRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Admin.POST("/wallets", createPoolWalletHandler(s, wallet.OwnerAdmin))
}
