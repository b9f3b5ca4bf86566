package handlers

import (
	"github.com/labstack/echo/v4"
	"github/chapool/go-custody/internal/api"
	"github/chapool/go-custody/internal/api/handlers/admin"
	"github/chapool/go-custody/internal/api/handlers/common"
	"github/chapool/go-custody/internal/api/handlers/monitoring"
)

func AttachAllRoutes(s *api.Server) {
	// attach our routes
	s.Router.Routes = []*echo.Route{
		admin.GetGasTankBalanceRoute(s),
		admin.GetGasTankWalletsRoute(s),
		admin.GetGasTankWalletsScanRoute(s),
		admin.GetSweepTransactionsRoute(s),
		admin.GetWalletsRoute(s),
		admin.GetWalletsScanRoute(s),
		admin.PostDecryptKeyRoute(s),
		admin.PostGasTankWalletRoute(s),
		admin.PostRetrySweepRoute(s),
		admin.PostWalletRoute(s),
		common.GetHealthyRoute(s),
		common.GetMetricsRoute(s),
		common.GetReadyRoute(s),
		monitoring.GetChainBlocksRoute(s),
		monitoring.GetChainStatusRoute(s),
		monitoring.GetMonitoringStatusRoute(s),
		monitoring.PostSetStartBlockRoute(s),
		monitoring.PostStartChainMonitoringRoute(s),
		monitoring.PostStartMonitoringRoute(s),
		monitoring.PostStopChainMonitoringRoute(s),
		monitoring.PostStopMonitoringRoute(s),
	}
}
