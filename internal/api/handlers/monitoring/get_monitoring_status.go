package monitoring

import (
	"net/http"

	"github.com/go-openapi/swag"
	"github.com/labstack/echo/v4"
	"github/chapool/go-custody/internal/api"
	"github/chapool/go-custody/internal/types"
	"github/chapool/go-custody/internal/util"
)

func GetMonitoringStatusRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Admin.GET("/monitoring-status", getMonitoringStatusHandler(s))
}

func getMonitoringStatusHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		chains, err := s.Catalog.GetActiveChains(c.Request().Context())
		if err != nil {
			return api.HTTPError(err)
		}

		res := &types.MonitoringStatusResponse{
			Chains: make(map[string]bool, len(chains)),
		}

		for _, ch := range chains {
			res.Chains[ch.Pair().String()] = false
		}
		// pairs deactivated while running still show up
		for _, pair := range s.Monitor.Running() {
			res.Chains[pair.String()] = true
		}

		res.IsMonitoring = swag.Bool(len(s.Monitor.Running()) > 0)

		return util.ValidateAndReturn(c, http.StatusOK, res)
	}
}
