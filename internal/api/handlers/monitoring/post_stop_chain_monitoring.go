package monitoring

import (
	"net/http"

	"github.com/go-openapi/swag"
	"github.com/labstack/echo/v4"
	"github/chapool/go-custody/internal/api"
	"github/chapool/go-custody/internal/types"
	"github/chapool/go-custody/internal/util"
)

func PostStopChainMonitoringRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Admin.POST("/stop-chain-monitoring", postStopChainMonitoringHandler(s))
}

func postStopChainMonitoringHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var body types.PostChainMonitoringPayload
		if err := util.BindAndValidateBody(c, &body); err != nil {
			return err
		}

		pair, err := knownPair(ctx, s, *body.Chain, *body.Network)
		if err != nil {
			return err
		}

		wasRunning := s.Monitor.IsRunning(pair)
		s.Monitor.StopChain(pair)

		msg := "Monitoring stopped for " + pair.String()
		if !wasRunning {
			msg = "Monitoring was not running for " + pair.String()
		}

		return util.ValidateAndReturn(c, http.StatusOK, &types.MonitoringActionResponse{
			Success: swag.Bool(true),
			Message: swag.String(msg),
		})
	}
}
