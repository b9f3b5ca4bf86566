package monitoring

import (
	"net/http"

	"github.com/go-openapi/swag"
	"github.com/labstack/echo/v4"
	"github/chapool/go-custody/internal/api"
	"github/chapool/go-custody/internal/types"
	"github/chapool/go-custody/internal/util"
)

func PostStopMonitoringRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Admin.POST("/stop-monitoring", postStopMonitoringHandler(s))
}

// Stopping is cooperative: the call returns once every detector left its loop.
func postStopMonitoringHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.Monitor.StopAll()

		util.LogFromEchoContext(c).Info().Msg("Monitoring stopped")

		return util.ValidateAndReturn(c, http.StatusOK, &types.MonitoringActionResponse{
			Success: swag.Bool(true),
			Message: swag.String("Monitoring stopped"),
		})
	}
}
