package monitoring

import (
	"fmt"
	"net/http"

	"github.com/go-openapi/swag"
	"github.com/labstack/echo/v4"
	"github/chapool/go-custody/internal/api"
	"github/chapool/go-custody/internal/types"
	"github/chapool/go-custody/internal/util"
	"github/chapool/go-custody/internal/wallet/deposit"
)

func PostStartMonitoringRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Admin.POST("/start-monitoring", postStartMonitoringHandler(s))
}

// postStartMonitoringHandler starts a detector for every active pair that is not running yet.
func postStartMonitoringHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var body types.PostMonitoringPayload
		if err := util.BindAndValidateBody(c, &body); err != nil {
			return err
		}

		startPoint, err := deposit.ParseStartPoint(body.StartPoint)
		if err != nil {
			return api.HTTPError(err)
		}

		started, err := s.Monitor.StartAll(ctx, startPoint)
		if err != nil {
			util.LogFromContext(ctx).Error().Err(err).Msg("Failed to start monitoring")
			return api.HTTPError(err)
		}

		util.LogFromContext(ctx).Info().Str("start_point", string(startPoint)).Int("started", len(started)).Msg("Monitoring started")

		return util.ValidateAndReturn(c, http.StatusOK, &types.MonitoringActionResponse{
			Success: swag.Bool(true),
			Message: swag.String(fmt.Sprintf("Monitoring started for %d chains from %s", len(s.Monitor.Running()), startPoint)),
		})
	}
}
