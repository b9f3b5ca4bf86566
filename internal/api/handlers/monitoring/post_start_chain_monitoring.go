package monitoring

import (
	"net/http"

	"github.com/go-openapi/swag"
	"github.com/labstack/echo/v4"
	"github/chapool/go-custody/internal/api"
	"github/chapool/go-custody/internal/types"
	"github/chapool/go-custody/internal/util"
	"github/chapool/go-custody/internal/wallet/deposit"
)

func PostStartChainMonitoringRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Admin.POST("/start-chain-monitoring", postStartChainMonitoringHandler(s))
}

// An explicit startBlock is stored as the pair's start height before the detector starts,
// which is rejected while the pair is already running.
func postStartChainMonitoringHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var body types.PostChainMonitoringPayload
		if err := util.BindAndValidateBody(c, &body); err != nil {
			return err
		}

		startPoint, err := deposit.ParseStartPoint(body.StartPoint)
		if err != nil {
			return api.HTTPError(err)
		}

		pair, err := knownPair(ctx, s, *body.Chain, *body.Network)
		if err != nil {
			return err
		}

		if err := s.Monitor.StartChain(ctx, pair, startPoint, body.StartBlock); err != nil {
			util.LogFromContext(ctx).Warn().Err(err).Str("blockchain", pair.Blockchain).Str("network", pair.Network).Msg("Failed to start chain monitoring")
			return api.HTTPError(err)
		}

		return util.ValidateAndReturn(c, http.StatusOK, &types.MonitoringActionResponse{
			Success: swag.Bool(true),
			Message: swag.String("Monitoring started for " + pair.String()),
		})
	}
}
