package monitoring

import (
	"fmt"
	"net/http"

	"github.com/go-openapi/swag"
	"github.com/labstack/echo/v4"
	"github/chapool/go-custody/internal/api"
	"github/chapool/go-custody/internal/types"
	"github/chapool/go-custody/internal/util"
)

func PostSetStartBlockRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Admin.POST("/set-start-block", postSetStartBlockHandler(s))
}

func postSetStartBlockHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var body types.PostSetStartBlockPayload
		if err := util.BindAndValidateBody(c, &body); err != nil {
			return err
		}

		pair, err := knownPair(ctx, s, *body.Chain, *body.Network)
		if err != nil {
			return err
		}

		if err := s.Monitor.SetStartHeight(ctx, pair, *body.StartBlock); err != nil {
			return api.HTTPError(err)
		}

		util.LogFromContext(ctx).Info().Str("blockchain", pair.Blockchain).Str("network", pair.Network).Int64("height", *body.StartBlock).Msg("Start height set")

		return util.ValidateAndReturn(c, http.StatusOK, &types.MonitoringActionResponse{
			Success: swag.Bool(true),
			Message: swag.String(fmt.Sprintf("Start block of %s set to %d", pair, *body.StartBlock)),
		})
	}
}
