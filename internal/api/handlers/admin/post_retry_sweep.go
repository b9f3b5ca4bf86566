package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github/chapool/go-custody/internal/api"
	"github/chapool/go-custody/internal/types"
	"github/chapool/go-custody/internal/util"
	"github/chapool/go-custody/internal/wallet/sweep"
)

func PostRetrySweepRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Admin.POST("/sweep-transactions/:id/retry", postRetrySweepHandler(s))
}

// postRetrySweepHandler inserts a new attempt and answers with it while it executes in the background.
func postRetrySweepHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		id := c.Param("id")

		var body types.PostRetrySweepPayload
		if err := util.BindAndValidateBody(c, &body); err != nil {
			return err
		}

		option, err := sweep.ParseFeeOption(*body.FeeOption)
		if err != nil {
			return api.HTTPError(err)
		}

		row, err := s.Sweeps.Retry(ctx, id, option)
		if err != nil {
			util.LogFromContext(ctx).Info().Err(err).Str("sweep_id", id).Msg("Sweep retry rejected")
			return api.HTTPError(err)
		}

		token := newTokenCache(s.Catalog).get(ctx, row.TokenID)

		return util.ValidateAndReturn(c, http.StatusAccepted, sweepTransaction(row, token))
	}
}
