package admin

import (
	"net/http"
	"strings"

	"github.com/go-openapi/swag"
	"github.com/labstack/echo/v4"
	"github/chapool/go-custody/internal/api"
	"github/chapool/go-custody/internal/api/httperrors"
	"github/chapool/go-custody/internal/types"
	"github/chapool/go-custody/internal/util"
	"github/chapool/go-custody/internal/wallet"
	"github/chapool/go-custody/internal/wallet/sweep"
)

const (
	defaultSweepPageSize = 20
	maxSweepPageSize     = 100
)

func GetSweepTransactionsRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Admin.GET("/sweep-transactions", getSweepTransactionsHandler(s))
}

// getSweepTransactionsHandler lists sweep attempts, newest first.
// Query params: offset, limit, status, search (tx hash, sweep id or deposit id).
func getSweepTransactionsHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		offset, limit := util.ParseOffsetLimit(c, defaultSweepPageSize, maxSweepPageSize)

		filter := sweep.Filter{
			Offset: offset,
			Limit:  limit,
			Search: strings.TrimSpace(c.QueryParam("search")),
		}

		if status := strings.ToLower(strings.TrimSpace(c.QueryParam("status"))); status != "" {
			switch st := wallet.SweepStatus(status); st {
			case wallet.SweepPending, wallet.SweepCompleted, wallet.SweepFailed, wallet.SweepSkipped:
				filter.Status = st
			default:
				return httperrors.NewHTTPErrorWithDetail(http.StatusBadRequest, types.PublicHTTPErrorTypeGeneric, "Invalid status filter.", status)
			}
		}

		rows, total, err := s.Sweeps.List(ctx, filter)
		if err != nil {
			return api.HTTPError(err)
		}

		tokens := newTokenCache(s.Catalog)
		res := &types.GetSweepTransactionsResponse{
			Items:  make([]*types.SweepTransaction, 0, len(rows)),
			Total:  swag.Int64(total),
			Offset: swag.Int64(int64(offset)),
			Limit:  swag.Int64(int64(limit)),
		}
		for _, row := range rows {
			res.Items = append(res.Items, sweepTransaction(row, tokens.get(ctx, row.TokenID)))
		}

		return util.ValidateAndReturn(c, http.StatusOK, res)
	}
}
