package monitoring

import (
	"net/http"

	"github.com/go-openapi/swag"
	"github.com/labstack/echo/v4"
	"github/chapool/go-custody/internal/api"
	"github/chapool/go-custody/internal/types"
	"github/chapool/go-custody/internal/util"
)

func GetChainStatusRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Admin.GET("/chain-status", getChainStatusHandler(s))
}

func getChainStatusHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		statuses, err := s.Monitor.Status(c.Request().Context())
		if err != nil {
			return api.HTTPError(err)
		}

		res := &types.ChainStatusResponse{
			Chains: make([]*types.ChainStatus, 0, len(statuses)),
		}

		for _, st := range statuses {
			cs := &types.ChainStatus{
				Key:        swag.String(st.Pair.String()),
				Blockchain: swag.String(st.Pair.Blockchain),
				Network:    swag.String(st.Pair.Network),
				Running:    swag.Bool(s.Monitor.IsRunning(st.Pair)),
				State:      swag.String(string(st.State)),
				LastError:  st.LastError,
			}
			if st.LastHead > 0 {
				cs.LastHeight = swag.Int64(st.LastHead)
			}
			res.Chains = append(res.Chains, cs)
		}

		return util.ValidateAndReturn(c, http.StatusOK, res)
	}
}
