package monitoring

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github/chapool/go-custody/internal/api"
	"github/chapool/go-custody/internal/types"
	"github/chapool/go-custody/internal/util"
)

func GetChainBlocksRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Admin.GET("/chain-blocks", getChainBlocksHandler(s))
}

// Pairs whose node is unreachable report a null current block.
func getChainBlocksHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		blocks, err := s.Monitor.Blocks(c.Request().Context())
		if err != nil {
			return api.HTTPError(err)
		}

		res := &types.ChainBlocksResponse{
			CurrentBlocks:       make(map[string]*int64, len(blocks.SavedBlocks)),
			SavedBlocks:         blocks.SavedBlocks,
			LastProcessedBlocks: blocks.LastProcessedBlocks,
		}

		for key := range blocks.SavedBlocks {
			res.CurrentBlocks[key] = nil
		}
		for key, h := range blocks.CurrentBlocks {
			res.CurrentBlocks[key] = &h
		}

		return util.ValidateAndReturn(c, http.StatusOK, res)
	}
}
