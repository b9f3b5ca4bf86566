package admin

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github/chapool/go-custody/internal/api"
	"github/chapool/go-custody/internal/types"
	"github/chapool/go-custody/internal/util"
	"github/chapool/go-custody/internal/wallet"
	"github/chapool/go-custody/internal/wallet/chain"
	"github/chapool/go-custody/internal/wallet/registry"
)

// The admin and gas tank wallet endpoints only differ in the registry they use.

func listPoolWalletsHandler(reg registry.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		wallets, err := reg.List(c.Request().Context())
		if err != nil {
			return api.HTTPError(err)
		}

		res := &types.GetPoolWalletsResponse{Wallets: make([]*types.PoolWallet, 0, len(wallets))}
		for _, w := range wallets {
			res.Wallets = append(res.Wallets, poolWallet(w))
		}

		return util.ValidateAndReturn(c, http.StatusOK, res)
	}
}

func scanPoolWalletsHandler(reg registry.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		missing, err := reg.ScanMissing(c.Request().Context())
		if err != nil {
			return api.HTTPError(err)
		}

		res := &types.MissingPoolWalletsResponse{Missing: make([]*types.ChainPair, 0, len(missing))}
		for _, p := range missing {
			res.Missing = append(res.Missing, chainPair(p))
		}

		return util.ValidateAndReturn(c, http.StatusOK, res)
	}
}

// createPoolWalletHandler creates a wallet in the registry named by the payload type,
// defaulting to the registry of the endpoint.
func createPoolWalletHandler(s *api.Server, kind wallet.OwnerKind) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var body types.PostPoolWalletPayload
		if err := util.BindAndValidateBody(c, &body); err != nil {
			return err
		}

		if body.Type != "" {
			kind = wallet.OwnerKind(body.Type)
		}

		var reg registry.Service = s.Admin
		if kind == wallet.OwnerGasTank {
			reg = s.GasTank
		}

		pair := chain.NewPair(strings.ToLower(*body.Blockchain), strings.ToLower(*body.Network))

		w, err := reg.CreateWallet(ctx, pair)
		if err != nil {
			util.LogFromContext(ctx).Warn().Err(err).Str("kind", string(kind)).Str("blockchain", pair.Blockchain).Str("network", pair.Network).Msg("Failed to create pool wallet")
			return api.HTTPError(err)
		}

		util.LogFromContext(ctx).Info().Str("wallet_id", w.ID).Str("kind", string(kind)).Str("address", w.Address).Msg("Pool wallet created")

		return util.ValidateAndReturn(c, http.StatusCreated, poolWallet(w))
	}
}
