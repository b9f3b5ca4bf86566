package common

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github/chapool/go-custody/internal/api"
	"github/chapool/go-custody/internal/util"
)

// StatusNotReady is what load balancers see while a component is missing or the database is unreachable.
const StatusNotReady = 521

func GetReadyRoute(s *api.Server) *echo.Route {
	return s.Router.Management.GET("/ready", getReadyHandler(s))
}

// Readiness check
// This endpoint returns 200 when our Service is ready to serve traffic (i.e. respond to queries).
// Does read-only probes apart from the general server ready state.
// Note that /-/ready is typically public (and not shielded by a mgmt-secret), we thus prevent information leakage here and only return `"Ready."`.
func getReadyHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		// polled every few seconds, failures are still logged below
		c.SetRequest(c.Request().WithContext(util.DisableLogger(c.Request().Context(), true)))

		if !s.Ready() {
			util.LogFromEchoContext(c).Warn().Msg("Readiness probe failed, server is not fully initialized")
			return c.String(StatusNotReady, "Not ready.")
		}

		ctx, cancel := context.WithTimeout(c.Request().Context(), s.Config.Management.ReadinessTimeout)
		defer cancel()

		if _, err := ProbeReadiness(ctx, s.DB, s.Config.Management.ProbeWriteablePathsAbs); err != nil {
			util.LogFromEchoContext(c).Warn().Err(err).Msg("Readiness probe failed")
			return c.String(StatusNotReady, "Not ready.")
		}

		return c.String(http.StatusOK, "Ready.")
	}
}
