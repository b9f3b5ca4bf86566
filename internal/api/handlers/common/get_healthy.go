package common

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github/chapool/go-custody/internal/api"
	"github/chapool/go-custody/internal/util"
)

func GetHealthyRoute(s *api.Server) *echo.Route {
	return s.Router.Management.GET("/healthy", getHealthyHandler(s))
}

// Health check
// Returns an human readable string about the current service status.
// In addition to readiness probes, it performs actual write probes.
// Note that /-/healthy is private (shielded by the mgmt-secret) as it may expose sensitive information about your service.
func getHealthyHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		secret := c.QueryParam("mgmt-secret")
		if subtle.ConstantTimeCompare([]byte(secret), []byte(s.Config.Management.Secret)) != 1 {
			util.LogFromEchoContext(c).Warn().Msg("Health probe with invalid management secret")
			return echo.ErrUnauthorized
		}

		var b strings.Builder
		status := http.StatusOK

		if !s.Ready() {
			b.WriteString("Ready: false.\n")
			return c.String(StatusNotReady, b.String())
		}
		b.WriteString("Ready: true.\n")

		ctx, cancel := context.WithTimeout(c.Request().Context(), s.Config.Management.LivenessTimeout)
		defer cancel()

		res, err := ProbeLiveness(ctx, s.DB, s.Config.Management.ProbeWriteablePathsAbs)
		for _, line := range res {
			b.WriteString(line + "\n")
		}
		if err != nil {
			util.LogFromEchoContext(c).Warn().Err(err).Msg("Health probe failed")
			status = StatusNotReady
		}

		fmt.Fprintf(&b, "Vault unlocked: %t.\n", s.Vault.IsUnlocked())
		for _, pair := range s.Monitor.Running() {
			fmt.Fprintf(&b, "Monitoring %s.\n", pair)
		}

		return c.String(status, b.String())
	}
}
