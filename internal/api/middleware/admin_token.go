package middleware

import (
	"github.com/labstack/echo/v4"
	"github/chapool/go-custody/internal/api/httperrors"
	"github/chapool/go-custody/internal/auth"
	"github/chapool/go-custody/internal/util"
)

// AdminTokenHeader may carry the token instead of "Authorization: Bearer <token>".
const AdminTokenHeader = "X-Admin-Token"

// AdminToken rejects requests that do not present the configured admin token.
// An empty configured token locks the admin surface.
func AdminToken(expected string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := auth.TokenFromHeader(c.Request().Header.Get(echo.HeaderAuthorization))
			if token == "" {
				token = c.Request().Header.Get(AdminTokenHeader)
			}

			principal, err := auth.VerifyAdminToken(expected, token)
			if err != nil {
				util.LogFromEchoContext(c).Debug().Err(err).Str("path", c.Path()).Msg("Admin token rejected")
				return httperrors.ErrUnauthorizedAdminToken
			}

			ctx := auth.WithPrincipal(c.Request().Context(), principal)
			l := util.LogFromContext(ctx).With().Str("admin_token", principal.TokenFingerprint).Logger()
			c.SetRequest(c.Request().WithContext(l.WithContext(ctx)))

			return next(c)
		}
	}
}
