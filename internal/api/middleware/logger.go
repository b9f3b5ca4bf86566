package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github/chapool/go-custody/internal/util"
)

// Logger attaches a request scoped logger carrying the request id to the request
// context and logs every finished request at level. Handlers opt out through util.DisableLogger.
func Logger(level zerolog.Level) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()

			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = res.Header().Get(echo.HeaderXRequestID)
			}

			l := log.With().Str("request_id", id).Logger()
			ctx := l.WithContext(req.Context())
			if id != "" {
				ctx = util.WithRequestID(ctx, id)
			}
			c.SetRequest(req.WithContext(ctx))

			start := time.Now()
			err := next(c)
			if err != nil {
				// lets the error handler write the final status before we log it
				c.Error(err)
			}

			if util.ShouldDisableLogger(c.Request().Context()) {
				return nil
			}

			util.LogFromContext(ctx).WithLevel(level).
				Str("method", req.Method).
				Str("path", c.Path()).
				Str("uri", req.RequestURI).
				Int("status", res.Status).
				Int64("bytes_out", res.Size).
				Dur("duration", time.Since(start)).
				Msg("Request handled")

			return nil
		}
	}
}
