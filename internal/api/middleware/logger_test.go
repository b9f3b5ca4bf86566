package middleware_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github/chapool/go-custody/internal/api/httperrors"
	"github/chapool/go-custody/internal/api/middleware"
	"github/chapool/go-custody/internal/util"
)

func TestLoggerAttachesRequestID(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = httperrors.HTTPErrorHandler
	e.Use(echomiddleware.RequestID(), middleware.Logger(zerolog.DebugLevel))

	var seen string
	e.GET("/ok", func(c echo.Context) error {
		seen, _ = util.RequestIDFromContext(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	})
	e.GET("/fail", func(echo.Context) error {
		return httperrors.ErrBadRequestInvalidPair
	})

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "req-1", seen)

	// errors are rendered once, by the logger
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestLoggerSkipsDisabledRequests(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	e := echo.New()
	e.Use(middleware.Logger(zerolog.InfoLevel))
	e.GET("/quiet", func(c echo.Context) error {
		c.SetRequest(c.Request().WithContext(util.DisableLogger(c.Request().Context(), true)))
		return c.NoContent(http.StatusOK)
	})
	e.GET("/loud", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/quiet", nil))
	assert.Empty(t, buf.String())

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/loud", nil))
	assert.Contains(t, buf.String(), "Request handled")
	assert.Contains(t, buf.String(), `"path":"/loud"`)
}
