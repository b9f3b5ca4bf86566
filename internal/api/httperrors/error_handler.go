package httperrors

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github/chapool/go-custody/internal/types"
)

// HTTPErrorHandler renders HTTPError, HTTPValidationError and echo errors as JSON.
// Anything else is reported as an internal server error without leaking details.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	var body interface{}

	var httpErr *HTTPError
	var valErr *HTTPValidationError
	var echoErr *echo.HTTPError

	switch {
	case errors.As(err, &httpErr):
		code = int(*httpErr.Code)
		body = httpErr
	case errors.As(err, &valErr):
		code = int(*valErr.Code)
		body = valErr
	case errors.As(err, &echoErr):
		code = echoErr.Code
		body = NewFromEcho(echoErr)
	default:
		body = NewHTTPError(code, types.PublicHTTPErrorTypeGeneric, http.StatusText(code))
	}

	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("Request failed with internal error")
	}

	var sendErr error
	if c.Request().Method == http.MethodHead {
		sendErr = c.NoContent(code)
	} else {
		sendErr = c.JSON(code, body)
	}
	if sendErr != nil {
		log.Error().Err(sendErr).Msg("Failed to send error response")
	}
}
