package util

import (
	"context"
	"net/http"
	"strconv"

	oerrors "github.com/go-openapi/errors"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/swag"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github/chapool/go-custody/internal/api/httperrors"
	"github/chapool/go-custody/internal/types"
)

// Validatable is implemented by every payload in internal/types.
type Validatable interface {
	Validate(formats strfmt.Registry) error
}

// BindAndValidateBody binds the request body into v and validates it.
func BindAndValidateBody(c echo.Context, v Validatable) error {
	binder, ok := c.Echo().Binder.(*echo.DefaultBinder)
	if !ok {
		binder = &echo.DefaultBinder{}
	}

	if err := binder.BindBody(c, v); err != nil {
		LogFromEchoContext(c).Debug().Err(err).Msg("Failed to bind request body")
		return httperrors.NewHTTPError(http.StatusBadRequest, types.PublicHTTPErrorTypeGeneric, "Malformed request body.")
	}

	return validatePayload(c, v)
}

// ValidateAndReturn validates the response payload before sending it with the given status code.
func ValidateAndReturn(c echo.Context, code int, v Validatable) error {
	if err := v.Validate(strfmt.Default); err != nil {
		var compositeError *oerrors.CompositeError
		if errors.As(err, &compositeError) {
			LogFromEchoContext(c).Debug().Errs("validation_errors", compositeError.Errors).Msg("Response did not match schema")
		} else {
			LogFromEchoContext(c).Debug().Err(err).Msg("Failed to validate response payload")
		}
		return httperrors.NewHTTPError(http.StatusInternalServerError, types.PublicHTTPErrorTypeGeneric, http.StatusText(http.StatusInternalServerError))
	}

	return c.JSON(code, v)
}

// ParseOffsetLimit reads the offset/limit query params clamped to [1, maxLimit].
func ParseOffsetLimit(c echo.Context, defaultLimit int, maxLimit int) (int, int) {
	offset := 0
	if offsetStr := c.QueryParam("offset"); offsetStr != "" {
		if offsetInt, err := strconv.Atoi(offsetStr); err == nil && offsetInt >= 0 {
			offset = offsetInt
		}
	}

	limit := defaultLimit
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if limitInt, err := strconv.Atoi(limitStr); err == nil {
			switch {
			case limitInt > maxLimit:
				limit = maxLimit
			case limitInt < 1:
				limit = 1
			default:
				limit = limitInt
			}
		}
	}

	return offset, limit
}

func validatePayload(c echo.Context, v Validatable) error {
	if err := v.Validate(strfmt.Default); err != nil {
		var compositeError *oerrors.CompositeError
		if errors.As(err, &compositeError) {
			LogFromEchoContext(c).Debug().Errs("validation_errors", compositeError.Errors).Msg("Payload did not match schema, returning HTTP validation error")

			valErrs := formatValidationErrors(c.Request().Context(), compositeError)

			return httperrors.NewHTTPValidationError(http.StatusBadRequest, types.PublicHTTPErrorTypeGeneric, http.StatusText(http.StatusBadRequest), valErrs)
		}

		LogFromEchoContext(c).Debug().Err(err).Msg("Failed to validate payload, returning generic HTTP error")
		return httperrors.NewHTTPError(http.StatusBadRequest, types.PublicHTTPErrorTypeGeneric, http.StatusText(http.StatusBadRequest))
	}

	return nil
}

func formatValidationErrors(ctx context.Context, err *oerrors.CompositeError) []*types.HTTPValidationErrorDetail {
	valErrs := make([]*types.HTTPValidationErrorDetail, 0, len(err.Errors))
	for _, e := range err.Errors {
		switch ee := e.(type) {
		case *oerrors.Validation:
			valErrs = append(valErrs, &types.HTTPValidationErrorDetail{
				Key:   swag.String(ee.Name),
				In:    swag.String(ee.In),
				Error: swag.String(ee.Error()),
			})
		case *oerrors.CompositeError:
			valErrs = append(valErrs, formatValidationErrors(ctx, ee)...)
		default:
			LogFromContext(ctx).Warn().Err(e).Msg("Received unknown error type while validating payload, skipping")
		}
	}

	return valErrs
}
