package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-custody/internal/api/httperrors"
	"github/chapool/go-custody/internal/api/middleware"
	"github/chapool/go-custody/internal/auth"
)

func serveWithToken(t *testing.T, expected string, header http.Header) (*httptest.ResponseRecorder, *auth.Principal) {
	t.Helper()

	e := echo.New()
	e.HTTPErrorHandler = httperrors.HTTPErrorHandler

	var principal *auth.Principal
	e.GET("/admin", func(c echo.Context) error {
		principal = auth.PrincipalFromContext(c.Request().Context())
		require.NotNil(t, principal)
		return c.NoContent(http.StatusNoContent)
	}, middleware.AdminToken(expected))

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	return rec, principal
}

func TestAdminToken(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		header   http.Header
		code     int
	}{
		{"bearer", "s3cret", http.Header{"Authorization": []string{"Bearer s3cret"}}, http.StatusNoContent},
		{"header", "s3cret", http.Header{"X-Admin-Token": []string{"s3cret"}}, http.StatusNoContent},
		{"missing", "s3cret", nil, http.StatusUnauthorized},
		{"wrong", "s3cret", http.Header{"Authorization": []string{"Bearer nope"}}, http.StatusUnauthorized},
		{"basic auth", "s3cret", http.Header{"Authorization": []string{"Basic czNjcmV0"}}, http.StatusUnauthorized},
		{"not configured", "", http.Header{"X-Admin-Token": []string{""}}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, principal := serveWithToken(t, tt.expected, tt.header)
			assert.Equal(t, tt.code, rec.Code)

			if tt.code == http.StatusNoContent {
				require.NotNil(t, principal)
				assert.True(t, principal.Role.IsAdmin())
				assert.Len(t, principal.TokenFingerprint, 8)
			} else {
				assert.Nil(t, principal)
			}
		})
	}
}
