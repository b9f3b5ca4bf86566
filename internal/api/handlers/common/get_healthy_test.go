package common_test

import (
	"errors"
	"net/http"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-custody/internal/api"
	"github/chapool/go-custody/internal/test"
	"github/chapool/go-custody/internal/wallet/deposit"
)

func TestGetHealthyRequiresSecret(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		res := test.PerformRequest(t, s, "GET", "/-/healthy", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, res.Result().StatusCode)

		res = test.PerformRequest(t, s, "GET", "/-/healthy?mgmt-secret=wrong", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, res.Result().StatusCode)
	})
}

func TestGetHealthy(t *testing.T) {
	test.WithTestServerFixture(t, func(s *api.Server, f *test.ServerFixture) {
		require.NoError(t, s.Monitor.StartChain(t.Context(), test.BSCTestnet, deposit.StartCurrent, nil))

		f.Mock.ExpectPing()
		f.Mock.ExpectQuery(regexp.QuoteMeta("SELECT 1;")).WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

		res := test.PerformRequest(t, s, "GET", "/-/healthy?mgmt-secret="+test.TestMgmtSecret, nil, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		body := res.Body.String()
		assert.Contains(t, body, "Ready: true.")
		assert.Contains(t, body, "Ping database:")
		assert.Contains(t, body, "Query database:")
		assert.Contains(t, body, "Vault unlocked: true.")
		assert.Contains(t, body, "Monitoring bsc_testnet.")
		require.NoError(t, f.Mock.ExpectationsWereMet())
	})
}

func TestGetHealthyQueryFails(t *testing.T) {
	test.WithTestServerFixture(t, func(s *api.Server, f *test.ServerFixture) {
		f.Mock.ExpectPing()
		f.Mock.ExpectQuery(regexp.QuoteMeta("SELECT 1;")).WillReturnError(errors.New("too many connections"))

		res := test.PerformRequest(t, s, "GET", "/-/healthy?mgmt-secret="+test.TestMgmtSecret, nil, nil)
		require.Equal(t, 521, res.Result().StatusCode)
		assert.Contains(t, res.Body.String(), "Query database: failed.")
	})
}

func TestGetMetrics(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		res := test.PerformRequest(t, s, "GET", "/metrics", nil, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)
		assert.Contains(t, res.Body.String(), "go_goroutines")
	})
}
