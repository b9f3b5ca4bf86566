package monitoring_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-custody/internal/api"
	"github/chapool/go-custody/internal/test"
	"github/chapool/go-custody/internal/types"
	"github/chapool/go-custody/internal/wallet/chain"
	"github/chapool/go-custody/internal/wallet/cursor"
)

func TestMonitoringRequiresAdminToken(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		res := test.PerformRequest(t, s, "GET", "/api/v1/admin/monitoring-status", nil, nil)
		require.Equal(t, http.StatusUnauthorized, res.Result().StatusCode)

		res = test.PerformRequest(t, s, "GET", "/api/v1/admin/monitoring-status", nil, http.Header{"X-Admin-Token": []string{"nope"}})
		require.Equal(t, http.StatusUnauthorized, res.Result().StatusCode)

		res = test.PerformRequest(t, s, "GET", "/api/v1/admin/monitoring-status", nil, http.Header{"X-Admin-Token": []string{test.TestAdminToken}})
		require.Equal(t, http.StatusOK, res.Result().StatusCode)
	})
}

func TestStartAndStopMonitoring(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		headers := test.HeadersWithAdminToken(t)

		res := test.PerformRequest(t, s, "POST", "/api/v1/admin/start-monitoring", test.GenericPayload{"startPoint": "current"}, headers)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		var action types.MonitoringActionResponse
		test.ParseResponseAndValidate(t, res, &action)
		assert.True(t, *action.Success)
		assert.Equal(t, "Monitoring started for 2 chains from current", *action.Message)

		// the inactive pair is never started
		assert.Equal(t, []chain.Pair{test.BSCTestnet, test.ETHSepolia}, s.Monitor.Running())

		res = test.PerformRequest(t, s, "GET", "/api/v1/admin/monitoring-status", nil, headers)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		var status types.MonitoringStatusResponse
		test.ParseResponseAndValidate(t, res, &status)
		assert.True(t, *status.IsMonitoring)
		assert.Equal(t, map[string]bool{"bsc_testnet": true, "eth_sepolia": true}, status.Chains)

		res = test.PerformRequest(t, s, "POST", "/api/v1/admin/stop-monitoring", nil, headers)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)
		assert.Empty(t, s.Monitor.Running())

		res = test.PerformRequest(t, s, "GET", "/api/v1/admin/monitoring-status", nil, headers)
		test.ParseResponseAndValidate(t, res, &status)
		assert.False(t, *status.IsMonitoring)
		assert.Equal(t, map[string]bool{"bsc_testnet": false, "eth_sepolia": false}, status.Chains)
	})
}

func TestStartMonitoringInvalidStartPoint(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		res := test.PerformRequest(t, s, "POST", "/api/v1/admin/start-monitoring", test.GenericPayload{"startPoint": "genesis"}, test.HeadersWithAdminToken(t))
		require.Equal(t, http.StatusBadRequest, res.Result().StatusCode)
		assert.Empty(t, s.Monitor.Running())
	})
}

func TestStartChainMonitoring(t *testing.T) {
	test.WithTestServerFixture(t, func(s *api.Server, f *test.ServerFixture) {
		headers := test.HeadersWithAdminToken(t)

		res := test.PerformRequest(t, s, "POST", "/api/v1/admin/start-chain-monitoring", test.GenericPayload{
			"chain":      "BSC",
			"network":    "testnet",
			"startBlock": 95,
		}, headers)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)
		assert.True(t, s.Monitor.IsRunning(test.BSCTestnet))

		require.Eventually(t, func() bool {
			cur, err := f.Cursors.Get(t.Context(), test.BSCTestnet)
			return err == nil && cur.LastProcessedHeight == 100
		}, time.Second, 5*time.Millisecond)

		cur, err := f.Cursors.Get(t.Context(), test.BSCTestnet)
		require.NoError(t, err)
		assert.Equal(t, int64(95), cur.StartHeight)

		// an explicit start block while running is rejected
		res = test.PerformRequest(t, s, "POST", "/api/v1/admin/start-chain-monitoring", test.GenericPayload{
			"chain":      "bsc",
			"network":    "testnet",
			"startBlock": 10,
		}, headers)
		require.Equal(t, http.StatusConflict, res.Result().StatusCode)

		// without one it is a no-op
		res = test.PerformRequest(t, s, "POST", "/api/v1/admin/start-chain-monitoring", test.GenericPayload{
			"chain":   "bsc",
			"network": "testnet",
		}, headers)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		res = test.PerformRequest(t, s, "POST", "/api/v1/admin/stop-chain-monitoring", test.GenericPayload{
			"chain":   "bsc",
			"network": "testnet",
		}, headers)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		var action types.MonitoringActionResponse
		test.ParseResponseAndValidate(t, res, &action)
		assert.Equal(t, "Monitoring stopped for bsc_testnet", *action.Message)
		assert.False(t, s.Monitor.IsRunning(test.BSCTestnet))

		res = test.PerformRequest(t, s, "POST", "/api/v1/admin/stop-chain-monitoring", test.GenericPayload{
			"chain":   "bsc",
			"network": "testnet",
		}, headers)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)
		test.ParseResponseAndValidate(t, res, &action)
		assert.Equal(t, "Monitoring was not running for bsc_testnet", *action.Message)
	})
}

func TestStartChainMonitoringErrors(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		headers := test.HeadersWithAdminToken(t)

		res := test.PerformRequest(t, s, "POST", "/api/v1/admin/start-chain-monitoring", test.GenericPayload{"chain": "doge", "network": "mainnet"}, headers)
		assert.Equal(t, http.StatusBadRequest, res.Result().StatusCode)

		res = test.PerformRequest(t, s, "POST", "/api/v1/admin/start-chain-monitoring", test.GenericPayload{"chain": "polygon", "network": "amoy"}, headers)
		assert.Equal(t, http.StatusConflict, res.Result().StatusCode)

		res = test.PerformRequest(t, s, "POST", "/api/v1/admin/start-chain-monitoring", test.GenericPayload{"network": "testnet"}, headers)
		assert.Equal(t, http.StatusBadRequest, res.Result().StatusCode)

		res = test.PerformRequest(t, s, "POST", "/api/v1/admin/start-chain-monitoring", test.GenericPayload{"chain": "bsc", "network": "testnet", "startBlock": -1}, headers)
		assert.Equal(t, http.StatusBadRequest, res.Result().StatusCode)

		assert.Empty(t, s.Monitor.Running())
	})
}

func TestSetStartBlock(t *testing.T) {
	test.WithTestServerFixture(t, func(s *api.Server, f *test.ServerFixture) {
		headers := test.HeadersWithAdminToken(t)
		f.Cursors.Put(&cursor.Cursor{Blockchain: "eth", Network: "sepolia", StartHeight: 10, LastProcessedHeight: 1500})

		res := test.PerformRequest(t, s, "POST", "/api/v1/admin/set-start-block", test.GenericPayload{
			"chain":      "eth",
			"network":    "sepolia",
			"startBlock": 1200,
		}, headers)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		cur, err := f.Cursors.Get(t.Context(), test.ETHSepolia)
		require.NoError(t, err)
		assert.Equal(t, int64(1200), cur.StartHeight)
		assert.Equal(t, int64(1500), cur.LastProcessedHeight)

		res = test.PerformRequest(t, s, "POST", "/api/v1/admin/set-start-block", test.GenericPayload{"chain": "eth", "network": "sepolia"}, headers)
		assert.Equal(t, http.StatusBadRequest, res.Result().StatusCode)
	})
}

func TestSetStartBlockWhileRunning(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		headers := test.HeadersWithAdminToken(t)

		res := test.PerformRequest(t, s, "POST", "/api/v1/admin/start-chain-monitoring", test.GenericPayload{"chain": "bsc", "network": "testnet"}, headers)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		res = test.PerformRequest(t, s, "POST", "/api/v1/admin/set-start-block", test.GenericPayload{
			"chain":      "bsc",
			"network":    "testnet",
			"startBlock": 50,
		}, headers)
		require.Equal(t, http.StatusConflict, res.Result().StatusCode)
	})
}

func TestGetChainBlocks(t *testing.T) {
	test.WithTestServerFixture(t, func(s *api.Server, f *test.ServerFixture) {
		f.Cursors.Put(&cursor.Cursor{Blockchain: "bsc", Network: "testnet", StartHeight: 50, LastProcessedHeight: 90})
		f.Cursors.Put(&cursor.Cursor{Blockchain: "polygon", Network: "amoy", StartHeight: 0, LastProcessedHeight: 0})
		f.Nodes[test.ETHSepolia].SetHeadError(chain.ErrChainUnavailable)

		res := test.PerformRequest(t, s, "GET", "/api/v1/admin/chain-blocks", nil, test.HeadersWithAdminToken(t))
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		var blocks types.ChainBlocksResponse
		test.ParseResponseAndValidate(t, res, &blocks)

		require.NotNil(t, blocks.CurrentBlocks["bsc_testnet"])
		assert.Equal(t, int64(100), *blocks.CurrentBlocks["bsc_testnet"])
		assert.Nil(t, blocks.CurrentBlocks["polygon_amoy"], "inactive pairs have no live head")
		assert.NotContains(t, blocks.CurrentBlocks, "eth_sepolia", "no cursor and no head")

		assert.Equal(t, int64(50), blocks.SavedBlocks["bsc_testnet"])
		assert.Equal(t, int64(90), blocks.LastProcessedBlocks["bsc_testnet"])
	})
}

func TestGetChainStatus(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		headers := test.HeadersWithAdminToken(t)

		res := test.PerformRequest(t, s, "POST", "/api/v1/admin/start-chain-monitoring", test.GenericPayload{"chain": "bsc", "network": "testnet", "startPoint": "current"}, headers)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		require.Eventually(t, func() bool {
			res := test.PerformRequest(t, s, "GET", "/api/v1/admin/chain-status", nil, headers)
			var st types.ChainStatusResponse
			test.ParseResponseAndValidate(t, res, &st)

			for _, c := range st.Chains {
				if *c.Key == "bsc_testnet" {
					return *c.Running && *c.State == "running" && c.LastHeight != nil && *c.LastHeight == 100
				}
			}
			return false
		}, time.Second, 5*time.Millisecond)

		res = test.PerformRequest(t, s, "GET", "/api/v1/admin/chain-status", nil, headers)
		var st types.ChainStatusResponse
		test.ParseResponseAndValidate(t, res, &st)

		require.Len(t, st.Chains, 3)
		assert.Equal(t, "eth_sepolia", *st.Chains[1].Key)
		assert.False(t, *st.Chains[1].Running)
		assert.Equal(t, "stopped", *st.Chains[1].State)
		assert.Nil(t, st.Chains[1].LastHeight)
	})
}
