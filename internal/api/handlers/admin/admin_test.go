package admin_test

import (
	"math/big"
	"net/http"
	"testing"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-custody/internal/api"
	"github/chapool/go-custody/internal/test"
	"github/chapool/go-custody/internal/types"
	"github/chapool/go-custody/internal/wallet"
	"github/chapool/go-custody/internal/wallet/chain"
)

func createPoolWallet(t *testing.T, s *api.Server, path string, blockchain string, network string) *types.PoolWallet {
	t.Helper()

	res := test.PerformRequest(t, s, "POST", path, test.GenericPayload{
		"blockchain": blockchain,
		"network":    network,
	}, test.HeadersWithAdminToken(t))
	require.Equal(t, http.StatusCreated, res.Result().StatusCode, res.Body.String())

	var w types.PoolWallet
	test.ParseResponseAndValidate(t, res, &w)
	return &w
}

func TestAdminRoutesRequireToken(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		for _, path := range []string{
			"/api/v1/admin/wallets",
			"/api/v1/admin/gas-tank-wallets",
			"/api/v1/admin/sweep-transactions",
		} {
			res := test.PerformRequest(t, s, "GET", path, nil, nil)
			assert.Equal(t, http.StatusUnauthorized, res.Result().StatusCode, path)
		}
	})
}

func TestAdminAPILockedWithoutConfiguredToken(t *testing.T) {
	cfg := test.NewTestServerConfig()
	cfg.Custody.AdminToken = ""
	s, _ := test.NewTestServer(t, cfg)

	res := test.PerformRequest(t, s, "GET", "/api/v1/admin/wallets", nil, http.Header{"Authorization": []string{"Bearer "}})
	assert.Equal(t, http.StatusUnauthorized, res.Result().StatusCode)
}

func TestAdminWallets(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		headers := test.HeadersWithAdminToken(t)

		res := test.PerformRequest(t, s, "GET", "/api/v1/admin/wallets/scan", nil, headers)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		var missing types.MissingPoolWalletsResponse
		test.ParseResponseAndValidate(t, res, &missing)
		require.Len(t, missing.Missing, 2)
		assert.Equal(t, "bsc", *missing.Missing[0].Blockchain)
		assert.Equal(t, "eth", *missing.Missing[1].Blockchain)

		w := createPoolWallet(t, s, "/api/v1/admin/wallets", "BSC", "testnet")
		assert.Equal(t, "bsc", *w.Blockchain)
		assert.Equal(t, "admin", *w.Type)
		assert.Equal(t, "active", *w.Status)
		assert.Regexp(t, "^0x[0-9a-f]{40}$", *w.Address)

		// one active admin wallet per pair
		res = test.PerformRequest(t, s, "POST", "/api/v1/admin/wallets", test.GenericPayload{"blockchain": "bsc", "network": "testnet"}, headers)
		assert.Equal(t, http.StatusConflict, res.Result().StatusCode)

		res = test.PerformRequest(t, s, "POST", "/api/v1/admin/wallets", test.GenericPayload{"blockchain": "polygon", "network": "amoy"}, headers)
		assert.Equal(t, http.StatusConflict, res.Result().StatusCode)

		res = test.PerformRequest(t, s, "POST", "/api/v1/admin/wallets", test.GenericPayload{"blockchain": "doge", "network": "mainnet"}, headers)
		assert.Equal(t, http.StatusBadRequest, res.Result().StatusCode)

		res = test.PerformRequest(t, s, "POST", "/api/v1/admin/wallets", test.GenericPayload{"blockchain": "bsc"}, headers)
		assert.Equal(t, http.StatusBadRequest, res.Result().StatusCode)

		res = test.PerformRequest(t, s, "GET", "/api/v1/admin/wallets", nil, headers)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		var list types.GetPoolWalletsResponse
		test.ParseResponseAndValidate(t, res, &list)
		require.Len(t, list.Wallets, 1)
		assert.Equal(t, *w.ID, *list.Wallets[0].ID)

		res = test.PerformRequest(t, s, "GET", "/api/v1/admin/wallets/scan", nil, headers)
		test.ParseResponseAndValidate(t, res, &missing)
		require.Len(t, missing.Missing, 1)
		assert.Equal(t, "eth", *missing.Missing[0].Blockchain)

		// gas tanks are tracked separately
		res = test.PerformRequest(t, s, "GET", "/api/v1/admin/gas-tank-wallets", nil, headers)
		test.ParseResponseAndValidate(t, res, &list)
		assert.Empty(t, list.Wallets)
	})
}

func TestCreateWalletWithTypeOverride(t *testing.T) {
	test.WithTestServerFixture(t, func(s *api.Server, f *test.ServerFixture) {
		res := test.PerformRequest(t, s, "POST", "/api/v1/admin/wallets", test.GenericPayload{
			"blockchain": "eth",
			"network":    "sepolia",
			"type":       "gasTank",
		}, test.HeadersWithAdminToken(t))
		require.Equal(t, http.StatusCreated, res.Result().StatusCode)

		var w types.PoolWallet
		test.ParseResponseAndValidate(t, res, &w)
		assert.Equal(t, "gasTank", *w.Type)

		_, err := f.Wallets.ActivePoolWallet(t.Context(), test.ETHSepolia, wallet.OwnerGasTank)
		require.NoError(t, err)
		_, err = f.Wallets.ActivePoolWallet(t.Context(), test.ETHSepolia, wallet.OwnerAdmin)
		require.ErrorIs(t, err, wallet.ErrWalletNotFound)
	})
}

func TestGasTankBalance(t *testing.T) {
	test.WithTestServerFixture(t, func(s *api.Server, f *test.ServerFixture) {
		headers := test.HeadersWithAdminToken(t)

		tank := createPoolWallet(t, s, "/api/v1/admin/gas-tank-wallets", "bsc", "testnet")
		f.Nodes[test.BSCTestnet].SetBalance(*tank.Address, "", big.NewInt(1_500_000_000_000_000_000))

		res := test.PerformRequest(t, s, "GET", "/api/v1/admin/gas-tank-wallets/"+tank.ID.String()+"/balance", nil, headers)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		var balance types.GasTankBalanceResponse
		test.ParseResponseAndValidate(t, res, &balance)
		assert.Equal(t, *tank.ID, *balance.WalletID)
		assert.Equal(t, "BNB", balance.Symbol)
		assert.Equal(t, "1500000000000000000", *balance.Balance)
		assert.Equal(t, "1.5", *balance.BalanceDecimal)

		// admin wallets are not gas tanks
		admin := createPoolWallet(t, s, "/api/v1/admin/wallets", "bsc", "testnet")
		res = test.PerformRequest(t, s, "GET", "/api/v1/admin/gas-tank-wallets/"+admin.ID.String()+"/balance", nil, headers)
		assert.Equal(t, http.StatusNotFound, res.Result().StatusCode)

		res = test.PerformRequest(t, s, "GET", "/api/v1/admin/gas-tank-wallets/"+uuid.NewString()+"/balance", nil, headers)
		assert.Equal(t, http.StatusNotFound, res.Result().StatusCode)

		f.Nodes[test.BSCTestnet].SetBalanceError(chain.ErrChainUnavailable)
		res = test.PerformRequest(t, s, "GET", "/api/v1/admin/gas-tank-wallets/"+tank.ID.String()+"/balance", nil, headers)
		assert.Equal(t, http.StatusBadGateway, res.Result().StatusCode)
	})
}

func TestDecryptKey(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		headers := test.HeadersWithAdminToken(t)
		w := createPoolWallet(t, s, "/api/v1/admin/wallets", "bsc", "testnet")
		path := "/api/v1/admin/wallet-balances/decrypt-key/" + w.ID.String()

		res := test.PerformRequest(t, s, "POST", path, test.GenericPayload{
			"adminPassword":  test.TestAdminPassword,
			"adminSecretKey": "wrong",
		}, headers)
		require.Equal(t, http.StatusUnauthorized, res.Result().StatusCode)
		assert.NotContains(t, res.Body.String(), "privateKey")

		res = test.PerformRequest(t, s, "POST", path, test.GenericPayload{"adminPassword": test.TestAdminPassword}, headers)
		require.Equal(t, http.StatusBadRequest, res.Result().StatusCode)

		res = test.PerformRequest(t, s, "POST", path, test.GenericPayload{
			"adminPassword":  test.TestAdminPassword,
			"adminSecretKey": test.TestAdminSecretKey,
		}, headers)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)
		assert.Equal(t, "no-store", res.Header().Get("Cache-Control"))

		var reveal types.DecryptKeyResponse
		test.ParseResponseAndValidate(t, res, &reveal)
		assert.Equal(t, *w.ID, *reveal.WalletID)
		assert.Equal(t, *w.Address, *reveal.Address)
		assert.Len(t, *reveal.PrivateKey, 64)
		assert.Positive(t, *reveal.ExpiresInSeconds)
		assert.WithinDuration(t, s.Clock.Now().Add(time.Duration(*reveal.ExpiresInSeconds)*time.Second), time.Time(*reveal.ExpiresAt), time.Second)

		res = test.PerformRequest(t, s, "POST", "/api/v1/admin/wallet-balances/decrypt-key/"+uuid.NewString(), test.GenericPayload{
			"adminPassword":  test.TestAdminPassword,
			"adminSecretKey": test.TestAdminSecretKey,
		}, headers)
		assert.Equal(t, http.StatusNotFound, res.Result().StatusCode)
	})
}

func TestDecryptKeyVaultLocked(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		w := createPoolWallet(t, s, "/api/v1/admin/wallets", "bsc", "testnet")
		s.Vault.Lock()

		res := test.PerformRequest(t, s, "POST", "/api/v1/admin/wallet-balances/decrypt-key/"+w.ID.String(), test.GenericPayload{
			"adminPassword":  test.TestAdminPassword,
			"adminSecretKey": test.TestAdminSecretKey,
		}, test.HeadersWithAdminToken(t))
		assert.Equal(t, http.StatusServiceUnavailable, res.Result().StatusCode)
	})
}

// seedSweeps stores a confirmed native deposit on bsc/testnet with one sweep row per status.
func seedSweeps(t *testing.T, f *test.ServerFixture) map[wallet.SweepStatus]*wallet.SweepTransaction {
	t.Helper()

	require.NoError(t, f.Catalog.UpsertToken(t.Context(), &chain.Token{
		ID: "tok-bnb", Blockchain: "bsc", Network: "testnet", Symbol: "BNB", Decimals: 18, IsActive: true,
	}))

	rows := map[wallet.SweepStatus]*wallet.SweepTransaction{}
	for i, status := range []wallet.SweepStatus{wallet.SweepSkipped, wallet.SweepFailed, wallet.SweepCompleted, wallet.SweepPending} {
		userWallet := &wallet.Wallet{
			ID: uuid.NewString(), OwnerID: "u-1", OwnerKind: wallet.OwnerUser,
			Blockchain: "bsc", Network: "testnet", Address: "0x70997970c51812dc3a010c7d01b50e0d17dc79c" + string(rune('0'+i)),
		}
		f.Wallets.Add(userWallet)

		d := &wallet.Deposit{
			ID: uuid.NewString(), UserID: "u-1", WalletID: userWallet.ID, TokenID: "tok-bnb",
			TxHash: "0xdeposit" + string(status), Amount: decimal.RequireFromString("2500000000000000000"),
			Blockchain: "bsc", Network: "testnet", BlockNumber: 90, Confirmations: 3, Status: wallet.DepositConfirmed,
		}
		f.Deposits.Put(d)

		row := &wallet.SweepTransaction{
			ID: uuid.NewString(), DepositID: d.ID, FromWalletID: userWallet.ID, Amount: d.Amount,
			Status: status, Blockchain: "bsc", Network: "testnet", TokenID: "tok-bnb", Attempt: 1,
		}
		if status != wallet.SweepSkipped {
			row.TxHash = null.StringFrom("0xsweep" + string(status))
			row.Fee = decimal.NewNullDecimal(decimal.NewFromInt(100))
		}
		f.Sweeps.Put(row)
		rows[status] = row
	}

	return rows
}

func TestGetSweepTransactions(t *testing.T) {
	test.WithTestServerFixture(t, func(s *api.Server, f *test.ServerFixture) {
		headers := test.HeadersWithAdminToken(t)
		rows := seedSweeps(t, f)

		res := test.PerformRequest(t, s, "GET", "/api/v1/admin/sweep-transactions", nil, headers)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		var list types.GetSweepTransactionsResponse
		test.ParseResponseAndValidate(t, res, &list)
		assert.Equal(t, int64(4), *list.Total)
		assert.Equal(t, int64(0), *list.Offset)
		assert.Equal(t, int64(20), *list.Limit)
		require.Len(t, list.Items, 4)

		// newest first
		assert.Equal(t, rows[wallet.SweepPending].ID, list.Items[0].ID.String())
		assert.Equal(t, "2.5", list.Items[0].AmountDecimal)
		assert.Equal(t, "100", list.Items[0].Fee)
		assert.Empty(t, list.Items[3].TxHash)

		res = test.PerformRequestWithParams(t, s, "GET", "/api/v1/admin/sweep-transactions", nil, headers, map[string]string{"status": "FAILED"})
		require.Equal(t, http.StatusOK, res.Result().StatusCode)
		test.ParseResponseAndValidate(t, res, &list)
		require.Len(t, list.Items, 1)
		assert.Equal(t, "failed", *list.Items[0].Status)

		res = test.PerformRequestWithParams(t, s, "GET", "/api/v1/admin/sweep-transactions", nil, headers, map[string]string{"search": "0xSWEEPcompleted"})
		test.ParseResponseAndValidate(t, res, &list)
		require.Len(t, list.Items, 1)
		assert.Equal(t, rows[wallet.SweepCompleted].ID, list.Items[0].ID.String())

		res = test.PerformRequestWithParams(t, s, "GET", "/api/v1/admin/sweep-transactions", nil, headers, map[string]string{"offset": "1", "limit": "2"})
		test.ParseResponseAndValidate(t, res, &list)
		assert.Equal(t, int64(4), *list.Total)
		require.Len(t, list.Items, 2)
		assert.Equal(t, rows[wallet.SweepCompleted].ID, list.Items[0].ID.String())

		res = test.PerformRequestWithParams(t, s, "GET", "/api/v1/admin/sweep-transactions", nil, headers, map[string]string{"status": "lost"})
		assert.Equal(t, http.StatusBadRequest, res.Result().StatusCode)
	})
}

func TestRetrySweep(t *testing.T) {
	test.WithTestServerFixture(t, func(s *api.Server, f *test.ServerFixture) {
		headers := test.HeadersWithAdminToken(t)
		rows := seedSweeps(t, f)
		admin := createPoolWallet(t, s, "/api/v1/admin/wallets", "bsc", "testnet")

		failed := rows[wallet.SweepFailed]
		res := test.PerformRequest(t, s, "POST", "/api/v1/admin/sweep-transactions/"+failed.ID+"/retry", test.GenericPayload{"feeOption": "higher"}, headers)
		require.Equal(t, http.StatusAccepted, res.Result().StatusCode, res.Body.String())

		var retried types.SweepTransaction
		test.ParseResponseAndValidate(t, res, &retried)
		assert.NotEqual(t, failed.ID, retried.ID.String())
		assert.Equal(t, failed.DepositID, retried.DepositID.String())
		assert.Equal(t, int64(2), *retried.Attempt)
		assert.Equal(t, "pending", *retried.Status)
		require.NotNil(t, retried.ToAdminWalletID)
		assert.Equal(t, *admin.ID, *retried.ToAdminWalletID)

		s.Sweeps.Wait()

		attempts := f.Sweeps.ByDeposit(failed.DepositID)
		require.Len(t, attempts, 2)
		assert.Equal(t, wallet.SweepCompleted, attempts[1].Status)
		assert.Equal(t, "120", attempts[1].Fee.Decimal.String(), "higher bumps the prior fee")

		jobs := f.Executor.Jobs()
		require.Len(t, jobs, 1)
		assert.Equal(t, admin.ID.String(), jobs[0].To.ID)

		// the deposit is swept now
		res = test.PerformRequest(t, s, "POST", "/api/v1/admin/sweep-transactions/"+failed.ID+"/retry", test.GenericPayload{"feeOption": "same"}, headers)
		assert.Equal(t, http.StatusConflict, res.Result().StatusCode)
	})
}

func TestRetrySweepRejected(t *testing.T) {
	test.WithTestServerFixture(t, func(s *api.Server, f *test.ServerFixture) {
		headers := test.HeadersWithAdminToken(t)
		rows := seedSweeps(t, f)

		for _, status := range []wallet.SweepStatus{wallet.SweepCompleted, wallet.SweepPending} {
			res := test.PerformRequest(t, s, "POST", "/api/v1/admin/sweep-transactions/"+rows[status].ID+"/retry", test.GenericPayload{"feeOption": "same"}, headers)
			assert.Equal(t, http.StatusConflict, res.Result().StatusCode, status)
		}

		res := test.PerformRequest(t, s, "POST", "/api/v1/admin/sweep-transactions/"+uuid.NewString()+"/retry", test.GenericPayload{"feeOption": "same"}, headers)
		assert.Equal(t, http.StatusNotFound, res.Result().StatusCode)

		res = test.PerformRequest(t, s, "POST", "/api/v1/admin/sweep-transactions/"+rows[wallet.SweepFailed].ID+"/retry", test.GenericPayload{"feeOption": "cheaper"}, headers)
		assert.Equal(t, http.StatusBadRequest, res.Result().StatusCode)

		res = test.PerformRequest(t, s, "POST", "/api/v1/admin/sweep-transactions/"+rows[wallet.SweepFailed].ID+"/retry", test.GenericPayload{}, headers)
		assert.Equal(t, http.StatusBadRequest, res.Result().StatusCode)

		assert.Empty(t, f.Executor.Jobs())
	})
}

func TestRetrySweepWithoutAdminWalletIsSkipped(t *testing.T) {
	test.WithTestServerFixture(t, func(s *api.Server, f *test.ServerFixture) {
		rows := seedSweeps(t, f)

		res := test.PerformRequest(t, s, "POST", "/api/v1/admin/sweep-transactions/"+rows[wallet.SweepSkipped].ID+"/retry", test.GenericPayload{"feeOption": "same"}, test.HeadersWithAdminToken(t))
		require.Equal(t, http.StatusAccepted, res.Result().StatusCode)

		var retried types.SweepTransaction
		test.ParseResponseAndValidate(t, res, &retried)
		assert.Equal(t, "skipped", *retried.Status)
		assert.Nil(t, retried.ToAdminWalletID)
		assert.Empty(t, f.Executor.Jobs())

		mail := f.Mail.GetLastSentMail()
		require.NotNil(t, mail)
	})
}
