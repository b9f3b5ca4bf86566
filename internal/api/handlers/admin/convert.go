package admin

import (
	"context"

	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/swag"
	"github/chapool/go-custody/internal/types"
	"github/chapool/go-custody/internal/wallet"
	"github/chapool/go-custody/internal/wallet/chain"
)

func poolWallet(w *wallet.Wallet) *types.PoolWallet {
	id := strfmt.UUID(w.ID)
	createdAt := strfmt.DateTime(w.CreatedAt)

	return &types.PoolWallet{
		ID:         &id,
		Blockchain: swag.String(w.Blockchain),
		Network:    swag.String(w.Network),
		Address:    swag.String(w.Address),
		Type:       swag.String(string(w.OwnerKind)),
		Status:     swag.String(string(w.Status)),
		Memo:       w.Memo.String,
		CreatedAt:  &createdAt,
	}
}

func chainPair(p chain.Pair) *types.ChainPair {
	return &types.ChainPair{
		Blockchain: swag.String(p.Blockchain),
		Network:    swag.String(p.Network),
	}
}

// tokenCache resolves token decimals once per request.
type tokenCache struct {
	catalog chain.Service
	tokens  map[string]*chain.Token
}

func newTokenCache(catalog chain.Service) *tokenCache {
	return &tokenCache{catalog: catalog, tokens: map[string]*chain.Token{}}
}

func (tc *tokenCache) get(ctx context.Context, id string) *chain.Token {
	if id == "" {
		return nil
	}
	if t, ok := tc.tokens[id]; ok {
		return t
	}

	t, err := tc.catalog.GetToken(ctx, id)
	if err != nil {
		t = nil
	}
	tc.tokens[id] = t

	return t
}

func sweepTransaction(st *wallet.SweepTransaction, token *chain.Token) *types.SweepTransaction {
	id := strfmt.UUID(st.ID)
	depositID := strfmt.UUID(st.DepositID)
	fromWalletID := strfmt.UUID(st.FromWalletID)
	createdAt := strfmt.DateTime(st.CreatedAt)
	updatedAt := strfmt.DateTime(st.UpdatedAt)

	res := &types.SweepTransaction{
		ID:           &id,
		DepositID:    &depositID,
		FromWalletID: &fromWalletID,
		TxHash:       st.TxHash.String,
		Amount:       swag.String(st.Amount.String()),
		Status:       swag.String(string(st.Status)),
		Message:      st.Message,
		Blockchain:   swag.String(st.Blockchain),
		Network:      swag.String(st.Network),
		TokenID:      st.TokenID,
		Attempt:      swag.Int64(int64(st.Attempt)),
		CreatedAt:    &createdAt,
		UpdatedAt:    &updatedAt,
	}

	if st.ToAdminWalletID.Valid {
		to := strfmt.UUID(st.ToAdminWalletID.String)
		res.ToAdminWalletID = &to
	}
	if st.Fee.Valid {
		res.Fee = st.Fee.Decimal.String()
	}
	if token != nil {
		res.AmountDecimal = st.Amount.Shift(-token.Decimals).String()
	}

	return res
}
