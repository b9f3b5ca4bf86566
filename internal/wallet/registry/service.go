package registry

import (
	"context"
	"sort"

	"github.com/aarondl/null/v8"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github/chapool/go-custody/internal/wallet"
	"github/chapool/go-custody/internal/wallet/chain"
	"github/chapool/go-custody/internal/wallet/keyvault"
)

type service struct {
	kind    wallet.OwnerKind
	catalog chain.Service
	wallets wallet.Store
	vault   keyvault.Service
}

type gasTank struct {
	*service
	clients *chain.Clients
}

// NewAdminRegistry 管理员归集钱包
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewAdminRegistry(catalog chain.Service, wallets wallet.Store, vault keyvault.Service) Service {
	return &service{kind: wallet.OwnerAdmin, catalog: catalog, wallets: wallets, vault: vault}
}

// NewGasTankRegistry Gas 钱包
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewGasTankRegistry(catalog chain.Service, wallets wallet.Store, vault keyvault.Service, clients *chain.Clients) GasTank {
	return &gasTank{
		service: &service{kind: wallet.OwnerGasTank, catalog: catalog, wallets: wallets, vault: vault},
		clients: clients,
	}
}

func (s *service) Kind() wallet.OwnerKind {
	return s.kind
}

func (s *service) List(ctx context.Context) ([]*wallet.Wallet, error) {
	return s.wallets.ListWallets(ctx, s.kind)
}

func (s *service) Active(ctx context.Context, pair chain.Pair) (*wallet.Wallet, error) {
	return s.wallets.ActivePoolWallet(ctx, pair, s.kind)
}

// ScanMissing = (active catalog pairs ∪ pairs with active user wallets) - pairs with an active pool wallet
func (s *service) ScanMissing(ctx context.Context) ([]chain.Pair, error) {
	chains, err := s.catalog.GetActiveChains(ctx)
	if err != nil {
		return nil, err
	}

	configured := make(map[chain.Pair]struct{}, len(chains))
	for _, c := range chains {
		if s.kind == wallet.OwnerGasTank && c.FeeMode != chain.FeeModeSeparate {
			// fees come out of the swept amount, no gas tank needed
			continue
		}
		configured[c.Pair()] = struct{}{}
	}

	if s.kind == wallet.OwnerAdmin {
		userPairs, err := s.wallets.PairsWithActiveWallet(ctx, wallet.OwnerUser)
		if err != nil {
			return nil, err
		}
		for _, p := range userPairs {
			configured[p] = struct{}{}
		}
	}

	covered, err := s.wallets.PairsWithActiveWallet(ctx, s.kind)
	if err != nil {
		return nil, err
	}
	for _, p := range covered {
		delete(configured, p)
	}

	missing := make([]chain.Pair, 0, len(configured))
	for p := range configured {
		missing = append(missing, p)
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i].String() < missing[j].String() })

	return missing, nil
}

func (s *service) CreateWallet(ctx context.Context, pair chain.Pair) (*wallet.Wallet, error) {
	c, err := s.catalog.GetChain(ctx, pair)
	if err != nil {
		return nil, err
	}

	if !c.IsActive {
		return nil, errors.Wrapf(ErrChainInactive, "%s", pair)
	}

	if _, err := s.wallets.ActivePoolWallet(ctx, pair, s.kind); err == nil {
		return nil, errors.Wrapf(ErrAlreadyExists, "%s wallet for %s", s.kind, pair)
	} else if !errors.Is(err, wallet.ErrWalletNotFound) {
		return nil, err
	}

	gen, err := s.vault.GenerateKey(ctx, c.Family, c.Network)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate wallet key")
	}

	w := &wallet.Wallet{
		ID:         uuid.New().String(),
		OwnerID:    wallet.SystemOwnerID,
		OwnerKind:  s.kind,
		Blockchain: pair.Blockchain,
		Network:    pair.Network,
		Address:    gen.Address,
		KeyID:      gen.Key.ID,
		Status:     wallet.WalletActive,
		Memo:       null.StringFrom(string(s.kind) + " wallet " + pair.String()),
	}

	if err := s.wallets.CreateWithKey(ctx, w, gen.Key); err != nil {
		// lost a race with another create
		if errors.Is(err, wallet.ErrActiveWalletExists) {
			return nil, errors.Wrapf(ErrAlreadyExists, "%s wallet for %s", s.kind, pair)
		}
		return nil, err
	}

	log.Info().
		Str("blockchain", pair.Blockchain).
		Str("network", pair.Network).
		Str("kind", string(s.kind)).
		Str("address", w.Address).
		Msg("Pool wallet created")

	return w, nil
}

func (g *gasTank) Balance(ctx context.Context, walletID string) (*Balance, error) {
	w, err := g.wallets.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}

	if w.OwnerKind != wallet.OwnerGasTank {
		return nil, errors.Wrapf(ErrWrongKind, "wallet %s is %s", walletID, w.OwnerKind)
	}

	c, err := g.catalog.GetChain(ctx, w.Pair())
	if err != nil {
		return nil, err
	}

	client, err := g.clients.Get(ctx, w.Pair())
	if err != nil {
		return nil, err
	}

	raw, err := client.BalanceOf(ctx, w.Address, "")
	if err != nil {
		return nil, err
	}

	return &Balance{
		Wallet:   w,
		Symbol:   c.NativeSymbol,
		Decimals: c.NativeDecimals,
		Raw:      raw,
		Amount:   decimal.NewFromBigInt(raw, -c.NativeDecimals),
	}, nil
}
