package chain

import (
	"context"
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

var chainColumns = []string{
	"blockchain", "network", "family", "rpc_urls", "required_confirmations",
	"evm_chain_id", "native_symbol", "native_decimals", "fee_mode", "is_active",
}

var tokenColumns = []string{"id", "blockchain", "network", "symbol", "contract_address", "decimals", "is_active"}

// service 实现 Service 接口
type service struct {
	db   *sqlx.DB
	psql sq.StatementBuilderType
}

// NewService 创建链配置服务
//
//nolint:ireturn
func NewService(db *sql.DB) Service {
	return &service{
		db:   sqlx.NewDb(db, "postgres"),
		psql: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (s *service) GetChain(ctx context.Context, pair Pair) (*Chain, error) {
	q, args, err := s.psql.Select(chainColumns...).
		From("chains").
		Where(sq.Eq{"blockchain": pair.Blockchain, "network": pair.Network}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}

	var c Chain
	if err := s.db.GetContext(ctx, &c, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(ErrUnknownChain, "%s", pair)
		}
		return nil, errors.Wrap(err, "failed to get chain")
	}

	return &c, nil
}

func (s *service) ListChains(ctx context.Context) ([]*Chain, error) {
	return s.selectChains(ctx, nil)
}

func (s *service) GetActiveChains(ctx context.Context) ([]*Chain, error) {
	return s.selectChains(ctx, sq.Eq{"is_active": true})
}

func (s *service) selectChains(ctx context.Context, where sq.Sqlizer) ([]*Chain, error) {
	b := s.psql.Select(chainColumns...).From("chains").OrderBy("blockchain ASC", "network ASC")
	if where != nil {
		b = b.Where(where)
	}

	q, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}

	chains := []*Chain{}
	if err := s.db.SelectContext(ctx, &chains, q, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list chains")
	}

	return chains, nil
}

func (s *service) ListTokens(ctx context.Context, pair Pair) ([]*Token, error) {
	q, args, err := s.psql.Select(tokenColumns...).
		From("tokens").
		Where(sq.Eq{"blockchain": pair.Blockchain, "network": pair.Network, "is_active": true}).
		OrderBy("symbol ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}

	tokens := []*Token{}
	if err := s.db.SelectContext(ctx, &tokens, q, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list tokens")
	}

	return tokens, nil
}

func (s *service) GetToken(ctx context.Context, id string) (*Token, error) {
	q, args, err := s.psql.Select(tokenColumns...).From("tokens").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}

	var t Token
	if err := s.db.GetContext(ctx, &t, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Errorf("token %s not found", id)
		}
		return nil, errors.Wrap(err, "failed to get token")
	}

	return &t, nil
}

func (s *service) UpsertChain(ctx context.Context, c *Chain) error {
	if !c.Family.Valid() {
		return errors.Errorf("invalid chain family %q", c.Family)
	}

	q, args, err := s.psql.Insert("chains").
		Columns(chainColumns...).
		Values(c.Blockchain, c.Network, c.Family, c.RPCURLs, c.RequiredConfirmations,
			c.EVMChainID, c.NativeSymbol, c.NativeDecimals, c.FeeMode, c.IsActive).
		Suffix(`ON CONFLICT (blockchain, network) DO UPDATE SET
			family = EXCLUDED.family,
			rpc_urls = EXCLUDED.rpc_urls,
			required_confirmations = EXCLUDED.required_confirmations,
			evm_chain_id = EXCLUDED.evm_chain_id,
			native_symbol = EXCLUDED.native_symbol,
			native_decimals = EXCLUDED.native_decimals,
			fee_mode = EXCLUDED.fee_mode,
			is_active = EXCLUDED.is_active,
			updated_at = NOW()`).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "failed to build upsert")
	}

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return errors.Wrapf(err, "failed to upsert chain %s", c.Pair())
	}

	return nil
}

func (s *service) UpsertToken(ctx context.Context, t *Token) error {
	q, args, err := s.psql.Insert("tokens").
		Columns(tokenColumns...).
		Values(t.ID, t.Blockchain, t.Network, t.Symbol, t.ContractAddress, t.Decimals, t.IsActive).
		Suffix(`ON CONFLICT (blockchain, network, contract_address) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			decimals = EXCLUDED.decimals,
			is_active = EXCLUDED.is_active`).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "failed to build upsert")
	}

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return errors.Wrapf(err, "failed to upsert token %s on %s_%s", t.Symbol, t.Blockchain, t.Network)
	}

	return nil
}

// ParseRPCURLs 解析 RPC URL（支持多个，逗号分隔）
func ParseRPCURLs(rpcURL string) []string {
	if rpcURL == "" {
		return nil
	}

	urls := strings.Split(rpcURL, ",")
	result := make([]string, 0, len(urls))

	for _, url := range urls {
		url = strings.TrimSpace(url)
		if url != "" {
			result = append(result, url)
		}
	}

	return result
}
