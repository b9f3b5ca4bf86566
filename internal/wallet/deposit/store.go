package deposit

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github/chapool/go-custody/internal/wallet"
	"github/chapool/go-custody/internal/wallet/chain"
)

var depositColumns = []string{
	"id", "user_id", "wallet_id", "token_id", "tx_hash", "from_address", "amount",
	"blockchain", "network", "network_version", "block_number", "confirmations",
	"status", "confirmed_at", "created_at", "updated_at",
}

var openStatuses = []wallet.DepositStatus{wallet.DepositPending, wallet.DepositConfirming}

type store struct {
	db   *sqlx.DB
	psql sq.StatementBuilderType
}

//nolint:ireturn // Returning interface is intentional for dependency injection
func NewStore(db *sql.DB) Store {
	return &store{
		db:   sqlx.NewDb(db, "postgres"),
		psql: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (s *store) Upsert(ctx context.Context, d *wallet.Deposit) (bool, error) {
	q, args, err := s.psql.Insert("deposits").
		Columns("id", "user_id", "wallet_id", "token_id", "tx_hash", "from_address", "amount",
			"blockchain", "network", "network_version", "block_number", "confirmations", "status").
		Values(d.ID, d.UserID, d.WalletID, d.TokenID, d.TxHash, d.FromAddress, d.Amount,
			d.Blockchain, d.Network, d.NetworkVersion, d.BlockNumber, d.Confirmations, d.Status).
		Suffix(`ON CONFLICT (tx_hash, blockchain, network) DO UPDATE SET
			confirmations = GREATEST(deposits.confirmations, EXCLUDED.confirmations),
			updated_at = NOW()
		WHERE deposits.status IN ('pending', 'confirming')
		RETURNING (xmax = 0) AS inserted`).
		ToSql()
	if err != nil {
		return false, errors.Wrap(err, "failed to build upsert")
	}

	var inserted bool
	if err := s.db.QueryRowxContext(ctx, q, args...).Scan(&inserted); err != nil {
		// conflict with a deposit that is no longer open
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, errors.Wrapf(err, "failed to upsert deposit %s", d.TxHash)
	}

	return inserted, nil
}

func (s *store) Get(ctx context.Context, id string) (*wallet.Deposit, error) {
	q, args, err := s.psql.Select(depositColumns...).From("deposits").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}

	var d wallet.Deposit
	if err := s.db.GetContext(ctx, &d, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(ErrDepositNotFound, "id %s", id)
		}
		return nil, errors.Wrap(err, "failed to get deposit")
	}

	return &d, nil
}

func (s *store) OpenDeposits(ctx context.Context, pair chain.Pair, limit int) ([]*wallet.Deposit, error) {
	q, args, err := s.psql.Select(depositColumns...).From("deposits").
		Where(sq.Eq{"blockchain": pair.Blockchain, "network": pair.Network, "status": openStatuses}).
		OrderBy("block_number ASC", "created_at ASC").
		Limit(uint64(max(limit, 1))).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}

	deposits := []*wallet.Deposit{}
	if err := s.db.SelectContext(ctx, &deposits, q, args...); err != nil {
		return nil, errors.Wrap(err, "failed to query open deposits")
	}

	return deposits, nil
}

func (s *store) RecentConfirmed(ctx context.Context, pair chain.Pair, fromHeight int64) ([]*wallet.Deposit, error) {
	q, args, err := s.psql.Select(depositColumns...).From("deposits").
		Where(sq.Eq{"blockchain": pair.Blockchain, "network": pair.Network, "status": wallet.DepositConfirmed}).
		Where(sq.GtOrEq{"block_number": fromHeight}).
		OrderBy("block_number ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}

	deposits := []*wallet.Deposit{}
	if err := s.db.SelectContext(ctx, &deposits, q, args...); err != nil {
		return nil, errors.Wrap(err, "failed to query confirmed deposits")
	}

	return deposits, nil
}

func (s *store) UpdateConfirmations(ctx context.Context, id string, confirmations int64, status wallet.DepositStatus) error {
	q, args, err := s.psql.Update("deposits").
		Set("confirmations", sq.Expr("GREATEST(confirmations, ?)", confirmations)).
		Set("status", status).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "status": openStatuses}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "failed to build update")
	}

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return errors.Wrapf(err, "failed to update confirmations of deposit %s", id)
	}

	return nil
}

func (s *store) MarkConfirmed(ctx context.Context, id string, confirmations int64) (bool, error) {
	q, args, err := s.psql.Update("deposits").
		Set("confirmations", sq.Expr("GREATEST(confirmations, ?)", confirmations)).
		Set("status", wallet.DepositConfirmed).
		Set("confirmed_at", sq.Expr("NOW()")).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "status": openStatuses}).
		ToSql()
	if err != nil {
		return false, errors.Wrap(err, "failed to build update")
	}

	return s.execOne(ctx, q, args, "failed to confirm deposit")
}

func (s *store) MarkFailed(ctx context.Context, id string, from ...wallet.DepositStatus) (bool, error) {
	q, args, err := s.psql.Update("deposits").
		Set("status", wallet.DepositFailed).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "status": from}).
		ToSql()
	if err != nil {
		return false, errors.Wrap(err, "failed to build update")
	}

	return s.execOne(ctx, q, args, "failed to fail deposit")
}

func (s *store) execOne(ctx context.Context, q string, args []any, msg string) (bool, error) {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, errors.Wrap(err, msg)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read affected rows")
	}

	return n == 1, nil
}
