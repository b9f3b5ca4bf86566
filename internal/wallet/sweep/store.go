package sweep

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/aarondl/null/v8"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github/chapool/go-custody/internal/util/db"
	"github/chapool/go-custody/internal/wallet"
)

var sweepColumns = []string{
	"id", "deposit_id", "from_wallet_id", "to_admin_wallet_id", "tx_hash", "amount", "fee",
	"nonce", "status", "message", "blockchain", "network", "token_id", "attempt", "created_at", "updated_at",
}

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

func (s *store) Insert(ctx context.Context, t *wallet.SweepTransaction) error {
	q, args, err := s.psql.Insert("sweep_transactions").
		Columns("id", "deposit_id", "from_wallet_id", "to_admin_wallet_id", "amount", "fee",
			"status", "message", "blockchain", "network", "token_id", "attempt").
		Values(t.ID, t.DepositID, t.FromWalletID, t.ToAdminWalletID, t.Amount, t.Fee,
			t.Status, t.Message, t.Blockchain, t.Network, t.TokenID, t.Attempt).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return errors.Wrap(err, "failed to build insert")
	}

	if err := s.db.QueryRowxContext(ctx, q, args...).Scan(&t.CreatedAt, &t.UpdatedAt); err != nil {
		// idx_sweeps_one_pending
		if wallet.IsUniqueViolation(err) {
			return errors.Wrapf(ErrInFlight, "deposit %s", t.DepositID)
		}
		return errors.Wrapf(err, "failed to insert sweep for deposit %s", t.DepositID)
	}

	return nil
}

func (s *store) SetSigned(ctx context.Context, id string, txHash string, amount decimal.Decimal, fee decimal.Decimal, nonce null.Int64) error {
	q, args, err := s.psql.Update("sweep_transactions").
		Set("tx_hash", txHash).
		Set("amount", amount).
		Set("fee", fee).
		Set("nonce", nonce).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "status": wallet.SweepPending}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "failed to build update")
	}

	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return errors.Wrapf(err, "failed to record signed transaction of sweep %s", id)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Wrapf(ErrSweepNotFound, "pending sweep %s", id)
	}

	return nil
}

func (s *store) Finish(ctx context.Context, id string, status wallet.SweepStatus, message string) error {
	q, args, err := s.psql.Update("sweep_transactions").
		Set("status", status).
		Set("message", message).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "status": wallet.SweepPending}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "failed to build update")
	}

	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return errors.Wrapf(err, "failed to finish sweep %s", id)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Wrapf(ErrSweepNotFound, "pending sweep %s", id)
	}

	return nil
}

func (s *store) one(ctx context.Context, b sq.SelectBuilder, what string) (*wallet.SweepTransaction, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}

	var t wallet.SweepTransaction
	if err := s.db.GetContext(ctx, &t, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrap(ErrSweepNotFound, what)
		}
		return nil, errors.Wrap(err, "failed to get sweep")
	}

	return &t, nil
}

func (s *store) Get(ctx context.Context, id string) (*wallet.SweepTransaction, error) {
	return s.one(ctx, s.psql.Select(sweepColumns...).From("sweep_transactions").Where(sq.Eq{"id": id}), "id "+id)
}

func (s *store) LatestByDeposit(ctx context.Context, depositID string) (*wallet.SweepTransaction, error) {
	return s.one(ctx, s.psql.Select(sweepColumns...).From("sweep_transactions").
		Where(sq.Eq{"deposit_id": depositID}).
		OrderBy("created_at DESC", "attempt DESC").
		Limit(1), "deposit "+depositID)
}

func (s *store) CompletedByDeposit(ctx context.Context, depositID string) (*wallet.SweepTransaction, error) {
	return s.one(ctx, s.psql.Select(sweepColumns...).From("sweep_transactions").
		Where(sq.Eq{"deposit_id": depositID, "status": wallet.SweepCompleted}).
		Limit(1), "completed sweep of deposit "+depositID)
}

func (s *store) many(ctx context.Context, b sq.SelectBuilder) ([]*wallet.SweepTransaction, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}

	sweeps := []*wallet.SweepTransaction{}
	if err := s.db.SelectContext(ctx, &sweeps, q, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list sweeps")
	}

	return sweeps, nil
}

func (s *store) Attempts(ctx context.Context, depositID string) ([]*wallet.SweepTransaction, error) {
	return s.many(ctx, s.psql.Select(sweepColumns...).From("sweep_transactions").
		Where(sq.Eq{"deposit_id": depositID}).
		OrderBy("created_at ASC", "attempt ASC"))
}

func (s *store) Pending(ctx context.Context) ([]*wallet.SweepTransaction, error) {
	return s.many(ctx, s.psql.Select(sweepColumns...).From("sweep_transactions").
		Where(sq.Eq{"status": wallet.SweepPending}).
		OrderBy("created_at ASC"))
}

func (s *store) List(ctx context.Context, filter Filter) ([]*wallet.SweepTransaction, int64, error) {
	where := sq.And{}
	if filter.Status != "" {
		where = append(where, sq.Eq{"status": filter.Status})
	}
	if search := db.ILikeSearch(filter.Search, "tx_hash", "id::text", "deposit_id::text"); search != nil {
		where = append(where, search)
	}

	countQ, countArgs, err := s.psql.Select("COUNT(*)").From("sweep_transactions").Where(where).ToSql()
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to build count query")
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, countQ, countArgs...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count sweeps")
	}

	sweeps, err := s.many(ctx, s.psql.Select(sweepColumns...).From("sweep_transactions").
		Where(where).
		OrderBy("created_at DESC", "attempt DESC").
		Offset(uint64(max(filter.Offset, 0))).
		Limit(uint64(max(filter.Limit, 1))))
	if err != nil {
		return nil, 0, err
	}

	return sweeps, total, nil
}
