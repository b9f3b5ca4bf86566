package cursor

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github/chapool/go-custody/internal/wallet/chain"
)

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

func fresh(pair chain.Pair) *Cursor {
	return &Cursor{
		Blockchain:          pair.Blockchain,
		Network:             pair.Network,
		StartHeight:         0,
		LastProcessedHeight: -1,
	}
}

func (s *store) Get(ctx context.Context, pair chain.Pair) (*Cursor, error) {
	q, args, err := s.psql.
		Select("blockchain", "network", "start_height", "last_processed_height", "updated_at").
		From("chain_cursors").
		Where(sq.Eq{"blockchain": pair.Blockchain, "network": pair.Network}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}

	var c Cursor
	if err := s.db.GetContext(ctx, &c, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fresh(pair), nil
		}
		return nil, errors.Wrapf(err, "failed to get cursor %s", pair)
	}

	return &c, nil
}

func (s *store) List(ctx context.Context) ([]*Cursor, error) {
	cursors := []*Cursor{}
	err := s.db.SelectContext(ctx, &cursors, `
		SELECT blockchain, network, start_height, last_processed_height, updated_at
		FROM chain_cursors
		ORDER BY blockchain, network
	`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list cursors")
	}

	return cursors, nil
}

// SetStartHeight upserts the floor and lifts lastProcessedHeight to height-1 when needed.
func (s *store) SetStartHeight(ctx context.Context, pair chain.Pair, height int64) error {
	if height < 0 {
		return ErrNegativeHeight
	}

	q, args, err := s.psql.Insert("chain_cursors").
		Columns("blockchain", "network", "start_height", "last_processed_height").
		Values(pair.Blockchain, pair.Network, height, height-1).
		Suffix(`ON CONFLICT (blockchain, network) DO UPDATE SET
			start_height = EXCLUDED.start_height,
			last_processed_height = GREATEST(chain_cursors.last_processed_height, EXCLUDED.start_height - 1),
			updated_at = NOW()`).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "failed to build upsert")
	}

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return errors.Wrapf(err, "failed to set start height of %s", pair)
	}

	return nil
}

// AdvanceLastProcessed only updates when the stored height is lower or equal, so a zero row
// count means the new height is behind.
func (s *store) AdvanceLastProcessed(ctx context.Context, pair chain.Pair, height int64) error {
	if height < 0 {
		return ErrNegativeHeight
	}

	q, args, err := s.psql.Insert("chain_cursors").
		Columns("blockchain", "network", "start_height", "last_processed_height").
		Values(pair.Blockchain, pair.Network, 0, height).
		Suffix(`ON CONFLICT (blockchain, network) DO UPDATE SET
			last_processed_height = EXCLUDED.last_processed_height,
			updated_at = NOW()
		WHERE chain_cursors.last_processed_height <= EXCLUDED.last_processed_height`).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "failed to build upsert")
	}

	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return errors.Wrapf(err, "failed to advance cursor of %s", pair)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}

	if affected == 0 {
		return errors.Wrapf(ErrNonMonotonic, "%s to %d", pair, height)
	}

	return nil
}
