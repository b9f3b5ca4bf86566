package keyvault

import (
	"context"
	"database/sql"

	"github.com/aarondl/null/v8"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// Record is the single row of the vault table.
type Record struct {
	Keystore          []byte      `db:"keystore"`
	AdminPasswordHash null.String `db:"admin_password_hash"`
	AdminSecretHash   null.String `db:"admin_secret_hash"`
}

// Store persists the vault row.
type Store interface {
	Get(ctx context.Context) (*Record, error)
	Create(ctx context.Context, keystore []byte) error
	SetAdminCredentials(ctx context.Context, passwordHash string, secretHash string) error
}

type store struct {
	db *sqlx.DB
}

//nolint:ireturn // Returning interface is intentional for dependency injection
func NewStore(db *sql.DB) Store {
	return &store{db: sqlx.NewDb(db, "postgres")}
}

func (s *store) Get(ctx context.Context) (*Record, error) {
	var r Record
	err := s.db.GetContext(ctx, &r, `SELECT keystore, admin_password_hash, admin_secret_hash FROM vault WHERE id = 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotInitialized
		}
		return nil, errors.Wrap(err, "failed to get vault")
	}

	return &r, nil
}

func (s *store) Create(ctx context.Context, keystore []byte) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO vault (id, keystore) VALUES (1, $1) ON CONFLICT (id) DO NOTHING`, string(keystore))
	if err != nil {
		return errors.Wrap(err, "failed to insert vault")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if n == 0 {
		return ErrAlreadyInitialized
	}

	return nil
}

func (s *store) SetAdminCredentials(ctx context.Context, passwordHash string, secretHash string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE vault
		SET admin_password_hash = $1, admin_secret_hash = $2, updated_at = NOW()
		WHERE id = 1
	`, passwordHash, secretHash)
	if err != nil {
		return errors.Wrap(err, "failed to update admin credentials")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if n == 0 {
		return ErrNotInitialized
	}

	return nil
}
