package wallet

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github/chapool/go-custody/internal/wallet/chain"
)

const pqUniqueViolation = "23505"

var (
	ErrWalletNotFound = errors.New("wallet not found")
	ErrKeyNotFound    = errors.New("wallet key not found")
	// ErrActiveWalletExists is returned when a pair already has an active wallet of the same pool kind.
	ErrActiveWalletExists = errors.New("active wallet already exists")
)

var walletColumns = []string{
	"id", "owner_id", "owner_kind", "blockchain", "network", "address",
	"key_id", "status", "memo", "created_at", "updated_at",
}

// Store persists wallets and their keys.
type Store interface {
	GetWallet(ctx context.Context, id string) (*Wallet, error)
	GetKey(ctx context.Context, keyID string) (*WalletKey, error)

	// ActiveUserWallets returns the active user wallets of pair whose address is in addresses, keyed by address.
	ActiveUserWallets(ctx context.Context, pair chain.Pair, addresses []string) (map[string]*Wallet, error)

	// ActivePoolWallet returns the active admin or gas tank wallet of pair.
	ActivePoolWallet(ctx context.Context, pair chain.Pair, kind OwnerKind) (*Wallet, error)
	ListWallets(ctx context.Context, kind OwnerKind) ([]*Wallet, error)
	PairsWithActiveWallet(ctx context.Context, kind OwnerKind) ([]chain.Pair, error)

	// CreateWithKey inserts the key and the wallet in one transaction.
	CreateWithKey(ctx context.Context, w *Wallet, key *WalletKey) error
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

func (s *store) GetWallet(ctx context.Context, id string) (*Wallet, error) {
	q, args, err := s.psql.Select(walletColumns...).From("wallets").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}

	var w Wallet
	if err := s.db.GetContext(ctx, &w, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(ErrWalletNotFound, "id %s", id)
		}
		return nil, errors.Wrap(err, "failed to get wallet")
	}

	return &w, nil
}

func (s *store) GetKey(ctx context.Context, keyID string) (*WalletKey, error) {
	var k WalletKey
	err := s.db.GetContext(ctx, &k, `
		SELECT id, encrypted_private_key, encryption_version, key_type, created_at
		FROM wallet_keys
		WHERE id = $1
	`, keyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(ErrKeyNotFound, "id %s", keyID)
		}
		return nil, errors.Wrap(err, "failed to get wallet key")
	}

	return &k, nil
}

func (s *store) ActiveUserWallets(ctx context.Context, pair chain.Pair, addresses []string) (map[string]*Wallet, error) {
	result := make(map[string]*Wallet)
	if len(addresses) == 0 {
		return result, nil
	}

	q, args, err := s.psql.Select(walletColumns...).From("wallets").
		Where(sq.Eq{
			"blockchain": pair.Blockchain,
			"network":    pair.Network,
			"owner_kind": OwnerUser,
			"status":     WalletActive,
		}).
		Where("address = ANY(?)", pq.Array(addresses)).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}

	wallets := []*Wallet{}
	if err := s.db.SelectContext(ctx, &wallets, q, args...); err != nil {
		return nil, errors.Wrap(err, "failed to query user wallets")
	}

	for _, w := range wallets {
		result[w.Address] = w
	}

	return result, nil
}

func (s *store) ActivePoolWallet(ctx context.Context, pair chain.Pair, kind OwnerKind) (*Wallet, error) {
	q, args, err := s.psql.Select(walletColumns...).From("wallets").
		Where(sq.Eq{
			"blockchain": pair.Blockchain,
			"network":    pair.Network,
			"owner_kind": kind,
			"status":     WalletActive,
		}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}

	var w Wallet
	if err := s.db.GetContext(ctx, &w, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(ErrWalletNotFound, "%s wallet for %s", kind, pair)
		}
		return nil, errors.Wrap(err, "failed to get pool wallet")
	}

	return &w, nil
}

func (s *store) ListWallets(ctx context.Context, kind OwnerKind) ([]*Wallet, error) {
	q, args, err := s.psql.Select(walletColumns...).From("wallets").
		Where(sq.Eq{"owner_kind": kind}).
		OrderBy("blockchain ASC", "network ASC", "created_at DESC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}

	wallets := []*Wallet{}
	if err := s.db.SelectContext(ctx, &wallets, q, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list wallets")
	}

	return wallets, nil
}

func (s *store) PairsWithActiveWallet(ctx context.Context, kind OwnerKind) ([]chain.Pair, error) {
	pairs := []chain.Pair{}
	err := s.db.SelectContext(ctx, &pairs, `
		SELECT DISTINCT blockchain, network
		FROM wallets
		WHERE owner_kind = $1 AND status = 'active'
		ORDER BY blockchain, network
	`, kind)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list wallet pairs")
	}

	return pairs, nil
}

func (s *store) CreateWithKey(ctx context.Context, w *Wallet, key *WalletKey) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_keys (id, encrypted_private_key, encryption_version, key_type)
		VALUES ($1, $2, $3, $4)
	`, key.ID, key.EncryptedPrivateKey, key.EncryptionVersion, key.KeyType); err != nil {
		return errors.Wrap(err, "failed to insert wallet key")
	}

	q, args, err := s.psql.Insert("wallets").
		Columns("id", "owner_id", "owner_kind", "blockchain", "network", "address", "key_id", "status", "memo").
		Values(w.ID, w.OwnerID, w.OwnerKind, w.Blockchain, w.Network, w.Address, w.KeyID, w.Status, w.Memo).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return errors.Wrap(err, "failed to build insert")
	}

	if err := tx.QueryRowxContext(ctx, q, args...).Scan(&w.CreatedAt, &w.UpdatedAt); err != nil {
		if IsUniqueViolation(err) {
			return errors.Wrapf(ErrActiveWalletExists, "%s wallet for %s", w.OwnerKind, w.Pair())
		}
		return errors.Wrap(err, "failed to insert wallet")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit wallet")
	}

	return nil
}

// IsUniqueViolation reports whether err is a postgres unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
