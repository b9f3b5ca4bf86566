package db_test

import (
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-custody/internal/util/db"
)

func TestEscapeLike(t *testing.T) {
	res := db.EscapeLike("%foo% _b%a_r%")
	assert.Equal(t, "\\%foo\\% \\_b\\%a\\_r\\%", res)
}

func TestILikeSearch(t *testing.T) {
	query, args, err := sq.Select("*").
		From("sweep_transactions").
		Where(db.ILikeSearch("  0xab%c  eth ", "tx_hash", "blockchain")).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	require.NoError(t, err)

	assert.Equal(t, "SELECT * FROM sweep_transactions WHERE ((tx_hash ILIKE $1 OR blockchain ILIKE $2) AND (tx_hash ILIKE $3 OR blockchain ILIKE $4))", query)
	assert.Equal(t, []interface{}{"%0xab\\%c%", "%0xab\\%c%", "%eth%", "%eth%"}, args)
}

func TestILikeSearchEmpty(t *testing.T) {
	assert.Nil(t, db.ILikeSearch("   ", "tx_hash"))
}
