package migrations_test

import (
	"strings"
	"testing"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-custody/migrations"
)

func TestMigrationsParse(t *testing.T) {
	src := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrations.FS,
		Root:       ".",
	}

	found, err := src.FindMigrations()
	require.NoError(t, err)
	require.Len(t, found, 4)

	for i, m := range found {
		assert.NotEmpty(t, m.Up, m.Id)
		assert.NotEmpty(t, m.Down, m.Id)

		if i > 0 {
			assert.Less(t, found[i-1].Id, m.Id, "migrations are applied in file name order")
		}
	}

	var all strings.Builder
	for _, m := range found {
		for _, stmt := range m.Up {
			all.WriteString(stmt)
		}
	}

	for _, table := range []string{"chains", "tokens", "chain_cursors", "wallet_keys", "wallets", "vault", "deposits", "sweep_transactions"} {
		assert.Contains(t, all.String(), "CREATE TABLE "+table+" (")
	}
}
