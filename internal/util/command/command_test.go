package command_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-custody/internal/api"
	"github/chapool/go-custody/internal/test"
	"github/chapool/go-custody/internal/util/command"
)

func TestWithServer(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		ctx := t.Context()

		var testError = errors.New("test error")

		cfg := s.Config
		cfg.Logger.PrettyPrintConsole = false

		called := false
		resultErr := command.WithServer(ctx, cfg, func(ctx context.Context, s *api.Server) error {
			called = true

			// wired without the router
			assert.True(t, s.Ready())
			assert.NotNil(t, s.Monitor)
			assert.NotNil(t, s.Sweeps)
			assert.False(t, s.Vault.IsUnlocked())
			assert.Empty(t, s.Monitor.Running())

			return testError
		})

		require.True(t, called)
		assert.Equal(t, testError, resultErr)
	})
}

func TestNewSubcommandGroup(t *testing.T) {
	ran := false
	sub := &cobra.Command{
		Use: "child",
		Run: func(_ *cobra.Command, _ []string) {
			ran = true
		},
	}

	group := command.NewSubcommandGroup("parent", sub)
	assert.Equal(t, "parent <subcommand>", group.Use)

	group.SetArgs([]string{"child"})
	require.NoError(t, group.Execute())
	assert.True(t, ran)

	group.SetArgs([]string{})
	group.SetOut(io.Discard)
	group.SetErr(io.Discard)
	assert.Error(t, group.Execute())
}
