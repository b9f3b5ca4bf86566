//go:build wireinject

package api

import (
	"database/sql"
	"testing"

	"github.com/google/wire"
	"github/chapool/go-custody/internal/config"
	"github/chapool/go-custody/internal/wallet"
	"github/chapool/go-custody/internal/wallet/chain"
	"github/chapool/go-custody/internal/wallet/cursor"
	"github/chapool/go-custody/internal/wallet/deposit"
	"github/chapool/go-custody/internal/wallet/keyvault"
	"github/chapool/go-custody/internal/wallet/monitor"
	"github/chapool/go-custody/internal/wallet/registry"
	"github/chapool/go-custody/internal/wallet/signer"
	"github/chapool/go-custody/internal/wallet/sweep"
)

// INJECTORS - https://github.com/google/wire/blob/main/docs/guide.md#injectors

// serviceSet groups the default set of providers that are required for initing a server
var serviceSet = wire.NewSet(
	newServerWithComponents,
	NewMailer,
	NewClock,
	NewMetrics,
	chainSet,
	vaultSet,
	monitorSet,
	sweepSet,
)

var chainSet = wire.NewSet(
	chain.NewService,
	NewClientFactories,
	chain.NewClients,
)

var vaultSet = wire.NewSet(
	keyvault.NewStore,
	wallet.NewStore,
	NewVault,
	signer.NewService,
	registry.NewAdminRegistry,
	registry.NewGasTankRegistry,
)

var monitorSet = wire.NewSet(
	cursor.NewStore,
	monitor.NewTaskRegistry,
	NewCursors,
	deposit.NewStore,
	NewDepositConfig,
	NewDepositDeps,
	monitor.NewSupervisor,
)

var sweepSet = wire.NewSet(
	sweep.NewStore,
	NewSweepConfig,
	NewSweeps,
)

// InitNewServer returns a new Server instance.
func InitNewServer(
	_ config.Server,
) (*Server, error) {
	wire.Build(serviceSet, NewDB, NoTest)
	return new(Server), nil
}

// InitNewServerWithDB returns a new Server instance with the given DB instance.
// All the other components are initialized via go wire according to the configuration.
func InitNewServerWithDB(
	_ config.Server,
	_ *sql.DB,
	t ...*testing.T,
) (*Server, error) {
	wire.Build(serviceSet)
	return new(Server), nil
}
