// Package metrics holds the prometheus collectors of the custody service.
package metrics

import (
	"database/sql"

	"github.com/dlmiddlecote/sqlstats"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "custody"

var pairLabels = []string{"blockchain", "network"}

// Custody bundles the domain collectors. All vectors are keyed by blockchain and network.
type Custody struct {
	registry *prometheus.Registry

	ChainHead         *prometheus.GaugeVec
	ScannedHeight     *prometheus.GaugeVec
	ChainUnavailable  *prometheus.CounterVec
	DepositsDetected  *prometheus.CounterVec
	DepositsConfirmed *prometheus.CounterVec
	DepositsFailed    *prometheus.CounterVec
	SweepOutcomes     *prometheus.CounterVec
	ReorgAnomalies    *prometheus.CounterVec
}

// New creates the collectors on a fresh registry that also carries the go and process collectors.
func New() *Custody {
	reg := prometheus.NewRegistry()

	m := &Custody{
		registry: reg,
		ChainHead: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "head_height",
			Help:      "Latest block height reported by the chain node.",
		}, pairLabels),
		ScannedHeight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "last_processed_height",
			Help:      "Last block height fully processed by the deposit detector.",
		}, pairLabels),
		ChainUnavailable: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "unavailable_total",
			Help:      "Chain calls that failed after all retries.",
		}, pairLabels),
		DepositsDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deposits",
			Name:      "detected_total",
			Help:      "Deposits recorded for user wallets.",
		}, pairLabels),
		DepositsConfirmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deposits",
			Name:      "confirmed_total",
			Help:      "Deposits that reached the required confirmations.",
		}, pairLabels),
		DepositsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deposits",
			Name:      "failed_total",
			Help:      "Deposits dropped from the chain.",
		}, pairLabels),
		SweepOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweeps",
			Name:      "outcomes_total",
			Help:      "Sweep attempts by final status.",
		}, append(pairLabels, "status")),
		ReorgAnomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deposits",
			Name:      "reorg_anomalies_total",
			Help:      "Confirmed deposits that disappeared from the chain.",
		}, pairLabels),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ChainHead,
		m.ScannedHeight,
		m.ChainUnavailable,
		m.DepositsDetected,
		m.DepositsConfirmed,
		m.DepositsFailed,
		m.SweepOutcomes,
		m.ReorgAnomalies,
	)

	return m
}

// Registry is the gatherer served at /metrics.
func (m *Custody) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterDB exports database/sql pool stats of db.
func (m *Custody) RegisterDB(name string, db *sql.DB) error {
	if err := m.registry.Register(sqlstats.NewStatsCollector(name, db)); err != nil {
		return errors.Wrap(err, "failed to register db stats collector")
	}

	return nil
}

// EchoMiddleware records request count and latency per route.
func (m *Custody) EchoMiddleware() echo.MiddlewareFunc {
	return echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  namespace,
		Subsystem:  "http",
		Registerer: m.registry,
	})
}

// Handler serves the registry in the prometheus text format.
func (m *Custody) Handler() echo.HandlerFunc {
	return echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: m.registry})
}
