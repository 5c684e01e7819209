// Package runtime wires the Grid Engine's concrete collaborators together:
// the zap-backed logger, the prometheus gauge set, the grid Manager, the
// worker pool, and the reconciliation Engine. It plays the role the
// teacher's GridEngine orchestrator plays for its own engine/store/logger
// set — the one place a caller assembles the pieces instead of each
// package constructing its own.
package runtime

import (
	"fmt"
	"time"

	"market_maker/internal/config"
	"market_maker/internal/core"
	"market_maker/internal/divergence"
	"market_maker/internal/gridengine"
	"market_maker/internal/model"
	"market_maker/internal/reconcile"
	"market_maker/internal/spread"
	"market_maker/pkg/concurrency"
	"market_maker/pkg/logging"
	"market_maker/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Params carries everything New needs to assemble a Runtime. Asset
// identity/precision and resolved per-side budgets come from the caller
// because resolving a config symbol to a chain asset ID, or a funds
// percentage to an absolute budget, requires the chain client itself
// (out of scope for this package, per core's doc comment).
type Params struct {
	Config       *config.Config
	AssetA       model.Asset
	AssetB       model.Asset
	FeeAssetID   string
	BotFundsBuy  decimal.Decimal
	BotFundsSell decimal.Decimal
	Chain        core.IChainClient
	Oracle       core.IPriceOracle
	Totals       core.IAccountTotals
	Recover      reconcile.RecoverySync
	Registry     prometheus.Registerer
}

// Runtime holds the constructed collaborators for one running instance.
type Runtime struct {
	Logger    core.ILogger
	Gauges    *metrics.Gauges
	Manager   *gridengine.Manager
	Pool      *concurrency.WorkerPool
	Reconcile *reconcile.Engine

	accountRef string
}

// New constructs the logger, gauge set, Manager, worker pool, and
// reconciliation Engine from p, and returns them wired together as a
// Runtime.
func New(p Params) (*Runtime, error) {
	logger, err := logging.NewZapLogger(p.Config.System.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("construct logger: %w", err)
	}

	gauges := metrics.NewGauges(p.Registry)

	mgrCfg := gridengine.ManagerConfig{
		AssetA:               p.AssetA,
		AssetB:               p.AssetB,
		FeeAssetID:           p.FeeAssetID,
		TargetBuyOrders:      p.Config.ActiveOrders.Buy,
		TargetSellOrders:     p.Config.ActiveOrders.Sell,
		BotFundsBuy:          p.BotFundsBuy,
		BotFundsSell:         p.BotFundsSell,
		BTSReservationMult:   decimal.NewFromFloat(p.Config.GridLimits.BTSReservationMultiplier),
		AccountTotalsTimeout: 30 * time.Second,
		IncrementPercent:     decimal.NewFromFloat(p.Config.IncrementPercent),
	}
	mgr := gridengine.NewManager(mgrCfg, logger.WithField("component", "manager"), p.Oracle, p.Totals)

	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:        "reconcile",
		MaxWorkers:  p.Config.Concurrency.ReconcilePoolSize,
		MaxCapacity: p.Config.Concurrency.ReconcilePoolBuffer,
	}, logger)

	rec := &reconcile.Engine{
		Chain:   p.Chain,
		Logger:  logger.WithField("component", "reconcile"),
		Pool:    pool,
		Recover: p.Recover,
	}

	return &Runtime{
		Logger:     logger,
		Gauges:     gauges,
		Manager:    mgr,
		Pool:       pool,
		Reconcile:  rec,
		accountRef: p.Config.AccountID,
	}, nil
}

// RecordDivergence publishes a Divergence Monitor report plus the
// Manager's current funds/grid state to the gauge set.
func (r *Runtime) RecordDivergence(report divergence.Report) {
	funds := r.Manager.Funds()
	grid := r.Manager.Grid()
	divergence.RecordMetrics(r.Gauges, report, funds, grid.Version(), grid.BoundaryIdx())
}

// RecordSpreadCheck publishes a Spread Correction Engine out-of-spread
// step count to the gauge set.
func (r *Runtime) RecordSpreadCheck(outOfSpread int) {
	spread.RecordMetrics(r.Gauges, r.accountRef, outOfSpread)
}

// Close stops the worker pool and flushes any buffered log entries.
func (r *Runtime) Close() error {
	r.Pool.Stop()
	if syncer, ok := r.Logger.(interface{ Sync() error }); ok {
		return syncer.Sync()
	}
	return nil
}
