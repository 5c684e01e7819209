package gridengine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"market_maker/internal/core"
	"market_maker/internal/model"
	"market_maker/internal/sizing"
	apperrors "market_maker/pkg/errors"

	"github.com/shopspring/decimal"
)

// ManagerConfig carries the tuning/account parameters the Manager needs
// beyond grid geometry (spec §5 configuration surface).
type ManagerConfig struct {
	AssetA, AssetB          model.Asset
	FeeAssetID              string
	TargetBuyOrders         int
	TargetSellOrders        int
	BotFundsBuy             decimal.Decimal // allocated budget, buy side
	BotFundsSell            decimal.Decimal // allocated budget, sell side
	BTSReservationMult      decimal.Decimal
	AccountTotalsTimeout    time.Duration
	IncrementPercent        decimal.Decimal
}

// Manager owns the master grid and enforces the grid-lock/COW mutation
// discipline of spec §4.D/§4.H. The grid itself is held behind an
// atomic.Pointer so readers outside the lock never block and always see a
// frozen, torn-free snapshot; mutators serialize through gridLock.
type Manager struct {
	gridLock sync.Mutex // the "grid lock" of spec §4.H
	grid     atomic.Pointer[model.Grid]

	fundsMu sync.RWMutex
	funds   model.Funds

	targetSpreadCount  int
	currentSpreadCount int
	versionMu          sync.Mutex
	version            int64

	cfg    ManagerConfig
	logger core.ILogger
	oracle core.IPriceOracle
	totals core.IAccountTotals
}

// NewManager constructs a Manager with an empty grid; call InitializeGrid
// or LoadGrid before use.
func NewManager(cfg ManagerConfig, logger core.ILogger, oracle core.IPriceOracle, totals core.IAccountTotals) *Manager {
	return &Manager{cfg: cfg, logger: logger, oracle: oracle, totals: totals}
}

// Grid returns the current frozen master grid. Safe to call without
// holding the grid lock.
func (m *Manager) Grid() model.Grid {
	g := m.grid.Load()
	if g == nil {
		return model.Grid{}
	}
	return *g
}

// Funds returns a copy of the current funds snapshot.
func (m *Manager) Funds() model.Funds {
	m.fundsMu.RLock()
	defer m.fundsMu.RUnlock()
	return m.funds
}

func (m *Manager) nextVersion() int64 {
	m.versionMu.Lock()
	defer m.versionMu.Unlock()
	m.version++
	return m.version
}

// InitializeGrid runs the full grid-creation path under the grid lock
// (spec §4.D "initializeGrid"): derive price if needed, wait for account
// totals, create the grid, size both sides, verify minimums, write the
// sizes into the new grid, and store it as the master grid while the lock
// is still held.
func (m *Manager) InitializeGrid(ctx context.Context, cfg Config, priceMode core.PriceMode, assetASymbol, assetBSymbol string) error {
	m.gridLock.Lock()
	defer m.gridLock.Unlock()

	if cfg.StartPrice.IsZero() {
		derived, err := m.oracle.DerivePrice(ctx, assetASymbol, assetBSymbol, priceMode)
		if err != nil {
			return fmt.Errorf("derive start price: %w", err)
		}
		cfg.StartPrice = derived
	}

	totals, err := m.totals.WaitForAccountTotals(ctx, m.cfg.AccountTotalsTimeout)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrAccountTotalsUnavailable, err)
	}

	grid, err := CreateOrderGrid(cfg)
	if err != nil {
		return err
	}

	isFeeBuy := m.cfg.FeeAssetID == m.cfg.AssetB.ID
	isFeeSell := m.cfg.FeeAssetID == m.cfg.AssetA.ID

	buySlots := BuySlots(grid)
	sellSlots := SellSlots(grid)

	buyCtx := sizing.GetSizingContext(model.SideBuy, m.cfg.BotFundsBuy, isFeeBuy, m.cfg.TargetBuyOrders, m.cfg.TargetSellOrders, m.cfg.BTSReservationMult)
	sellCtx := sizing.GetSizingContext(model.SideSell, m.cfg.BotFundsSell, isFeeSell, m.cfg.TargetBuyOrders, m.cfg.TargetSellOrders, m.cfg.BTSReservationMult)

	buyAlloc, err := sizing.SizeSide(buyCtx.Budget, len(buySlots), m.cfg.IncrementPercent, m.cfg.AssetB.Precision)
	if err != nil {
		return err
	}
	sellAlloc, err := sizing.SizeSide(sellCtx.Budget, len(sellSlots), m.cfg.IncrementPercent, m.cfg.AssetA.Precision)
	if err != nil {
		return err
	}

	// BUY weights run nearest-to-market outward from the boundary; index 0
	// of buyAlloc corresponds to the innermost BUY slot, so apply in
	// reverse over the ascending-price buySlots.
	slots := append([]model.Order(nil), grid.Slots()...)
	buyIdx := 0
	for i := len(buySlots) - 1; i >= 0; i-- {
		target, _ := grid.ByID(buySlots[i].ID)
		slots[target].Size = buyAlloc.Sizes[buyIdx]
		buyIdx++
	}
	for i, s := range sellSlots {
		target, _ := grid.ByID(s.ID)
		slots[target].Size = sellAlloc.Sizes[i]
	}
	grid = grid.WithSlots(slots)

	m.fundsMu.Lock()
	m.funds = model.Funds{
		ChainFreeBuy:   totals.ChainFreeB,
		ChainFreeSell:  totals.ChainFreeA,
		CacheFundsBuy:  buyAlloc.CacheFunds,
		CacheFundsSell: sellAlloc.CacheFunds,
		AllocatedBuy:   m.cfg.BotFundsBuy,
		AllocatedSell:  m.cfg.BotFundsSell,
	}
	m.fundsMu.Unlock()

	grid = grid.WithVersion(m.nextVersion())
	m.grid.Store(&grid)

	m.targetSpreadCount = grid.SellStart() - grid.BoundaryIdx() - 1
	m.currentSpreadCount = m.targetSpreadCount

	return nil
}

// LoadGrid replaces the master grid atomically from a persisted snapshot,
// sanitizing any phantom slots encountered along the way (spec §4.D
// "loadGrid").
func (m *Manager) LoadGrid(snapshot core.GridSnapshot, assetAPrecision, assetBPrecision int32) error {
	m.gridLock.Lock()
	defer m.gridLock.Unlock()

	slots := make([]model.Order, len(snapshot.Slots))
	for i, s := range snapshot.Slots {
		o := model.Order{
			ID:      s.ID,
			Price:   s.Price,
			Size:    s.Size,
			Type:    model.SlotType(s.Type),
			State:   model.SlotState(s.State),
			OrderID: s.OrderID,
		}
		if o.IsPhantom() {
			m.logger.Warn("sanitizing phantom slot on load", "slotId", o.ID)
			o.State = model.StateVirtual
			o.OrderID = ""
		}
		slots[i] = o
	}

	m.fundsMu.RLock()
	cacheBuy, cacheSell, fees := m.funds.CacheFundsBuy, m.funds.CacheFundsSell, m.funds.BTSFeesOwed
	m.fundsMu.RUnlock()

	g := model.New(slots, snapshot.BoundaryIdx, m.nextVersion())
	if err := g.ValidateInvariants(); err != nil {
		return fmt.Errorf("loadGrid: %w", err)
	}
	m.grid.Store(&g)

	m.fundsMu.Lock()
	m.funds.CacheFundsBuy = cacheBuy
	m.funds.CacheFundsSell = cacheSell
	m.funds.BTSFeesOwed = fees
	m.fundsMu.Unlock()

	m.targetSpreadCount = g.SellStart() - g.BoundaryIdx() - 1
	m.currentSpreadCount = m.targetSpreadCount
	return nil
}

// MutationContext carries the bookkeeping side effects of a slot mutation
// (spec §4.D "_applyOrderUpdate(order, context, skipAccounting, fee)").
type MutationContext struct {
	Side        model.Side
	SizeDelta   decimal.Decimal // realized free-balance delta to apply, signed
	Fee         decimal.Decimal // debited from btsFeesOwed if nonzero
}

// applyOrderUpdate replaces a slot in the working/master grid and, unless
// skipAccounting is set, adjusts chainFree/committed/btsFeesOwed for the
// realized delta. The caller MUST already hold the grid lock — this
// method never acquires it (spec §4.D: "_applyOrderUpdate assumes the
// caller holds it").
func (m *Manager) applyOrderUpdate(next model.Order, mctx MutationContext, skipAccounting bool) error {
	g := m.Grid()
	idx, ok := g.ByID(next.ID)
	if !ok {
		return fmt.Errorf("applyOrderUpdate: unknown slot %q", next.ID)
	}
	g = g.ReplaceAt(idx, next)
	g = g.WithVersion(m.nextVersion())
	m.grid.Store(&g)

	if skipAccounting {
		return nil
	}

	m.fundsMu.Lock()
	defer m.fundsMu.Unlock()
	switch mctx.Side {
	case model.SideBuy:
		m.funds.ChainFreeBuy = m.funds.ChainFreeBuy.Sub(mctx.SizeDelta)
		m.funds.CommittedBuy = m.funds.CommittedBuy.Add(mctx.SizeDelta)
	case model.SideSell:
		m.funds.ChainFreeSell = m.funds.ChainFreeSell.Sub(mctx.SizeDelta)
		m.funds.CommittedSell = m.funds.CommittedSell.Add(mctx.SizeDelta)
	}
	if !mctx.Fee.IsZero() {
		m.funds.BTSFeesOwed = m.funds.BTSFeesOwed.Sub(mctx.Fee)
	}
	return nil
}

// UpdateOrder is the public, lock-acquiring counterpart to
// applyOrderUpdate (spec §4.D: "_updateOrder (public) acquires the grid
// lock then delegates"). Callers must never call both within one critical
// section — WithGridLock is provided for call sites (the
// Reconciliation/Divergence/Spread engines) that already hold the lock.
func (m *Manager) UpdateOrder(next model.Order, mctx MutationContext, skipAccounting bool) error {
	m.gridLock.Lock()
	defer m.gridLock.Unlock()
	return m.applyOrderUpdate(next, mctx, skipAccounting)
}

// WithGridLock runs fn with the grid lock held, giving callers that need
// to perform several applyOrderUpdate-equivalent steps as one atomic
// mutation (Reconciliation startup sweep, Divergence COW commit, Spread
// correction) a single critical section instead of one lock acquisition
// per slot.
func (m *Manager) WithGridLock(fn func(apply func(next model.Order, mctx MutationContext, skipAccounting bool) error) error) error {
	m.gridLock.Lock()
	defer m.gridLock.Unlock()
	return fn(m.applyOrderUpdate)
}

// CommitGrid atomically swaps the master grid for a new one (the COW
// commit step of spec §4.F/§4.H), rejecting the swap with
// ErrVersionConflict if baseVersion no longer matches the current master
// version.
func (m *Manager) CommitGrid(next model.Grid, baseVersion int64) error {
	m.gridLock.Lock()
	defer m.gridLock.Unlock()

	current := m.Grid()
	if current.Version() != baseVersion {
		return apperrors.ErrVersionConflict
	}
	next = next.WithVersion(m.nextVersion())
	m.grid.Store(&next)
	return nil
}

// TargetSpreadCount returns the configured spread-gap slot count.
func (m *Manager) TargetSpreadCount() int { return m.targetSpreadCount }

// CurrentSpreadCount returns the live spread-gap slot count.
func (m *Manager) CurrentSpreadCount() int { return m.currentSpreadCount }

// SetCurrentSpreadCount updates the live spread-gap slot count.
func (m *Manager) SetCurrentSpreadCount(n int) { m.currentSpreadCount = n }
