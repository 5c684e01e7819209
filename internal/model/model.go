// Package model defines the Grid Engine's core data types: the Asset and
// Order (slot) entities, the Grid container, and the state/type predicates
// that the rest of the engine pattern-matches against (spec §3, §8 "Dynamic
// object / duck-typed records").
package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Asset is immutable after initial load (spec §3: "Asset {id, symbol,
// precision}").
type Asset struct {
	ID        string
	Symbol    string
	Precision int32
}

// SlotType is the role a slot plays in the grid.
type SlotType string

const (
	TypeBuy    SlotType = "BUY"
	TypeSell   SlotType = "SELL"
	TypeSpread SlotType = "SPREAD"
)

// SlotState is the on-chain lifecycle state of a slot.
type SlotState string

const (
	StateVirtual SlotState = "VIRTUAL"
	StateActive  SlotState = "ACTIVE"
	StatePartial SlotState = "PARTIAL"
)

// RawChainOrder is the minimal parsed chain record kept for precise fund
// release on cancel (spec §3: "rawOnChain: optional parsed chain record").
type RawChainOrder struct {
	ForSale decimal.Decimal
	Base    decimal.Decimal
	Quote   decimal.Decimal
}

// Order is the atom of the grid — spec §3 calls it "Order (slot)".
type Order struct {
	ID         string
	Price      decimal.Decimal
	Size       decimal.Decimal
	Type       SlotType
	State      SlotState
	OrderID    string
	RawOnChain *RawChainOrder
}

// Clone returns a deep-enough copy of the order for COW working-grid use —
// RawOnChain is shared (immutable once set) but every mutable scalar field
// is copied.
func (o Order) Clone() Order {
	clone := o
	return clone
}

// IsPlaced reports whether a slot currently holds an on-chain identity.
func (o Order) IsPlaced() bool {
	return o.State == StateActive || o.State == StatePartial
}

// IsPhantom reports an invariant-3 violation: a slot claims to be placed
// but carries no orderId (spec §3 invariant 3, §8 glossary "Phantom
// order").
func (o Order) IsPhantom() bool {
	return o.IsPlaced() && o.OrderID == ""
}

// IsSlotAvailable reports whether a slot is a candidate for activation,
// i.e. it is VIRTUAL (has no chain presence). Its size is not checked;
// callers filter on size themselves.
func (o Order) IsSlotAvailable() bool {
	return o.State == StateVirtual
}

// IsDust reports whether a PARTIAL order's remaining size has fallen below
// the dust threshold relative to ideal (spec glossary "Dust").
func (o Order) IsDust(ideal decimal.Decimal, dustPercent decimal.Decimal) bool {
	if o.State != StatePartial {
		return false
	}
	threshold := ideal.Mul(dustPercent).Div(decimal.NewFromInt(100))
	return o.Size.LessThan(threshold)
}

// Funds is the per-run accounting snapshot (spec §3: "Funds snapshot").
type Funds struct {
	ChainFreeBuy   decimal.Decimal
	ChainFreeSell  decimal.Decimal
	CommittedBuy   decimal.Decimal
	CommittedSell  decimal.Decimal
	CacheFundsBuy  decimal.Decimal
	CacheFundsSell decimal.Decimal
	AllocatedBuy   decimal.Decimal
	AllocatedSell  decimal.Decimal
	BTSFeesOwed    decimal.Decimal
}

// ChainTotalBuy returns chainFree + committed for the buy side (spec §3
// invariant 4).
func (f Funds) ChainTotalBuy() decimal.Decimal {
	return f.ChainFreeBuy.Add(f.CommittedBuy)
}

// ChainTotalSell returns chainFree + committed for the sell side.
func (f Funds) ChainTotalSell() decimal.Decimal {
	return f.ChainFreeSell.Add(f.CommittedSell)
}

// Side identifies which rail of the grid an operation concerns.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// DivergenceReport is produced by the Divergence Monitor for one side
// (spec §3: "Divergence report").
type DivergenceReport struct {
	Ratio   bool
	RMS     bool
	Metric  float64
	Updated bool
}

// Grid is an immutable, price-ordered sequence of slots (spec §3: "An
// ordered sequence of slots, strictly ascending by price. Accessed through
// an immutable container; mutation produces a new container (COW)."). A
// Grid value is never mutated in place — every transform in this codebase
// returns a new Grid built via New/With* helpers.
type Grid struct {
	slots       []Order
	byID        map[string]int
	boundaryIdx int
	version     int64
}

// New builds a frozen Grid from an ascending, role-contiguous slice of
// orders. It does not validate ordering/contiguity — callers (gridengine)
// are responsible for that at construction time (spec invariants 1–2).
func New(slots []Order, boundaryIdx int, version int64) Grid {
	frozen := make([]Order, len(slots))
	copy(frozen, slots)
	byID := make(map[string]int, len(frozen))
	for i, s := range frozen {
		byID[s.ID] = i
	}
	return Grid{slots: frozen, byID: byID, boundaryIdx: boundaryIdx, version: version}
}

// Len returns the slot count.
func (g Grid) Len() int { return len(g.slots) }

// Slots returns a read-only view of the ordered slots. Callers must treat
// the returned slice as immutable.
func (g Grid) Slots() []Order { return g.slots }

// At returns the slot at index i.
func (g Grid) At(i int) Order { return g.slots[i] }

// BoundaryIdx returns the last index assigned to BUY (spec §3: "Boundary
// index").
func (g Grid) BoundaryIdx() int { return g.boundaryIdx }

// Version returns the grid's commit version (spec §4.H: "_gridVersion").
func (g Grid) Version() int64 { return g.version }

// ByID looks up a slot's index by id.
func (g Grid) ByID(id string) (int, bool) {
	idx, ok := g.byID[id]
	return idx, ok
}

// WithSlots returns a new frozen Grid with the slot list replaced,
// preserving boundary/version unless the caller overrides them via
// WithBoundary/WithVersion — this is the COW replace-the-container step
// (spec §3: "mutation produces a new container").
func (g Grid) WithSlots(slots []Order) Grid {
	return New(slots, g.boundaryIdx, g.version)
}

// WithBoundary returns a copy of the grid with a new boundary index.
func (g Grid) WithBoundary(boundaryIdx int) Grid {
	return New(g.slots, boundaryIdx, g.version)
}

// WithVersion returns a copy of the grid with a new version stamp.
func (g Grid) WithVersion(version int64) Grid {
	return New(g.slots, g.boundaryIdx, version)
}

// ReplaceAt returns a new Grid with the slot at idx replaced by next,
// leaving every other slot and the boundary untouched. This is the COW
// primitive behind _applyOrderUpdate (spec §4.D).
func (g Grid) ReplaceAt(idx int, next Order) Grid {
	slots := make([]Order, len(g.slots))
	copy(slots, g.slots)
	slots[idx] = next
	return g.WithSlots(slots)
}

// BuyEnd returns the last BUY index (== boundaryIdx).
func (g Grid) BuyEnd() int { return g.boundaryIdx }

// SellStart returns the first SELL index, scanning forward from the
// boundary (spec §3 invariant 2: role contiguity).
func (g Grid) SellStart() int {
	for i := g.boundaryIdx + 1; i < len(g.slots); i++ {
		if g.slots[i].Type == TypeSell {
			return i
		}
	}
	return len(g.slots)
}

// ValidateInvariants checks invariants 1–2 of spec §3 and returns a
// descriptive error on the first violation found. Invariant 3 (phantom
// coherence) is enforced continuously by the sanitizing callers
// (loadGrid, reconcileStartupOrders) rather than checked here, since a
// phantom is expected transient state, not a hard failure.
func (g Grid) ValidateInvariants() error {
	if len(g.slots) == 0 {
		return fmt.Errorf("grid: empty")
	}
	var sawBuy, sawSell bool
	for i := 1; i < len(g.slots); i++ {
		if !g.slots[i].Price.GreaterThan(g.slots[i-1].Price) {
			return fmt.Errorf("grid: prices not strictly ascending at index %d", i)
		}
	}
	seen := make(map[string]bool, len(g.slots))
	for _, s := range g.slots {
		if seen[s.ID] {
			return fmt.Errorf("grid: duplicate id %q", s.ID)
		}
		seen[s.ID] = true
		switch s.Type {
		case TypeBuy:
			sawBuy = true
		case TypeSell:
			sawSell = true
		}
	}
	if !sawBuy || !sawSell {
		return fmt.Errorf("grid: must contain at least one BUY and one SELL slot")
	}
	sawSpreadAfterBuy, sawSellAfterSpread := false, false
	for _, s := range g.slots {
		switch {
		case s.Type == TypeBuy && (sawSpreadAfterBuy || sawSellAfterSpread):
			return fmt.Errorf("grid: BUY slot out of contiguous zone")
		case s.Type == TypeSpread && sawSellAfterSpread:
			return fmt.Errorf("grid: SPREAD slot out of contiguous zone")
		}
		if s.Type == TypeSpread {
			sawSpreadAfterBuy = true
		}
		if s.Type == TypeSell {
			sawSellAfterSpread = true
		}
	}
	return nil
}
