package reconcile

import (
	"sort"

	"market_maker/internal/core"
	"market_maker/internal/gridengine"
	"market_maker/internal/model"
	"market_maker/internal/money"

	"github.com/shopspring/decimal"
)

// ActionKind distinguishes the three operation types a reconciliation pass
// can plan.
type ActionKind int

const (
	ActionUpdate ActionKind = iota
	ActionCreate
	ActionCancel
)

// PlannedAction is one operation produced by planning — either a slot
// target to push to chain (Update/Create) or a chain order to retire
// (Cancel).
type PlannedAction struct {
	Kind         ActionKind
	SlotID       string
	TargetPrice  decimal.Decimal
	TargetSize   decimal.Decimal
	ChainOrderID string
}

// SidePlan is the output of planning one side of the book.
type SidePlan struct {
	Side    model.Side
	Updates []PlannedAction
	Creates []PlannedAction
	Cancels []PlannedAction
}

// PhantomSweep returns the ids of every slot on the given side whose state
// claims an on-chain presence the chain order set does not corroborate
// (spec §4.E step 1). Callers apply the downgrade to VIRTUAL via the
// Manager's unlocked applier before re-planning.
func PhantomSweep(g model.Grid, side model.Side, chainIDs map[string]bool) []string {
	var ids []string
	for i := 0; i < g.Len(); i++ {
		s := g.At(i)
		if !sideMatches(s.Type, side) {
			continue
		}
		if s.IsPlaced() && !chainIDs[s.OrderID] {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

func sideMatches(t model.SlotType, side model.Side) bool {
	if side == model.SideBuy {
		return t == model.TypeBuy
	}
	return t == model.TypeSell
}

// UnmatchedChainOrders returns the chain orders on the given side that are
// not currently linked to any grid slot's orderId.
func UnmatchedChainOrders(g model.Grid, side model.Side, chainOrders []core.ChainOrder) []core.ChainOrder {
	linked := make(map[string]bool)
	for i := 0; i < g.Len(); i++ {
		s := g.At(i)
		if sideMatches(s.Type, side) && s.IsPlaced() {
			linked[s.OrderID] = true
		}
	}
	var out []core.ChainOrder
	for _, co := range chainOrders {
		if !linked[co.ID] && isChainOrderOnSide(co, side) {
			out = append(out, co)
		}
	}
	return out
}

// isChainOrderOnSide is a placeholder seam: the chain order's side is
// ultimately determined by the caller that partitions ReadOpenOrders into
// per-side slices before invoking planning, so by the time PlanSide runs
// every order handed to it already belongs to the given side.
func isChainOrderOnSide(core.ChainOrder, model.Side) bool { return true }

// DesiredActivationSlots picks up to `count` VIRTUAL slots on the given
// side nearest the market (BUY: descending price i.e. highest buy first;
// SELL: ascending price) with size >= minAbsSize (spec §4.E step 4).
func DesiredActivationSlots(g model.Grid, side model.Side, count int, minAbsSize decimal.Decimal) []model.Order {
	var candidates []model.Order
	for i := 0; i < g.Len(); i++ {
		s := g.At(i)
		if sideMatches(s.Type, side) && s.IsSlotAvailable() && s.Size.GreaterThanOrEqual(minAbsSize) {
			candidates = append(candidates, s)
		}
	}
	if side == model.SideBuy {
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].Price.GreaterThan(candidates[j].Price) })
	} else {
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].Price.LessThan(candidates[j].Price) })
	}
	if len(candidates) > count {
		candidates = candidates[:count]
	}
	return candidates
}

// PlanSide runs the full per-side startup reconciliation plan (spec §4.E
// steps 3–8), assuming the phantom sweep has already been applied to g.
func PlanSide(
	g model.Grid,
	side model.Side,
	unmatchedChainOrders []core.ChainOrder,
	targetCount int,
	minAbsSize decimal.Decimal,
	sideFreeBalance decimal.Decimal,
	precision int32,
) SidePlan {
	plan := SidePlan{Side: side}

	activeOnGrid := 0
	for i := 0; i < g.Len(); i++ {
		s := g.At(i)
		if sideMatches(s.Type, side) && s.IsPlaced() {
			activeOnGrid++
		}
	}

	toActivate := targetCount - activeOnGrid
	if toActivate < 0 {
		toActivate = 0
	}
	desired := DesiredActivationSlots(g, side, toActivate, minAbsSize)

	// Step 5: pair unmatched chain orders to desired slots outside-in.
	free := sideFreeBalance
	pairCount := len(unmatchedChainOrders)
	if len(desired) < pairCount {
		pairCount = len(desired)
	}
	for i := 0; i < pairCount; i++ {
		slot := desired[len(desired)-1-i] // desired is nearest-market first
		chainOrd := unmatchedChainOrders[i]
		delta := slot.Size.Sub(chainOrd.ForSale)
		if delta.IsPositive() && delta.GreaterThan(free) {
			continue // cannot cover increase, skip pairing this one
		}
		if delta.IsPositive() {
			free = free.Sub(delta)
		}
		plan.Updates = append(plan.Updates, PlannedAction{
			Kind:         ActionUpdate,
			SlotID:       slot.ID,
			TargetPrice:  slot.Price,
			TargetSize:   slot.Size,
			ChainOrderID: chainOrd.ID,
		})
	}

	remainingDesired := desired[:len(desired)-pairCount]
	remainingChain := unmatchedChainOrders[pairCount:]

	// Step 6: edge-full detection — if the N outermost slots are all
	// ACTIVE (N = planned update count so far), free funds by cancelling
	// the largest remaining unmatched chain order, then plan a fresh
	// create for the corresponding slot.
	n := len(plan.Updates)
	if n > 0 {
		var edge []model.Order
		if side == model.SideBuy {
			edge = gridengine.OutermostBuySlots(g, n)
		} else {
			edge = gridengine.OutermostSellSlots(g, n)
		}
		if gridengine.IsGridEdgeFullyActive(edge) && len(remainingChain) > 0 && len(remainingDesired) > 0 {
			largest := largestChainOrder(remainingChain)
			plan.Cancels = append(plan.Cancels, PlannedAction{Kind: ActionCancel, ChainOrderID: largest.ID})
			slot := remainingDesired[0]
			plan.Creates = append(plan.Creates, PlannedAction{
				Kind: ActionCreate, SlotID: slot.ID, TargetPrice: slot.Price, TargetSize: slot.Size,
			})
			remainingDesired = remainingDesired[1:]
			remainingChain = removeChainOrder(remainingChain, largest.ID)
		}
	}

	// Step 7: missing orders — chain has fewer than target.
	for _, slot := range remainingDesired {
		if slot.Size.IsZero() {
			continue
		}
		plan.Creates = append(plan.Creates, PlannedAction{
			Kind: ActionCreate, SlotID: slot.ID, TargetPrice: slot.Price, TargetSize: slot.Size,
		})
	}

	// Step 8: excess orders — chain has more than target; cancel
	// remaining unmatched orders outside-in (outside = furthest from
	// market = largest price deviation; approximated here by planning
	// cancellation of every remaining unmatched order, since by
	// construction remainingChain only holds orders that could not be
	// paired to a desired slot).
	for _, co := range remainingChain {
		plan.Cancels = append(plan.Cancels, PlannedAction{Kind: ActionCancel, ChainOrderID: co.ID})
	}

	return plan
}

// NeedsFullRebalance reports whether both sides contain dust partials,
// the trigger for a post-reconcile full safe rebalance via the COW path
// (spec §4.E "Post-reconcile").
func NeedsFullRebalance(g model.Grid, idealBuy, idealSell, dustPercent decimal.Decimal) bool {
	hasBuyDust, hasSellDust := false, false
	for i := 0; i < g.Len(); i++ {
		s := g.At(i)
		if s.State != model.StatePartial {
			continue
		}
		switch s.Type {
		case model.TypeBuy:
			if money.IsDust(s.Size, idealBuy, dustPercent) {
				hasBuyDust = true
			}
		case model.TypeSell:
			if money.IsDust(s.Size, idealSell, dustPercent) {
				hasSellDust = true
			}
		}
	}
	return hasBuyDust && hasSellDust
}

func largestChainOrder(orders []core.ChainOrder) core.ChainOrder {
	largest := orders[0]
	for _, o := range orders[1:] {
		if o.ForSale.GreaterThan(largest.ForSale) {
			largest = o
		}
	}
	return largest
}

func removeChainOrder(orders []core.ChainOrder, id string) []core.ChainOrder {
	out := make([]core.ChainOrder, 0, len(orders))
	for _, o := range orders {
		if o.ID != id {
			out = append(out, o)
		}
	}
	return out
}
