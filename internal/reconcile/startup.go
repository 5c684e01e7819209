// Package reconcile implements the Reconciliation Engine: the startup
// decision, the phantom/price-match sweep, and outside-in batch
// update/create/cancel planning against the chain order book (spec §4.E).
package reconcile

import (
	"market_maker/internal/core"
	"market_maker/internal/model"
)

// StartupAction is the totality of decideStartupGridAction's return value
// (spec §7 law: "returns exactly one of regenerate | resume | resumeByPrice").
type StartupAction string

const (
	ActionRegenerate    StartupAction = "regenerate"
	ActionResume        StartupAction = "resume"
	ActionResumeByPrice StartupAction = "resumeByPrice"
)

// DecideStartupGridAction implements spec §4.E "Startup decision". The
// price-based resume branch itself (loading the persisted grid and
// calling synchronizeWithChain) is performed by the caller — this
// function only classifies the three simple, synchronous cases and
// reports when the caller must attempt price-based resume.
func DecideStartupGridAction(persisted *core.GridSnapshot, chainOrders []core.ChainOrder) StartupAction {
	if persisted == nil || len(persisted.Slots) == 0 {
		return ActionRegenerate
	}

	chainIDs := make(map[string]bool, len(chainOrders))
	for _, co := range chainOrders {
		chainIDs[co.ID] = true
	}

	for _, s := range persisted.Slots {
		if s.State == string(model.StateActive) && s.OrderID != "" && chainIDs[s.OrderID] {
			return ActionResume
		}
	}

	if len(chainOrders) > 0 {
		return ActionResumeByPrice
	}
	return ActionRegenerate
}

// PriceMatchTolerance is the default proximity tolerance (percent) for
// adopting a chain order into a persisted slot by price. Nothing in this
// package applies it; the matching itself is done by the caller.
const PriceMatchTolerance = 0.5

// CountPriceMatches reports how many slots in the grid are placed
// (ACTIVE or PARTIAL) — after the caller has synchronized the grid with
// the chain, this is the signal that decides whether price-based resume
// succeeds (> 0) or falls back to regenerate. It applies no price or size
// tolerance itself.
func CountPriceMatches(g model.Grid) int {
	count := 0
	for i := 0; i < g.Len(); i++ {
		if g.At(i).IsPlaced() {
			count++
		}
	}
	return count
}
