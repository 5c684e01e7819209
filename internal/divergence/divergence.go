// Package divergence implements the Divergence Monitor: the ratio and RMS
// tests that decide when a side's resting sizes have drifted far enough
// from their geometric ideal to warrant a COW resize (spec §4.F).
package divergence

import (
	"math"

	"market_maker/internal/gridengine"
	"market_maker/internal/model"
	"market_maker/internal/sizing"
	"market_maker/pkg/metrics"

	"github.com/shopspring/decimal"
)

// OrderType identifies which side(s) a divergence report calls out.
type OrderType string

const (
	OrderTypeBuy  OrderType = "buy"
	OrderTypeSell OrderType = "sell"
	OrderTypeBoth OrderType = "both"
)

// Report is the union of the two tests across both sides (spec §4.F
// "Output").
type Report struct {
	NeedsUpdate bool
	Buy         model.DivergenceReport
	Sell        model.DivergenceReport
	OrderType   OrderType
}

// RatioTest runs the cheap cache/allocated-funds ratio check for one side
// (spec §4.F "Ratio test"). pending is max(cacheFunds, availableForSide);
// the side is flagged once pending crosses regenerationPercent of
// allocated.
func RatioTest(cacheFunds, availableForSide, allocated, regenerationPercent decimal.Decimal) (flagged bool, metric decimal.Decimal) {
	pending := cacheFunds
	if availableForSide.GreaterThan(pending) {
		pending = availableForSide
	}
	if allocated.IsZero() {
		return false, decimal.Zero
	}
	ratio := pending.Div(allocated).Mul(decimal.NewFromInt(100))
	return ratio.GreaterThanOrEqual(regenerationPercent), ratio
}

// RMSTest compares ideal geometric sizes against persisted ACTIVE sizes
// (spec §4.F "RMS test"). A threshold of 0 disables the test. Slices must
// be index-aligned (ideal[i] corresponds to actual[i]).
func RMSTest(ideal, actual []decimal.Decimal, rmsPercentThreshold decimal.Decimal) (flagged bool, rmsPercent float64) {
	if rmsPercentThreshold.IsZero() || len(actual) == 0 {
		return false, 0
	}
	sumSq := 0.0
	n := 0
	for i, a := range actual {
		if a.IsZero() || i >= len(ideal) {
			continue
		}
		idealF, _ := ideal[i].Float64()
		actualF, _ := a.Float64()
		ratio := (idealF - actualF) / actualF
		sumSq += ratio * ratio
		n++
	}
	if n == 0 {
		return false, 0
	}
	rms := 100 * math.Sqrt(sumSq/float64(n))
	threshold, _ := rmsPercentThreshold.Float64()
	return rms > threshold, rms
}

// EvaluateSide runs both tests for one side and folds the results into a
// model.DivergenceReport.
func EvaluateSide(cacheFunds, availableForSide, allocated, regenerationPercent decimal.Decimal, ideal, actual []decimal.Decimal, rmsThreshold decimal.Decimal) model.DivergenceReport {
	ratioFlag, ratioMetric := RatioTest(cacheFunds, availableForSide, allocated, regenerationPercent)
	rmsFlag, rmsMetric := RMSTest(ideal, actual, rmsThreshold)
	metric, _ := ratioMetric.Float64()
	if rmsFlag {
		metric = rmsMetric
	}
	return model.DivergenceReport{
		Ratio:   ratioFlag,
		RMS:     rmsFlag,
		Metric:  metric,
		Updated: false,
	}
}

// Evaluate runs EvaluateSide for both sides and folds the outcome into the
// union report the Grid Engine dispatches on (spec §4.F "Output").
func Evaluate(buy, sell model.DivergenceReport) Report {
	r := Report{Buy: buy, Sell: sell}
	buyFlag := buy.Ratio || buy.RMS
	sellFlag := sell.Ratio || sell.RMS
	r.NeedsUpdate = buyFlag || sellFlag
	switch {
	case buyFlag && sellFlag:
		r.OrderType = OrderTypeBoth
	case buyFlag:
		r.OrderType = OrderTypeBuy
	case sellFlag:
		r.OrderType = OrderTypeSell
	}
	return r
}

// RecordMetrics folds a Report plus the Manager's current funds/grid state
// into the shared health gauges (spec's ambient metrics surface: "exercised
// by the Divergence Monitor"). g may be nil, in which case this is a no-op —
// callers that did not wire a registry (e.g. most tests) can call it
// unconditionally.
func RecordMetrics(g *metrics.Gauges, report Report, funds model.Funds, gridVersion int64, boundaryIdx int) {
	if g == nil {
		return
	}
	g.DivergenceRMSPercent.WithLabelValues("buy").Set(report.Buy.Metric)
	g.DivergenceRMSPercent.WithLabelValues("sell").Set(report.Sell.Metric)
	cacheBuy, _ := funds.CacheFundsBuy.Float64()
	cacheSell, _ := funds.CacheFundsSell.Float64()
	g.CacheFunds.WithLabelValues("buy").Set(cacheBuy)
	g.CacheFunds.WithLabelValues("sell").Set(cacheSell)
	g.GridVersion.Set(float64(gridVersion))
	g.BoundaryIndex.Set(float64(boundaryIdx))
}

// ResizeAction is one planned size update produced by the COW resize pass.
type ResizeAction struct {
	SlotID  string
	OldSize decimal.Decimal
	NewSize decimal.Decimal
}

// ResizeResult is the COW working-grid output of
// updateGridFromBlockchainSnapshot (spec §4.F). A nil result means no
// changes were found.
type ResizeResult struct {
	Actions         []ResizeAction
	WorkingGrid     model.Grid
	WorkingBoundary int
	HasChanges      bool
}

// UpdateGridFromBlockchainSnapshot clones the frozen grid into a working
// grid, recomputes geometric ideal sizes per side with bounded growth
// (ACTIVE/PARTIAL expansion capped by free balance; shrinkage releases
// freed balance to a running pool for later slots), and accumulates
// UPDATE actions only where the integer-unit size actually changed (spec
// §4.F "updateGridFromBlockchainSnapshot (COW)").
func UpdateGridFromBlockchainSnapshot(
	frozen model.Grid,
	orderType OrderType,
	incrementPercent decimal.Decimal,
	precision int32,
	buyFreeBalance, sellFreeBalance decimal.Decimal,
) *ResizeResult {
	working := frozen.WithSlots(append([]model.Order(nil), frozen.Slots()...))
	var actions []ResizeAction

	if orderType == OrderTypeBuy || orderType == OrderTypeBoth {
		working, buyActions := resizeSide(working, model.SideBuy, incrementPercent, precision, buyFreeBalance)
		actions = append(actions, buyActions...)
		frozen = working
	}
	if orderType == OrderTypeSell || orderType == OrderTypeBoth {
		working, sellActions := resizeSide(frozen, model.SideSell, incrementPercent, precision, sellFreeBalance)
		actions = append(actions, sellActions...)
		frozen = working
	}

	if len(actions) == 0 {
		return nil
	}
	return &ResizeResult{
		Actions:         actions,
		WorkingGrid:     frozen,
		WorkingBoundary: frozen.BoundaryIdx(),
		HasChanges:      true,
	}
}

func resizeSide(g model.Grid, side model.Side, incrementPercent decimal.Decimal, precision int32, freeBalance decimal.Decimal) (model.Grid, []ResizeAction) {
	var slotSlice []model.Order
	if side == model.SideBuy {
		slotSlice = gridengine.BuySlots(g)
		// Index 0 is the BUY slot nearest the market, the same order
		// InitializeGrid applies buy weights in.
		for i, j := 0, len(slotSlice)-1; i < j; i, j = i+1, j-1 {
			slotSlice[i], slotSlice[j] = slotSlice[j], slotSlice[i]
		}
	} else {
		slotSlice = gridengine.SellSlots(g)
	}
	if len(slotSlice) == 0 {
		return g, nil
	}

	weights := sizing.GeometricWeights(len(slotSlice), incrementPercent)
	shares := sizing.Shares(weights)

	// Ideal sizes are shares of the side's current committed total plus its
	// free balance (rotation sizing re-derives shares against the existing
	// budget rather than re-deriving the budget itself — that stays owned by
	// Manager).
	committed := decimal.Zero
	for _, s := range slotSlice {
		if s.IsPlaced() {
			committed = committed.Add(s.Size)
		}
	}
	budget := committed.Add(freeBalance)

	var actions []ResizeAction
	pool := freeBalance
	slots := append([]model.Order(nil), g.Slots()...)
	for i, s := range slotSlice {
		ideal := budget.Mul(shares[i])
		idx, _ := g.ByID(s.ID)

		var newSize decimal.Decimal
		if s.State == model.StateVirtual {
			newSize = ideal
		} else {
			delta := ideal.Sub(s.Size)
			if delta.IsPositive() {
				capped := delta
				if capped.GreaterThan(pool) {
					capped = pool
				}
				pool = pool.Sub(capped)
				newSize = s.Size.Add(capped)
			} else {
				pool = pool.Sub(delta) // delta negative: shrinkage releases balance
				newSize = ideal
			}
		}

		next := slots[idx]
		if !sameUnits(next.Size, newSize, precision) {
			actions = append(actions, ResizeAction{SlotID: next.ID, OldSize: next.Size, NewSize: newSize})
			next.Size = newSize
			slots[idx] = next
		}
	}
	return g.WithSlots(slots), actions
}

func sameUnits(a, b decimal.Decimal, precision int32) bool {
	scale := decimal.New(1, precision)
	return a.Mul(scale).Truncate(0).Equal(b.Mul(scale).Truncate(0))
}
