// Package spread implements the Spread Correction Engine: detection of a
// widened inside market and edge-based repair via PARTIAL updates or
// SPREAD-slot creates (spec §4.G).
package spread

import (
	"math"

	"market_maker/internal/gridengine"
	"market_maker/internal/model"
	"market_maker/internal/money"
	"market_maker/pkg/metrics"

	"github.com/shopspring/decimal"
)

// CurrentSpreadPercent computes (bestAsk - bestBid) / bestBid * 100 over
// ACTIVE/PARTIAL chain-backed orders only (spec glossary "Spread").
// hasBid/hasAsk report whether either side actually had a chain-backed
// order — spec §8 requires ShouldFlagOutOfSpread to force 1 when either
// is missing, so the caller must check these before trusting the
// computed percent.
func CurrentSpreadPercent(bestBid, bestAsk decimal.Decimal, hasBid, hasAsk bool) (pct decimal.Decimal, ok bool) {
	if !hasBid || !hasAsk || bestBid.IsZero() {
		return decimal.Zero, false
	}
	return bestAsk.Sub(bestBid).Div(bestBid).Mul(decimal.NewFromInt(100)), true
}

// NominalSpreadPercent computes targetSpreadPercent + increment ×
// doubledState, where doubledState is 1 if either side is in "doubled"
// mode (spec §4.G).
func NominalSpreadPercent(targetSpreadPercent, incrementPercent decimal.Decimal, buyDoubled, sellDoubled bool) decimal.Decimal {
	if buyDoubled || sellDoubled {
		return targetSpreadPercent.Add(incrementPercent)
	}
	return targetSpreadPercent
}

// ToleranceSteps returns 1 + (buyDoubled?1:0) + (sellDoubled?1:0).
func ToleranceSteps(buyDoubled, sellDoubled bool) int {
	steps := 1
	if buyDoubled {
		steps++
	}
	if sellDoubled {
		steps++
	}
	return steps
}

// ShouldFlagOutOfSpread computes the out-of-spread step count (spec §4.G):
//
//	outOfSpread = ceil(ln(1+currentSpread/100)/ln(1+increment/100) -
//	              ln(1+nominalSpread/100)/ln(1+increment/100)) - toleranceSteps
//
// clamped to 0, except that a missing side (hasSpread == false) forces 1
// regardless of the math — preserved verbatim per spec §8: "shouldFlagOutOfSpread
// returns 1 when either side is empty, regardless of spread math."
func ShouldFlagOutOfSpread(currentSpreadPercent decimal.Decimal, hasSpread bool, nominalSpreadPercent, incrementPercent decimal.Decimal, toleranceSteps int) int {
	if !hasSpread {
		return 1
	}
	lnStep := math.Log(1 + toFloat(incrementPercent)/100)
	currentSteps := math.Log(1+toFloat(currentSpreadPercent)/100) / lnStep
	nominalSteps := math.Log(1+toFloat(nominalSpreadPercent)/100) / lnStep
	out := int(math.Ceil(currentSteps-nominalSteps)) - toleranceSteps
	if out < 0 {
		out = 0
	}
	return out
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// RecordMetrics publishes the out-of-spread step count computed by
// ShouldFlagOutOfSpread to the shared health gauges (spec's ambient metrics
// surface: "exercised by... the Spread Correction Engine"). g may be nil.
func RecordMetrics(g *metrics.Gauges, accountRef string, outOfSpread int) {
	if g == nil {
		return
	}
	g.SpreadOutOfToleranceStep.WithLabelValues(accountRef).Set(float64(outOfSpread))
}

// ChosenSide picks a side that can fund at least one minimum-precision
// unit; when both can, it picks the side with the larger free balance,
// comparing the two raw amounts directly. It does not compare free balance
// against the geometric size a correction would need. Returns ok=false if
// neither side can fund even one minimum-precision unit.
func ChosenSide(buyFree, sellFree, buyMinUnit, sellMinUnit decimal.Decimal) (side model.Side, ok bool) {
	buyCan := buyFree.GreaterThanOrEqual(buyMinUnit)
	sellCan := sellFree.GreaterThanOrEqual(sellMinUnit)
	switch {
	case !buyCan && !sellCan:
		return "", false
	case buyCan && !sellCan:
		return model.SideBuy, true
	case sellCan && !buyCan:
		return model.SideSell, true
	default:
		if buyFree.GreaterThanOrEqual(sellFree) {
			return model.SideBuy, true
		}
		return model.SideSell, true
	}
}

// Candidate is the slot chosen for correction plus the computed target
// size and the operation it implies.
type Candidate struct {
	Slot       model.Order
	TargetSize decimal.Decimal
	IsUpdate   bool // true: PARTIAL -> update; false: SPREAD -> create
}

// ChooseCandidate implements spec §4.G's edge-based correction candidate
// selection: prefer a PARTIAL nearest the gap on the chosen side, else
// the SPREAD slot closest to that side's wall.
func ChooseCandidate(g model.Grid, side model.Side, ideal, available decimal.Decimal, minAbsSize, dustPercent decimal.Decimal) (Candidate, bool) {
	partials := partialsOnSide(g, side)
	if len(partials) > 0 {
		slot := nearestGapPartial(partials, side)
		target := slot.Size.Add(minDec(ideal.Sub(slot.Size), available))
		if target.LessThan(maxDec(minAbsSize, money.DoubleDustThreshold(ideal, dustPercent))) {
			return Candidate{}, false
		}
		return Candidate{Slot: slot, TargetSize: target, IsUpdate: true}, true
	}

	spreadSlots := gridengine.SpreadSlots(g)
	if len(spreadSlots) == 0 {
		return Candidate{}, false
	}
	slot := nearestWallSpreadSlot(spreadSlots, side)
	target := minDec(ideal, available)
	if target.LessThan(maxDec(minAbsSize, money.DoubleDustThreshold(ideal, dustPercent))) {
		return Candidate{}, false
	}
	return Candidate{Slot: slot, TargetSize: target, IsUpdate: false}, true
}

func partialsOnSide(g model.Grid, side model.Side) []model.Order {
	var out []model.Order
	for i := 0; i < g.Len(); i++ {
		s := g.At(i)
		if s.State != model.StatePartial {
			continue
		}
		if (side == model.SideBuy && s.Type == model.TypeBuy) || (side == model.SideSell && s.Type == model.TypeSell) {
			out = append(out, s)
		}
	}
	return out
}

// nearestGapPartial returns the PARTIAL slot closest to the gap: highest
// price for BUY, lowest price for SELL.
func nearestGapPartial(partials []model.Order, side model.Side) model.Order {
	best := partials[0]
	for _, p := range partials[1:] {
		if side == model.SideBuy && p.Price.GreaterThan(best.Price) {
			best = p
		}
		if side == model.SideSell && p.Price.LessThan(best.Price) {
			best = p
		}
	}
	return best
}

// nearestWallSpreadSlot returns the SPREAD slot closest to the chosen
// side's wall: lowest price (closest to the BUY wall) for BUY, highest
// price (closest to the SELL wall) for SELL.
func nearestWallSpreadSlot(slots []model.Order, side model.Side) model.Order {
	best := slots[0]
	for _, s := range slots[1:] {
		if side == model.SideBuy && s.Price.LessThan(best.Price) {
			best = s
		}
		if side == model.SideSell && s.Price.GreaterThan(best.Price) {
			best = s
		}
	}
	return best
}

func minDec(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

func maxDec(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}
