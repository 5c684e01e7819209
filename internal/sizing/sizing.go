// Package sizing implements the Sizing Engine: geometric weight
// generation, integer-unit budget allocation, fee reservation, and the
// per-side sizing context (spec §4.C).
package sizing

import (
	"market_maker/internal/model"
	"market_maker/internal/money"
	apperrors "market_maker/pkg/errors"

	"github.com/shopspring/decimal"
)

// WeightDistribution selects how per-slot weights are generated. Only
// "geometric" is implemented — the sole distribution spec.md names.
type WeightDistribution string

const geometric WeightDistribution = "geometric"

// Geometric is the only supported WeightDistribution value.
const Geometric = geometric

// BTSReservationMultiplier is the default GRID_LIMITS.BTS_RESERVATION_MULTIPLIER
// tuning constant (spec §4.C, §5).
const BTSReservationMultiplier = 1.0

// GeometricWeights generates w_i = r^i for i in [0, count), with
// r = 1 + incrementPercent/100. For the sell side the ordering runs
// away-from-market with index 0 nearest the market; the caller is
// responsible for indexing its slot slice in the matching direction —
// this function only produces the raw weight sequence (spec §4.C step 1).
func GeometricWeights(count int, incrementPercent decimal.Decimal) []decimal.Decimal {
	r := decimal.NewFromInt(1).Add(incrementPercent.Div(decimal.NewFromInt(100)))
	weights := make([]decimal.Decimal, count)
	acc := decimal.NewFromInt(1)
	for i := 0; i < count; i++ {
		weights[i] = acc
		acc = acc.Mul(r)
	}
	return weights
}

// Shares normalizes a weight sequence so it sums to 1 (spec §4.C step 2).
func Shares(weights []decimal.Decimal) []decimal.Decimal {
	sum := decimal.Zero
	for _, w := range weights {
		sum = sum.Add(w)
	}
	shares := make([]decimal.Decimal, len(weights))
	if sum.IsZero() {
		return shares
	}
	for i, w := range weights {
		shares[i] = w.Div(sum)
	}
	return shares
}

// Allocation is the result of Allocate: one integer-unit size per slot
// plus the leftover cache-funds remainder for the side.
type Allocation struct {
	Sizes      []decimal.Decimal
	CacheFunds decimal.Decimal
}

// Allocate converts budget to integer units, distributes it across shares
// by floor division, and returns the nonnegative remainder as cache funds
// (spec §4.C steps 3–5). It returns ErrInsufficientFundsForMinimum if any
// allocated size falls below the minimum expressible unit at precision.
//
// Allocate is deterministic: identical (budget, shares, precision) always
// produces identical output, which is what the rotation-sizing and
// sizing-idempotence properties of spec §7 require.
func Allocate(budget decimal.Decimal, shares []decimal.Decimal, precision int32) (Allocation, error) {
	budgetUnits := money.ToUnits(budget, precision)
	sizeUnits := make([]decimal.Decimal, len(shares))
	spent := decimal.Zero
	for i, share := range shares {
		u := budgetUnits.Mul(share).Truncate(0)
		sizeUnits[i] = u
		spent = spent.Add(u)
	}
	remainderUnits := budgetUnits.Sub(spent)
	if remainderUnits.IsNegative() {
		remainderUnits = decimal.Zero
	}

	sizes := make([]decimal.Decimal, len(sizeUnits))
	minUnit := decimal.NewFromInt(1)
	for i, u := range sizeUnits {
		if u.LessThan(minUnit) {
			return Allocation{}, apperrors.ErrInsufficientFundsForMinimum
		}
		sizes[i] = money.FromUnits(u, precision)
	}

	return Allocation{
		Sizes:      sizes,
		CacheFunds: money.FromUnits(remainderUnits, precision),
	}, nil
}

// SizeSide runs the full geometric sizing algorithm for one side: generate
// weights, normalize, and allocate against budget (spec §4.C steps 1–5).
func SizeSide(budget decimal.Decimal, slotCount int, incrementPercent decimal.Decimal, precision int32) (Allocation, error) {
	weights := GeometricWeights(slotCount, incrementPercent)
	shares := Shares(weights)
	return Allocate(budget, shares, precision)
}

// Context is the resolved sizing context for one side (spec §4.C
// "getSizingContext(side)"): the budget available for slot allocation
// after any fee reservation has been withheld.
type Context struct {
	Side          model.Side
	AllocatedBase decimal.Decimal
	FeeReserved   decimal.Decimal
	Budget        decimal.Decimal
}

// GetSizingContext resolves the budget for a side: it starts from the
// side's allocated funds and, if isFeeAssetSide is true (the side holds
// the chain's native fee asset), withholds
// BTSReservationMultiplier × (targetBuy + targetSell) before sizing (spec
// §4.C "Sizing context").
func GetSizingContext(side model.Side, allocated decimal.Decimal, isFeeAssetSide bool, targetBuy, targetSell int, reservationMultiplier decimal.Decimal) Context {
	ctx := Context{Side: side, AllocatedBase: allocated}
	if isFeeAssetSide {
		orders := decimal.NewFromInt(int64(targetBuy + targetSell))
		ctx.FeeReserved = reservationMultiplier.Mul(orders)
	}
	ctx.Budget = allocated.Sub(ctx.FeeReserved)
	if ctx.Budget.IsNegative() {
		ctx.Budget = decimal.Zero
	}
	return ctx
}
