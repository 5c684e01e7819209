// Package money implements the precision/quantization arithmetic the Grid
// Engine relies on to keep slot sizes free of float drift (spec §4.A).
// Every quantity that crosses a slot boundary is rounded through integer
// units before being compared or summed.
package money

import (
	apperrors "market_maker/pkg/errors"

	"github.com/shopspring/decimal"
)

// SuspiciousUnitThreshold is the integer-unit ceiling above which a size is
// treated as data corruption rather than a legitimate on-chain value
// (spec §4.A: "|size| × 10^p > 10^15 fails fatally").
var SuspiciousUnitThreshold = decimal.New(1, 15)

// PartialDustPercent is the default policy constant for single-dust sizing
// (spec §4.A: "PARTIAL_DUST_PCT, e.g. 5%"), overridable via
// GRID_LIMITS.PARTIAL_DUST_THRESHOLD_PERCENTAGE.
const PartialDustPercent = 5

// ToUnits converts a decimal quantity to its integer representation at the
// given precision: floor(x * 10^p).
func ToUnits(x decimal.Decimal, precision int32) decimal.Decimal {
	scaled := x.Shift(precision)
	return scaled.Floor()
}

// FromUnits converts an integer unit count back to a decimal quantity:
// n / 10^p.
func FromUnits(units decimal.Decimal, precision int32) decimal.Decimal {
	return units.Shift(-precision)
}

// Quantize rounds x down to the nearest representable value at the given
// precision: intToFloat(floatToInt(x, p), p).
func Quantize(x decimal.Decimal, precision int32) decimal.Decimal {
	return FromUnits(ToUnits(x, precision), precision)
}

// MinAbsoluteSize returns the smallest nonzero quantity expressible at the
// given precision — one integer unit.
func MinAbsoluteSize(precision int32) decimal.Decimal {
	return FromUnits(decimal.NewFromInt(1), precision)
}

// SingleDustThreshold returns the single-sided dust cutoff for an ideal
// size: PARTIAL_DUST_PCT × ideal.
func SingleDustThreshold(ideal decimal.Decimal, dustPercent decimal.Decimal) decimal.Decimal {
	return ideal.Mul(dustPercent).Div(decimal.NewFromInt(100))
}

// DoubleDustThreshold returns 2 × SingleDustThreshold, the cutoff used when
// deciding whether a correction candidate's planned size is worth
// submitting (spec §4.G step 4).
func DoubleDustThreshold(ideal decimal.Decimal, dustPercent decimal.Decimal) decimal.Decimal {
	return SingleDustThreshold(ideal, dustPercent).Mul(decimal.NewFromInt(2))
}

// IsDust reports whether size falls below the single-sided dust threshold
// for ideal.
func IsDust(size, ideal, dustPercent decimal.Decimal) bool {
	return size.LessThan(SingleDustThreshold(ideal, dustPercent))
}

// CheckSuspicious returns ErrBlockchainSyncSuspicious if size, expressed in
// integer units at the given precision, exceeds SuspiciousUnitThreshold —
// the fatal data-corruption guard of spec §4.A / §6.
func CheckSuspicious(size decimal.Decimal, precision int32) error {
	units := ToUnits(size.Abs(), precision)
	if units.GreaterThan(SuspiciousUnitThreshold) {
		return apperrors.ErrBlockchainSyncSuspicious
	}
	return nil
}

// SumUnits accumulates a slice of decimal sizes entirely in integer units
// before converting back once, matching the "sums over slot sizes are
// performed by accumulating integer units" rule (spec §4.A).
func SumUnits(sizes []decimal.Decimal, precision int32) decimal.Decimal {
	total := decimal.Zero
	for _, s := range sizes {
		total = total.Add(ToUnits(s, precision))
	}
	return FromUnits(total, precision)
}

// UnitsEqual compares two sizes by their integer-unit representation,
// avoiding float-style drift on direct decimal comparison (spec §4.A
// invariant 5 / §7 invariant 4).
func UnitsEqual(a, b decimal.Decimal, precision int32) bool {
	return ToUnits(a, precision).Equal(ToUnits(b, precision))
}
