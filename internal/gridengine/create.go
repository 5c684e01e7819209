// Package gridengine implements grid creation, loading, role assignment,
// boundary management, and the COW/grid-lock mutation discipline (spec
// §4.D, §4.H).
package gridengine

import (
	"fmt"
	"math"

	"market_maker/internal/model"
	apperrors "market_maker/pkg/errors"
	"market_maker/pkg/tradingutils"

	"github.com/shopspring/decimal"
)

// Tuning constants (spec §5 "GRID_LIMITS.*"), overridable per deployment.
const (
	DefaultMinSpreadFactor = 2.0
	DefaultMinSpreadOrders = 2
)

// Config is the input to CreateOrderGrid (spec §4.D "Grid creation").
type Config struct {
	StartPrice          decimal.Decimal
	MinPrice            decimal.Decimal
	MaxPrice            decimal.Decimal
	IncrementPercent    decimal.Decimal
	TargetSpreadPercent decimal.Decimal
	MinIncrementPercent decimal.Decimal
	MaxIncrementPercent decimal.Decimal
	MinSpreadFactor     decimal.Decimal
	MinSpreadOrders     int
	PricePrecision      int // quote-asset decimals; 0 leaves prices unrounded
}

// Validate checks the grid-config invariants of spec §4.D. Every failure
// raises ErrInvalidGridConfig (spec §6).
func (c Config) Validate() error {
	for _, v := range []struct {
		name string
		val  decimal.Decimal
	}{
		{"startPrice", c.StartPrice},
		{"minPrice", c.MinPrice},
		{"maxPrice", c.MaxPrice},
		{"incrementPercent", c.IncrementPercent},
	} {
		if !v.val.IsPositive() {
			return fmt.Errorf("%s must be positive: %w", v.name, apperrors.ErrInvalidGridConfig)
		}
	}
	if !(c.MinPrice.LessThan(c.StartPrice) && c.StartPrice.LessThan(c.MaxPrice)) {
		return fmt.Errorf("require minPrice < startPrice < maxPrice: %w", apperrors.ErrInvalidGridConfig)
	}
	if c.IncrementPercent.LessThan(c.MinIncrementPercent) || c.IncrementPercent.GreaterThan(c.MaxIncrementPercent) {
		return fmt.Errorf("incrementPercent out of [%s, %s]: %w", c.MinIncrementPercent, c.MaxIncrementPercent, apperrors.ErrInvalidGridConfig)
	}
	return nil
}

// CalculateGapSlots computes gapSlots = max(MIN_SPREAD_ORDERS,
// ceil(ln(1+target/100) / ln(s))) with s = 1+increment/100, after first
// coercing target upward to increment × MIN_SPREAD_FACTOR if it's too
// small (spec §4.D step 4, §7 "targetSpreadPercent = 0 coerced").
func CalculateGapSlots(incrementPercent, targetSpreadPercent float64, minSpreadFactor float64, minSpreadOrders int) int {
	target := targetSpreadPercent
	floor := incrementPercent * minSpreadFactor
	if target < floor {
		target = floor
	}
	s := 1 + incrementPercent/100
	gap := int(math.Ceil(math.Log(1+target/100) / math.Log(s)))
	if gap < minSpreadOrders {
		gap = minSpreadOrders
	}
	return gap
}

// CreateOrderGrid emits a fresh, frozen grid with every slot VIRTUAL and
// size zero (spec §4.D "Grid creation").
func CreateOrderGrid(cfg Config) (model.Grid, error) {
	if err := cfg.Validate(); err != nil {
		return model.Grid{}, err
	}

	incF, _ := cfg.IncrementPercent.Float64()
	targetF, _ := cfg.TargetSpreadPercent.Float64()
	minSpreadFactor := cfg.MinSpreadFactor
	if minSpreadFactor.IsZero() {
		minSpreadFactor = decimal.NewFromFloat(DefaultMinSpreadFactor)
	}
	minSpreadFactorF, _ := minSpreadFactor.Float64()
	minSpreadOrders := cfg.MinSpreadOrders
	if minSpreadOrders <= 0 {
		minSpreadOrders = DefaultMinSpreadOrders
	}

	s := decimal.NewFromFloat(1 + incF/100)
	sqrtS := decimal.NewFromFloat(math.Sqrt(1 + incF/100))
	invSqrtS := decimal.NewFromFloat(1 / math.Sqrt(1+incF/100))

	var prices []decimal.Decimal

	// Upward leg from startPrice * sqrt(s)
	p := cfg.StartPrice.Mul(sqrtS)
	for p.LessThanOrEqual(cfg.MaxPrice) {
		prices = append(prices, p)
		p = p.Mul(s)
	}

	upCount := len(prices)

	// Downward leg from startPrice * sqrt(1/s)
	var downPrices []decimal.Decimal
	p = cfg.StartPrice.Mul(invSqrtS)
	for p.GreaterThanOrEqual(cfg.MinPrice) {
		downPrices = append(downPrices, p)
		p = p.Div(s)
	}
	// downPrices is in descending order; reverse to ascending.
	for i, j := 0, len(downPrices)-1; i < j; i, j = i+1, j-1 {
		downPrices[i], downPrices[j] = downPrices[j], downPrices[i]
	}

	all := append(downPrices, prices...)
	downCount := len(downPrices)

	if len(all) == 0 || downCount == 0 || upCount == 0 {
		return model.Grid{}, fmt.Errorf("grid produced empty or one-sided price ladder: %w", apperrors.ErrInvalidGridConfig)
	}

	gapSlots := CalculateGapSlots(incF, targetF, minSpreadFactorF, minSpreadOrders)

	// splitIdx: first index with price >= startPrice.
	splitIdx := len(all)
	for i, pr := range all {
		if pr.GreaterThanOrEqual(cfg.StartPrice) {
			splitIdx = i
			break
		}
	}

	boundaryIdx := splitIdx - gapSlots/2 - 1
	if boundaryIdx < 0 {
		boundaryIdx = 0
	}
	if boundaryIdx > len(all)-1 {
		boundaryIdx = len(all) - 1
	}

	slots := make([]model.Order, len(all))
	for i, price := range all {
		if cfg.PricePrecision > 0 {
			price = tradingutils.RoundPrice(price, cfg.PricePrecision)
		}
		var typ model.SlotType
		switch {
		case i <= boundaryIdx:
			typ = model.TypeBuy
		case i <= boundaryIdx+gapSlots:
			typ = model.TypeSpread
		default:
			typ = model.TypeSell
		}
		slots[i] = model.Order{
			ID:    fmt.Sprintf("slot-%d", i),
			Price: price,
			Size:  decimal.Zero,
			Type:  typ,
			State: model.StateVirtual,
		}
	}

	g := model.New(slots, boundaryIdx, 0)
	if err := g.ValidateInvariants(); err != nil {
		return model.Grid{}, fmt.Errorf("%v: %w", err, apperrors.ErrInvalidGridConfig)
	}
	return g, nil
}
