package gridengine

import (
	"testing"

	"market_maker/internal/model"
	apperrors "market_maker/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		StartPrice:          decimal.NewFromFloat(1.0),
		MinPrice:            decimal.NewFromFloat(0.5),
		MaxPrice:            decimal.NewFromFloat(2.0),
		IncrementPercent:    decimal.NewFromFloat(1),
		TargetSpreadPercent: decimal.NewFromFloat(2),
		MinIncrementPercent: decimal.NewFromFloat(0.1),
		MaxIncrementPercent: decimal.NewFromFloat(20),
	}
}

func TestValidateRejectsInvertedBounds(t *testing.T) {
	cfg := validConfig()
	cfg.MinPrice, cfg.MaxPrice = cfg.MaxPrice, cfg.MinPrice
	err := cfg.Validate()
	require.ErrorIs(t, err, apperrors.ErrInvalidGridConfig)
}

func TestValidateRejectsIncrementOutOfBounds(t *testing.T) {
	cfg := validConfig()
	cfg.IncrementPercent = decimal.NewFromFloat(50)
	err := cfg.Validate()
	require.ErrorIs(t, err, apperrors.ErrInvalidGridConfig)
}

// CalculateGapSlots(increment=1, target=0, minSpreadFactor=2, minSpreadOrders=1)
// coerces target up to increment*minSpreadFactor=2, so gapSlots =
// ceil(ln(1.02)/ln(1.01)) = 2. Without the coercion the result would fall
// to the minSpreadOrders floor of 1.
func TestCalculateGapSlotsCoercesZeroTarget(t *testing.T) {
	gap := CalculateGapSlots(1, 0, 2, 1)
	assert.Equal(t, 2, gap)
}

func TestCalculateGapSlotsNeverBelowMinimum(t *testing.T) {
	gap := CalculateGapSlots(1, 0.01, 2, 5)
	assert.Equal(t, 5, gap)
}

func TestCreateOrderGridProducesValidGrid(t *testing.T) {
	g, err := CreateOrderGrid(validConfig())
	require.NoError(t, err)
	require.NoError(t, g.ValidateInvariants())

	for i := 0; i < g.Len(); i++ {
		assert.Equal(t, model.StateVirtual, g.At(i).State)
		assert.True(t, g.At(i).Size.IsZero())
	}
}

func TestCreateOrderGridRejectsInvalidConfig(t *testing.T) {
	cfg := validConfig()
	cfg.StartPrice = decimal.Zero
	_, err := CreateOrderGrid(cfg)
	require.ErrorIs(t, err, apperrors.ErrInvalidGridConfig)
}

func TestCreateOrderGridAppliesPricePrecision(t *testing.T) {
	cfg := validConfig()
	cfg.PricePrecision = 4
	g, err := CreateOrderGrid(cfg)
	require.NoError(t, err)
	for i := 0; i < g.Len(); i++ {
		price := g.At(i).Price
		assert.True(t, price.Equal(price.Round(4)))
	}
}

func TestBoundaryHelpers(t *testing.T) {
	g, err := CreateOrderGrid(validConfig())
	require.NoError(t, err)

	buys := BuySlots(g)
	sells := SellSlots(g)
	require.NotEmpty(t, buys)
	require.NotEmpty(t, sells)

	outerBuy := OutermostBuySlots(g, 1)
	require.Len(t, outerBuy, 1)
	assert.True(t, outerBuy[0].Price.Equal(buys[0].Price))

	outerSell := OutermostSellSlots(g, 1)
	require.Len(t, outerSell, 1)
	assert.True(t, outerSell[0].Price.Equal(sells[len(sells)-1].Price))
}

func TestIsGridEdgeFullyActiveEmptyIsFalse(t *testing.T) {
	assert.False(t, IsGridEdgeFullyActive(nil))
	assert.False(t, IsGridEdgeFullyActive([]model.Order{}))
}

func TestIsGridEdgeFullyActiveRequiresAllActive(t *testing.T) {
	edge := []model.Order{{State: model.StateActive}, {State: model.StatePartial}}
	assert.False(t, IsGridEdgeFullyActive(edge))

	allActive := []model.Order{{State: model.StateActive}, {State: model.StateActive}}
	assert.True(t, IsGridEdgeFullyActive(allActive))
}
