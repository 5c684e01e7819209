package sizing

import (
	"testing"

	"market_maker/internal/model"
	apperrors "market_maker/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeometricWeightsMonotonic(t *testing.T) {
	weights := GeometricWeights(5, decimal.NewFromInt(10))
	for i := 1; i < len(weights); i++ {
		assert.True(t, weights[i].GreaterThan(weights[i-1]), "weights must strictly increase for positive increment")
	}
	assert.True(t, weights[0].Equal(decimal.NewFromInt(1)))
}

func TestSharesSumToOne(t *testing.T) {
	weights := GeometricWeights(8, decimal.NewFromInt(5))
	shares := Shares(weights)
	sum := decimal.Zero
	for _, s := range shares {
		sum = sum.Add(s)
	}
	assert.True(t, sum.Sub(decimal.NewFromInt(1)).Abs().LessThan(decimal.NewFromFloat(1e-18)))
}

func TestAllocateDeterministic(t *testing.T) {
	shares := Shares(GeometricWeights(4, decimal.NewFromInt(5)))
	budget := decimal.NewFromInt(1000)

	a1, err1 := Allocate(budget, shares, 2)
	a2, err2 := Allocate(budget, shares, 2)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, a1.Sizes, a2.Sizes)
	assert.True(t, a1.CacheFunds.Equal(a2.CacheFunds))
}

func TestAllocateInsufficientFunds(t *testing.T) {
	shares := Shares(GeometricWeights(10, decimal.NewFromInt(5)))
	_, err := Allocate(decimal.NewFromFloat(0.01), shares, 2)
	require.ErrorIs(t, err, apperrors.ErrInsufficientFundsForMinimum)
}

func TestSizeSideRemainderIsCacheFunds(t *testing.T) {
	alloc, err := SizeSide(decimal.NewFromInt(1000), 3, decimal.NewFromInt(5), 0)
	require.NoError(t, err)
	sum := decimal.Zero
	for _, s := range alloc.Sizes {
		sum = sum.Add(s)
	}
	assert.True(t, sum.Add(alloc.CacheFunds).Equal(decimal.NewFromInt(1000)))
}

func TestGetSizingContextWithholdsFeeReserve(t *testing.T) {
	ctx := GetSizingContext(model.SideSell, decimal.NewFromInt(100), true, 10, 10, decimal.NewFromFloat(1))
	assert.True(t, ctx.FeeReserved.Equal(decimal.NewFromInt(20)))
	assert.True(t, ctx.Budget.Equal(decimal.NewFromInt(80)))
}

func TestGetSizingContextNoFeeReserveWhenNotFeeAsset(t *testing.T) {
	ctx := GetSizingContext(model.SideBuy, decimal.NewFromInt(100), false, 10, 10, decimal.NewFromFloat(1))
	assert.True(t, ctx.FeeReserved.IsZero())
	assert.True(t, ctx.Budget.Equal(decimal.NewFromInt(100)))
}

func TestGetSizingContextNeverNegativeBudget(t *testing.T) {
	ctx := GetSizingContext(model.SideSell, decimal.NewFromInt(5), true, 10, 10, decimal.NewFromFloat(1))
	assert.True(t, ctx.Budget.IsZero())
}
