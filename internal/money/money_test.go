package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestToUnitsFromUnitsRoundTrip(t *testing.T) {
	x := d("1.23456")
	units := ToUnits(x, 4)
	assert.True(t, units.Equal(decimal.NewFromInt(12345)))
	back := FromUnits(units, 4)
	assert.True(t, back.Equal(d("1.2345")))
}

func TestQuantizeTruncatesDownward(t *testing.T) {
	got := Quantize(d("0.99999"), 2)
	assert.True(t, got.Equal(d("0.99")))
}

func TestQuantizeNegative(t *testing.T) {
	got := Quantize(d("-1.239"), 2)
	assert.True(t, got.Equal(d("-1.24")))
}

func TestMinAbsoluteSize(t *testing.T) {
	assert.True(t, MinAbsoluteSize(2).Equal(d("0.01")))
	assert.True(t, MinAbsoluteSize(0).Equal(d("1")))
}

func TestDustThresholds(t *testing.T) {
	ideal := d("100")
	single := SingleDustThreshold(ideal, d("5"))
	double := DoubleDustThreshold(ideal, d("5"))
	assert.True(t, single.Equal(d("5")))
	assert.True(t, double.Equal(d("10")))
}

func TestIsDust(t *testing.T) {
	assert.True(t, IsDust(d("4"), d("100"), d("5")))
	assert.False(t, IsDust(d("6"), d("100"), d("5")))
}

func TestCheckSuspiciousPasses(t *testing.T) {
	require.NoError(t, CheckSuspicious(d("1000"), 4))
}

func TestCheckSuspiciousFails(t *testing.T) {
	huge := decimal.New(1, 20)
	err := CheckSuspicious(huge, 4)
	require.Error(t, err)
}

func TestSumUnits(t *testing.T) {
	sizes := []decimal.Decimal{d("1.11"), d("2.22"), d("3.33")}
	total := SumUnits(sizes, 2)
	assert.True(t, total.Equal(d("6.66")))
}

func TestUnitsEqualIgnoresSubPrecisionNoise(t *testing.T) {
	assert.True(t, UnitsEqual(d("1.23456"), d("1.23449"), 2))
	assert.False(t, UnitsEqual(d("1.23"), d("1.24"), 2))
}
