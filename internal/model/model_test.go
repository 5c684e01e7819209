package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func p(s string) decimal.Decimal {
	v, _ := decimal.NewFromString(s)
	return v
}

func buildGrid(t *testing.T) Grid {
	t.Helper()
	slots := []Order{
		{ID: "b0", Price: p("1.0"), Type: TypeBuy, State: StateVirtual},
		{ID: "b1", Price: p("1.1"), Type: TypeBuy, State: StateVirtual},
		{ID: "s0", Price: p("1.2"), Type: TypeSpread, State: StateVirtual},
		{ID: "e0", Price: p("1.3"), Type: TypeSell, State: StateVirtual},
		{ID: "e1", Price: p("1.4"), Type: TypeSell, State: StateVirtual},
	}
	g := New(slots, 1, 0)
	require.NoError(t, g.ValidateInvariants())
	return g
}

func TestGridBoundaryAndSellStart(t *testing.T) {
	g := buildGrid(t)
	assert.Equal(t, 1, g.BoundaryIdx())
	assert.Equal(t, 3, g.SellStart())
}

func TestGridByIDAndReplaceAtIsCOW(t *testing.T) {
	g := buildGrid(t)
	idx, ok := g.ByID("b1")
	require.True(t, ok)

	next := g.At(idx)
	next.State = StateActive
	next.OrderID = "1.7.100"
	g2 := g.ReplaceAt(idx, next)

	assert.Equal(t, StateVirtual, g.At(idx).State, "original grid must be untouched by ReplaceAt")
	assert.Equal(t, StateActive, g2.At(idx).State)
	assert.NotEqual(t, g.Version(), g2.WithVersion(g.Version()+1).Version())
}

func TestValidateInvariantsRejectsDescendingPrice(t *testing.T) {
	slots := []Order{
		{ID: "b0", Price: p("1.0"), Type: TypeBuy},
		{ID: "b1", Price: p("0.9"), Type: TypeBuy},
		{ID: "e0", Price: p("1.3"), Type: TypeSell},
	}
	g := New(slots, 1, 0)
	assert.Error(t, g.ValidateInvariants())
}

func TestValidateInvariantsRejectsMissingSide(t *testing.T) {
	slots := []Order{
		{ID: "b0", Price: p("1.0"), Type: TypeBuy},
		{ID: "b1", Price: p("1.1"), Type: TypeBuy},
	}
	g := New(slots, 1, 0)
	assert.Error(t, g.ValidateInvariants())
}

func TestValidateInvariantsRejectsNonContiguousRoles(t *testing.T) {
	slots := []Order{
		{ID: "b0", Price: p("1.0"), Type: TypeBuy},
		{ID: "s0", Price: p("1.1"), Type: TypeSpread},
		{ID: "b1", Price: p("1.2"), Type: TypeBuy},
		{ID: "e0", Price: p("1.3"), Type: TypeSell},
	}
	g := New(slots, 2, 0)
	assert.Error(t, g.ValidateInvariants())
}

func TestOrderIsPhantom(t *testing.T) {
	placedNoID := Order{State: StateActive, OrderID: ""}
	assert.True(t, placedNoID.IsPhantom())

	placedWithID := Order{State: StatePartial, OrderID: "1.7.5"}
	assert.False(t, placedWithID.IsPhantom())

	virtual := Order{State: StateVirtual}
	assert.False(t, virtual.IsPhantom())
}

func TestFundsChainTotals(t *testing.T) {
	f := Funds{ChainFreeBuy: p("10"), CommittedBuy: p("5")}
	assert.True(t, f.ChainTotalBuy().Equal(p("15")))
}
