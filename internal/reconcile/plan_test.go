package reconcile

import (
	"testing"

	"market_maker/internal/core"
	"market_maker/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buySellGrid() model.Grid {
	slots := []model.Order{
		{ID: "b0", Price: decimal.NewFromFloat(0.98), Size: decimal.NewFromInt(10), Type: model.TypeBuy, State: model.StateVirtual},
		{ID: "b1", Price: decimal.NewFromFloat(0.99), Size: decimal.NewFromInt(10), Type: model.TypeBuy, State: model.StateVirtual},
		{ID: "s0", Price: decimal.NewFromFloat(1.0), Type: model.TypeSpread, State: model.StateVirtual},
		{ID: "e0", Price: decimal.NewFromFloat(1.01), Size: decimal.NewFromInt(10), Type: model.TypeSell, State: model.StateVirtual},
		{ID: "e1", Price: decimal.NewFromFloat(1.02), Size: decimal.NewFromInt(10), Type: model.TypeSell, State: model.StateVirtual},
	}
	return model.New(slots, 1, 0)
}

func TestPhantomSweepFindsUnbackedPlacedSlots(t *testing.T) {
	slots := []model.Order{
		{ID: "b0", Price: decimal.NewFromInt(1), Type: model.TypeBuy, State: model.StateActive, OrderID: "1.7.1"},
		{ID: "e0", Price: decimal.NewFromInt(2), Type: model.TypeSell, State: model.StatePartial, OrderID: "1.7.2"},
	}
	g := model.New(slots, 0, 0)
	chainIDs := map[string]bool{"1.7.1": true} // 1.7.2 missing -> phantom

	ids := PhantomSweep(g, model.SideSell, chainIDs)
	require.Len(t, ids, 1)
	assert.Equal(t, "e0", ids[0])

	assert.Empty(t, PhantomSweep(g, model.SideBuy, chainIDs))
}

func TestDesiredActivationSlotsOrdersNearestMarketFirst(t *testing.T) {
	g := buySellGrid()

	buyDesired := DesiredActivationSlots(g, model.SideBuy, 2, decimal.NewFromInt(1))
	require.Len(t, buyDesired, 2)
	assert.Equal(t, "b1", buyDesired[0].ID, "highest buy price (nearest market) must come first")

	sellDesired := DesiredActivationSlots(g, model.SideSell, 2, decimal.NewFromInt(1))
	require.Len(t, sellDesired, 2)
	assert.Equal(t, "e0", sellDesired[0].ID, "lowest sell price (nearest market) must come first")
}

func TestDesiredActivationSlotsRespectsMinAbsSize(t *testing.T) {
	g := buySellGrid()
	desired := DesiredActivationSlots(g, model.SideBuy, 5, decimal.NewFromInt(100))
	assert.Empty(t, desired)
}

func TestPlanSideCreatesForAllDesiredWhenNoChainOrders(t *testing.T) {
	g := buySellGrid()
	plan := PlanSide(g, model.SideBuy, nil, 2, decimal.NewFromInt(1), decimal.NewFromInt(1000), 4)
	assert.Len(t, plan.Creates, 2)
	assert.Empty(t, plan.Updates)
	assert.Empty(t, plan.Cancels)
}

func TestPlanSidePairsUnmatchedChainOrdersAsUpdates(t *testing.T) {
	g := buySellGrid()
	unmatched := []core.ChainOrder{{ID: "1.7.9", ForSale: decimal.NewFromInt(9)}}
	plan := PlanSide(g, model.SideBuy, unmatched, 2, decimal.NewFromInt(1), decimal.NewFromInt(1000), 4)

	require.Len(t, plan.Updates, 1)
	assert.Equal(t, "1.7.9", plan.Updates[0].ChainOrderID)
	assert.Len(t, plan.Creates, 1, "the unpaired desired slot still needs a create")
}

func TestPlanSideCancelsExcessUnmatchedChainOrders(t *testing.T) {
	g := buySellGrid()
	unmatched := []core.ChainOrder{
		{ID: "1.7.9", ForSale: decimal.NewFromInt(9)},
		{ID: "1.7.10", ForSale: decimal.NewFromInt(10)},
		{ID: "1.7.11", ForSale: decimal.NewFromInt(11)},
	}
	plan := PlanSide(g, model.SideBuy, unmatched, 2, decimal.NewFromInt(1), decimal.NewFromInt(1000), 4)
	assert.NotEmpty(t, plan.Cancels, "chain orders beyond what desired slots can absorb must be cancelled")
}

func TestNeedsFullRebalanceRequiresDustOnBothSides(t *testing.T) {
	slots := []model.Order{
		{ID: "b0", Price: decimal.NewFromInt(1), Size: decimal.NewFromInt(1), Type: model.TypeBuy, State: model.StatePartial},
		{ID: "e0", Price: decimal.NewFromInt(2), Size: decimal.NewFromInt(100), Type: model.TypeSell, State: model.StatePartial},
	}
	g := model.New(slots, 0, 0)

	ideal := decimal.NewFromInt(100)
	dustPercent := decimal.NewFromInt(5)
	assert.False(t, NeedsFullRebalance(g, ideal, ideal, dustPercent), "only buy side is dust")

	slots[1].Size = decimal.NewFromInt(1)
	g2 := model.New(slots, 0, 0)
	assert.True(t, NeedsFullRebalance(g2, ideal, ideal, dustPercent))
}
