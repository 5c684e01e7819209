package gridengine

import "market_maker/internal/model"

// IsGridEdgeFullyActive reports whether the outermost n slots on a side
// are all ACTIVE. An empty edge (n == 0, or no slots available on that
// side) is treated as NOT fully active — a vacuous-truth guard preserved
// verbatim per spec §8: "isGridEdgeFullyActive treats 'empty edge' as
// false... it is load-bearing."
func IsGridEdgeFullyActive(edge []model.Order) bool {
	if len(edge) == 0 {
		return false
	}
	for _, o := range edge {
		if o.State != model.StateActive {
			return false
		}
	}
	return true
}

// OutermostBuySlots returns the n BUY slots furthest from market (lowest
// price), in furthest-first order.
func OutermostBuySlots(g model.Grid, n int) []model.Order {
	var out []model.Order
	for i := 0; i <= g.BuyEnd() && len(out) < n; i++ {
		s := g.At(i)
		if s.Type == model.TypeBuy {
			out = append(out, s)
		}
	}
	return out
}

// OutermostSellSlots returns the n SELL slots furthest from market
// (highest price), in furthest-first order.
func OutermostSellSlots(g model.Grid, n int) []model.Order {
	var out []model.Order
	for i := g.Len() - 1; i >= 0 && len(out) < n; i-- {
		s := g.At(i)
		if s.Type == model.TypeSell {
			out = append(out, s)
		}
	}
	return out
}

// BuySlots returns every BUY slot in ascending price order.
func BuySlots(g model.Grid) []model.Order {
	var out []model.Order
	for i := 0; i < g.Len(); i++ {
		if g.At(i).Type == model.TypeBuy {
			out = append(out, g.At(i))
		}
	}
	return out
}

// SellSlots returns every SELL slot in ascending price order.
func SellSlots(g model.Grid) []model.Order {
	var out []model.Order
	for i := 0; i < g.Len(); i++ {
		if g.At(i).Type == model.TypeSell {
			out = append(out, g.At(i))
		}
	}
	return out
}

// SpreadSlots returns every SPREAD slot in ascending price order.
func SpreadSlots(g model.Grid) []model.Order {
	var out []model.Order
	for i := 0; i < g.Len(); i++ {
		if g.At(i).Type == model.TypeSpread {
			out = append(out, g.At(i))
		}
	}
	return out
}
