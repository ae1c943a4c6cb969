package orders

import (
	"github.com/angelmondragon/qrcatalog-backend/internal/cart"
	"github.com/angelmondragon/qrcatalog-backend/pkg/types"
)

// StoreGroup is one store's share of an order.
type StoreGroup struct {
	StoreID  string      `json:"store_id"`
	Items    []cart.Item `json:"items"`
	Subtotal types.Money `json:"subtotal"`
}

// LineTotal is price × quantity. A line without a quantity counts once.
func LineTotal(item cart.Item) types.Money {
	qty := item.Quantity
	if qty < 1 {
		qty = 1
	}
	return item.Price.Times(qty)
}

// GroupByStore partitions items by store_id in first-seen order, keeping each item
// unchanged, and sums each group's subtotal independently of any submitted total.
func GroupByStore(items []cart.Item) []StoreGroup {
	index := map[string]int{}
	groups := make([]StoreGroup, 0)
	for _, item := range items {
		i, ok := index[item.StoreID]
		if !ok {
			i = len(groups)
			index[item.StoreID] = i
			groups = append(groups, StoreGroup{StoreID: item.StoreID})
		}
		groups[i].Items = append(groups[i].Items, item)
		groups[i].Subtotal = groups[i].Subtotal.Plus(LineTotal(item))
	}
	return groups
}

// SumSubtotals adds up the group subtotals.
func SumSubtotals(groups []StoreGroup) types.Money {
	var total types.Money
	for _, g := range groups {
		total = total.Plus(g.Subtotal)
	}
	return total
}
