package orders

import (
	"testing"

	"github.com/angelmondragon/qrcatalog-backend/internal/cart"
	"github.com/angelmondragon/qrcatalog-backend/pkg/types"
)

func item(productID, storeID string, price int64, qty int) cart.Item {
	return cart.Item{ProductID: productID, StoreID: storeID, ProductName: productID, Price: types.MoneyFromInt(price), Quantity: qty}
}

func TestGroupByStoreExample(t *testing.T) {
	groups := GroupByStore([]cart.Item{item("p1", "S1", 10, 2), item("p2", "S2", 5, 3)})
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups got %d", len(groups))
	}
	if groups[0].StoreID != "S1" || !groups[0].Subtotal.Equal(types.MoneyFromInt(20)) {
		t.Fatalf("unexpected S1 group %+v", groups[0])
	}
	if groups[1].StoreID != "S2" || !groups[1].Subtotal.Equal(types.MoneyFromInt(15)) {
		t.Fatalf("unexpected S2 group %+v", groups[1])
	}
}

func TestGroupByStoreKeepsFirstSeenOrderAndItems(t *testing.T) {
	items := []cart.Item{item("a", "S2", 1, 1), item("b", "S1", 2, 1), item("c", "S2", 3, 2)}
	groups := GroupByStore(items)
	if len(groups) != 2 || groups[0].StoreID != "S2" || groups[1].StoreID != "S1" {
		t.Fatalf("unexpected group order %+v", groups)
	}
	if len(groups[0].Items) != 2 || groups[0].Items[0].ProductID != "a" || groups[0].Items[1].ProductID != "c" {
		t.Fatalf("unexpected S2 items %+v", groups[0].Items)
	}
	if !groups[0].Subtotal.Equal(types.MoneyFromInt(7)) {
		t.Fatalf("expected S2 subtotal 7 got %s", groups[0].Subtotal)
	}
}

func TestGroupSumIndependentOfOrdering(t *testing.T) {
	price, _ := types.ParseMoney("0.10")
	items := []cart.Item{
		{ProductID: "x", StoreID: "A", Price: price, Quantity: 3},
		item("y", "B", 7, 1),
		{ProductID: "z", StoreID: "A", Price: price, Quantity: 7},
		item("w", "C", 2, 4),
	}
	var want types.Money
	for _, it := range items {
		want = want.Plus(LineTotal(it))
	}

	reversed := make([]cart.Item, len(items))
	for i := range items {
		reversed[len(items)-1-i] = items[i]
	}
	for _, variant := range [][]cart.Item{items, reversed} {
		if got := SumSubtotals(GroupByStore(variant)); !got.Equal(want) {
			t.Fatalf("expected %s got %s", want, got)
		}
	}
	wantExact, _ := types.ParseMoney("16")
	if !want.Equal(wantExact) {
		t.Fatalf("expected exact decimal sum 16 got %s", want)
	}
}

func TestLineTotalMissingQuantityCountsOnce(t *testing.T) {
	if got := LineTotal(item("p", "s", 9, 0)); !got.Equal(types.MoneyFromInt(9)) {
		t.Fatalf("expected 9 got %s", got)
	}
}

func TestStepKeyRoundTrip(t *testing.T) {
	plan := &Plan{Groups: []StoreGroup{{StoreID: "S1"}, {StoreID: "S2"}}}
	steps := plan.Steps()
	if len(steps) != 5 {
		t.Fatalf("expected 5 steps got %d", len(steps))
	}
	want := []string{"order", "user_ref", "store_ref:S1", "store_ref:S2", "cart_clear"}
	for i, step := range steps {
		if step.Key() != want[i] {
			t.Fatalf("step %d: expected %s got %s", i, want[i], step.Key())
		}
		parsed, err := ParseStepKey(step.Key())
		if err != nil || parsed != step {
			t.Fatalf("parse %s: %+v %v", step.Key(), parsed, err)
		}
	}
	if _, err := ParseStepKey("bogus"); err == nil {
		t.Fatal("expected error for unknown step")
	}
}
