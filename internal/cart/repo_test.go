package cart

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/qrcatalog-backend/internal/catalog"
	"github.com/angelmondragon/qrcatalog-backend/pkg/docstore/docstoretest"
	pkgerrors "github.com/angelmondragon/qrcatalog-backend/pkg/errors"
	"github.com/angelmondragon/qrcatalog-backend/pkg/types"
)

func newTestRepo() (*Repository, *docstoretest.Store) {
	fake := docstoretest.New()
	repo := NewRepository(fake)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	return repo, fake
}

func line(productID, storeID string, qty int) Item {
	return Item{ProductID: productID, StoreID: storeID, ProductName: "item " + productID, Price: types.MoneyFromInt(5), Quantity: qty}
}

func TestAddOverwritesWithoutMerging(t *testing.T) {
	repo, _ := newTestRepo()
	ctx := context.Background()

	if _, err := repo.Add(ctx, "u1", line("p1", "s1", 1)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := repo.Add(ctx, "u1", line("p1", "s1", 2)); err != nil {
		t.Fatalf("add again: %v", err)
	}
	item, err := repo.Get(ctx, "u1", "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if item.Quantity != 2 {
		t.Fatalf("expected quantity 2 got %d", item.Quantity)
	}
	if item.AddedAt == nil {
		t.Fatal("expected added_at to be stamped")
	}
}

func TestAddValidates(t *testing.T) {
	repo, _ := newTestRepo()
	ctx := context.Background()
	cases := []Item{
		line("p1", "s1", 0),
		line("p1", "", 1),
		line("p.1", "s1", 1),
	}
	for _, item := range cases {
		if _, err := repo.Add(ctx, "u1", item); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected validation error for %+v, got %v", item, err)
		}
	}
}

func TestListPreservesAddOrder(t *testing.T) {
	repo, _ := newTestRepo()
	ctx := context.Background()
	for _, id := range []string{"zz", "aa", "mm"} {
		if _, err := repo.Add(ctx, "u1", line(id, "s1", 1)); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
	items, err := repo.List(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 3 || items[0].ProductID != "zz" || items[2].ProductID != "mm" {
		t.Fatalf("unexpected order %+v", items)
	}
}

func TestClearDeletesSubtree(t *testing.T) {
	repo, fake := newTestRepo()
	ctx := context.Background()
	_, _ = repo.Add(ctx, "u1", line("p1", "s1", 1))
	_, _ = repo.Add(ctx, "u1", line("p2", "s2", 1))

	if err := repo.Clear(ctx, "u1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if fake.Value(Path("u1")) != nil {
		t.Fatal("cart subtree still present")
	}
	items, err := repo.List(ctx, "u1")
	if err != nil || len(items) != 0 {
		t.Fatalf("expected empty cart, got %+v %v", items, err)
	}
}

func TestRemoveItemsKeepsOthers(t *testing.T) {
	repo, _ := newTestRepo()
	ctx := context.Background()
	for _, id := range []string{"p1", "p2", "p3"} {
		_, _ = repo.Add(ctx, "u1", line(id, "s1", 1))
	}
	if err := repo.RemoveItems(ctx, "u1", []string{"p1", "p3"}); err != nil {
		t.Fatalf("remove items: %v", err)
	}
	items, err := repo.List(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].ProductID != "p2" {
		t.Fatalf("unexpected remaining items %+v", items)
	}
}

func TestRemoveSingleItem(t *testing.T) {
	repo, _ := newTestRepo()
	ctx := context.Background()
	_, _ = repo.Add(ctx, "u1", line("p1", "s1", 1))
	if err := repo.Remove(ctx, "u1", "p1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := repo.Get(ctx, "u1", "p1"); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestServiceAddSnapshotsProduct(t *testing.T) {
	repo, fake := newTestRepo()
	catalogRepo := catalog.NewRepository(fake, 0)
	ctx := context.Background()
	store, err := catalogRepo.CreateStore(ctx, "owner", catalog.CreateStoreInput{Name: "Shop"})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	product, err := catalogRepo.CreateProduct(ctx, store.ID, catalog.CreateProductInput{Name: "Oil", Price: types.MoneyFromInt(12), Image: "img"})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	svc, err := NewService(repo, catalogRepo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	item, err := svc.Add(ctx, "buyer", AddInput{StoreID: store.ID, ProductID: product.ID, Quantity: 3})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if item.ProductName != "Oil" || !item.Price.Equal(types.MoneyFromInt(12)) || item.StoreID != store.ID || item.Quantity != 3 {
		t.Fatalf("unexpected cart line %+v", item)
	}

	if _, err := svc.Add(ctx, "buyer", AddInput{StoreID: store.ID, ProductID: "ghost", Quantity: 1}); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNewServiceRequiresDeps(t *testing.T) {
	repo, fake := newTestRepo()
	if _, err := NewService(nil, catalog.NewRepository(fake, 0)); err == nil {
		t.Fatal("expected error without repo")
	}
	if _, err := NewService(repo, nil); err == nil {
		t.Fatal("expected error without product reader")
	}
}
