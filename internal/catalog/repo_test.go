package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/qrcatalog-backend/pkg/docstore/docstoretest"
	pkgerrors "github.com/angelmondragon/qrcatalog-backend/pkg/errors"
	"github.com/angelmondragon/qrcatalog-backend/pkg/types"
)

func newTestRepo(t *testing.T) (*Repository, *docstoretest.Store) {
	t.Helper()
	fake := docstoretest.New()
	repo := NewRepository(fake, 50)
	seq := 0
	repo.newID = func() string {
		seq++
		return fmt.Sprintf("id%d", seq)
	}
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return repo, fake
}

func seedProduct(t *testing.T, repo *Repository) (*Store, *Product) {
	t.Helper()
	ctx := context.Background()
	store, err := repo.CreateStore(ctx, "owner-1", CreateStoreInput{Name: "Corner Shop", Category: "grocery"})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	product, err := repo.CreateProduct(ctx, store.ID, CreateProductInput{
		Name:  "Rice",
		Price: types.MoneyFromInt(10),
		Size:  "1kg",
		Stock: 5,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return store, product
}

func TestCreateProductSetsIdentity(t *testing.T) {
	repo, fake := newTestRepo(t)
	store, product := seedProduct(t, repo)

	if product.StoreID != store.ID {
		t.Fatalf("expected store id %s got %s", store.ID, product.StoreID)
	}
	if product.QRCode != "/api/v1/qr/"+store.ID+"/"+product.ID {
		t.Fatalf("unexpected qr code %q", product.QRCode)
	}
	doc, ok := fake.Value(ProductPath(store.ID, product.ID)).(map[string]any)
	if !ok {
		t.Fatalf("product document missing")
	}
	if doc["id"] != product.ID {
		t.Fatalf("document id %v does not match path id %s", doc["id"], product.ID)
	}
}

func TestCreateProductRequiresStore(t *testing.T) {
	repo, _ := newTestRepo(t)
	_, err := repo.CreateProduct(context.Background(), "missing", CreateProductInput{Name: "Rice"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateProductRejectsNegativeValues(t *testing.T) {
	repo, _ := newTestRepo(t)
	store, _ := seedProduct(t, repo)
	cases := []CreateProductInput{
		{Name: "A", Price: types.MoneyFromInt(-1)},
		{Name: "A", Stock: -2},
		{Name: "  "},
	}
	for _, input := range cases {
		if _, err := repo.CreateProduct(context.Background(), store.ID, input); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected validation error for %+v, got %v", input, err)
		}
	}
}

func TestUpdateProductLeavesUnspecifiedFields(t *testing.T) {
	repo, _ := newTestRepo(t)
	store, product := seedProduct(t, repo)
	ctx := context.Background()

	color := "white"
	stock := 9
	updated, err := repo.UpdateProduct(ctx, store.ID, product.ID, UpdateProductInput{Color: &color, Stock: &stock})
	if err != nil {
		t.Fatalf("update product: %v", err)
	}
	if updated.Color != "white" || updated.Stock != 9 {
		t.Fatalf("unexpected update result %+v", updated)
	}

	reloaded, err := repo.GetProduct(ctx, store.ID, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if reloaded.Name != "Rice" || reloaded.Size != "1kg" || !reloaded.Price.Equal(types.MoneyFromInt(10)) {
		t.Fatalf("unspecified fields changed: %+v", reloaded)
	}
	if reloaded.Color != "white" || reloaded.Stock != 9 {
		t.Fatalf("patched fields not stored: %+v", reloaded)
	}
}

func TestUpdateProductMissing(t *testing.T) {
	repo, fake := newTestRepo(t)
	store, _ := seedProduct(t, repo)
	name := "x"
	_, err := repo.UpdateProduct(context.Background(), store.ID, "nope", UpdateProductInput{Name: &name})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if fake.Value(ProductPath(store.ID, "nope")) != nil {
		t.Fatal("update created a phantom product")
	}
}

func TestUpdateStoreNeverWritesOwner(t *testing.T) {
	repo, fake := newTestRepo(t)
	store, _ := seedProduct(t, repo)
	name := "Renamed"
	if _, err := repo.UpdateStore(context.Background(), store.ID, UpdateStoreInput{Name: &name}); err != nil {
		t.Fatalf("update store: %v", err)
	}
	doc := fake.Value(StorePath(store.ID)).(map[string]any)
	if doc["owner_id"] != "owner-1" || doc["name"] != "Renamed" {
		t.Fatalf("unexpected store document %+v", doc)
	}
	if doc["products"] == nil {
		t.Fatal("store update dropped products")
	}
}

func TestDeleteProduct(t *testing.T) {
	repo, _ := newTestRepo(t)
	store, product := seedProduct(t, repo)
	ctx := context.Background()
	if err := repo.DeleteProduct(ctx, store.ID, product.ID); err != nil {
		t.Fatalf("delete product: %v", err)
	}
	if _, err := repo.GetProduct(ctx, store.ID, product.ID); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if _, err := repo.GetStore(ctx, store.ID); err != nil {
		t.Fatalf("store should survive product delete: %v", err)
	}
}

func TestListStoresAndFindByOwner(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	first, _ := seedProduct(t, repo)
	second, err := repo.CreateStore(ctx, "owner-2", CreateStoreInput{Name: "Second"})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	stores, err := repo.ListStores(ctx)
	if err != nil {
		t.Fatalf("list stores: %v", err)
	}
	if len(stores) != 2 || stores[0].ID != first.ID || stores[1].ID != second.ID {
		t.Fatalf("unexpected stores %+v", stores)
	}

	found, err := repo.FindStoreByOwner(ctx, "owner-2")
	if err != nil || found.ID != second.ID {
		t.Fatalf("find by owner: %+v %v", found, err)
	}
	if _, err := repo.FindStoreByOwner(ctx, "nobody"); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestIncrementScanCountSequential(t *testing.T) {
	repo, _ := newTestRepo(t)
	store, product := seedProduct(t, repo)
	ctx := context.Background()

	const n = 7
	for i := 0; i < n; i++ {
		if _, err := repo.IncrementScanCount(ctx, store.ID, product.ID); err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
	}
	reloaded, err := repo.GetProduct(ctx, store.ID, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if reloaded.ScanCount != n {
		t.Fatalf("expected scan count %d got %d", n, reloaded.ScanCount)
	}
	if reloaded.Name != "Rice" {
		t.Fatalf("increment rewrote product fields: %+v", reloaded)
	}
}

func TestIncrementScanCountConcurrentDoesNotLoseUpdates(t *testing.T) {
	repo, _ := newTestRepo(t)
	store, product := seedProduct(t, repo)
	ctx := context.Background()

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.IncrementScanCount(ctx, store.ID, product.ID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent increment: %v", err)
	}

	reloaded, err := repo.GetProduct(ctx, store.ID, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if reloaded.ScanCount != workers {
		t.Fatalf("expected scan count %d got %d", workers, reloaded.ScanCount)
	}
}

func TestIncrementScanCountMissingProduct(t *testing.T) {
	repo, fake := newTestRepo(t)
	store, _ := seedProduct(t, repo)
	_, err := repo.IncrementScanCount(context.Background(), store.ID, "ghost")
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if fake.Value(ProductPath(store.ID, "ghost")) != nil {
		t.Fatal("increment created a phantom product")
	}
}

func TestRecordScanOverwritesEntry(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	if err := repo.RecordScan(ctx, "buyer", "p1", "s1", "Rice"); err != nil {
		t.Fatalf("record scan: %v", err)
	}
	if err := repo.RecordScan(ctx, "buyer", "p1", "s1", "Rice"); err != nil {
		t.Fatalf("record scan again: %v", err)
	}
	if err := repo.RecordScan(ctx, "buyer", "p2", "s1", "Oil"); err != nil {
		t.Fatalf("record other scan: %v", err)
	}

	history, err := repo.ListHistory(ctx, "buyer")
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected one entry per product, got %+v", history)
	}
	if history[0].ProductID != "p2" {
		t.Fatalf("expected most recent scan first, got %+v", history)
	}
}

func TestGetProductPropagatesStoreErrors(t *testing.T) {
	repo, fake := newTestRepo(t)
	boom := pkgerrors.New(pkgerrors.CodeDependency, "docstore down")
	fake.FailOn = func(method, path string) error { return boom }

	_, err := repo.GetProduct(context.Background(), "s1", "p1")
	if !errors.Is(err, boom) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestGetProductRejectsIllegalKeys(t *testing.T) {
	repo, _ := newTestRepo(t)
	if _, err := repo.GetProduct(context.Background(), "s.1", "p1"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
