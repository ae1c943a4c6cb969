package requests

import (
	"context"
	"sync"
	"testing"

	"github.com/angelmondragon/qrcatalog-backend/pkg/docstore/docstoretest"
	pkgerrors "github.com/angelmondragon/qrcatalog-backend/pkg/errors"
)

func TestRecordRequestCountsFromZero(t *testing.T) {
	repo := NewRepository(docstoretest.New(), 0)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		req, err := repo.RecordRequest(ctx, "s1", "Basmati Rice")
		if err != nil {
			t.Fatalf("record: %v", err)
		}
		if req.Count != int64(i) {
			t.Fatalf("expected count %d got %d", i, req.Count)
		}
	}
}

func TestRecordRequestEscapesNames(t *testing.T) {
	fake := docstoretest.New()
	repo := NewRepository(fake, 0)
	if _, err := repo.RecordRequest(context.Background(), "s1", "Milk 1.5L [tetra]"); err != nil {
		t.Fatalf("record: %v", err)
	}
	doc, ok := fake.Value(RequestPath("s1", "Milk 1.5L [tetra]")).(map[string]any)
	if !ok {
		t.Fatal("request document missing")
	}
	if doc["product_name"] != "Milk 1.5L [tetra]" {
		t.Fatalf("expected original name, got %v", doc["product_name"])
	}
}

func TestRecordRequestConcurrent(t *testing.T) {
	repo := NewRepository(docstoretest.New(), 50)
	ctx := context.Background()
	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.RecordRequest(ctx, "s1", "Oil"); err != nil {
				t.Errorf("record: %v", err)
			}
		}()
	}
	wg.Wait()

	list, err := repo.ListForStore(ctx, "s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Count != n {
		t.Fatalf("expected one request with count %d, got %+v", n, list)
	}
}

func TestListForStoreOrdersByCount(t *testing.T) {
	repo := NewRepository(docstoretest.New(), 0)
	ctx := context.Background()
	for _, name := range []string{"Tea", "Sugar", "Tea", "Salt", "Tea", "Sugar"} {
		if _, err := repo.RecordRequest(ctx, "s1", name); err != nil {
			t.Fatalf("record %s: %v", name, err)
		}
	}
	list, err := repo.ListForStore(ctx, "s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"Tea", "Sugar", "Salt"}
	for i, name := range want {
		if list[i].ProductName != name {
			t.Fatalf("position %d: expected %s got %+v", i, name, list)
		}
	}
}

func TestRecordRequestValidation(t *testing.T) {
	repo := NewRepository(docstoretest.New(), 0)
	if _, err := repo.RecordRequest(context.Background(), "s1", "  "); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := repo.RecordRequest(context.Background(), "", "Tea"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
