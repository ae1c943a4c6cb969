package catalog

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/angelmondragon/qrcatalog-backend/pkg/docstore"
	pkgerrors "github.com/angelmondragon/qrcatalog-backend/pkg/errors"
	"github.com/google/uuid"
)

// Repository persists stores, products and scan history in the document store.
type Repository struct {
	store   docstore.Store
	retries int
	now     func() time.Time
	newID   func() string
}

// NewRepository binds a repository to the document store. retries bounds counter updates.
func NewRepository(store docstore.Store, retries int) *Repository {
	return &Repository{
		store:   store,
		retries: retries,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

func (r *Repository) CreateStore(ctx context.Context, ownerID string, input CreateStoreInput) (*Store, error) {
	if ownerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	store := &Store{
		ID:          r.newID(),
		Name:        input.Name,
		OwnerID:     ownerID,
		Description: input.Description,
		Category:    input.Category,
		CreatedAt:   r.now(),
	}
	if _, err := r.store.Put(ctx, StorePath(store.ID), store); err != nil {
		return nil, err
	}
	return store, nil
}

func (r *Repository) GetStore(ctx context.Context, storeID string) (*Store, error) {
	if err := docstore.ValidateKey(storeID); err != nil {
		return nil, err
	}
	raw, err := r.store.Get(ctx, StorePath(storeID))
	if err != nil {
		return nil, err
	}
	var store Store
	found, err := docstore.Decode(raw, &store)
	if err != nil {
		return nil, err
	}
	if !found || (store.OwnerID == "" && store.Name == "") {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
	}
	store.ID = storeID
	return &store, nil
}

// ListStores returns every store ordered by creation time.
func (r *Repository) ListStores(ctx context.Context) ([]Store, error) {
	raw, err := r.store.Get(ctx, storesRoot)
	if err != nil {
		return nil, err
	}
	docs := map[string]Store{}
	if _, err := docstore.Decode(raw, &docs); err != nil {
		return nil, err
	}
	stores := make([]Store, 0, len(docs))
	for id, store := range docs {
		if store.OwnerID == "" && store.Name == "" {
			continue
		}
		store.ID = id
		stores = append(stores, store)
	}
	sort.Slice(stores, func(i, j int) bool {
		if !stores[i].CreatedAt.Equal(stores[j].CreatedAt) {
			return stores[i].CreatedAt.Before(stores[j].CreatedAt)
		}
		return stores[i].ID < stores[j].ID
	})
	return stores, nil
}

func (r *Repository) FindStoreByOwner(ctx context.Context, ownerID string) (*Store, error) {
	stores, err := r.ListStores(ctx)
	if err != nil {
		return nil, err
	}
	for i := range stores {
		if stores[i].OwnerID == ownerID {
			return &stores[i], nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found for owner")
}

// UpdateStore merges the provided fields. owner_id is never written.
func (r *Repository) UpdateStore(ctx context.Context, storeID string, input UpdateStoreInput) (*Store, error) {
	fields, err := input.fields()
	if err != nil {
		return nil, err
	}
	store, err := r.GetStore(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return store, nil
	}
	if _, err := r.store.Patch(ctx, StorePath(storeID), fields); err != nil {
		return nil, err
	}
	store.apply(input)
	return store, nil
}

// DeleteStore removes the store with its products and order index.
func (r *Repository) DeleteStore(ctx context.Context, storeID string) error {
	if _, err := r.GetStore(ctx, storeID); err != nil {
		return err
	}
	return r.store.Delete(ctx, StorePath(storeID))
}

func (r *Repository) CreateProduct(ctx context.Context, storeID string, input CreateProductInput) (*Product, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	if _, err := r.GetStore(ctx, storeID); err != nil {
		return nil, err
	}
	id := r.newID()
	product := &Product{
		ID:          id,
		StoreID:     storeID,
		Name:        input.Name,
		Price:       input.Price,
		Size:        input.Size,
		Color:       input.Color,
		Description: input.Description,
		Stock:       input.Stock,
		Image:       input.Image,
		QRCode:      DynamicQRPath(storeID, id),
		CreatedAt:   r.now(),
	}
	if _, err := r.store.Put(ctx, ProductPath(storeID, id), product); err != nil {
		return nil, err
	}
	return product, nil
}

func (r *Repository) GetProduct(ctx context.Context, storeID, productID string) (*Product, error) {
	if err := docstore.ValidateKey(storeID); err != nil {
		return nil, err
	}
	if err := docstore.ValidateKey(productID); err != nil {
		return nil, err
	}
	raw, err := r.store.Get(ctx, ProductPath(storeID, productID))
	if err != nil {
		return nil, err
	}
	var product Product
	found, err := docstore.Decode(raw, &product)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	product.ID = productID
	product.StoreID = storeID
	return &product, nil
}

// ListProducts returns the store's products ordered by creation time.
func (r *Repository) ListProducts(ctx context.Context, storeID string) ([]Product, error) {
	if err := docstore.ValidateKey(storeID); err != nil {
		return nil, err
	}
	raw, err := r.store.Get(ctx, ProductsPath(storeID))
	if err != nil {
		return nil, err
	}
	docs := map[string]Product{}
	if _, err := docstore.Decode(raw, &docs); err != nil {
		return nil, err
	}
	products := make([]Product, 0, len(docs))
	for id, product := range docs {
		product.ID = id
		product.StoreID = storeID
		products = append(products, product)
	}
	sort.Slice(products, func(i, j int) bool {
		if !products[i].CreatedAt.Equal(products[j].CreatedAt) {
			return products[i].CreatedAt.Before(products[j].CreatedAt)
		}
		return products[i].ID < products[j].ID
	})
	return products, nil
}

// UpdateProduct merges the provided fields; unspecified fields are left untouched.
func (r *Repository) UpdateProduct(ctx context.Context, storeID, productID string, input UpdateProductInput) (*Product, error) {
	fields, err := input.fields()
	if err != nil {
		return nil, err
	}
	product, err := r.GetProduct(ctx, storeID, productID)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return product, nil
	}
	if _, err := r.store.Patch(ctx, ProductPath(storeID, productID), fields); err != nil {
		return nil, err
	}
	product.apply(input)
	return product, nil
}

func (r *Repository) DeleteProduct(ctx context.Context, storeID, productID string) error {
	if _, err := r.GetProduct(ctx, storeID, productID); err != nil {
		return err
	}
	return r.store.Delete(ctx, ProductPath(storeID, productID))
}

// SetQRCode replaces the stored qr_code reference.
func (r *Repository) SetQRCode(ctx context.Context, storeID, productID, code string) error {
	if _, err := r.GetProduct(ctx, storeID, productID); err != nil {
		return err
	}
	_, err := r.store.Patch(ctx, ProductPath(storeID, productID), map[string]any{"qr_code": code})
	return err
}

// IncrementScanCount adds one to scan_count with a conditional write on the product
// document, so concurrent scans never lose an increment and a deleted product is not recreated.
func (r *Repository) IncrementScanCount(ctx context.Context, storeID, productID string) (int64, error) {
	if err := docstore.ValidateKey(storeID); err != nil {
		return 0, err
	}
	if err := docstore.ValidateKey(productID); err != nil {
		return 0, err
	}
	var count int64
	_, err := docstore.Update(ctx, r.store, ProductPath(storeID, productID), r.retries, func(current json.RawMessage) (any, error) {
		doc := map[string]json.RawMessage{}
		found, err := docstore.Decode(current, &doc)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		n, err := docstore.DecodeInt(doc["scan_count"])
		if err != nil {
			return nil, err
		}
		count = n + 1
		doc["scan_count"] = json.RawMessage(jsonInt(count))
		return doc, nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// RecordScan stores the buyer's latest scan of a product, replacing any earlier entry.
func (r *Repository) RecordScan(ctx context.Context, buyerID, productID, storeID, productName string) error {
	if err := docstore.ValidateKey(buyerID); err != nil {
		return err
	}
	if err := docstore.ValidateKey(productID); err != nil {
		return err
	}
	entry := ScanHistoryEntry{
		StoreID:     storeID,
		ProductName: productName,
		ScannedAt:   r.now(),
	}
	_, err := r.store.Put(ctx, docstore.Join(HistoryPath(buyerID), productID), entry)
	return err
}

// ListHistory returns the buyer's scans, most recent first.
func (r *Repository) ListHistory(ctx context.Context, buyerID string) ([]ScanHistoryEntry, error) {
	if err := docstore.ValidateKey(buyerID); err != nil {
		return nil, err
	}
	raw, err := r.store.Get(ctx, HistoryPath(buyerID))
	if err != nil {
		return nil, err
	}
	docs := map[string]ScanHistoryEntry{}
	if _, err := docstore.Decode(raw, &docs); err != nil {
		return nil, err
	}
	entries := make([]ScanHistoryEntry, 0, len(docs))
	for productID, entry := range docs {
		entry.ProductID = productID
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].ScannedAt.Equal(entries[j].ScannedAt) {
			return entries[i].ScannedAt.After(entries[j].ScannedAt)
		}
		return entries[i].ProductID < entries[j].ProductID
	})
	return entries, nil
}

func jsonInt(n int64) []byte {
	raw, _ := json.Marshal(n)
	return raw
}
