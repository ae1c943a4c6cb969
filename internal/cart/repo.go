// Package cart keeps a buyer's cart under users/{userId}/cart, one entry per product.
package cart

import (
	"context"
	"sort"
	"time"

	"github.com/angelmondragon/qrcatalog-backend/pkg/docstore"
	pkgerrors "github.com/angelmondragon/qrcatalog-backend/pkg/errors"
	"github.com/angelmondragon/qrcatalog-backend/pkg/types"
)

// Item is one cart line. Orders carry the same shape.
type Item struct {
	ProductID   string      `json:"product_id"`
	StoreID     string      `json:"store_id"`
	ProductName string      `json:"product_name"`
	Price       types.Money `json:"price"`
	Quantity    int         `json:"quantity"`
	Image       string      `json:"image"`
	AddedAt     *time.Time  `json:"added_at,omitempty"`
}

func Path(userID string) string {
	return docstore.Join("users", userID, "cart")
}

func ItemPath(userID, productID string) string {
	return docstore.Join("users", userID, "cart", productID)
}

type Repository struct {
	store docstore.Store
	now   func() time.Time
}

func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Add writes the line for item.ProductID, replacing any existing one. Quantities do not merge.
func (r *Repository) Add(ctx context.Context, userID string, item Item) (*Item, error) {
	if err := validateKeys(userID, item.ProductID); err != nil {
		return nil, err
	}
	if item.StoreID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store_id is required")
	}
	if item.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	now := r.now()
	item.AddedAt = &now
	if _, err := r.store.Put(ctx, ItemPath(userID, item.ProductID), item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Repository) Get(ctx context.Context, userID, productID string) (*Item, error) {
	if err := validateKeys(userID, productID); err != nil {
		return nil, err
	}
	raw, err := r.store.Get(ctx, ItemPath(userID, productID))
	if err != nil {
		return nil, err
	}
	var item Item
	found, err := docstore.Decode(raw, &item)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	item.ProductID = productID
	return &item, nil
}

// List returns the cart lines in the order they were added.
func (r *Repository) List(ctx context.Context, userID string) ([]Item, error) {
	if err := docstore.ValidateKey(userID); err != nil {
		return nil, err
	}
	raw, err := r.store.Get(ctx, Path(userID))
	if err != nil {
		return nil, err
	}
	docs := map[string]Item{}
	if _, err := docstore.Decode(raw, &docs); err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(docs))
	for productID, item := range docs {
		item.ProductID = productID
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		ai, aj := items[i].AddedAt, items[j].AddedAt
		if ai != nil && aj != nil && !ai.Equal(*aj) {
			return ai.Before(*aj)
		}
		return items[i].ProductID < items[j].ProductID
	})
	return items, nil
}

func (r *Repository) Remove(ctx context.Context, userID, productID string) error {
	if err := validateKeys(userID, productID); err != nil {
		return err
	}
	return r.store.Delete(ctx, ItemPath(userID, productID))
}

// Clear deletes the whole cart subtree.
func (r *Repository) Clear(ctx context.Context, userID string) error {
	if err := docstore.ValidateKey(userID); err != nil {
		return err
	}
	return r.store.Delete(ctx, Path(userID))
}

// RemoveItems deletes only the listed product lines in one multi-path patch,
// leaving anything added since untouched.
func (r *Repository) RemoveItems(ctx context.Context, userID string, productIDs []string) error {
	if err := docstore.ValidateKey(userID); err != nil {
		return err
	}
	if len(productIDs) == 0 {
		return nil
	}
	patch := make(map[string]any, len(productIDs))
	for _, id := range productIDs {
		if err := docstore.ValidateKey(id); err != nil {
			return err
		}
		patch[id] = nil
	}
	_, err := r.store.Patch(ctx, Path(userID), patch)
	return err
}

func validateKeys(keys ...string) error {
	for _, key := range keys {
		if err := docstore.ValidateKey(key); err != nil {
			return err
		}
	}
	return nil
}
