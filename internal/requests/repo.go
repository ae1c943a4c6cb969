// Package requests counts customer requests for products a store does not list.
package requests

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/angelmondragon/qrcatalog-backend/pkg/docstore"
	pkgerrors "github.com/angelmondragon/qrcatalog-backend/pkg/errors"
)

// ProductRequest is stored at requests/{storeId}/{escaped product name}.
type ProductRequest struct {
	StoreID     string `json:"store_id"`
	ProductName string `json:"product_name"`
	Count       int64  `json:"count"`
}

func StorePath(storeID string) string {
	return docstore.Join("requests", storeID)
}

func RequestPath(storeID, productName string) string {
	return docstore.Join("requests", storeID, docstore.EscapeKey(productName))
}

type Repository struct {
	store   docstore.Store
	retries int
}

func NewRepository(store docstore.Store, retries int) *Repository {
	return &Repository{store: store, retries: retries}
}

// RecordRequest adds one to the (store, product name) counter, starting from zero.
// The increment is a conditional write, so concurrent requests are all counted.
func (r *Repository) RecordRequest(ctx context.Context, storeID, productName string) (*ProductRequest, error) {
	name := strings.TrimSpace(productName)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if err := docstore.ValidateKey(storeID); err != nil {
		return nil, err
	}

	var result ProductRequest
	_, err := docstore.Update(ctx, r.store, RequestPath(storeID, name), r.retries, func(current json.RawMessage) (any, error) {
		var doc ProductRequest
		if _, err := docstore.Decode(current, &doc); err != nil {
			return nil, err
		}
		result = ProductRequest{StoreID: storeID, ProductName: name, Count: doc.Count + 1}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListForStore returns the store's requests, most requested first.
func (r *Repository) ListForStore(ctx context.Context, storeID string) ([]ProductRequest, error) {
	if err := docstore.ValidateKey(storeID); err != nil {
		return nil, err
	}
	raw, err := r.store.Get(ctx, StorePath(storeID))
	if err != nil {
		return nil, err
	}
	docs := map[string]ProductRequest{}
	if _, err := docstore.Decode(raw, &docs); err != nil {
		return nil, err
	}
	out := make([]ProductRequest, 0, len(docs))
	for key, doc := range docs {
		if doc.ProductName == "" {
			doc.ProductName = docstore.UnescapeKey(key)
		}
		doc.StoreID = storeID
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ProductName < out[j].ProductName
	})
	return out, nil
}
