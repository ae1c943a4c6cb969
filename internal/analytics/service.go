// Package analytics summarizes a store's scan, request and order counters.
package analytics

import (
	"context"
	"fmt"
	"sort"

	"github.com/angelmondragon/qrcatalog-backend/internal/catalog"
	"github.com/angelmondragon/qrcatalog-backend/internal/requests"
	"github.com/angelmondragon/qrcatalog-backend/pkg/docstore"
)

// TopN bounds each ranking.
const TopN = 5

// ScannedProduct is one entry of the most-scanned ranking.
type ScannedProduct struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	ScanCount int64  `json:"scan_count"`
}

// RequestedProduct is one entry of the most-requested ranking.
type RequestedProduct struct {
	ProductName string `json:"product_name"`
	Count       int64  `json:"count"`
}

// StoreAnalytics is the owner dashboard summary.
type StoreAnalytics struct {
	StoreID        string             `json:"store_id"`
	MostScanned    []ScannedProduct   `json:"most_scanned"`
	MostRequested  []RequestedProduct `json:"most_requested"`
	TotalOrders    int                `json:"total_orders"`
	TotalScans     int64              `json:"total_scans"`
	TotalRequested int64              `json:"total_requested"`
}

// Service provides store analytics.
type Service interface {
	StoreAnalytics(ctx context.Context, ownerID, storeID string) (*StoreAnalytics, error)
}

type productLister interface {
	ListProducts(ctx context.Context, storeID string) ([]catalog.Product, error)
}

type requestLister interface {
	ListForStore(ctx context.Context, storeID string) ([]requests.ProductRequest, error)
}

type storeAuthorizer interface {
	AuthorizeOwner(ctx context.Context, ownerID, storeID string) (*catalog.Store, error)
}

type keyLister interface {
	Keys(ctx context.Context, path string) ([]string, error)
}

type service struct {
	products productLister
	requests requestLister
	stores   storeAuthorizer
	docs     keyLister
}

func NewService(products productLister, requestRepo requestLister, stores storeAuthorizer, docs keyLister) (Service, error) {
	if products == nil {
		return nil, fmt.Errorf("product lister required")
	}
	if requestRepo == nil {
		return nil, fmt.Errorf("request lister required")
	}
	if stores == nil {
		return nil, fmt.Errorf("store authorizer required")
	}
	if docs == nil {
		return nil, fmt.Errorf("docstore required")
	}
	return &service{products: products, requests: requestRepo, stores: stores, docs: docs}, nil
}

// StoreAnalytics ranks products by scans (unscanned products are omitted) and requests
// by count, and counts the store's order index entries.
func (s *service) StoreAnalytics(ctx context.Context, ownerID, storeID string) (*StoreAnalytics, error) {
	if _, err := s.stores.AuthorizeOwner(ctx, ownerID, storeID); err != nil {
		return nil, err
	}

	products, err := s.products.ListProducts(ctx, storeID)
	if err != nil {
		return nil, err
	}
	reqs, err := s.requests.ListForStore(ctx, storeID)
	if err != nil {
		return nil, err
	}
	orderIDs, err := s.docs.Keys(ctx, docstore.Join("stores", storeID, "orders"))
	if err != nil {
		return nil, err
	}

	out := &StoreAnalytics{
		StoreID:       storeID,
		MostScanned:   []ScannedProduct{},
		MostRequested: []RequestedProduct{},
		TotalOrders:   len(orderIDs),
	}

	scanned := make([]ScannedProduct, 0, len(products))
	for _, p := range products {
		out.TotalScans += p.ScanCount
		if p.ScanCount > 0 {
			scanned = append(scanned, ScannedProduct{ProductID: p.ID, Name: p.Name, ScanCount: p.ScanCount})
		}
	}
	sort.SliceStable(scanned, func(i, j int) bool {
		return scanned[i].ScanCount > scanned[j].ScanCount
	})
	if len(scanned) > TopN {
		scanned = scanned[:TopN]
	}
	out.MostScanned = append(out.MostScanned, scanned...)

	for i, r := range reqs {
		out.TotalRequested += r.Count
		if i < TopN {
			out.MostRequested = append(out.MostRequested, RequestedProduct{ProductName: r.ProductName, Count: r.Count})
		}
	}
	return out, nil
}
