package requests

import (
	"context"
	"fmt"

	"github.com/angelmondragon/qrcatalog-backend/internal/catalog"
)

// Service records buyer requests and exposes them to the store owner.
type Service interface {
	Record(ctx context.Context, storeID, productName string) (*ProductRequest, error)
	ListForOwner(ctx context.Context, ownerID, storeID string) ([]ProductRequest, error)
}

type requestRepository interface {
	RecordRequest(ctx context.Context, storeID, productName string) (*ProductRequest, error)
	ListForStore(ctx context.Context, storeID string) ([]ProductRequest, error)
}

type storeDirectory interface {
	GetStore(ctx context.Context, storeID string) (*catalog.Store, error)
	AuthorizeOwner(ctx context.Context, ownerID, storeID string) (*catalog.Store, error)
}

type service struct {
	repo   requestRepository
	stores storeDirectory
}

func NewService(repo requestRepository, stores storeDirectory) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("request repository required")
	}
	if stores == nil {
		return nil, fmt.Errorf("store directory required")
	}
	return &service{repo: repo, stores: stores}, nil
}

// Record only counts requests against stores that exist.
func (s *service) Record(ctx context.Context, storeID, productName string) (*ProductRequest, error) {
	if _, err := s.stores.GetStore(ctx, storeID); err != nil {
		return nil, err
	}
	return s.repo.RecordRequest(ctx, storeID, productName)
}

func (s *service) ListForOwner(ctx context.Context, ownerID, storeID string) ([]ProductRequest, error) {
	if _, err := s.stores.AuthorizeOwner(ctx, ownerID, storeID); err != nil {
		return nil, err
	}
	return s.repo.ListForStore(ctx, storeID)
}
