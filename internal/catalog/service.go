package catalog

import (
	"context"
	"fmt"

	"github.com/angelmondragon/qrcatalog-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/qrcatalog-backend/pkg/errors"
	"github.com/angelmondragon/qrcatalog-backend/pkg/logger"
)

// Service exposes catalog management and the customer scan flow.
type Service interface {
	CreateStore(ctx context.Context, ownerID string, input CreateStoreInput) (*Store, error)
	GetStore(ctx context.Context, storeID string) (*Store, error)
	ListStores(ctx context.Context) ([]Store, error)
	MyStore(ctx context.Context, ownerID string) (*Store, error)
	UpdateStore(ctx context.Context, ownerID, storeID string, input UpdateStoreInput) (*Store, error)
	AuthorizeOwner(ctx context.Context, ownerID, storeID string) (*Store, error)

	CreateProduct(ctx context.Context, ownerID, storeID string, input CreateProductInput) (*Product, error)
	ListProducts(ctx context.Context, storeID string) ([]Product, error)
	ScanProduct(ctx context.Context, viewerID string, role enums.UserRole, storeID, productID string) (*Product, error)
	UpdateProduct(ctx context.Context, ownerID, storeID, productID string, input UpdateProductInput) (*Product, error)
	DeleteProduct(ctx context.Context, ownerID, storeID, productID string) error

	QRPayload(ctx context.Context, storeID, productID string) (*QRPayload, error)
	QRImage(ctx context.Context, storeID, productID string) ([]byte, error)
	ProductQRCode(ctx context.Context, storeID, productID string) (string, error)
	ListHistory(ctx context.Context, buyerID string) ([]ScanHistoryEntry, error)
}

type catalogRepository interface {
	CreateStore(ctx context.Context, ownerID string, input CreateStoreInput) (*Store, error)
	GetStore(ctx context.Context, storeID string) (*Store, error)
	ListStores(ctx context.Context) ([]Store, error)
	FindStoreByOwner(ctx context.Context, ownerID string) (*Store, error)
	UpdateStore(ctx context.Context, storeID string, input UpdateStoreInput) (*Store, error)
	CreateProduct(ctx context.Context, storeID string, input CreateProductInput) (*Product, error)
	GetProduct(ctx context.Context, storeID, productID string) (*Product, error)
	ListProducts(ctx context.Context, storeID string) ([]Product, error)
	UpdateProduct(ctx context.Context, storeID, productID string, input UpdateProductInput) (*Product, error)
	DeleteProduct(ctx context.Context, storeID, productID string) error
	IncrementScanCount(ctx context.Context, storeID, productID string) (int64, error)
	RecordScan(ctx context.Context, buyerID, productID, storeID, productName string) error
	ListHistory(ctx context.Context, buyerID string) ([]ScanHistoryEntry, error)
}

type qrEncoder interface {
	EncodeDynamic(payload any) ([]byte, error)
	EncodeProductURL(storeID, productID string) (string, error)
}

type service struct {
	repo     catalogRepository
	codec    qrEncoder
	currency string
	logg     *logger.Logger
}

// NewService constructs the catalog service. currency prefixes prices in QR payloads.
func NewService(repo catalogRepository, codec qrEncoder, currency string, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if codec == nil {
		return nil, fmt.Errorf("qr codec required")
	}
	return &service{repo: repo, codec: codec, currency: currency, logg: logg}, nil
}

// CreateStore creates the owner's store. Each owner holds at most one.
func (s *service) CreateStore(ctx context.Context, ownerID string, input CreateStoreInput) (*Store, error) {
	existing, err := s.repo.FindStoreByOwner(ctx, ownerID)
	if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "owner already has a store").
			WithDetails(map[string]any{"store_id": existing.ID})
	}
	return s.repo.CreateStore(ctx, ownerID, input)
}

func (s *service) GetStore(ctx context.Context, storeID string) (*Store, error) {
	return s.repo.GetStore(ctx, storeID)
}

func (s *service) ListStores(ctx context.Context) ([]Store, error) {
	return s.repo.ListStores(ctx)
}

func (s *service) MyStore(ctx context.Context, ownerID string) (*Store, error) {
	return s.repo.FindStoreByOwner(ctx, ownerID)
}

func (s *service) UpdateStore(ctx context.Context, ownerID, storeID string, input UpdateStoreInput) (*Store, error) {
	if _, err := s.AuthorizeOwner(ctx, ownerID, storeID); err != nil {
		return nil, err
	}
	return s.repo.UpdateStore(ctx, storeID, input)
}

// AuthorizeOwner loads the store and verifies ownerID owns it.
func (s *service) AuthorizeOwner(ctx context.Context, ownerID, storeID string) (*Store, error) {
	store, err := s.repo.GetStore(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if ownerID == "" || store.OwnerID != ownerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "store access denied")
	}
	return store, nil
}

func (s *service) CreateProduct(ctx context.Context, ownerID, storeID string, input CreateProductInput) (*Product, error) {
	if _, err := s.AuthorizeOwner(ctx, ownerID, storeID); err != nil {
		return nil, err
	}
	return s.repo.CreateProduct(ctx, storeID, input)
}

func (s *service) ListProducts(ctx context.Context, storeID string) ([]Product, error) {
	if _, err := s.repo.GetStore(ctx, storeID); err != nil {
		return nil, err
	}
	return s.repo.ListProducts(ctx, storeID)
}

// ScanProduct serves a product view. Every view bumps the scan counter; customer views
// also record history. Both writes are best effort and never fail the read.
func (s *service) ScanProduct(ctx context.Context, viewerID string, role enums.UserRole, storeID, productID string) (*Product, error) {
	product, err := s.repo.GetProduct(ctx, storeID, productID)
	if err != nil {
		return nil, err
	}

	count, err := s.repo.IncrementScanCount(ctx, storeID, productID)
	if err != nil {
		s.warn(ctx, "catalog.scan_count_failed", err)
	} else {
		product.ScanCount = count
	}
	if role == enums.UserRoleCustomer && viewerID != "" {
		if err := s.repo.RecordScan(ctx, viewerID, productID, storeID, product.Name); err != nil {
			s.warn(ctx, "catalog.scan_history_failed", err)
		}
	}
	return product, nil
}

func (s *service) UpdateProduct(ctx context.Context, ownerID, storeID, productID string, input UpdateProductInput) (*Product, error) {
	if _, err := s.AuthorizeOwner(ctx, ownerID, storeID); err != nil {
		return nil, err
	}
	return s.repo.UpdateProduct(ctx, storeID, productID, input)
}

func (s *service) DeleteProduct(ctx context.Context, ownerID, storeID, productID string) error {
	if _, err := s.AuthorizeOwner(ctx, ownerID, storeID); err != nil {
		return err
	}
	return s.repo.DeleteProduct(ctx, storeID, productID)
}

// QRPayload builds the dynamic code record from the current product and store documents.
func (s *service) QRPayload(ctx context.Context, storeID, productID string) (*QRPayload, error) {
	product, err := s.repo.GetProduct(ctx, storeID, productID)
	if err != nil {
		return nil, err
	}
	storeName := ""
	if store, err := s.repo.GetStore(ctx, storeID); err == nil {
		storeName = store.Name
	} else if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, err
	}
	return &QRPayload{
		ID:      product.ID,
		StoreID: storeID,
		Name:    product.Name,
		Price:   s.currency + product.Price.String(),
		Weight:  product.Size,
		Store:   storeName,
		Image:   product.Image,
	}, nil
}

func (s *service) QRImage(ctx context.Context, storeID, productID string) ([]byte, error) {
	payload, err := s.QRPayload(ctx, storeID, productID)
	if err != nil {
		return nil, err
	}
	return s.codec.EncodeDynamic(payload)
}

// ProductQRCode returns the static product URL code as a data URI.
func (s *service) ProductQRCode(ctx context.Context, storeID, productID string) (string, error) {
	if _, err := s.repo.GetProduct(ctx, storeID, productID); err != nil {
		return "", err
	}
	return s.codec.EncodeProductURL(storeID, productID)
}

func (s *service) ListHistory(ctx context.Context, buyerID string) ([]ScanHistoryEntry, error) {
	return s.repo.ListHistory(ctx, buyerID)
}

func (s *service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithField(ctx, "error", err.Error())
	s.logg.Warn(ctx, msg)
}
