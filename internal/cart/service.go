package cart

import (
	"context"
	"fmt"

	"github.com/angelmondragon/qrcatalog-backend/internal/catalog"
)

// AddInput identifies the product to put in the cart.
type AddInput struct {
	StoreID   string
	ProductID string
	Quantity  int
}

// Service fills cart lines from the current product documents.
type Service interface {
	Add(ctx context.Context, userID string, input AddInput) (*Item, error)
	List(ctx context.Context, userID string) ([]Item, error)
	Get(ctx context.Context, userID, productID string) (*Item, error)
	Remove(ctx context.Context, userID, productID string) error
	Clear(ctx context.Context, userID string) error
}

type productReader interface {
	GetProduct(ctx context.Context, storeID, productID string) (*catalog.Product, error)
}

type cartRepository interface {
	Add(ctx context.Context, userID string, item Item) (*Item, error)
	List(ctx context.Context, userID string) ([]Item, error)
	Get(ctx context.Context, userID, productID string) (*Item, error)
	Remove(ctx context.Context, userID, productID string) error
	Clear(ctx context.Context, userID string) error
}

type service struct {
	repo     cartRepository
	products productReader
}

func NewService(repo cartRepository, products productReader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product reader required")
	}
	return &service{repo: repo, products: products}, nil
}

// Add snapshots the product's name, price and image into the line. Stock is not checked.
func (s *service) Add(ctx context.Context, userID string, input AddInput) (*Item, error) {
	product, err := s.products.GetProduct(ctx, input.StoreID, input.ProductID)
	if err != nil {
		return nil, err
	}
	return s.repo.Add(ctx, userID, Item{
		ProductID:   product.ID,
		StoreID:     product.StoreID,
		ProductName: product.Name,
		Price:       product.Price,
		Quantity:    input.Quantity,
		Image:       product.Image,
	})
}

func (s *service) List(ctx context.Context, userID string) ([]Item, error) {
	return s.repo.List(ctx, userID)
}

func (s *service) Get(ctx context.Context, userID, productID string) (*Item, error) {
	return s.repo.Get(ctx, userID, productID)
}

func (s *service) Remove(ctx context.Context, userID, productID string) error {
	return s.repo.Remove(ctx, userID, productID)
}

func (s *service) Clear(ctx context.Context, userID string) error {
	return s.repo.Clear(ctx, userID)
}
