package orders

import (
	"context"
	"fmt"
	"sort"

	"github.com/angelmondragon/qrcatalog-backend/internal/catalog"
	"github.com/angelmondragon/qrcatalog-backend/pkg/docstore"
	"github.com/angelmondragon/qrcatalog-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/qrcatalog-backend/pkg/errors"
)

// Service exposes checkout and the three order views.
type Service interface {
	CreateOrder(ctx context.Context, input CreateInput) (string, error)
	GetOrder(ctx context.Context, viewerID string, role enums.UserRole, orderID string) (*Order, error)
	ListUserOrders(ctx context.Context, userID string) ([]UserOrderRef, error)
	ListStoreOrders(ctx context.Context, ownerID, storeID string) ([]StoreOrderRef, error)
}

type orderCreator interface {
	CreateOrder(ctx context.Context, input CreateInput) (string, error)
}

type storeAuthorizer interface {
	AuthorizeOwner(ctx context.Context, ownerID, storeID string) (*catalog.Store, error)
}

type service struct {
	engine orderCreator
	docs   docstore.Store
	stores storeAuthorizer
}

func NewService(engine orderCreator, docs docstore.Store, stores storeAuthorizer) (Service, error) {
	if engine == nil {
		return nil, fmt.Errorf("fan-out engine required")
	}
	if docs == nil {
		return nil, fmt.Errorf("docstore required")
	}
	if stores == nil {
		return nil, fmt.Errorf("store authorizer required")
	}
	return &service{engine: engine, docs: docs, stores: stores}, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateInput) (string, error) {
	return s.engine.CreateOrder(ctx, input)
}

// GetOrder returns the global view to its buyer, or to the owner of a store in the order.
func (s *service) GetOrder(ctx context.Context, viewerID string, role enums.UserRole, orderID string) (*Order, error) {
	if err := docstore.ValidateKey(orderID); err != nil {
		return nil, err
	}
	raw, err := s.docs.Get(ctx, OrderPath(orderID))
	if err != nil {
		return nil, err
	}
	var order Order
	found, err := docstore.Decode(raw, &order)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	order.OrderID = orderID

	if viewerID != "" && order.UserID == viewerID {
		return &order, nil
	}
	if role == enums.UserRoleStoreOwner {
		for _, group := range GroupByStore(order.Items) {
			if _, err := s.stores.AuthorizeOwner(ctx, viewerID, group.StoreID); err == nil {
				return &order, nil
			}
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order access denied")
}

// ListUserOrders returns the buyer's index, newest first.
func (s *service) ListUserOrders(ctx context.Context, userID string) ([]UserOrderRef, error) {
	if err := docstore.ValidateKey(userID); err != nil {
		return nil, err
	}
	raw, err := s.docs.Get(ctx, UserOrdersPath(userID))
	if err != nil {
		return nil, err
	}
	docs := map[string]UserOrderRef{}
	if _, err := docstore.Decode(raw, &docs); err != nil {
		return nil, err
	}
	refs := make([]UserOrderRef, 0, len(docs))
	for id, ref := range docs {
		ref.OrderID = id
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if !refs[i].CreatedAt.Equal(refs[j].CreatedAt) {
			return refs[i].CreatedAt.After(refs[j].CreatedAt)
		}
		return refs[i].OrderID < refs[j].OrderID
	})
	return refs, nil
}

// ListStoreOrders returns a store's order index, newest first. Only the owner may read it.
func (s *service) ListStoreOrders(ctx context.Context, ownerID, storeID string) ([]StoreOrderRef, error) {
	if _, err := s.stores.AuthorizeOwner(ctx, ownerID, storeID); err != nil {
		return nil, err
	}
	return ReadStoreOrders(ctx, s.docs, storeID)
}

// ReadStoreOrders loads stores/{storeId}/orders without authorization.
func ReadStoreOrders(ctx context.Context, docs docstore.Store, storeID string) ([]StoreOrderRef, error) {
	raw, err := docs.Get(ctx, StoreOrdersPath(storeID))
	if err != nil {
		return nil, err
	}
	byID := map[string]StoreOrderRef{}
	if _, err := docstore.Decode(raw, &byID); err != nil {
		return nil, err
	}
	refs := make([]StoreOrderRef, 0, len(byID))
	for id, ref := range byID {
		ref.OrderID = id
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if !refs[i].CreatedAt.Equal(refs[j].CreatedAt) {
			return refs[i].CreatedAt.After(refs[j].CreatedAt)
		}
		return refs[i].OrderID < refs[j].OrderID
	})
	return refs, nil
}
