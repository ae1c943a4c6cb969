package orders

import (
	"time"

	"github.com/angelmondragon/qrcatalog-backend/internal/cart"
	"github.com/angelmondragon/qrcatalog-backend/pkg/docstore"
	"github.com/angelmondragon/qrcatalog-backend/pkg/enums"
	"github.com/angelmondragon/qrcatalog-backend/pkg/types"
)

// Order is the global view stored at orders/{orderId}.
type Order struct {
	OrderID        string               `json:"order_id"`
	UserID         string               `json:"user_id"`
	Items          []cart.Item          `json:"items"`
	Total          types.Money          `json:"total"`
	DeliveryMethod enums.DeliveryMethod `json:"delivery_method"`
	Address        string               `json:"address"`
	Status         enums.OrderStatus    `json:"status"`
	CreatedAt      time.Time            `json:"created_at"`
}

// UserOrderRef is the buyer's index entry at users/{userId}/orders/{orderId}.
type UserOrderRef struct {
	OrderID   string      `json:"order_id,omitempty"`
	Total     types.Money `json:"total"`
	CreatedAt time.Time   `json:"created_at"`
}

// StoreOrderRef is a store's slice of an order at stores/{storeId}/orders/{orderId}.
type StoreOrderRef struct {
	OrderID       string            `json:"order_id,omitempty"`
	UserID        string            `json:"user_id"`
	CustomerEmail string            `json:"customer_email"`
	Items         []cart.Item       `json:"items"`
	Total         types.Money       `json:"total"`
	Status        enums.OrderStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
}

// CreateInput is a checkout request for one buyer.
type CreateInput struct {
	UserID         string
	Email          string
	Items          []cart.Item
	DeliveryMethod enums.DeliveryMethod
	Address        string
	Total          types.Money
	IdempotencyKey string
}

func OrderPath(orderID string) string {
	return docstore.Join("orders", orderID)
}

func UserOrdersPath(userID string) string {
	return docstore.Join("users", userID, "orders")
}

func UserOrderRefPath(userID, orderID string) string {
	return docstore.Join("users", userID, "orders", orderID)
}

func StoreOrdersPath(storeID string) string {
	return docstore.Join("stores", storeID, "orders")
}

func StoreOrderRefPath(storeID, orderID string) string {
	return docstore.Join("stores", storeID, "orders", orderID)
}
