package catalog

import (
	"time"

	"github.com/angelmondragon/qrcatalog-backend/pkg/docstore"
	"github.com/angelmondragon/qrcatalog-backend/pkg/types"
)

const (
	storesRoot = "stores"
	usersRoot  = "users"
)

// Store is a seller's catalog root. OwnerID never changes after creation.
type Store struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	OwnerID     string    `json:"owner_id"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
}

// Product lives under stores/{storeId}/products/{productId}.
type Product struct {
	ID          string      `json:"id"`
	StoreID     string      `json:"store_id"`
	Name        string      `json:"name"`
	Price       types.Money `json:"price"`
	Size        string      `json:"size"`
	Color       string      `json:"color"`
	Description string      `json:"description"`
	Stock       int         `json:"stock"`
	Image       string      `json:"image"`
	QRCode      string      `json:"qr_code"`
	ScanCount   int64       `json:"scan_count"`
	CreatedAt   time.Time   `json:"created_at"`
}

// ScanHistoryEntry is keyed by product id; a repeat scan replaces it.
type ScanHistoryEntry struct {
	ProductID   string    `json:"product_id,omitempty"`
	StoreID     string    `json:"store_id"`
	ProductName string    `json:"product_name"`
	ScannedAt   time.Time `json:"scanned_at"`
}

// QRPayload is the JSON record carried by a dynamic product code.
type QRPayload struct {
	ID      string `json:"id"`
	StoreID string `json:"store_id"`
	Name    string `json:"name"`
	Price   string `json:"price"`
	Weight  string `json:"weight"`
	Store   string `json:"store"`
	Image   string `json:"image"`
}

func StorePath(storeID string) string {
	return docstore.Join(storesRoot, storeID)
}

func ProductsPath(storeID string) string {
	return docstore.Join(storesRoot, storeID, "products")
}

func ProductPath(storeID, productID string) string {
	return docstore.Join(storesRoot, storeID, "products", productID)
}

func HistoryPath(userID string) string {
	return docstore.Join(usersRoot, userID, "scanned_history")
}

// DynamicQRPath is the API path that renders a product's dynamic code.
func DynamicQRPath(storeID, productID string) string {
	return "/api/v1/qr/" + storeID + "/" + productID
}
