package controllers

import (
	"net/http"

	"github.com/angelmondragon/qrcatalog-backend/api/middleware"
	"github.com/angelmondragon/qrcatalog-backend/api/responses"
	"github.com/angelmondragon/qrcatalog-backend/api/validators"
	"github.com/angelmondragon/qrcatalog-backend/internal/catalog"
	"github.com/angelmondragon/qrcatalog-backend/pkg/logger"
	"github.com/angelmondragon/qrcatalog-backend/pkg/types"
)

type productCreateRequest struct {
	Name        string      `json:"name" validate:"required,max=200"`
	Price       types.Money `json:"price"`
	Size        string      `json:"size" validate:"max=80"`
	Color       string      `json:"color" validate:"max=80"`
	Description string      `json:"description" validate:"max=4000"`
	Stock       int         `json:"stock" validate:"min=0"`
	Image       string      `json:"image" validate:"omitempty,uri"`
}

type productUpdateRequest struct {
	Name        *string      `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Price       *types.Money `json:"price,omitempty"`
	Size        *string      `json:"size,omitempty" validate:"omitempty,max=80"`
	Color       *string      `json:"color,omitempty" validate:"omitempty,max=80"`
	Description *string      `json:"description,omitempty" validate:"omitempty,max=4000"`
	Stock       *int         `json:"stock,omitempty" validate:"omitempty,min=0"`
	Image       *string      `json:"image,omitempty" validate:"omitempty,uri"`
}

type productQRCodeResponse struct {
	ProductID string `json:"product_id"`
	QRCode    string `json:"qr_code"`
}

func ProductList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := pathParam(r, "storeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		products, err := svc.ListProducts(r.Context(), storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, products)
	}
}

func ProductCreate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		storeID, err := pathParam(r, "storeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req productCreateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.CreateProduct(r.Context(), ownerID, storeID, catalog.CreateProductInput{
			Name:        validators.SanitizeString(req.Name, 200),
			Price:       req.Price,
			Size:        validators.SanitizeString(req.Size, 80),
			Color:       validators.SanitizeString(req.Color, 80),
			Description: validators.SanitizeString(req.Description, 4000),
			Stock:       req.Stock,
			Image:       validators.SanitizeString(req.Image, 0),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

// ProductScan serves a product page opened from a QR code. Customer views count as scans.
func ProductScan(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewerID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		storeID, err := pathParam(r, "storeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := pathParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.ScanProduct(r.Context(), viewerID, middleware.RoleFromContext(r.Context()), storeID, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func ProductUpdate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		storeID, err := pathParam(r, "storeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := pathParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req productUpdateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.UpdateProduct(r.Context(), ownerID, storeID, productID, catalog.UpdateProductInput{
			Name:        req.Name,
			Price:       req.Price,
			Size:        req.Size,
			Color:       req.Color,
			Description: req.Description,
			Stock:       req.Stock,
			Image:       req.Image,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func ProductDelete(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		storeID, err := pathParam(r, "storeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := pathParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteProduct(r.Context(), ownerID, storeID, productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"deleted": productID})
	}
}

// ProductQRCode returns the printable static QR code as a PNG data URI.
func ProductQRCode(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := pathParam(r, "storeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := pathParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		code, err := svc.ProductQRCode(r.Context(), storeID, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, productQRCodeResponse{ProductID: productID, QRCode: code})
	}
}

// HistoryList returns the caller's scan history.
func HistoryList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseLimit(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		history, err := svc.ListHistory(r.Context(), buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteList(w, validators.Truncate(history, limit), len(history))
	}
}
