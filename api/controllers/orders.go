package controllers

import (
	"net/http"

	"github.com/angelmondragon/qrcatalog-backend/api/middleware"
	"github.com/angelmondragon/qrcatalog-backend/api/responses"
	"github.com/angelmondragon/qrcatalog-backend/api/validators"
	"github.com/angelmondragon/qrcatalog-backend/internal/cart"
	"github.com/angelmondragon/qrcatalog-backend/internal/orders"
	"github.com/angelmondragon/qrcatalog-backend/pkg/enums"
	"github.com/angelmondragon/qrcatalog-backend/pkg/logger"
	"github.com/angelmondragon/qrcatalog-backend/pkg/types"
)

type orderItemRequest struct {
	ProductID   string      `json:"product_id" validate:"required,dockey"`
	StoreID     string      `json:"store_id" validate:"required,dockey"`
	ProductName string      `json:"product_name" validate:"max=200"`
	Price       types.Money `json:"price"`
	Quantity    int         `json:"quantity" validate:"required,min=1"`
	Image       string      `json:"image"`
}

type orderCreateRequest struct {
	Items          []orderItemRequest `json:"items" validate:"required,min=1,dive"`
	Total          types.Money        `json:"total"`
	DeliveryMethod string             `json:"delivery_method" validate:"required,oneof=home_delivery self_pickup"`
	Address        string             `json:"address" validate:"max=500"`
}

type orderCreateResponse struct {
	OrderID string `json:"order_id"`
}

// OrderCreate checks out the submitted items. A repeated Idempotency-Key resolves to the
// same order id.
func OrderCreate(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req orderCreateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]cart.Item, 0, len(req.Items))
		for _, item := range req.Items {
			items = append(items, cart.Item{
				ProductID:   item.ProductID,
				StoreID:     item.StoreID,
				ProductName: item.ProductName,
				Price:       item.Price,
				Quantity:    item.Quantity,
				Image:       item.Image,
			})
		}

		orderID, err := svc.CreateOrder(r.Context(), orders.CreateInput{
			UserID:         userID,
			Email:          middleware.EmailFromContext(r.Context()),
			Items:          items,
			DeliveryMethod: enums.DeliveryMethod(req.DeliveryMethod),
			Address:        validators.SanitizeString(req.Address, 500),
			Total:          req.Total,
			IdempotencyKey: middleware.IdempotencyKeyFromRequest(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, orderCreateResponse{OrderID: orderID})
	}
}

func OrderList(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		refs, err := svc.ListUserOrders(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, refs)
	}
}

func OrderGet(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := pathParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.GetOrder(r.Context(), userID, middleware.RoleFromContext(r.Context()), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func StoreOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
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
		refs, err := svc.ListStoreOrders(r.Context(), ownerID, storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, refs)
	}
}
