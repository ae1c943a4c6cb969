package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/qrcatalog-backend/api/controllers"
	"github.com/angelmondragon/qrcatalog-backend/api/middleware"
	"github.com/angelmondragon/qrcatalog-backend/internal/analytics"
	"github.com/angelmondragon/qrcatalog-backend/internal/cart"
	"github.com/angelmondragon/qrcatalog-backend/internal/catalog"
	"github.com/angelmondragon/qrcatalog-backend/internal/orders"
	"github.com/angelmondragon/qrcatalog-backend/internal/requests"
	"github.com/angelmondragon/qrcatalog-backend/pkg/config"
	"github.com/angelmondragon/qrcatalog-backend/pkg/enums"
	"github.com/angelmondragon/qrcatalog-backend/pkg/logger"
	"github.com/angelmondragon/qrcatalog-backend/pkg/redis"
)

type qrDecoder interface {
	Decode(data []byte) (string, error)
}

// Services bundles the domain services exposed over HTTP.
type Services struct {
	Catalog   catalog.Service
	Cart      cart.Service
	Orders    orders.Service
	Requests  requests.Service
	Analytics analytics.Service
	QR        qrDecoder
}

// Dependencies are the infrastructure clients used by middleware and readiness checks.
type Dependencies struct {
	Redis    *redis.Client
	DocStore controllers.Pinger
	DB       controllers.Pinger
	// PubSub is nil when order events are disabled.
	PubSub   controllers.Pinger
	Gatherer prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	// Interfaces stay nil without Redis so idempotency and rate limiting are skipped.
	var (
		idempotencyStore redis.IdempotencyStore
		limiterStore     middleware.RateLimiterStore
		redisPinger      controllers.Pinger
	)
	if deps.Redis != nil {
		idempotencyStore = deps.Redis
		limiterStore = deps.Redis
		redisPinger = deps.Redis
	}
	idempotent := middleware.Idempotency(idempotencyStore, cfg.Fanout.IdempotencyTTL, logg)
	qrLimit := middleware.RateLimit(middleware.NewRateLimitPolicy("qr", cfg.RateLimit.QRWindow, cfg.RateLimit.QRIPLimit, 0), limiterStore, logg)
	requestLimit := middleware.RateLimit(middleware.NewRateLimitPolicy("requests", cfg.RateLimit.RequestsWindow, 0, cfg.RateLimit.RequestsLimit), limiterStore, logg)

	customer := middleware.RequireRole(logg, enums.UserRoleCustomer)
	owner := middleware.RequireRole(logg, enums.UserRoleStoreOwner)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg,
			controllers.ReadinessCheck{Name: "docstore", Pinger: deps.DocStore},
			controllers.ReadinessCheck{Name: "redis", Pinger: redisPinger},
			controllers.ReadinessCheck{Name: "db", Pinger: deps.DB},
			controllers.ReadinessCheck{Name: "pubsub", Pinger: deps.PubSub},
		))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/qr", func(r chi.Router) {
		r.Use(qrLimit)
		r.Get("/{storeId}/{productId}", controllers.QRImage(svc.Catalog, logg))
		r.Post("/decode", controllers.QRDecode(svc.QR, cfg.QR.MaxUploadBytes(), logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/stores", func(r chi.Router) {
			r.Get("/", controllers.StoreList(svc.Catalog, logg))
			r.With(owner, idempotent).Post("/", controllers.StoreCreate(svc.Catalog, logg))
			r.With(owner).Get("/me", controllers.StoreMe(svc.Catalog, logg))

			r.Route("/{storeId}", func(r chi.Router) {
				r.Get("/", controllers.StoreGet(svc.Catalog, logg))
				r.With(owner).Patch("/", controllers.StoreUpdate(svc.Catalog, logg))

				r.Get("/products", controllers.ProductList(svc.Catalog, logg))
				r.With(owner, idempotent).Post("/products", controllers.ProductCreate(svc.Catalog, logg))
				r.Get("/products/{productId}", controllers.ProductScan(svc.Catalog, logg))
				r.With(owner).Patch("/products/{productId}", controllers.ProductUpdate(svc.Catalog, logg))
				r.With(owner).Delete("/products/{productId}", controllers.ProductDelete(svc.Catalog, logg))
				r.Get("/products/{productId}/qr-code", controllers.ProductQRCode(svc.Catalog, logg))

				r.With(owner).Get("/orders", controllers.StoreOrders(svc.Orders, logg))
				r.With(owner).Get("/requests", controllers.StoreRequests(svc.Requests, logg))
				r.With(owner).Get("/analytics", controllers.StoreAnalytics(svc.Analytics, logg))
			})
		})

		r.Route("/cart", func(r chi.Router) {
			r.Use(customer)
			r.Get("/", controllers.CartList(svc.Cart, logg))
			r.Post("/", controllers.CartAdd(svc.Cart, logg))
			r.Delete("/", controllers.CartClear(svc.Cart, logg))
			r.Get("/{productId}", controllers.CartGet(svc.Cart, logg))
			r.Delete("/{productId}", controllers.CartRemove(svc.Cart, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.With(customer, idempotent).Post("/", controllers.OrderCreate(svc.Orders, logg))
			r.With(customer).Get("/", controllers.OrderList(svc.Orders, logg))
			r.Get("/{orderId}", controllers.OrderGet(svc.Orders, logg))
		})

		r.With(customer).Get("/history", controllers.HistoryList(svc.Catalog, logg))
		r.With(customer, requestLimit).Post("/requests", controllers.RequestCreate(svc.Requests, logg))
	})

	return r
}
