package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/davidmarcano/storefront-backend/api/controllers"
	"github.com/davidmarcano/storefront-backend/api/middleware"
	"github.com/davidmarcano/storefront-backend/internal/aftersales"
	"github.com/davidmarcano/storefront-backend/internal/cart"
	"github.com/davidmarcano/storefront-backend/internal/discount"
	"github.com/davidmarcano/storefront-backend/internal/orders"
	"github.com/davidmarcano/storefront-backend/internal/policy"
	product "github.com/davidmarcano/storefront-backend/internal/products"
	"github.com/davidmarcano/storefront-backend/pkg/config"
	"github.com/davidmarcano/storefront-backend/pkg/db"
	"github.com/davidmarcano/storefront-backend/pkg/logger"
	"github.com/davidmarcano/storefront-backend/pkg/redis"
)

// Services groups everything the router mounts.
type Services struct {
	Cart       cart.Service
	Products   product.Service
	Discounts  discount.Service
	Orders     orders.Service
	AfterSales aftersales.Service
	Policy     policy.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	registry *prometheus.Registry,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbClient, redisClient))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	// Public catalog.
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ProductList(svcs.Products, logg))
		r.Get("/{productId}", controllers.ProductFetch(svcs.Products, logg))
	})

	// Authenticated storefront.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(svcs.Cart, logg))
			r.Post("/items", controllers.CartAddItem(svcs.Cart, logg))
			r.Patch("/items/{productId}", controllers.CartUpdateItem(svcs.Cart, logg))
			r.Delete("/items/{productId}", controllers.CartRemoveItem(svcs.Cart, logg))
			r.Delete("/", controllers.CartClear(svcs.Cart, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.OrderCreate(svcs.Orders, logg))
			r.Post("/payment-intent", controllers.OrderPaymentIntent(svcs.Orders, logg))
			r.Get("/", controllers.OrderList(svcs.Orders, logg))
			r.Get("/{orderId}", controllers.OrderFetch(svcs.Orders, logg))
			r.Post("/{orderId}/cancel", controllers.OrderCancel(svcs.Orders, logg))
			r.Get("/{orderId}/aftersales/eligibility", controllers.AfterSalesEligibility(svcs.AfterSales, logg))
			r.Post("/{orderId}/aftersales", controllers.AfterSalesSubmit(svcs.AfterSales, logg))
		})

		r.Get("/policy", controllers.PolicyFetch(svcs.Policy, logg))
	})

	// Back office.
	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireAdmin(logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminOrderList(svcs.Orders, logg))
			r.Patch("/{orderId}/status", controllers.AdminOrderUpdateStatus(svcs.Orders, logg))
			r.Post("/{orderId}/cancel", controllers.OrderCancel(svcs.Orders, logg))
			r.Post("/{orderId}/refund", controllers.AdminOrderRefund(svcs.Orders, logg))
			r.Put("/{orderId}/tracking", controllers.AdminOrderTracking(svcs.Orders, logg))
			r.Post("/{orderId}/aftersales/approve", controllers.AfterSalesApprove(svcs.AfterSales, logg))
			r.Post("/{orderId}/aftersales/reject", controllers.AfterSalesReject(svcs.AfterSales, logg))
			r.Post("/{orderId}/aftersales/complete", controllers.AfterSalesComplete(svcs.AfterSales, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Post("/", controllers.AdminProductCreate(svcs.Products, logg))
			r.Patch("/{productId}", controllers.AdminProductUpdate(svcs.Products, logg))
			r.Delete("/{productId}", controllers.AdminProductDelete(svcs.Products, logg))
			r.Post("/{productId}/stock", controllers.AdminProductAdjustStock(svcs.Products, logg))
		})

		r.Route("/discounts", func(r chi.Router) {
			r.Post("/", controllers.AdminDiscountSet(svcs.Discounts, logg))
			r.Post("/remove", controllers.AdminDiscountRemove(svcs.Discounts, logg))
		})

		r.Put("/policy", controllers.AdminPolicyUpdate(svcs.Policy, logg))
	})

	return r
}
