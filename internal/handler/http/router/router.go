package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"storefront/internal/app/catalog"
	"storefront/internal/app/checkout"
	"storefront/internal/app/orders"
	"storefront/internal/app/payments"
	"storefront/internal/app/shipping"
	http_admin "storefront/internal/handler/http/admin"
	"storefront/internal/handler/http/api"
	http_catalog "storefront/internal/handler/http/catalog"
	http_orders "storefront/internal/handler/http/orders"
)

type Services struct {
	Catalog  catalog.CatalogService
	Shipping shipping.ShippingService
	Orders   orders.OrderService
	Payments payments.PaymentService
	Checkout checkout.CheckoutService
}

func NewRouter(s Services, allowedOrigins []string, l *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", api.HeaderUserID, api.HeaderUserEmail, api.HeaderUserName, api.HeaderUserRole},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(api.WithActor)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	http_catalog.RegisterRoutes(r, s.Catalog, s.Shipping, l)
	http_orders.RegisterRoutes(r, s.Checkout, s.Orders, s.Payments, l)
	http_admin.RegisterRoutes(r, s.Orders, l)

	return r
}
