package admin

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"storefront/internal/app/orders"
	"storefront/internal/handler/http/api"
)

func RegisterRoutes(r chi.Router, o orders.OrderService, l *zap.Logger) {
	handler := NewAdminHandler(o, l.With(zap.String("component", "AdminHTTPHandler")))

	r.Route("/admin/orders", func(r chi.Router) {
		r.Use(api.RequireUser)
		r.Get("/", handler.ListOrders)
		r.Patch("/{orderID}/status", handler.TransitionOrder)
	})
}
