package orders

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"storefront/internal/app/checkout"
	"storefront/internal/app/orders"
	"storefront/internal/app/payments"
	"storefront/internal/handler/http/api"
)

func RegisterRoutes(r chi.Router, c checkout.CheckoutService, o orders.OrderService, p payments.PaymentService, l *zap.Logger) {
	handler := NewOrderHandler(c, o, p, l.With(zap.String("component", "OrderHTTPHandler")))

	r.Group(func(r chi.Router) {
		r.Use(api.RequireUser)

		r.Post("/checkout", handler.Checkout)
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", handler.ListMyOrders)
			r.Get("/{orderID}", handler.GetOrder)
			r.Post("/{orderID}/cancel", handler.CancelOrder)
			r.Post("/{orderID}/payments", handler.RetryPayment)
			r.Get("/{orderID}/payments", handler.ListPayments)
		})
	})
}
