package catalog

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"storefront/internal/app/catalog"
	"storefront/internal/app/shipping"
)

func RegisterRoutes(r chi.Router, c catalog.CatalogService, s shipping.ShippingService, l *zap.Logger) {
	handler := NewCatalogHandler(c, s, l.With(zap.String("component", "CatalogHTTPHandler")))

	r.Get("/products/{productID}", handler.GetProduct)
	r.Post("/shipping/quote", handler.QuoteShipping)
}
