package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"storefront/internal/app/catalog"
	"storefront/internal/app/shipping"
	"storefront/internal/domain"
	"storefront/internal/handler/http/api"
)

type CatalogHandler struct {
	catalog  catalog.CatalogService
	shipping shipping.ShippingService
	logger   *zap.Logger
}

func NewCatalogHandler(c catalog.CatalogService, s shipping.ShippingService, l *zap.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: c, shipping: s, logger: l}
}

func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	product, err := h.catalog.GetProduct(r.Context(), productID)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, product)
}

// QuoteRequest takes either explicit package items or a product id and
// quantity, in which case the package is measured from the catalog.
type QuoteRequest struct {
	PostalCode string                 `json:"postal_code"`
	Items      []shipping.PackageItem `json:"items"`
	ProductID  string                 `json:"product_id"`
	Quantity   int                    `json:"quantity"`
}

type QuoteResponse struct {
	Options []shipping.Option `json:"options"`
}

func (h *CatalogHandler) QuoteShipping(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		h.logger.Warn("Invalid request body for QuoteShipping", zap.Error(err))
		api.WriteError(w, h.logger, err)
		return
	}

	items := req.Items
	if req.ProductID != "" {
		if req.Quantity < 1 {
			api.WriteError(w, h.logger, domain.Validation("quantity must be at least 1"))
			return
		}
		product, err := h.catalog.GetProduct(r.Context(), req.ProductID)
		if err != nil {
			api.WriteError(w, h.logger, err)
			return
		}
		items = append(items, shipping.PackageItemFor(product, req.Quantity))
	}

	options, err := h.shipping.Quote(r.Context(), req.PostalCode, items)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, QuoteResponse{Options: options})
}
