package admin

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"storefront/internal/app/orders"
	"storefront/internal/domain"
	"storefront/internal/handler/http/api"
	"storefront/internal/policy"
)

type AdminHandler struct {
	orders orders.OrderService
	logger *zap.Logger
}

func NewAdminHandler(o orders.OrderService, l *zap.Logger) *AdminHandler {
	return &AdminHandler{orders: o, logger: l}
}

func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	var filter orders.ListOrdersFilter
	q := r.URL.Query()
	if s := q.Get("status"); s != "" {
		status, err := domain.ParseOrderStatus(s)
		if err != nil {
			api.WriteError(w, h.logger, err)
			return
		}
		filter.Status = &status
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		api.WriteError(w, h.logger, domain.Validation("limit must be a number"))
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		api.WriteError(w, h.logger, domain.Validation("offset must be a number"))
		return
	}

	res, err := h.orders.ListAllOrders(r.Context(), policy.ActorFrom(r.Context()), filter)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, orders.MapOrdersToResponse(res))
}

type TransitionRequest struct {
	Status     string  `json:"status"`
	AdminNotes *string `json:"admin_notes,omitempty"`
}

func (h *AdminHandler) TransitionOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	var req TransitionRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		h.logger.Warn("Invalid request body for TransitionOrder", zap.String("order_id", orderID), zap.Error(err))
		api.WriteError(w, h.logger, err)
		return
	}
	status, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	order, err := h.orders.TransitionOrder(r.Context(), policy.ActorFrom(r.Context()), orderID, status, req.AdminNotes)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, orders.MapOrderToResponse(order, nil))
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
