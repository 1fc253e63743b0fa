package orders

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"storefront/internal/app/checkout"
	"storefront/internal/app/orders"
	"storefront/internal/app/payments"
	"storefront/internal/domain"
	"storefront/internal/handler/http/api"
	"storefront/internal/policy"
)

type OrderHandler struct {
	checkout checkout.CheckoutService
	orders   orders.OrderService
	payments payments.PaymentService
	logger   *zap.Logger
}

func NewOrderHandler(c checkout.CheckoutService, o orders.OrderService, p payments.PaymentService, l *zap.Logger) *OrderHandler {
	return &OrderHandler{checkout: c, orders: o, payments: p, logger: l}
}

func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		h.logger.Warn("Invalid request body for Checkout", zap.Error(err))
		api.WriteError(w, h.logger, err)
		return
	}
	method, err := domain.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	result, err := h.checkout.CreateOrder(r.Context(), policy.ActorFrom(r.Context()), &checkout.CreateOrderRequest{
		ProductID:          req.ProductID,
		Quantity:           req.Quantity,
		ShippingMethod:     req.ShippingMethod,
		ShippingPriceCents: req.ShippingPriceCents,
		Address:            req.Address,
		PaymentMethod:      method,
		Notes:              req.Notes,
		Buyer:              req.Buyer.toDomain(),
		BillingAddress:     req.BillingAddress,
		Card:               req.Card.toDomain(),
	})
	if err != nil {
		if result == nil {
			api.WriteError(w, h.logger, err)
			return
		}
		// The order exists; tell the buyer which one so payment can be retried.
		resp := checkout.MapResultToResponse(result)
		resp.Error = domain.UserMessage(err)
		api.WriteJSON(w, api.StatusFor(err), resp)
		return
	}
	api.WriteJSON(w, http.StatusCreated, checkout.MapResultToResponse(result))
}

func (h *OrderHandler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	res, err := h.orders.ListMyOrders(r.Context(), policy.ActorFrom(r.Context()))
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, orders.MapOrdersToResponse(res))
}

func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	details, err := h.orders.GetOrder(r.Context(), policy.ActorFrom(r.Context()), orderID)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, orders.MapOrderToResponse(details.Order, details.Items))
}

func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	order, err := h.orders.CancelOrder(r.Context(), policy.ActorFrom(r.Context()), orderID)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, orders.MapOrderToResponse(order, nil))
}

func (h *OrderHandler) RetryPayment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	var req PaymentRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		h.logger.Warn("Invalid request body for RetryPayment", zap.String("order_id", orderID), zap.Error(err))
		api.WriteError(w, h.logger, err)
		return
	}
	method, err := domain.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	tx, err := h.payments.RetryPayment(r.Context(), policy.ActorFrom(r.Context()), orderID, &payments.RetryPaymentRequest{
		Method:         method,
		Buyer:          req.Buyer.toDomain(),
		BillingAddress: req.BillingAddress,
		Card:           req.Card.toDomain(),
	})
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, payments.MapTransactionToResponse(tx))
}

func (h *OrderHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	txs, err := h.payments.ListPayments(r.Context(), policy.ActorFrom(r.Context()), orderID)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	res := make([]*payments.PaymentResponse, len(txs))
	for i := range txs {
		res[i] = payments.MapTransactionToResponse(&txs[i])
	}
	api.WriteJSON(w, http.StatusOK, res)
}
