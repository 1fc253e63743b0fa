package checkout

import (
	"storefront/internal/app/payments"
	"storefront/internal/domain"
)

type CreateOrderRequest struct {
	ProductID          string
	Quantity           int
	ShippingMethod     string
	ShippingPriceCents int64
	Address            domain.AddressSnapshot
	PaymentMethod      domain.PaymentMethod
	Notes              string
	Buyer              domain.Buyer
	BillingAddress     *domain.AddressSnapshot
	Card               *domain.CardDetails
}

type Result struct {
	OrderID    string
	TotalCents int64
	Order      *domain.Order
	// Payment is nil when payment initiation failed.
	Payment *domain.PaymentTransaction
}

type CheckoutResponse struct {
	OrderID    string                    `json:"order_id"`
	TotalCents int64                     `json:"total_cents"`
	Status     string                    `json:"status"`
	Payment    *payments.PaymentResponse `json:"payment"`
	Error      string                    `json:"error,omitempty"`
}

func MapResultToResponse(r *Result) *CheckoutResponse {
	resp := &CheckoutResponse{
		OrderID:    r.OrderID,
		TotalCents: r.TotalCents,
		Payment:    payments.MapTransactionToResponse(r.Payment),
	}
	if r.Order != nil {
		resp.Status = string(r.Order.Status)
	}
	return resp
}
