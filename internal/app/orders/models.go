package orders

import (
	"time"

	"storefront/internal/domain"
)

type AssembleOrderRequest struct {
	UserID         string
	ProductID      string
	Quantity       int
	ShippingMethod string
	ShippingCents  int64
	Address        domain.AddressSnapshot
	PaymentMethod  domain.PaymentMethod
	Notes          string
}

type ListOrdersFilter struct {
	Status *domain.OrderStatus
	Limit  int
	Offset int
}

type OrderItemResponse struct {
	ID              string `json:"id"`
	ProductID       string `json:"product_id"`
	ProductName     string `json:"product_name"`
	Quantity        int    `json:"quantity"`
	UnitPriceCents  int64  `json:"unit_price_cents"`
	TotalPriceCents int64  `json:"total_price_cents"`
}

type OrderResponse struct {
	ID              string                 `json:"id"`
	UserID          string                 `json:"user_id"`
	Status          string                 `json:"status"`
	SubtotalCents   int64                  `json:"subtotal_cents"`
	ShippingCents   int64                  `json:"shipping_cents"`
	DiscountCents   int64                  `json:"discount_cents"`
	TotalCents      int64                  `json:"total_cents"`
	PaymentMethod   string                 `json:"payment_method"`
	ShippingMethod  string                 `json:"shipping_method"`
	ShippingAddress domain.AddressSnapshot `json:"shipping_address"`
	CustomerNotes   string                 `json:"customer_notes,omitempty"`
	AdminNotes      string                 `json:"admin_notes,omitempty"`
	PaidAt          *time.Time             `json:"paid_at,omitempty"`
	ShippedAt       *time.Time             `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time             `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time             `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
	Items           []OrderItemResponse    `json:"items,omitempty"`
}

func MapOrderToResponse(order *domain.Order, items []domain.OrderItem) *OrderResponse {
	resp := &OrderResponse{
		ID:              order.ID,
		UserID:          order.UserID,
		Status:          string(order.Status),
		SubtotalCents:   order.SubtotalCents,
		ShippingCents:   order.ShippingCents,
		DiscountCents:   order.DiscountCents,
		TotalCents:      order.TotalCents,
		PaymentMethod:   string(order.PaymentMethod),
		ShippingMethod:  order.ShippingMethod,
		ShippingAddress: order.ShippingAddress,
		CustomerNotes:   order.CustomerNotes,
		AdminNotes:      order.AdminNotes,
		PaidAt:          order.PaidAt,
		ShippedAt:       order.ShippedAt,
		DeliveredAt:     order.DeliveredAt,
		CancelledAt:     order.CancelledAt,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
	for _, it := range items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ID:              it.ID,
			ProductID:       it.ProductID,
			ProductName:     it.ProductName,
			Quantity:        it.Quantity,
			UnitPriceCents:  it.UnitPriceCents,
			TotalPriceCents: it.TotalPriceCents,
		})
	}
	return resp
}

func MapOrdersToResponse(orders []*domain.Order) []*OrderResponse {
	responses := make([]*OrderResponse, len(orders))
	for i, order := range orders {
		responses[i] = MapOrderToResponse(order, nil)
	}
	return responses
}
