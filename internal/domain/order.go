package domain

import (
	"fmt"
	"time"
)

type OrderStatus string

const (
	OrderStatusAwaitingPayment OrderStatus = "AGUARDANDO_PAGAMENTO"
	OrderStatusPaid            OrderStatus = "PAGO"
	OrderStatusPreparing       OrderStatus = "EM_SEPARACAO"
	OrderStatusShipped         OrderStatus = "POSTADO"
	OrderStatusInTransit       OrderStatus = "EM_TRANSITO"
	OrderStatusDelivered       OrderStatus = "ENTREGUE"
	OrderStatusCancelled       OrderStatus = "CANCELADO"
	OrderStatusRefunded        OrderStatus = "REEMBOLSADO"
)

// fulfilmentRank orders the main line of the state machine. Cancelled and
// Refunded are off the line and absorbing.
var fulfilmentRank = map[OrderStatus]int{
	OrderStatusAwaitingPayment: 0,
	OrderStatusPaid:            1,
	OrderStatusPreparing:       2,
	OrderStatusShipped:         3,
	OrderStatusInTransit:       4,
	OrderStatusDelivered:       5,
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if st.Valid() {
		return st, nil
	}
	return "", Validation("unknown order status %q", s)
}

func (s OrderStatus) Valid() bool {
	if _, ok := fulfilmentRank[s]; ok {
		return true
	}
	return s == OrderStatusCancelled || s == OrderStatusRefunded
}

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusRefunded
}

// CanTransition reports whether from -> to is a legal move. Staying in the same
// state is not a transition.
func CanTransition(from, to OrderStatus) bool {
	if from == to || from.Terminal() || !to.Valid() {
		return false
	}
	switch to {
	case OrderStatusCancelled:
		return from == OrderStatusAwaitingPayment || from == OrderStatusPaid
	case OrderStatusRefunded:
		return fulfilmentRank[from] >= fulfilmentRank[OrderStatusPaid]
	}
	return fulfilmentRank[to] > fulfilmentRank[from]
}

type Order struct {
	ID              string
	UserID          string
	AddressID       *string
	SubtotalCents   int64
	ShippingCents   int64
	DiscountCents   int64
	TotalCents      int64
	Status          OrderStatus
	PaymentMethod   PaymentMethod
	ShippingMethod  string
	ShippingAddress AddressSnapshot
	CustomerNotes   string
	AdminNotes      string
	PaidAt          *time.Time
	ShippedAt       *time.Time
	DeliveredAt     *time.Time
	CancelledAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewOrder prices a single-line order. The order always starts awaiting payment.
func NewOrder(id, userID string, addr *Address, item *OrderItem, shippingMethod string, shippingCents int64, method PaymentMethod, notes string, now time.Time) (*Order, error) {
	if id == "" || userID == "" {
		return nil, Validation("order id and buyer are required")
	}
	if shippingCents < 0 {
		return nil, Validation("shipping price cannot be negative")
	}
	if !method.Valid() {
		return nil, Validation("unknown payment method %q", method)
	}
	o := &Order{
		ID:             id,
		UserID:         userID,
		SubtotalCents:  item.TotalPriceCents,
		ShippingCents:  shippingCents,
		Status:         OrderStatusAwaitingPayment,
		PaymentMethod:  method,
		ShippingMethod: shippingMethod,
		CustomerNotes:  notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if addr != nil {
		o.AddressID = &addr.ID
		o.ShippingAddress = addr.Snapshot()
	}
	o.TotalCents = o.SubtotalCents + o.ShippingCents - o.DiscountCents
	item.OrderID = id
	return o, nil
}

// TransitionTo moves the order to next and stamps the timestamp owned by that
// state if it is still empty. Re-entering the current state is a no-op and
// reports changed == false.
func (o *Order) TransitionTo(next OrderStatus, at time.Time) (changed bool, err error) {
	if o.Status == next {
		return false, nil
	}
	if !CanTransition(o.Status, next) {
		return false, Validation("order cannot move from %s to %s", o.Status, next)
	}
	o.Status = next
	o.UpdatedAt = at
	switch next {
	case OrderStatusPaid:
		stamp(&o.PaidAt, at)
	case OrderStatusShipped:
		stamp(&o.ShippedAt, at)
	case OrderStatusDelivered:
		stamp(&o.DeliveredAt, at)
	case OrderStatusCancelled:
		stamp(&o.CancelledAt, at)
	}
	return true, nil
}

func stamp(field **time.Time, at time.Time) {
	if *field != nil {
		return
	}
	t := at
	*field = &t
}

// CheckTotals verifies total = sum(items) + shipping - discount.
func (o *Order) CheckTotals(items []OrderItem) error {
	var sum int64
	for _, it := range items {
		if it.TotalPriceCents != it.UnitPriceCents*int64(it.Quantity) {
			return fmt.Errorf("item %s total %d does not match %d x %d", it.ID, it.TotalPriceCents, it.Quantity, it.UnitPriceCents)
		}
		sum += it.TotalPriceCents
	}
	if sum != o.SubtotalCents {
		return fmt.Errorf("order %s subtotal %d does not match items %d", o.ID, o.SubtotalCents, sum)
	}
	if o.TotalCents != o.SubtotalCents+o.ShippingCents-o.DiscountCents {
		return fmt.Errorf("order %s total %d does not match %d + %d - %d", o.ID, o.TotalCents, o.SubtotalCents, o.ShippingCents, o.DiscountCents)
	}
	return nil
}

// AwaitingPayment reports whether a new payment attempt may be made.
func (o *Order) AwaitingPayment() bool {
	return o.Status == OrderStatusAwaitingPayment
}

type OrderItem struct {
	ID              string
	OrderID         string
	ProductID       string
	ProductName     string
	Quantity        int
	UnitPriceCents  int64
	TotalPriceCents int64
	CreatedAt       time.Time
}

// NewOrderItem snapshots name and price so later catalog edits never reprice
// the order.
func NewOrderItem(id string, p *Product, quantity int, now time.Time) (*OrderItem, error) {
	if quantity < 1 {
		return nil, Validation("quantity must be at least 1")
	}
	return &OrderItem{
		ID:              id,
		ProductID:       p.ID,
		ProductName:     p.Name,
		Quantity:        quantity,
		UnitPriceCents:  p.PriceCents,
		TotalPriceCents: p.PriceCents * int64(quantity),
		CreatedAt:       now,
	}, nil
}

// PlacedOrder is everything order assembly persists in one transaction.
type PlacedOrder struct {
	Address *Address
	Order   *Order
	Items   []OrderItem
}
