package domain

import "time"

const (
	MessageTypeOrderCreated       = "order.created"
	MessageTypeOrderStatusChanged = "order.status_changed"
	AggregateTypeOrder            = "order"
)

// OrderCreatedEvent is published when an order has been assembled.
type OrderCreatedEvent struct {
	OrderID       string    `json:"order_id"`
	UserID        string    `json:"user_id"`
	ProductID     string    `json:"product_id"`
	Quantity      int       `json:"quantity"`
	TotalCents    int64     `json:"total_cents"`
	PaymentMethod string    `json:"payment_method"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// OrderStatusChangedEvent is published on every state machine transition.
type OrderStatusChangedEvent struct {
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
	ChangedAt time.Time `json:"changed_at"`
}

// PaymentStatusEvent is the gateway confirmation consumed from Kafka.
type PaymentStatusEvent struct {
	TransactionID string `json:"transaction_id"`
	OrderID       string `json:"order_id"`
	Status        string `json:"status"`
	Message       string `json:"message,omitempty"`
}
