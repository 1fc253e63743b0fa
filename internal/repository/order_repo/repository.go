package order_repo

import (
	"context"

	"storefront/internal/domain"
)

type OrderRepository interface {
	// CreateOrder takes the stock, then writes the address, order, items and
	// the outbox message in one transaction.
	CreateOrder(ctx context.Context, placed *domain.PlacedOrder, msg *domain.OutboxMessage) error
	GetOrderByID(ctx context.Context, id string) (*domain.Order, error)
	GetOrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error)
	GetOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
	GetAllOrders(ctx context.Context, status *domain.OrderStatus, limit, offset int) ([]*domain.Order, error)
	// UpdateOrderStatus persists a transition made on order. It only applies if
	// the stored status still equals from; restock lists items whose units go
	// back to the shelf in the same transaction. Cancelling also cancels the
	// order's pending payment attempts.
	UpdateOrderStatus(ctx context.Context, order *domain.Order, from domain.OrderStatus, restock []domain.OrderItem, msg *domain.OutboxMessage) error
}
