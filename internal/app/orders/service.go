package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront/internal/app/catalog"
	"storefront/internal/domain"
	"storefront/internal/policy"
	"storefront/internal/repository/order_repo"
	"storefront/internal/repository/payment_repo"
	"storefront/internal/util"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type OrderService interface {
	AssembleOrder(ctx context.Context, req *AssembleOrderRequest) (*domain.PlacedOrder, error)
	GetOrder(ctx context.Context, actor policy.Actor, orderID string) (*OrderDetails, error)
	ListMyOrders(ctx context.Context, actor policy.Actor) ([]*domain.Order, error)
	ListAllOrders(ctx context.Context, actor policy.Actor, filter ListOrdersFilter) ([]*domain.Order, error)
	TransitionOrder(ctx context.Context, actor policy.Actor, orderID string, next domain.OrderStatus, adminNotes *string) (*domain.Order, error)
	CancelOrder(ctx context.Context, actor policy.Actor, orderID string) (*domain.Order, error)
	// ApplyPaymentOutcome moves the order after the gateway confirmed a
	// payment status. Outcomes that do not apply to the current state are
	// ignored.
	ApplyPaymentOutcome(ctx context.Context, orderID string, status domain.PaymentStatus) error
}

type OrderDetails struct {
	Order *domain.Order
	Items []domain.OrderItem
}

type orderService struct {
	catalog      catalog.CatalogService
	orderRepo    order_repo.OrderRepository
	paymentRepo  payment_repo.PaymentRepository
	eventsTopic  string
	queryTimeout time.Duration
	logger       *zap.Logger
}

func NewOrderService(
	catalog catalog.CatalogService,
	orderRepo order_repo.OrderRepository,
	paymentRepo payment_repo.PaymentRepository,
	eventsTopic string,
	queryTimeout time.Duration,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		catalog:      catalog,
		orderRepo:    orderRepo,
		paymentRepo:  paymentRepo,
		eventsTopic:  eventsTopic,
		queryTimeout: queryTimeout,
		logger:       logger,
	}
}

func (s *orderService) AssembleOrder(ctx context.Context, req *AssembleOrderRequest) (*domain.PlacedOrder, error) {
	if req.UserID == "" {
		return nil, domain.Validation("buyer is required")
	}
	if req.Quantity < 1 {
		return nil, domain.Validation("quantity must be at least 1")
	}
	if !req.PaymentMethod.Valid() {
		return nil, domain.Validation("unknown payment method %q", req.PaymentMethod)
	}
	if req.ShippingCents < 0 {
		return nil, domain.Validation("shipping price cannot be negative")
	}
	if err := req.Address.Validate(); err != nil {
		return nil, err
	}

	product, err := s.catalog.GetSellableProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.HasStockFor(req.Quantity) {
		s.logger.Warn("Not enough stock for order",
			zap.String("product_id", product.ID),
			zap.Int("quantity", req.Quantity),
			zap.Intp("stock", product.Stock))
		return nil, domain.NewError(domain.ErrOutOfStock, fmt.Sprintf("only %d units of %s left", *product.Stock, product.Name))
	}

	now := time.Now().UTC()
	address := domain.NewOrderAddress(util.GenerateUUID(), req.UserID, req.Address, now)
	item, err := domain.NewOrderItem(util.GenerateUUID(), product, req.Quantity, now)
	if err != nil {
		return nil, err
	}
	order, err := domain.NewOrder(util.GenerateUUID(), req.UserID, address, item, req.ShippingMethod,
		req.ShippingCents, req.PaymentMethod, strings.TrimSpace(req.Notes), now)
	if err != nil {
		return nil, err
	}
	placed := &domain.PlacedOrder{Address: address, Order: order, Items: []domain.OrderItem{*item}}
	if err := order.CheckTotals(placed.Items); err != nil {
		s.logger.Error("Assembled order has inconsistent totals", zap.String("order_id", order.ID), zap.Error(err))
		return nil, err
	}

	msg, err := s.newOutboxMessage(order.ID, domain.MessageTypeOrderCreated, domain.OrderCreatedEvent{
		OrderID:       order.ID,
		UserID:        order.UserID,
		ProductID:     product.ID,
		Quantity:      req.Quantity,
		TotalCents:    order.TotalCents,
		PaymentMethod: string(order.PaymentMethod),
		Status:        string(order.Status),
		CreatedAt:     now,
	}, now)
	if err != nil {
		return nil, err
	}

	dbCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	if err := s.orderRepo.CreateOrder(dbCtx, placed, msg); err != nil {
		if errors.Is(err, domain.ErrOutOfStock) {
			s.logger.Warn("Stock ran out while placing order", zap.String("product_id", product.ID), zap.Int("quantity", req.Quantity))
			return nil, domain.NewError(domain.ErrOutOfStock, product.Name+" is out of stock")
		}
		s.logger.Error("Failed to save order", zap.String("order_id", order.ID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Order assembled",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.String("product_id", product.ID),
		zap.Int("quantity", req.Quantity),
		zap.Int64("total_cents", order.TotalCents))
	return placed, nil
}

func (s *orderService) GetOrder(ctx context.Context, actor policy.Actor, orderID string) (*OrderDetails, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := policy.Require(actor, policy.OwnedBy(order.UserID), "order"); err != nil {
		s.logger.Debug("Order hidden from non-owner", zap.String("order_id", orderID), zap.String("user_id", actor.UserID))
		return nil, err
	}

	dbCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	items, err := s.orderRepo.GetOrderItems(dbCtx, order.ID)
	if err != nil {
		s.logger.Error("Failed to get order items", zap.String("order_id", orderID), zap.Error(err))
		return nil, err
	}
	return &OrderDetails{Order: order, Items: items}, nil
}

func (s *orderService) ListMyOrders(ctx context.Context, actor policy.Actor) ([]*domain.Order, error) {
	if actor.Anonymous() {
		return nil, domain.NewError(domain.ErrPermissionDenied, "authentication required")
	}
	dbCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	orders, err := s.orderRepo.GetOrdersByUserID(dbCtx, actor.UserID)
	if err != nil {
		s.logger.Error("Failed to get orders for user", zap.String("user_id", actor.UserID), zap.Error(err))
		return nil, err
	}
	return orders, nil
}

func (s *orderService) ListAllOrders(ctx context.Context, actor policy.Actor, filter ListOrdersFilter) ([]*domain.Order, error) {
	if err := policy.Require(actor, policy.Admin(), "orders"); err != nil {
		s.logger.Warn("Non-admin tried to list all orders", zap.String("user_id", actor.UserID))
		return nil, err
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	dbCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	orders, err := s.orderRepo.GetAllOrders(dbCtx, filter.Status, limit, offset)
	if err != nil {
		s.logger.Error("Failed to get all orders", zap.Error(err))
		return nil, err
	}
	return orders, nil
}

func (s *orderService) TransitionOrder(ctx context.Context, actor policy.Actor, orderID string, next domain.OrderStatus, adminNotes *string) (*domain.Order, error) {
	if err := policy.Require(actor, policy.Admin(), "order"); err != nil {
		s.logger.Warn("Non-admin tried to change order status", zap.String("order_id", orderID), zap.String("user_id", actor.UserID))
		return nil, err
	}
	if !next.Valid() {
		return nil, domain.Validation("unknown order status %q", next)
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.applyTransition(ctx, order, next, adminNotes); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *orderService) CancelOrder(ctx context.Context, actor policy.Actor, orderID string) (*domain.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := policy.Require(actor, policy.OwnedBy(order.UserID), "order"); err != nil {
		return nil, err
	}
	if order.Status == domain.OrderStatusCancelled {
		return order, nil
	}
	if !order.AwaitingPayment() {
		return nil, domain.Validation("only orders awaiting payment can be cancelled")
	}

	dbCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	active, err := s.paymentRepo.HasActive(dbCtx, order.ID)
	if err != nil {
		s.logger.Error("Failed to check payments before cancelling", zap.String("order_id", orderID), zap.Error(err))
		return nil, err
	}
	if active {
		return nil, domain.Validation("order has a payment being processed or authorized and cannot be cancelled by the buyer")
	}

	if err := s.applyTransition(ctx, order, domain.OrderStatusCancelled, nil); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *orderService) ApplyPaymentOutcome(ctx context.Context, orderID string, status domain.PaymentStatus) error {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("Order not found for payment status update, ignoring",
				zap.String("order_id", orderID),
				zap.String("payment_status", string(status)))
			return nil
		}
		return err
	}

	var next domain.OrderStatus
	switch status {
	case domain.PaymentStatusPaid:
		next = domain.OrderStatusPaid
	case domain.PaymentStatusRefunded:
		next = domain.OrderStatusRefunded
	default:
		s.logger.Info("Payment status does not move the order",
			zap.String("order_id", orderID),
			zap.String("payment_status", string(status)),
			zap.String("order_status", string(order.Status)))
		return nil
	}

	if order.Status == next {
		s.logger.Info("Order status already matches payment event status, no update needed",
			zap.String("order_id", orderID),
			zap.String("status", string(next)))
		return nil
	}
	if status == domain.PaymentStatusPaid && order.Status == domain.OrderStatusCancelled {
		s.logger.Error("Payment settled for a cancelled order, refund required",
			zap.String("order_id", orderID),
			zap.String("order_status", string(order.Status)),
			zap.String("payment_status", string(status)))
		return nil
	}
	if !domain.CanTransition(order.Status, next) {
		s.logger.Warn("Payment outcome does not apply to order in its current state",
			zap.String("order_id", orderID),
			zap.String("order_status", string(order.Status)),
			zap.String("payment_status", string(status)))
		return nil
	}
	return s.applyTransition(ctx, order, next, nil)
}

func (s *orderService) loadOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if !util.IsUUID(orderID) {
		return nil, domain.NotFound("order not found")
	}
	dbCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	order, err := s.orderRepo.GetOrderByID(dbCtx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NotFound("order not found")
		}
		s.logger.Error("Failed to get order from repository", zap.String("order_id", orderID), zap.Error(err))
		return nil, err
	}
	return order, nil
}

// applyTransition moves order to next, stores it and queues the status event.
// Cancelling puts the ordered units back in stock.
func (s *orderService) applyTransition(ctx context.Context, order *domain.Order, next domain.OrderStatus, adminNotes *string) error {
	from := order.Status
	now := time.Now().UTC()

	changed, err := order.TransitionTo(next, now)
	if err != nil {
		s.logger.Warn("Rejected order status transition",
			zap.String("order_id", order.ID),
			zap.String("old_status", string(from)),
			zap.String("new_status", string(next)))
		return err
	}
	notesChanged := adminNotes != nil && *adminNotes != order.AdminNotes
	if notesChanged {
		order.AdminNotes = *adminNotes
		order.UpdatedAt = now
	}
	if !changed && !notesChanged {
		return nil
	}

	dbCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var restock []domain.OrderItem
	if changed && next == domain.OrderStatusCancelled {
		restock, err = s.orderRepo.GetOrderItems(dbCtx, order.ID)
		if err != nil {
			return err
		}
	}

	var msg *domain.OutboxMessage
	if changed {
		msg, err = s.newOutboxMessage(order.ID, domain.MessageTypeOrderStatusChanged, domain.OrderStatusChangedEvent{
			OrderID:   order.ID,
			UserID:    order.UserID,
			OldStatus: string(from),
			NewStatus: string(next),
			ChangedAt: now,
		}, now)
		if err != nil {
			return err
		}
	}

	if err := s.orderRepo.UpdateOrderStatus(dbCtx, order, from, restock, msg); err != nil {
		s.logger.Error("Failed to update order status in database",
			zap.String("order_id", order.ID),
			zap.String("old_status", string(from)),
			zap.String("new_status", string(next)),
			zap.Error(err))
		return err
	}

	s.logger.Info("Order status updated",
		zap.String("order_id", order.ID),
		zap.String("old_status", string(from)),
		zap.String("new_status", string(order.Status)))
	return nil
}

func (s *orderService) newOutboxMessage(orderID, messageType string, event any, now time.Time) (*domain.OutboxMessage, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", messageType, err)
	}
	return &domain.OutboxMessage{
		ID:            util.GenerateUUID(),
		AggregateID:   orderID,
		AggregateType: domain.AggregateTypeOrder,
		MessageType:   messageType,
		Topic:         s.eventsTopic,
		Key:           orderID,
		Payload:       payload,
		Status:        domain.OutboxStatusPending,
		CreatedAt:     now,
	}, nil
}
