// Package memory keeps every repository in process memory. Services are tested
// against it; a single mutex stands in for the database transaction.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository/order_repo"
	"storefront/internal/repository/outbox_repo"
	"storefront/internal/repository/payment_repo"
	"storefront/internal/repository/product_repo"
)

type Store struct {
	mu        sync.Mutex
	products  map[string]domain.Product
	addresses map[string]domain.Address
	orders    map[string]domain.Order
	items     map[string][]domain.OrderItem
	payments  []domain.PaymentTransaction
	outbox    []domain.OutboxMessage

	// FailWrites makes every write return this error without changing state.
	FailWrites error
}

func NewStore() *Store {
	return &Store{
		products:  make(map[string]domain.Product),
		addresses: make(map[string]domain.Address),
		orders:    make(map[string]domain.Order),
		items:     make(map[string][]domain.OrderItem),
	}
}

func (s *Store) AddProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Stock != nil {
		stock := *p.Stock
		p.Stock = &stock
	}
	s.products[p.ID] = p
}

// Stock returns the current stock of a product; ok is false for unlimited.
func (s *Store) Stock(productID string) (stock int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.products[productID]
	if p.Stock == nil {
		return 0, false
	}
	return *p.Stock, true
}

func (s *Store) Counts() (addresses, orders, items int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, its := range s.items {
		items += len(its)
	}
	return len(s.addresses), len(s.orders), items
}

func (s *Store) OutboxMessages() []domain.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.OutboxMessage(nil), s.outbox...)
}

func (s *Store) Products() product_repo.ProductRepository { return productView{s} }
func (s *Store) Orders() order_repo.OrderRepository { return orderView{s} }
func (s *Store) Payments() payment_repo.PaymentRepository { return paymentView{s} }
func (s *Store) Outbox() outbox_repo.OutboxRepository { return outboxView{s} }

type productView struct{ s *Store }

func (v productView) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	p, ok := v.s.products[id]
	if !ok {
		return nil, domain.NotFound("product not found")
	}
	if p.Stock != nil {
		stock := *p.Stock
		p.Stock = &stock
	}
	return &p, nil
}

func (v productView) DecrementStockTx(ctx context.Context, _ domain.Querier, productID string, quantity int) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return v.s.decrement(productID, quantity)
}

func (v productView) RestoreStockTx(ctx context.Context, _ domain.Querier, productID string, quantity int) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	v.s.restore(productID, quantity)
	return nil
}

func (s *Store) decrement(productID string, quantity int) error {
	p, ok := s.products[productID]
	if !ok {
		return domain.NotFound("product not found")
	}
	if p.Stock == nil {
		return nil
	}
	if *p.Stock < quantity {
		return domain.NewError(domain.ErrOutOfStock, "not enough units in stock")
	}
	*p.Stock -= quantity
	return nil
}

func (s *Store) restore(productID string, quantity int) {
	if p, ok := s.products[productID]; ok && p.Stock != nil {
		*p.Stock += quantity
	}
}

type orderView struct{ s *Store }

func (v orderView) CreateOrder(ctx context.Context, placed *domain.PlacedOrder, msg *domain.OutboxMessage) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	if err := ctx.Err(); err != nil {
		return domain.Transient("database unavailable", err)
	}

	for i, it := range placed.Items {
		if err := s.decrement(it.ProductID, it.Quantity); err != nil {
			for _, done := range placed.Items[:i] {
				s.restore(done.ProductID, done.Quantity)
			}
			return err
		}
	}
	if placed.Address != nil {
		s.addresses[placed.Address.ID] = *placed.Address
	}
	s.orders[placed.Order.ID] = *placed.Order
	s.items[placed.Order.ID] = append([]domain.OrderItem(nil), placed.Items...)
	if msg != nil {
		s.outbox = append(s.outbox, *msg)
	}
	return nil
}

func (v orderView) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	o, ok := v.s.orders[id]
	if !ok {
		return nil, domain.NotFound("order not found")
	}
	return &o, nil
}

func (v orderView) GetOrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return append([]domain.OrderItem(nil), v.s.items[orderID]...), nil
}

func (v orderView) list(keep func(domain.Order) bool) []*domain.Order {
	orders := make([]*domain.Order, 0)
	for _, o := range v.s.orders {
		if keep(o) {
			o := o
			orders = append(orders, &o)
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders
}

func (v orderView) GetOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return v.list(func(o domain.Order) bool { return o.UserID == userID }), nil
}

func (v orderView) GetAllOrders(ctx context.Context, status *domain.OrderStatus, limit, offset int) ([]*domain.Order, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	orders := v.list(func(o domain.Order) bool { return status == nil || o.Status == *status })
	if offset >= len(orders) {
		return []*domain.Order{}, nil
	}
	orders = orders[offset:]
	if limit < len(orders) {
		orders = orders[:limit]
	}
	return orders, nil
}

func (v orderView) UpdateOrderStatus(ctx context.Context, order *domain.Order, from domain.OrderStatus, restock []domain.OrderItem, msg *domain.OutboxMessage) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	stored, ok := s.orders[order.ID]
	if !ok {
		return domain.NotFound("order not found")
	}
	if stored.Status != from {
		return domain.Validation("order %s is no longer %s", order.ID, from)
	}
	s.orders[order.ID] = *order
	for _, it := range restock {
		s.restore(it.ProductID, it.Quantity)
	}
	if order.Status == domain.OrderStatusCancelled {
		for i := range s.payments {
			if p := &s.payments[i]; p.OrderID == order.ID && p.Status == domain.PaymentStatusPending {
				p.Status = domain.PaymentStatusCanceled
				p.UpdatedAt = order.UpdatedAt
			}
		}
	}
	if msg != nil {
		s.outbox = append(s.outbox, *msg)
	}
	return nil
}

type paymentView struct{ s *Store }

func (v paymentView) Create(ctx context.Context, tx *domain.PaymentTransaction) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	if tx.Status.Active() && s.hasActive(tx.OrderID, "") {
		return domain.Validation("order already has a payment being processed or authorized")
	}
	s.payments = append(s.payments, *tx)
	return nil
}

func (v paymentView) Complete(ctx context.Context, tx *domain.PaymentTransaction) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	for i := range s.payments {
		p := &s.payments[i]
		if p.ID != tx.ID {
			continue
		}
		if tx.Status.Active() && s.hasActive(p.OrderID, p.ID) {
			return domain.Validation("order already has a payment being processed or authorized")
		}
		orderID, createdAt := p.OrderID, p.CreatedAt
		*p = *tx
		p.OrderID, p.CreatedAt = orderID, createdAt
		return nil
	}
	return domain.NotFound("payment transaction not found")
}

func (v paymentView) ReleaseStale(ctx context.Context, orderID string, cutoff time.Time) (int64, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.payments {
		p := &s.payments[i]
		if p.OrderID == orderID && p.Status == domain.PaymentStatusProcessing && p.CreatedAt.Before(cutoff) {
			p.Status = domain.PaymentStatusFailed
			p.GatewayMsg = payment_repo.StaleAttemptMessage
			p.UpdatedAt = time.Now().UTC()
			n++
		}
	}
	return n, nil
}

func (v paymentView) ListByOrderID(ctx context.Context, orderID string) ([]domain.PaymentTransaction, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	out := make([]domain.PaymentTransaction, 0)
	for _, p := range v.s.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (v paymentView) HasActive(ctx context.Context, orderID string) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return v.s.hasActive(orderID, ""), nil
}

// hasActive reports an active attempt for orderID other than exceptID.
func (s *Store) hasActive(orderID, exceptID string) bool {
	for _, p := range s.payments {
		if p.OrderID == orderID && p.ID != exceptID && p.Status.Active() {
			return true
		}
	}
	return false
}

func (v paymentView) GetByExternalID(ctx context.Context, externalID string) (*domain.PaymentTransaction, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, p := range v.s.payments {
		if p.ExternalID == externalID {
			return &p, nil
		}
	}
	return nil, domain.NotFound("payment transaction not found")
}

func (v paymentView) UpdateStatus(ctx context.Context, tx *domain.PaymentTransaction) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.payments {
		p := &s.payments[i]
		if p.ID != tx.ID {
			continue
		}
		if tx.Status.Active() && s.hasActive(p.OrderID, p.ID) {
			return domain.Validation("order already has a payment being processed or authorized")
		}
		p.Status = tx.Status
		p.GatewayMsg = tx.GatewayMsg
		p.UpdatedAt = tx.UpdatedAt
		return nil
	}
	return domain.NotFound("payment transaction not found")
}

type outboxView struct{ s *Store }

func (v outboxView) CreateMessageTx(ctx context.Context, _ domain.Querier, msg *domain.OutboxMessage) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	v.s.outbox = append(v.s.outbox, *msg)
	return nil
}

func (v outboxView) GetPendingMessages(ctx context.Context, _ domain.Querier, limit int) ([]domain.OutboxMessage, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []domain.OutboxMessage
	for _, m := range v.s.outbox {
		if m.Status == domain.OutboxStatusPending && len(out) < limit {
			out = append(out, m)
		}
	}
	return out, nil
}

func (v outboxView) MarkMessagesAsSent(ctx context.Context, _ domain.Querier, ids []string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	now := time.Now().UTC()
	for _, id := range ids {
		for i := range v.s.outbox {
			if v.s.outbox[i].ID == id {
				v.s.outbox[i].Status = domain.OutboxStatusSent
				v.s.outbox[i].SentAt = &now
			}
		}
	}
	return nil
}

func (v outboxView) MarkAttemptsFailed(ctx context.Context, _ domain.Querier, ids []string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, id := range ids {
		for i := range v.s.outbox {
			m := &v.s.outbox[i]
			if m.ID != id {
				continue
			}
			m.Attempts++
			if m.Attempts >= outbox_repo.MaxAttempts {
				m.Status = domain.OutboxStatusFailed
			}
		}
	}
	return nil
}

// WithinTx runs fn directly. Every view call is already atomic under the
// store mutex.
func (s *Store) WithinTx(ctx context.Context, fn func(q domain.Querier) error) error {
	return fn(nil)
}
