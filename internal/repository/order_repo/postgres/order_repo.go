package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/infrastructure/database"
	"storefront/internal/repository/order_repo"
	"storefront/internal/repository/outbox_repo"
	"storefront/internal/repository/product_repo"
)

const orderColumns = `id, user_id, address_id, subtotal_cents, shipping_cents, discount_cents, total_cents,
	status, payment_method, shipping_method, shipping_address, customer_notes, admin_notes,
	paid_at, shipped_at, delivered_at, cancelled_at, created_at, updated_at`

type pgOrderRepository struct {
	db       *sql.DB
	products product_repo.ProductRepository
	outbox   outbox_repo.OutboxRepository
	logger   *zap.Logger
}

func NewOrderRepository(db *sql.DB, products product_repo.ProductRepository, outbox outbox_repo.OutboxRepository, l *zap.Logger) order_repo.OrderRepository {
	return &pgOrderRepository{db: db, products: products, outbox: outbox, logger: l}
}

// withTx runs fn in a transaction, rolling back on error or panic.
func (r *pgOrderRepository) withTx(ctx context.Context, orderID string, fn func(tx *sql.Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin transaction", zap.String("order_id", orderID), zap.Error(err))
		return database.Classify("begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Panic during order transaction, rolling back", zap.String("order_id", orderID))
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			r.logger.Warn("Rolling back order transaction", zap.String("order_id", orderID), zap.Error(err))
			_ = tx.Rollback()
		} else {
			if err = tx.Commit(); err != nil {
				r.logger.Error("Failed to commit order transaction", zap.String("order_id", orderID), zap.Error(err))
				err = database.Classify("commit order transaction", err)
			} else {
				r.logger.Debug("Order transaction committed", zap.String("order_id", orderID))
			}
		}
	}()

	return fn(tx)
}

func (r *pgOrderRepository) CreateOrder(ctx context.Context, placed *domain.PlacedOrder, msg *domain.OutboxMessage) error {
	order := placed.Order
	return r.withTx(ctx, order.ID, func(tx *sql.Tx) error {
		for _, item := range placed.Items {
			if err := r.products.DecrementStockTx(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		if a := placed.Address; a != nil {
			addressQuery := `
				INSERT INTO addresses (id, user_id, recipient_name, postal_code, street, number, complement, district, city, state, is_default, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			`
			if _, err := tx.ExecContext(ctx, addressQuery, a.ID, a.UserID, a.RecipientName, a.PostalCode, a.Street, a.Number,
				a.Complement, a.District, a.City, a.State, a.IsDefault, a.CreatedAt); err != nil {
				return database.Classify("insert address", err)
			}
		}

		shippingAddress, err := json.Marshal(order.ShippingAddress)
		if err != nil {
			return fmt.Errorf("failed to encode shipping address: %w", err)
		}
		orderQuery := `
			INSERT INTO orders (` + orderColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		`
		if _, err := tx.ExecContext(ctx, orderQuery,
			order.ID, order.UserID, order.AddressID, order.SubtotalCents, order.ShippingCents, order.DiscountCents, order.TotalCents,
			order.Status, order.PaymentMethod, order.ShippingMethod, shippingAddress, order.CustomerNotes, order.AdminNotes,
			order.PaidAt, order.ShippedAt, order.DeliveredAt, order.CancelledAt, order.CreatedAt, order.UpdatedAt,
		); err != nil {
			return database.Classify("insert order", err)
		}
		r.logger.Debug("Order inserted in transaction", zap.String("order_id", order.ID))

		itemQuery := `
			INSERT INTO order_items (id, order_id, product_id, product_name, quantity, unit_price_cents, total_price_cents, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		for _, it := range placed.Items {
			if _, err := tx.ExecContext(ctx, itemQuery, it.ID, it.OrderID, it.ProductID, it.ProductName, it.Quantity,
				it.UnitPriceCents, it.TotalPriceCents, it.CreatedAt); err != nil {
				return database.Classify("insert order item", err)
			}
		}

		if msg != nil {
			if err := r.outbox.CreateMessageTx(ctx, tx, msg); err != nil {
				return err
			}
			r.logger.Debug("Outbox message inserted in transaction", zap.String("message_id", msg.ID))
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	o := &domain.Order{}
	var (
		addressID       sql.NullString
		shippingAddress []byte
		paidAt          sql.NullTime
		shippedAt       sql.NullTime
		deliveredAt     sql.NullTime
		cancelledAt     sql.NullTime
	)
	if err := row.Scan(&o.ID, &o.UserID, &addressID, &o.SubtotalCents, &o.ShippingCents, &o.DiscountCents, &o.TotalCents,
		&o.Status, &o.PaymentMethod, &o.ShippingMethod, &shippingAddress, &o.CustomerNotes, &o.AdminNotes,
		&paidAt, &shippedAt, &deliveredAt, &cancelledAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	if addressID.Valid {
		o.AddressID = &addressID.String
	}
	if len(shippingAddress) > 0 {
		if err := json.Unmarshal(shippingAddress, &o.ShippingAddress); err != nil {
			return nil, fmt.Errorf("failed to decode shipping address of order %s: %w", o.ID, err)
		}
	}
	o.PaidAt = nullTime(paidAt)
	o.ShippedAt = nullTime(shippedAt)
	o.DeliveredAt = nullTime(deliveredAt)
	o.CancelledAt = nullTime(cancelledAt)
	return o, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func (r *pgOrderRepository) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, database.Classify("get order", err)
	}
	return order, nil
}

func (r *pgOrderRepository) GetOrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, product_name, quantity, unit_price_cents, total_price_cents, created_at
		FROM order_items WHERE order_id = $1 ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		r.logger.Error("Failed to query order items", zap.String("order_id", orderID), zap.Error(err))
		return nil, database.Classify("get order items", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity,
			&it.UnitPriceCents, &it.TotalPriceCents, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order item row: %w", err)
		}
		items = append(items, it)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return items, nil
}

func (r *pgOrderRepository) queryOrders(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, database.Classify("list orders", err)
	}
	defer rows.Close()

	orders := make([]*domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return orders, nil
}

func (r *pgOrderRepository) GetOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`
	orders, err := r.queryOrders(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to query orders for user", zap.String("user_id", userID), zap.Error(err))
	}
	return orders, err
}

func (r *pgOrderRepository) GetAllOrders(ctx context.Context, status *domain.OrderStatus, limit, offset int) ([]*domain.Order, error) {
	if status != nil {
		query := `SELECT ` + orderColumns + ` FROM orders WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		return r.queryOrders(ctx, query, *status, limit, offset)
	}
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	return r.queryOrders(ctx, query, limit, offset)
}

func (r *pgOrderRepository) UpdateOrderStatus(ctx context.Context, order *domain.Order, from domain.OrderStatus, restock []domain.OrderItem, msg *domain.OutboxMessage) error {
	return r.withTx(ctx, order.ID, func(tx *sql.Tx) error {
		query := `
			UPDATE orders
			SET status = $2, admin_notes = $3, paid_at = $4, shipped_at = $5, delivered_at = $6, cancelled_at = $7, updated_at = $8
			WHERE id = $1 AND status = $9
		`
		res, err := tx.ExecContext(ctx, query, order.ID, order.Status, order.AdminNotes,
			order.PaidAt, order.ShippedAt, order.DeliveredAt, order.CancelledAt, order.UpdatedAt, from)
		if err != nil {
			return database.Classify("update order status", err)
		}
		rowsAffected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check update result: %w", err)
		}
		if rowsAffected == 0 {
			r.logger.Warn("Order status changed concurrently", zap.String("order_id", order.ID), zap.String("expected_status", string(from)))
			return domain.Validation("order %s is no longer %s", order.ID, from)
		}

		for _, it := range restock {
			if err := r.products.RestoreStockTx(ctx, tx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}
		if order.Status == domain.OrderStatusCancelled {
			// A pix or boleto left pending would stay payable after the order is gone.
			if _, err := tx.ExecContext(ctx,
				`UPDATE payment_transactions SET status = $2, updated_at = $3 WHERE order_id = $1 AND status = $4`,
				order.ID, domain.PaymentStatusCanceled, order.UpdatedAt, domain.PaymentStatusPending); err != nil {
				return database.Classify("cancel pending payments", err)
			}
		}
		if msg != nil {
			if err := r.outbox.CreateMessageTx(ctx, tx, msg); err != nil {
				return err
			}
		}
		r.logger.Debug("Order status updated", zap.String("order_id", order.ID), zap.String("new_status", string(order.Status)))
		return nil
	})
}
