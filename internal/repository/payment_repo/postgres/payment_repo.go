package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/infrastructure/database"
	"storefront/internal/repository/payment_repo"
)

const activeIndex = "uq_payment_transactions_active"

const paymentColumns = `id, order_id, external_id, method, amount_cents, status, simulated,
	pix_qr_code, pix_qr_code_url, pix_expires_at, boleto_barcode, boleto_url, boleto_due_at,
	card_last_four, gateway_message, created_at, updated_at`

type pgPaymentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPaymentRepository(db *sql.DB, l *zap.Logger) payment_repo.PaymentRepository {
	return &pgPaymentRepository{db: db, logger: l}
}

func (r *pgPaymentRepository) Create(ctx context.Context, tx *domain.PaymentTransaction) error {
	query := `INSERT INTO payment_transactions (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err := r.db.ExecContext(ctx, query,
		tx.ID, tx.OrderID, tx.ExternalID, tx.Method, tx.AmountCents, tx.Status, tx.Simulated,
		tx.PixQRCode, tx.PixQRCodeURL, tx.PixExpiresAt, tx.BoletoBarcode, tx.BoletoURL, tx.BoletoDueAt,
		tx.CardLastFour, tx.GatewayMsg, tx.CreatedAt, tx.UpdatedAt,
	)
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if pgErr.Constraint == activeIndex {
				r.logger.Warn("Rejected concurrent payment attempt", zap.String("order_id", tx.OrderID), zap.String("transaction_id", tx.ExternalID))
				return errActiveAttempt(err)
			}
			return fmt.Errorf("payment transaction %s already exists: %w", tx.ExternalID, err)
		}
		r.logger.Error("Failed to create payment transaction", zap.String("order_id", tx.OrderID), zap.Error(err))
		return database.Classify("create payment transaction", err)
	}
	r.logger.Debug("Payment transaction created", zap.String("order_id", tx.OrderID), zap.String("transaction_id", tx.ExternalID))
	return nil
}

func scanPayment(row interface{ Scan(...any) error }) (*domain.PaymentTransaction, error) {
	p := &domain.PaymentTransaction{}
	var pixExpiresAt, boletoDueAt sql.NullTime
	if err := row.Scan(&p.ID, &p.OrderID, &p.ExternalID, &p.Method, &p.AmountCents, &p.Status, &p.Simulated,
		&p.PixQRCode, &p.PixQRCodeURL, &pixExpiresAt, &p.BoletoBarcode, &p.BoletoURL, &boletoDueAt,
		&p.CardLastFour, &p.GatewayMsg, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if pixExpiresAt.Valid {
		p.PixExpiresAt = &pixExpiresAt.Time
	}
	if boletoDueAt.Valid {
		p.BoletoDueAt = &boletoDueAt.Time
	}
	return p, nil
}

func (r *pgPaymentRepository) ListByOrderID(ctx context.Context, orderID string) ([]domain.PaymentTransaction, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_transactions WHERE order_id = $1 ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, database.Classify("list payment transactions", err)
	}
	defer rows.Close()

	payments := make([]domain.PaymentTransaction, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment transaction: %w", err)
		}
		payments = append(payments, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return payments, nil
}

func (r *pgPaymentRepository) HasActive(ctx context.Context, orderID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM payment_transactions WHERE order_id = $1 AND status = ANY($2))`
	active := []string{string(domain.PaymentStatusProcessing), string(domain.PaymentStatusAuthorized), string(domain.PaymentStatusPaid)}
	if err := r.db.QueryRowContext(ctx, query, orderID, pq.Array(active)).Scan(&exists); err != nil {
		return false, database.Classify("check active payments", err)
	}
	return exists, nil
}

// Complete keeps the row's id and order but takes everything the gateway
// returned. The processing row already reserved the order, so a conflict here
// only happens when the attempt was released as stale in the meantime.
func (r *pgPaymentRepository) Complete(ctx context.Context, tx *domain.PaymentTransaction) error {
	query := `UPDATE payment_transactions SET
		external_id = $2, status = $3, simulated = $4,
		pix_qr_code = $5, pix_qr_code_url = $6, pix_expires_at = $7,
		boleto_barcode = $8, boleto_url = $9, boleto_due_at = $10,
		card_last_four = $11, gateway_message = $12, updated_at = $13
		WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query,
		tx.ID, tx.ExternalID, tx.Status, tx.Simulated,
		tx.PixQRCode, tx.PixQRCodeURL, tx.PixExpiresAt,
		tx.BoletoBarcode, tx.BoletoURL, tx.BoletoDueAt,
		tx.CardLastFour, tx.GatewayMsg, tx.UpdatedAt,
	)
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.Constraint == activeIndex {
			return errActiveAttempt(err)
		}
		r.logger.Error("Failed to complete payment transaction", zap.String("order_id", tx.OrderID), zap.Error(err))
		return database.Classify("complete payment transaction", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.NotFound("payment transaction not found")
	}
	r.logger.Debug("Payment transaction completed", zap.String("order_id", tx.OrderID), zap.String("transaction_id", tx.ExternalID))
	return nil
}

func (r *pgPaymentRepository) ReleaseStale(ctx context.Context, orderID string, cutoff time.Time) (int64, error) {
	query := `UPDATE payment_transactions SET status = $3, gateway_message = $4, updated_at = NOW()
		WHERE order_id = $1 AND status = $5 AND created_at < $2`
	res, err := r.db.ExecContext(ctx, query, orderID, cutoff,
		domain.PaymentStatusFailed, payment_repo.StaleAttemptMessage, domain.PaymentStatusProcessing)
	if err != nil {
		return 0, database.Classify("release stale payment attempts", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check release result: %w", err)
	}
	return n, nil
}

func (r *pgPaymentRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.PaymentTransaction, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_transactions WHERE external_id = $1`
	p, err := scanPayment(r.db.QueryRowContext(ctx, query, externalID))
	if err != nil {
		return nil, database.Classify("get payment transaction", err)
	}
	return p, nil
}

func (r *pgPaymentRepository) UpdateStatus(ctx context.Context, tx *domain.PaymentTransaction) error {
	query := `UPDATE payment_transactions SET status = $2, gateway_message = $3, updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, tx.ID, tx.Status, tx.GatewayMsg, tx.UpdatedAt)
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.Constraint == activeIndex {
			return errActiveAttempt(err)
		}
		return database.Classify("update payment transaction", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rowsAffected == 0 {
		return domain.NotFound("payment transaction not found")
	}
	r.logger.Debug("Payment transaction status updated", zap.String("transaction_id", tx.ExternalID), zap.String("status", string(tx.Status)))
	return nil
}

func errActiveAttempt(err error) error {
	return domain.WrapError(domain.ErrValidation, "order already has a payment being processed or authorized", err)
}
