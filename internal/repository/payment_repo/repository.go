package payment_repo

import (
	"context"
	"time"

	"storefront/internal/domain"
)

type PaymentRepository interface {
	// Create stores one attempt. A second processing, authorized or paid
	// attempt for the same order is rejected with domain.ErrValidation.
	Create(ctx context.Context, tx *domain.PaymentTransaction) error
	// Complete stores the gateway's answer on an attempt created as
	// processing.
	Complete(ctx context.Context, tx *domain.PaymentTransaction) error
	// ReleaseStale fails the order's processing attempts created before
	// cutoff and returns how many it released.
	ReleaseStale(ctx context.Context, orderID string, cutoff time.Time) (int64, error)
	ListByOrderID(ctx context.Context, orderID string) ([]domain.PaymentTransaction, error)
	HasActive(ctx context.Context, orderID string) (bool, error)
	GetByExternalID(ctx context.Context, externalID string) (*domain.PaymentTransaction, error)
	UpdateStatus(ctx context.Context, tx *domain.PaymentTransaction) error
}

// StaleAttemptMessage is stored on processing attempts that were released
// without an answer from the gateway.
const StaleAttemptMessage = "released without a gateway answer, reconcile with the gateway"
