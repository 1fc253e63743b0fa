package outbox_repo

import (
	"context"

	"storefront/internal/domain"
)

// MaxAttempts is how many failed publishes a message survives before it is
// parked as FAILED.
const MaxAttempts = 5

type OutboxRepository interface {
	CreateMessageTx(ctx context.Context, querier domain.Querier, msg *domain.OutboxMessage) error
	// GetPendingMessages locks up to limit pending rows; call it inside a
	// transaction so concurrent relays skip each other's rows.
	GetPendingMessages(ctx context.Context, querier domain.Querier, limit int) ([]domain.OutboxMessage, error)
	MarkMessagesAsSent(ctx context.Context, querier domain.Querier, ids []string) error
	MarkAttemptsFailed(ctx context.Context, querier domain.Querier, ids []string) error
}
