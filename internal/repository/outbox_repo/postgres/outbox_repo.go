package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"storefront/internal/domain"
	"storefront/internal/infrastructure/database"
	"storefront/internal/repository/outbox_repo"
)

const outboxColumns = `id, aggregate_id, aggregate_type, message_type, topic, key_value, payload, status, attempts, created_at, sent_at`

// OutboxRepository has no pool of its own: every call runs on the querier the
// caller's transaction provides.
type OutboxRepository struct{}

func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{}
}

var _ outbox_repo.OutboxRepository = (*OutboxRepository)(nil)

func (r *OutboxRepository) CreateMessageTx(ctx context.Context, querier domain.Querier, msg *domain.OutboxMessage) error {
	_, err := querier.ExecContext(ctx,
		`INSERT INTO outbox_messages (`+outboxColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULL)`,
		msg.ID, msg.AggregateID, msg.AggregateType, msg.MessageType, msg.Topic, msg.Key,
		msg.Payload, msg.Status, msg.Attempts, msg.CreatedAt)
	return database.Classify("queue "+msg.MessageType, err)
}

func scanOutboxMessage(rows *sql.Rows) (domain.OutboxMessage, error) {
	var (
		m      domain.OutboxMessage
		sentAt sql.NullTime
	)
	err := rows.Scan(&m.ID, &m.AggregateID, &m.AggregateType, &m.MessageType, &m.Topic, &m.Key,
		&m.Payload, &m.Status, &m.Attempts, &m.CreatedAt, &sentAt)
	if sentAt.Valid {
		m.SentAt = &sentAt.Time
	}
	return m, err
}

// GetPendingMessages returns the oldest pending rows first so that the events
// of one order are relayed in the order they happened.
func (r *OutboxRepository) GetPendingMessages(ctx context.Context, querier domain.Querier, limit int) ([]domain.OutboxMessage, error) {
	rows, err := querier.QueryContext(ctx,
		`SELECT `+outboxColumns+` FROM outbox_messages
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED`,
		domain.OutboxStatusPending, limit)
	if err != nil {
		return nil, database.Classify("fetch pending order events", err)
	}
	defer rows.Close()

	var pending []domain.OutboxMessage
	for rows.Next() {
		m, err := scanOutboxMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order event: %w", err)
		}
		pending = append(pending, m)
	}
	return pending, database.Classify("iterate pending order events", rows.Err())
}

func (r *OutboxRepository) MarkMessagesAsSent(ctx context.Context, querier domain.Querier, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	res, err := querier.ExecContext(ctx,
		`UPDATE outbox_messages SET status = $1, sent_at = $2 WHERE id = ANY($3) AND status = $4`,
		domain.OutboxStatusSent, time.Now().UTC(), pq.Array(ids), domain.OutboxStatusPending)
	if err != nil {
		return database.Classify("mark order events sent", err)
	}
	if n, err := res.RowsAffected(); err == nil && n != int64(len(ids)) {
		return fmt.Errorf("mark order events sent: %d of %d rows were still pending", n, len(ids))
	}
	return nil
}

// MarkAttemptsFailed counts one failed publish for each id and parks the rows
// that reached outbox_repo.MaxAttempts.
func (r *OutboxRepository) MarkAttemptsFailed(ctx context.Context, querier domain.Querier, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := querier.ExecContext(ctx,
		`UPDATE outbox_messages
		SET attempts = attempts + 1,
		    status = CASE WHEN attempts + 1 >= $1 THEN $2 ELSE status END
		WHERE id = ANY($3)`,
		outbox_repo.MaxAttempts, domain.OutboxStatusFailed, pq.Array(ids))
	return database.Classify("record failed order event publishes", err)
}
