package outbox

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
	kafkaInfra "storefront/internal/infrastructure/kafka"
	"storefront/internal/repository/outbox_repo"
)

const defaultBatchSize = 50

// Transactor runs fn inside one database transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(q domain.Querier) error) error
}

// Processor relays pending outbox rows to Kafka. Rows are locked for the
// duration of a poll, so several instances can run side by side.
type Processor struct {
	tx             Transactor
	outboxRepo     outbox_repo.OutboxRepository
	publisher      kafkaInfra.Producer
	batchSize      int
	pollInterval   time.Duration
	pollTimeout    time.Duration
	logger         *zap.Logger
	shutdownSignal chan struct{}
	shutdownOnce   sync.Once
	started        bool
	done           chan struct{}
}

func NewProcessor(
	tx Transactor,
	outboxRepo outbox_repo.OutboxRepository,
	publisher kafkaInfra.Producer,
	pollInterval time.Duration,
	pollTimeout time.Duration,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		tx:             tx,
		outboxRepo:     outboxRepo,
		publisher:      publisher,
		batchSize:      defaultBatchSize,
		pollInterval:   pollInterval,
		pollTimeout:    pollTimeout,
		logger:         logger,
		shutdownSignal: make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Start polls in the background until ctx is cancelled or Stop is called.
func (p *Processor) Start(ctx context.Context) {
	p.logger.Info("Starting outbox processor...", zap.Duration("poll_interval", p.pollInterval))
	ticker := time.NewTicker(p.pollInterval)
	p.started = true

	go func() {
		defer close(p.done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				p.logger.Info("Context cancelled, outbox processor stopped")
				return
			case <-p.shutdownSignal:
				p.logger.Info("Outbox processor stopped")
				return
			case <-ticker.C:
				p.ProcessOnce(ctx)
			}
		}
	}()
}

// Stop signals the poll loop and waits for the current poll to finish.
func (p *Processor) Stop() {
	p.shutdownOnce.Do(func() {
		p.logger.Info("Signaling outbox processor to stop...")
		close(p.shutdownSignal)
	})
	if p.started {
		<-p.done
	}
}

// ProcessOnce publishes one batch of pending messages. Published rows are
// marked SENT; rows whose publish failed count an attempt and stay PENDING
// until outbox_repo.MaxAttempts is reached.
func (p *Processor) ProcessOnce(ctx context.Context) (sent, failed int) {
	pollCtx, cancel := context.WithTimeout(ctx, p.pollTimeout)
	defer cancel()

	err := p.tx.WithinTx(pollCtx, func(q domain.Querier) error {
		messages, err := p.outboxRepo.GetPendingMessages(pollCtx, q, p.batchSize)
		if err != nil {
			return err
		}
		if len(messages) == 0 {
			p.logger.Debug("No pending order events")
			return nil
		}
		p.logger.Debug("Relaying order events", zap.Int("count", len(messages)))

		sentIDs := make([]string, 0, len(messages))
		failedIDs := make([]string, 0)
		for _, msg := range messages {
			if err := p.publisher.Publish(pollCtx, msg); err != nil {
				p.logger.Error("Failed to publish order event",
					zap.String("message_id", msg.ID),
					zap.String("order_id", msg.AggregateID),
					zap.String("topic", msg.Topic),
					zap.Int("attempt", msg.Attempts+1),
					zap.Error(err))
				failedIDs = append(failedIDs, msg.ID)
				continue
			}
			sentIDs = append(sentIDs, msg.ID)
		}

		if err := p.outboxRepo.MarkMessagesAsSent(pollCtx, q, sentIDs); err != nil {
			return err
		}
		if err := p.outboxRepo.MarkAttemptsFailed(pollCtx, q, failedIDs); err != nil {
			return err
		}
		sent, failed = len(sentIDs), len(failedIDs)
		return nil
	})
	if err != nil {
		p.logger.Error("Failed to process outbox batch", zap.Error(err))
		return 0, 0
	}
	if sent > 0 || failed > 0 {
		p.logger.Info("Outbox batch processed", zap.Int("sent", sent), zap.Int("failed", failed))
	}
	return sent, failed
}
