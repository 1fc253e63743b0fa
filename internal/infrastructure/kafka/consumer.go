package kafka_infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageHandler processes one message. A nil return commits it; an error
// makes the consumer retry the same message.
type MessageHandler func(ctx context.Context, message kafka.Message) error

const (
	fetchTimeout   = 5 * time.Second
	commitTimeout  = 5 * time.Second
	handlerTimeout = 25 * time.Second
	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 30 * time.Second
)

// Consumer reads one topic in a consumer group and commits offsets manually.
type Consumer struct {
	reader  *kafka.Reader
	handler MessageHandler
	logger  *zap.Logger
}

func NewConsumer(brokers []string, topic, groupID string, handler MessageHandler, l *zap.Logger) *Consumer {
	l = l.With(zap.String("topic", topic), zap.String("group_id", groupID))
	sugar := l.Sugar()
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			Topic:          topic,
			GroupID:        groupID,
			MinBytes:       1,
			MaxBytes:       10e6,
			MaxWait:        time.Second,
			CommitInterval: 0,
			Logger:         kafka.LoggerFunc(sugar.Debugf),
			ErrorLogger:    kafka.LoggerFunc(sugar.Errorf),
		}),
		handler: handler,
		logger:  l,
	}
}

// Consume blocks until ctx is cancelled or the reader is closed. The reader
// hands out messages past an uncommitted one, so a failing message is retried
// in place with backoff instead of being skipped; committing a later offset
// would acknowledge it implicitly.
func (c *Consumer) Consume(ctx context.Context) error {
	c.logger.Info("Kafka consumer started")
	for {
		m, err := c.fetch(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, kafka.ErrGroupClosed) || errors.Is(err, io.EOF) {
				c.logger.Info("Kafka consumer stopped")
				return ctx.Err()
			}
			c.logger.Error("Failed to fetch message", zap.Error(err))
			if !sleep(ctx, time.Second) {
				return ctx.Err()
			}
			continue
		}
		if m == nil {
			continue
		}

		if !c.handleWithRetry(ctx, *m) {
			return ctx.Err()
		}
		c.commit(*m)
	}
}

func (c *Consumer) fetch(ctx context.Context) (*kafka.Message, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	m, err := c.reader.FetchMessage(fetchCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// handleWithRetry returns false only when ctx ended before the handler
// succeeded.
func (c *Consumer) handleWithRetry(ctx context.Context, m kafka.Message) bool {
	delay := retryBaseDelay
	for attempt := 1; ; attempt++ {
		handleCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
		err := c.handler(handleCtx, m)
		cancel()
		if err == nil {
			return true
		}
		c.logger.Error("Failed to handle message, retrying",
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(err))
		if !sleep(ctx, delay) {
			return false
		}
		delay = min(2*delay, retryMaxDelay)
	}
}

func (c *Consumer) commit(m kafka.Message) {
	commitCtx, cancel := context.WithTimeout(context.Background(), commitTimeout)
	defer cancel()
	if err := c.reader.CommitMessages(commitCtx, m); err != nil {
		c.logger.Error("Failed to commit offset",
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Error(err))
	}
}

func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("close kafka reader: %w", err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
