package kafka_infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"storefront/internal/domain"
)

// Producer publishes outbox messages. Publish returns only after the broker
// acknowledged the write.
type Producer interface {
	Publish(ctx context.Context, msg domain.OutboxMessage) error
	Close() error
}

const (
	HeaderMessageID   = "message_id"
	HeaderMessageType = "message_type"
)

type kafkaProducer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewProducer hashes on the message key, so every event of one order lands on
// the same partition in the order it was written.
func NewProducer(brokerURLs []string, logger *zap.Logger) Producer {
	sugar := logger.Sugar()
	return &kafkaProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokerURLs...),
			Balancer:     &kafka.Hash{},
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  3,
			Logger:       kafka.LoggerFunc(sugar.Debugf),
			ErrorLogger:  kafka.LoggerFunc(sugar.Errorf),
		},
		logger: logger,
	}
}

func (p *kafkaProducer) Publish(ctx context.Context, msg domain.OutboxMessage) error {
	writeCtx, cancel := context.WithTimeout(ctx, p.writer.WriteTimeout)
	defer cancel()

	err := p.writer.WriteMessages(writeCtx, kafka.Message{
		Topic: msg.Topic,
		Key:   []byte(msg.Key),
		Value: msg.Payload,
		Time:  msg.CreatedAt,
		Headers: []kafka.Header{
			{Key: HeaderMessageID, Value: []byte(msg.ID)},
			{Key: HeaderMessageType, Value: []byte(msg.MessageType)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s %s to %s: %w", msg.MessageType, msg.ID, msg.Topic, err)
	}
	p.logger.Debug("Order event published",
		zap.String("message_id", msg.ID),
		zap.String("message_type", msg.MessageType),
		zap.String("order_id", msg.AggregateID),
		zap.String("topic", msg.Topic))
	return nil
}

func (p *kafkaProducer) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}

// EnsureTopics creates the topics the service reads and writes if the broker
// does not have them yet.
func EnsureTopics(ctx context.Context, brokerURLs []string, topics []string, logger *zap.Logger) error {
	conn, err := kafka.DialContext(ctx, "tcp", brokerURLs[0])
	if err != nil {
		return fmt.Errorf("failed to dial kafka broker for admin operations: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to get kafka controller: %w", err)
	}
	controllerConn, err := kafka.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return fmt.Errorf("failed to dial kafka controller: %w", err)
	}
	defer controllerConn.Close()

	topicConfigs := make([]kafka.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     3,
			ReplicationFactor: 1,
		}
	}

	if err := controllerConn.CreateTopics(topicConfigs...); err != nil {
		if errors.Is(err, kafka.TopicAlreadyExists) {
			logger.Info("One or more Kafka topics already exist, skipping creation.")
			return nil
		}
		return fmt.Errorf("failed to create Kafka topics: %w", err)
	}
	logger.Info("Kafka topics ensured successfully.", zap.Strings("topics", topics))
	return nil
}
