package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"storefront/internal/app/payments"
	"storefront/internal/domain"
)

type PaymentStatusConsumer struct {
	paymentService payments.PaymentService
	logger         *zap.Logger
}

func NewPaymentStatusConsumer(s payments.PaymentService, l *zap.Logger) *PaymentStatusConsumer {
	return &PaymentStatusConsumer{paymentService: s, logger: l}
}

// HandleMessage acknowledges malformed messages so they do not block the
// partition. Processing errors are returned and the offset stays uncommitted.
func (c *PaymentStatusConsumer) HandleMessage(ctx context.Context, message kafka.Message) error {
	var event domain.PaymentStatusEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		c.logger.Error("Error unmarshalling Kafka message", zap.Error(err), zap.String("raw_message", string(message.Value)))
		return nil
	}
	if event.TransactionID == "" || event.Status == "" {
		c.logger.Error("Payment status update without transaction id or status",
			zap.String("raw_message", string(message.Value)))
		return nil
	}

	c.logger.Info("Received payment status update",
		zap.String("order_id", event.OrderID),
		zap.String("transaction_id", event.TransactionID),
		zap.String("status", event.Status))

	if err := c.paymentService.HandlePaymentStatusUpdate(ctx, &event); err != nil {
		c.logger.Error("Error processing payment status update",
			zap.String("order_id", event.OrderID),
			zap.String("transaction_id", event.TransactionID),
			zap.Error(err))
		return err
	}
	return nil
}
