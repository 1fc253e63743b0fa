package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"storefront/internal/app/payments"
	"storefront/internal/domain"
	"storefront/internal/policy"
)

type mockPaymentService struct {
	mock.Mock
}

func (m *mockPaymentService) InitiatePayment(ctx context.Context, req *payments.InitiatePaymentRequest) (*domain.PaymentTransaction, error) {
	args := m.Called(ctx, req)
	tx, _ := args.Get(0).(*domain.PaymentTransaction)
	return tx, args.Error(1)
}

func (m *mockPaymentService) RetryPayment(ctx context.Context, actor policy.Actor, orderID string, req *payments.RetryPaymentRequest) (*domain.PaymentTransaction, error) {
	args := m.Called(ctx, actor, orderID, req)
	tx, _ := args.Get(0).(*domain.PaymentTransaction)
	return tx, args.Error(1)
}

func (m *mockPaymentService) ListPayments(ctx context.Context, actor policy.Actor, orderID string) ([]domain.PaymentTransaction, error) {
	args := m.Called(ctx, actor, orderID)
	txs, _ := args.Get(0).([]domain.PaymentTransaction)
	return txs, args.Error(1)
}

func (m *mockPaymentService) HandlePaymentStatusUpdate(ctx context.Context, event *domain.PaymentStatusEvent) error {
	return m.Called(ctx, event).Error(0)
}

func TestHandleMessage_ForwardsEvent(t *testing.T) {
	svc := &mockPaymentService{}
	svc.On("HandlePaymentStatusUpdate", mock.Anything, &domain.PaymentStatusEvent{
		TransactionID: "sim_pix_1",
		OrderID:       "order-1",
		Status:        "paid",
	}).Return(nil).Once()
	consumer := NewPaymentStatusConsumer(svc, zap.NewNop())

	err := consumer.HandleMessage(context.Background(), kafka.Message{
		Value: []byte(`{"transaction_id":"sim_pix_1","order_id":"order-1","status":"paid"}`),
	})
	assert.NoError(t, err)
	svc.AssertExpectations(t)
}

func TestHandleMessage_MalformedMessagesAreAcknowledged(t *testing.T) {
	svc := &mockPaymentService{}
	consumer := NewPaymentStatusConsumer(svc, zap.NewNop())

	for _, raw := range []string{`not json`, `{"order_id":"order-1","status":"paid"}`, `{"transaction_id":"sim_pix_1"}`} {
		assert.NoError(t, consumer.HandleMessage(context.Background(), kafka.Message{Value: []byte(raw)}), raw)
	}
	svc.AssertNotCalled(t, "HandlePaymentStatusUpdate", mock.Anything, mock.Anything)
}

func TestHandleMessage_ProcessingErrorIsReturned(t *testing.T) {
	svc := &mockPaymentService{}
	failure := domain.Transient("database unavailable", errors.New("connection reset"))
	svc.On("HandlePaymentStatusUpdate", mock.Anything, mock.Anything).Return(failure)
	consumer := NewPaymentStatusConsumer(svc, zap.NewNop())

	err := consumer.HandleMessage(context.Background(), kafka.Message{
		Value: []byte(`{"transaction_id":"sim_pix_1","order_id":"order-1","status":"paid"}`),
	})
	assert.ErrorIs(t, err, domain.ErrTransient)
}
