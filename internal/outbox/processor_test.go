package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/repository/memory"
	"storefront/internal/repository/outbox_repo"
	"storefront/internal/util"
)

type published struct {
	key, topic string
	value      []byte
}

type fakeProducer struct {
	mu   sync.Mutex
	sent []published
	fail map[string]bool
}

func (f *fakeProducer) Publish(ctx context.Context, msg domain.OutboxMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[msg.Key] {
		return errors.New("broker not available")
	}
	f.sent = append(f.sent, published{key: msg.Key, topic: msg.Topic, value: msg.Payload})
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func (f *fakeProducer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func queue(t *testing.T, store *memory.Store, orderID string) domain.OutboxMessage {
	t.Helper()
	msg := domain.OutboxMessage{
		ID:            util.GenerateUUID(),
		AggregateID:   orderID,
		AggregateType: domain.AggregateTypeOrder,
		MessageType:   domain.MessageTypeOrderCreated,
		Topic:         "order_events",
		Key:           orderID,
		Payload:       []byte(`{"order_id":"` + orderID + `"}`),
		Status:        domain.OutboxStatusPending,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, store.Outbox().CreateMessageTx(context.Background(), nil, &msg))
	return msg
}

func statusOf(store *memory.Store, id string) (domain.OutboxMessageStatus, int) {
	for _, m := range store.OutboxMessages() {
		if m.ID == id {
			return m.Status, m.Attempts
		}
	}
	return "", 0
}

func TestProcessOnce_PublishesKeyedByOrder(t *testing.T) {
	store := memory.NewStore()
	producer := &fakeProducer{}
	p := NewProcessor(store, store.Outbox(), producer, time.Hour, time.Second, zap.NewNop())
	first := queue(t, store, "order-1")
	second := queue(t, store, "order-2")

	sent, failed := p.ProcessOnce(context.Background())
	assert.Equal(t, 2, sent)
	assert.Zero(t, failed)

	require.Len(t, producer.sent, 2)
	assert.Equal(t, "order-1", producer.sent[0].key)
	assert.Equal(t, "order_events", producer.sent[0].topic)
	assert.JSONEq(t, `{"order_id":"order-1"}`, string(producer.sent[0].value))

	for _, id := range []string{first.ID, second.ID} {
		status, _ := statusOf(store, id)
		assert.Equal(t, domain.OutboxStatusSent, status)
	}

	sent, _ = p.ProcessOnce(context.Background())
	assert.Zero(t, sent)
	assert.Equal(t, 2, producer.count())
}

func TestProcessOnce_FailedPublishIsRetriedThenParked(t *testing.T) {
	store := memory.NewStore()
	producer := &fakeProducer{fail: map[string]bool{"order-bad": true}}
	p := NewProcessor(store, store.Outbox(), producer, time.Hour, time.Second, zap.NewNop())
	bad := queue(t, store, "order-bad")
	good := queue(t, store, "order-good")

	sent, failed := p.ProcessOnce(context.Background())
	assert.Equal(t, 1, sent)
	assert.Equal(t, 1, failed)

	status, attempts := statusOf(store, bad.ID)
	assert.Equal(t, domain.OutboxStatusPending, status)
	assert.Equal(t, 1, attempts)
	status, _ = statusOf(store, good.ID)
	assert.Equal(t, domain.OutboxStatusSent, status)

	for i := 1; i < outbox_repo.MaxAttempts; i++ {
		p.ProcessOnce(context.Background())
	}
	status, attempts = statusOf(store, bad.ID)
	assert.Equal(t, domain.OutboxStatusFailed, status)
	assert.Equal(t, outbox_repo.MaxAttempts, attempts)

	_, failed = p.ProcessOnce(context.Background())
	assert.Zero(t, failed)
}

func TestStartAndStop(t *testing.T) {
	store := memory.NewStore()
	producer := &fakeProducer{}
	p := NewProcessor(store, store.Outbox(), producer, 10*time.Millisecond, time.Second, zap.NewNop())
	queue(t, store, "order-1")

	p.Start(context.Background())
	assert.Eventually(t, func() bool { return producer.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		p.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("processor did not stop")
	}
}

func TestStartStopsWithContext(t *testing.T) {
	store := memory.NewStore()
	p := NewProcessor(store, store.Outbox(), &fakeProducer{}, 10*time.Millisecond, time.Second, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	p.Start(ctx)
	cancel()
	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
		t.Fatal("processor ignored context cancellation")
	}
}
