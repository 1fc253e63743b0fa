package kafka_infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestHandleWithRetry_RetriesSameMessageUntilHandled(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	var offsets []int64
	c := &Consumer{
		handler: func(ctx context.Context, m kafka.Message) error {
			offsets = append(offsets, m.Offset)
			if len(offsets) < 3 {
				return errors.New("database unavailable")
			}
			return nil
		},
		logger: zap.New(core),
	}

	ok := c.handleWithRetry(context.Background(), kafka.Message{Offset: 42})
	assert.True(t, ok)
	assert.Equal(t, []int64{42, 42, 42}, offsets)
	assert.Equal(t, 2, logs.FilterMessage("Failed to handle message, retrying").Len())
}

func TestHandleWithRetry_StopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	c := &Consumer{
		handler: func(context.Context, kafka.Message) error {
			calls++
			cancel()
			return errors.New("still failing")
		},
		logger: zap.NewNop(),
	}

	done := make(chan bool)
	go func() { done <- c.handleWithRetry(ctx, kafka.Message{}) }()
	select {
	case ok := <-done:
		assert.False(t, ok)
		assert.Equal(t, 1, calls)
	case <-time.After(2 * time.Second):
		t.Fatal("retry loop ignored context cancellation")
	}
}
