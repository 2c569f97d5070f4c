package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"receipt-schema-api/internal/models"
)

func TestPublish_DeliversToSubscribers(t *testing.T) {
	m := NewManager(true, zap.NewNop())

	var accepted, rejected atomic.Int32
	var digest atomic.Value
	m.Subscribe(EventReceiptAccepted, func(ctx context.Context, e Event) error {
		accepted.Add(1)
		digest.Store(e.Data.(ReceiptAcceptedData).Digest)
		return nil
	})
	m.Subscribe(EventReceiptRejected, func(ctx context.Context, e Event) error {
		rejected.Add(1)
		return errors.New("handler failure is logged, not propagated")
	})

	m.PublishReceiptAccepted(context.Background(), "d1", models.Receipt{ID: "r1"}, nil)
	m.PublishReceiptRejected(context.Background(), "d2", models.FieldError{Field: "id", Kind: "missing"})
	m.Wait()

	assert.Equal(t, int32(1), accepted.Load())
	assert.Equal(t, int32(1), rejected.Load())
	assert.Equal(t, "d1", digest.Load())
}

func TestPublish_Disabled(t *testing.T) {
	m := NewManager(false, zap.NewNop())

	var calls atomic.Int32
	m.Subscribe(EventReceiptAccepted, func(ctx context.Context, e Event) error {
		calls.Add(1)
		return nil
	})
	m.PublishReceiptAccepted(context.Background(), "d", models.Receipt{}, nil)
	m.Wait()

	assert.Zero(t, calls.Load())
}

func TestPublish_HandlerOutlivesCanceledContext(t *testing.T) {
	m := NewManager(true, zap.NewNop())

	var called, canceled atomic.Bool
	m.Subscribe(EventReceiptAccepted, func(ctx context.Context, e Event) error {
		called.Store(true)
		canceled.Store(ctx.Err() != nil)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.PublishReceiptAccepted(ctx, "d", models.Receipt{}, nil)
	m.Shutdown()

	assert.True(t, called.Load())
	assert.False(t, canceled.Load())
}
