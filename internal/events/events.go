package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"receipt-schema-api/internal/models"
)

// EventType represents the type of event.
type EventType string

const (
	// EventReceiptAccepted is emitted when a document validates as a receipt
	EventReceiptAccepted EventType = "receipt.accepted"
	// EventReceiptRejected is emitted when a document violates the receipt contract
	EventReceiptRejected EventType = "receipt.rejected"
)

// Event represents an event in the system.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      interface{}
}

// ReceiptAcceptedData contains data for receipt accepted events.
type ReceiptAcceptedData struct {
	Digest   string
	Receipt  models.Receipt
	Warnings []string
}

// ReceiptRejectedData contains data for receipt rejected events.
type ReceiptRejectedData struct {
	Digest string
	Error  models.FieldError
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Manager manages event handlers and event publishing.
type Manager struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	enabled  bool
	logger   *zap.Logger
	inflight sync.WaitGroup
	now      func() time.Time
}

// NewManager creates a new event manager.
func NewManager(enabled bool, logger *zap.Logger) *Manager {
	return &Manager{
		handlers: make(map[EventType][]Handler),
		enabled:  enabled,
		logger:   logger,
		now:      time.Now,
	}
}

// Subscribe subscribes a handler to a specific event type.
func (m *Manager) Subscribe(eventType EventType, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		return
	}
	m.handlers[eventType] = append(m.handlers[eventType], handler)
}

// Publish publishes an event to all subscribed handlers. Handlers run
// asynchronously on a context detached from the caller's cancellation.
func (m *Manager) Publish(ctx context.Context, eventType EventType, data interface{}) {
	m.mu.RLock()
	if !m.enabled {
		m.mu.RUnlock()
		return
	}
	handlers := m.handlers[eventType]
	m.inflight.Add(len(handlers))
	m.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	event := Event{
		Type:      eventType,
		Timestamp: m.now(),
		Data:      data,
	}
	hctx := context.WithoutCancel(ctx)

	for _, handler := range handlers {
		go func(h Handler) {
			defer m.inflight.Done()
			if err := h(hctx, event); err != nil {
				m.logger.Warn("event handler failed",
					zap.String("event", string(event.Type)),
					zap.Error(err),
				)
			}
		}(handler)
	}
}

// PublishReceiptAccepted publishes a receipt accepted event.
func (m *Manager) PublishReceiptAccepted(ctx context.Context, digest string, receipt models.Receipt, warnings []string) {
	m.Publish(ctx, EventReceiptAccepted, ReceiptAcceptedData{
		Digest:   digest,
		Receipt:  receipt,
		Warnings: warnings,
	})
}

// PublishReceiptRejected publishes a receipt rejected event.
func (m *Manager) PublishReceiptRejected(ctx context.Context, digest string, fieldErr models.FieldError) {
	m.Publish(ctx, EventReceiptRejected, ReceiptRejectedData{
		Digest: digest,
		Error:  fieldErr,
	})
}

// Wait blocks until every handler started so far has returned.
func (m *Manager) Wait() {
	m.inflight.Wait()
}

// Shutdown stops accepting events and waits for running handlers.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.enabled = false
	m.handlers = make(map[EventType][]Handler)
	m.mu.Unlock()

	m.inflight.Wait()
}
