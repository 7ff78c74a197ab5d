package domain

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"autohaus.io/cms/internal/pkg/logger"
)

// EventHandler reacts to one committed CMS change.
type EventHandler func(ctx context.Context, event *DomainEvent) error

// EventDispatcher fans committed entity events out to
// subscribers keyed by event type.
type EventDispatcher struct {
	handlers map[EventType][]EventHandler
	mu       sync.RWMutex
}

func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		handlers: make(map[EventType][]EventHandler),
	}
}

// Register subscribes handler to eventType. Handlers run in registration order.
func (d *EventDispatcher) Register(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// Dispatch runs every subscriber of event.EventType. A failing handler is
// logged and does not stop the rest; the first failure is returned.
func (d *EventDispatcher) Dispatch(ctx context.Context, event *DomainEvent) error {
	d.mu.RLock()
	handlers := append([]EventHandler(nil), d.handlers[event.EventType]...)
	d.mu.RUnlock()

	if len(handlers) == 0 {
		logger.Debug("cms event has no subscribers",
			zap.String("event_type", string(event.EventType)),
			zap.String("aggregate_type", event.AggregateType),
		)
		return nil
	}

	var firstErr error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			logger.Error("cms event subscriber failed",
				zap.String("event_type", string(event.EventType)),
				zap.String("aggregate_type", event.AggregateType),
				zap.String("event_id", event.EventID),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("dispatch %s: %w", event.EventType, err)
			}
		}
	}
	return firstErr
}
