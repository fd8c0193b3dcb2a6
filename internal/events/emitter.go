package events

import (
	"context"
	"log/slog"
	"sync"
)

// InMemoryEmitter dispatches events to handlers registered in-process.
// Dispatch is serialized: a handler never sees two events at once.
type InMemoryEmitter struct {
	handlers []Handler
	mu       sync.RWMutex
	dispatch sync.Mutex
	logger   *slog.Logger
}

var _ Emitter = (*InMemoryEmitter)(nil)

// NewInMemoryEmitter creates an InMemoryEmitter.
func NewInMemoryEmitter(logger *slog.Logger) *InMemoryEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryEmitter{
		logger: logger.With("component", "event_emitter"),
	}
}

// RegisterHandler adds a handler.
func (e *InMemoryEmitter) RegisterHandler(handler Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
	e.logger.Debug("registered event handler", "handler_count", len(e.handlers))
}

// EmitEvent delivers event to every handler. A failing handler does not
// stop delivery to the others; the first error is returned.
func (e *InMemoryEmitter) EmitEvent(ctx context.Context, event *ItemEvent) error {
	e.mu.RLock()
	handlers := make([]Handler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	if len(handlers) == 0 {
		return nil
	}

	e.dispatch.Lock()
	defer e.dispatch.Unlock()

	var firstErr error
	for i, handler := range handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			e.logger.Warn("event handler failed",
				"error", err,
				"handler_index", i,
				"event_type", event.Type,
				"item_id", event.ItemID)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
