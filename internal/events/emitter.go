package events

import (
	"context"
	"log/slog"
	"sync"
)

// InMemoryEventEmitter dispatches events synchronously to every registered
// handler in registration order. A handler error does not stop the fan-out;
// the first error encountered is returned to the emitter's caller.
type InMemoryEventEmitter struct {
	mu       sync.RWMutex
	handlers []EventHandler
	logger   *slog.Logger
}

// NewInMemoryEventEmitter creates an emitter with no handlers registered.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	return &InMemoryEventEmitter{
		logger: logger.With("component", "event_emitter"),
	}
}

// RegisterHandler subscribes a handler to all future events.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
}

// EmitEvent delivers the event to every registered handler.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *NoteSummaryRequested) error {
	e.mu.RLock()
	handlers := make([]EventHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	if len(handlers) == 0 {
		// Not an error: the note row is committed as queued and the
		// runner's recovery pass can still pick it up.
		e.logger.Warn("no handlers registered for note summary event",
			"event_id", event.ID,
			"note_id", event.NoteID)
		return nil
	}

	var firstErr error
	for _, handler := range handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			e.logger.Error("event handler failed",
				"error", err,
				"event_id", event.ID,
				"note_id", event.NoteID)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}
