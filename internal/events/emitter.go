package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// InMemoryEventEmitter dispatches events to handlers registered in process.
// It backs local logging when no broker is configured and observes events
// in tests.
type InMemoryEventEmitter struct {
	mu            sync.RWMutex
	subscriptions []subscription
	logger        *slog.Logger
}

type subscription struct {
	handler EventHandler
	types   []string
}

func (s subscription) wants(eventType string) bool {
	return len(s.types) == 0 || slices.Contains(s.types, eventType)
}

// NewInMemoryEventEmitter creates an emitter with no handlers.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	return &InMemoryEventEmitter{
		logger: logger.With("component", "in_memory_event_emitter"),
	}
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event *ResourceEvent) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *ResourceEvent) error {
	return f(ctx, event)
}

// RegisterHandler subscribes handler to the given event types, or to every
// event when none are given.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler, types ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscriptions = append(e.subscriptions, subscription{handler: handler, types: types})
}

// EmitEvent delivers event to every matching handler. A failing or
// panicking handler does not stop delivery to the rest; their errors are
// joined.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *ResourceEvent) error {
	e.mu.RLock()
	subs := slices.Clone(e.subscriptions)
	e.mu.RUnlock()

	var errs []error
	delivered := 0
	for i, sub := range subs {
		if !sub.wants(event.Type) {
			continue
		}
		delivered++
		if err := dispatch(ctx, sub.handler, event); err != nil {
			e.logger.ErrorContext(ctx, "event handler failed",
				"error", err,
				"handler_index", i,
				"event_type", event.Type,
				"job_id", event.JobID)
			errs = append(errs, err)
		}
	}

	if delivered == 0 {
		e.logger.DebugContext(ctx, "no handlers for event", "event_type", event.Type, "job_id", event.JobID)
	}
	return errors.Join(errs...)
}

func dispatch(ctx context.Context, h EventHandler, event *ResourceEvent) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("event handler panicked: %v", p)
		}
	}()
	return h.HandleEvent(ctx, event)
}

// Multi returns an emitter that forwards each event to all of emitters in
// order and joins their errors.
func Multi(emitters ...EventEmitter) EventEmitter {
	return multiEmitter(emitters)
}

type multiEmitter []EventEmitter

func (m multiEmitter) EmitEvent(ctx context.Context, event *ResourceEvent) error {
	var errs []error
	for _, em := range m {
		if err := em.EmitEvent(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
