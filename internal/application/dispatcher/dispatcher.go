// Package dispatcher routes chain events to subscribers.
//
// Dispatch runs handlers on the caller's goroutine with the caller's context,
// so a handler that writes through a repository joins the caller's
// transaction. A failing handler fails the dispatch and, with it, the
// transaction.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/garyjia/ope-approval/internal/domain/event"
)

// ErrClosed is returned by Dispatch once Close has been called
var ErrClosed = errors.New("dispatcher is closed")

// Dispatcher routes events to registered handlers
type Dispatcher interface {
	// Subscribe registers one named handler for each of the given event types
	Subscribe(name string, handler Handler, types ...event.Type)

	// Dispatch runs the handlers for evt.Type in registration order and
	// stops at the first error
	Dispatch(ctx context.Context, evt *event.Event) error

	// Handlers returns the names subscribed to an event type
	Handlers(eventType event.Type) []string

	// Close rejects further dispatches
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type eventDispatcher struct {
	mu     sync.RWMutex
	routes map[event.Type][]subscription
	closed bool
	logger Logger
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a synchronous dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{routes: make(map[event.Type][]subscription)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *eventDispatcher) Subscribe(name string, handler Handler, types ...event.Type) {
	d.mu.Lock()
	for _, t := range types {
		d.routes[t] = append(d.routes[t], subscription{name: name, handler: handler})
	}
	d.mu.Unlock()

	d.logInfo("Handler subscribed", "handler_name", name, "event_types", types)
}

func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return ErrClosed
	}
	subs := append([]subscription(nil), d.routes[evt.Type]...)
	d.mu.RUnlock()

	d.logInfo("Dispatching event",
		"event_type", evt.Type,
		"event_id", evt.ID,
		"employee_code", evt.EmployeeCode,
		"handler_count", len(subs),
	)

	for _, s := range subs {
		if err := d.run(ctx, evt, s); err != nil {
			d.logError("Handler failed",
				"event_type", evt.Type,
				"event_id", evt.ID,
				"handler_name", s.name,
				"error", err,
			)
			return fmt.Errorf("handler %s failed: %w", s.name, err)
		}
	}
	return nil
}

func (d *eventDispatcher) Handlers(eventType event.Type) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.routes[eventType]))
	for _, s := range d.routes[eventType] {
		names = append(names, s.name)
	}
	return names
}

func (d *eventDispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("dispatcher already closed")
	}
	d.closed = true
	d.logInfo("Dispatcher closed")
	return nil
}

// run invokes one handler and turns a panic into an error
func (d *eventDispatcher) run(ctx context.Context, evt *event.Event, s subscription) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return s.handler(ctx, evt)
}

func (d *eventDispatcher) logInfo(msg string, keysAndValues ...interface{}) {
	if d.logger != nil {
		d.logger.Info(msg, keysAndValues...)
	}
}

func (d *eventDispatcher) logError(msg string, keysAndValues ...interface{}) {
	if d.logger != nil {
		d.logger.Error(msg, keysAndValues...)
	}
}
