package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Priorities used by the built-in listeners. Lower values run first.
const (
	PriorityConsole              = -1
	PriorityControllerResolved   = -10000
	PriorityResponseTerminate    = -1
	PriorityAuthenticatedRequest = -1
	PriorityQueueHandled         = 0
	PriorityFailureTransport     = 0
	// PriorityLoggerReset runs after the failure transport so the log line
	// carries everything known about the failure.
	PriorityLoggerReset = 200
)

// HandlerFunc reacts to a lifecycle event. Returning an error stops delivery
// to the remaining handlers and is returned to whoever dispatched the event.
type HandlerFunc func(ctx context.Context, event Event) error

// Subscription binds a handler to an event kind.
type Subscription struct {
	Kind     Kind
	Priority int
	Name     string
	Handler  HandlerFunc
}

// Subscriber declares the events a listener reacts to.
type Subscriber interface {
	Subscriptions() []Subscription
}

type registration struct {
	Subscription
	seq int
}

// Dispatcher delivers lifecycle events synchronously to registered handlers
// in ascending priority order. Handlers with equal priority run in
// registration order.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[Kind][]registration
	seq      int

	metrics *Metrics
	tracer  trace.Tracer
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMetrics records dispatch counters on m.
func WithMetrics(m *Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithTracer overrides the tracer used for dispatch spans.
func WithTracer(t trace.Tracer) DispatcherOption {
	return func(d *Dispatcher) { d.tracer = t }
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{handlers: make(map[Kind][]registration)}
	for _, opt := range opts {
		opt(d)
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer("sentryflow-lifecycle")
	}
	return d
}

// Register adds handler for kind.
func (d *Dispatcher) Register(kind Kind, priority int, name string, handler HandlerFunc) {
	if handler == nil {
		panic("sentryflow: lifecycle handler cannot be nil")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	list := append(d.handlers[kind], registration{
		Subscription: Subscription{Kind: kind, Priority: priority, Name: name, Handler: handler},
		seq:          d.seq,
	})
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority < list[j].Priority
		}
		return list[i].seq < list[j].seq
	})
	d.handlers[kind] = list
}

// Subscribe registers every subscription s declares.
func (d *Dispatcher) Subscribe(s Subscriber) {
	for _, sub := range s.Subscriptions() {
		d.Register(sub.Kind, sub.Priority, sub.Name, sub.Handler)
	}
}

// Listeners returns the names of the handlers registered for kind in
// delivery order.
func (d *Dispatcher) Listeners(kind Kind) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.handlers[kind]))
	for _, r := range d.handlers[kind] {
		names = append(names, r.Name)
	}
	return names
}

// HasListeners reports whether any handler is registered for kind.
func (d *Dispatcher) HasListeners(kind Kind) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[kind]) > 0
}

// Dispatch delivers event to its handlers. The first handler error aborts the
// chain.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	if event == nil {
		return fmt.Errorf("sentryflow: nil lifecycle event")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	kind := event.Kind()

	d.mu.RLock()
	handlers := d.handlers[kind]
	d.mu.RUnlock()

	ctx, span := d.tracer.Start(ctx, "lifecycle."+kind.String())
	defer span.End()
	span.SetAttributes(
		attribute.String("lifecycle.kind", kind.String()),
		attribute.Int("lifecycle.listeners", len(handlers)),
	)

	d.metrics.recordEvent(kind)

	for _, h := range handlers {
		if err := h.Handler(ctx, event); err != nil {
			d.metrics.recordError(kind, h.Name)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("lifecycle listener %q: %w", h.Name, err)
		}
	}
	return nil
}
