package lifecycle

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts dispatched lifecycle events and failing listeners.
type Metrics struct {
	mu sync.Mutex

	eventsTotal *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec

	registerer prometheus.Registerer
	registered bool
}

func newCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentryflow",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// NewMetrics creates the lifecycle collectors. A nil registerer falls back to
// prometheus.DefaultRegisterer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &Metrics{
		registerer:  registerer,
		eventsTotal: newCounterVec("lifecycle_events_total", "Total number of dispatched lifecycle events", []string{"kind"}),
		errorsTotal: newCounterVec("listener_errors_total", "Total number of lifecycle listeners that returned an error", []string{"kind", "listener"}),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *Metrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	for _, c := range []prometheus.Collector{m.eventsTotal, m.errorsTotal} {
		if err := m.registerer.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

func (m *Metrics) recordEvent(kind Kind) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) recordError(kind Kind, listener string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(kind.String(), listener).Inc()
}
