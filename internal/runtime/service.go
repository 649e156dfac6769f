package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/sentryflow/capability"
	configpkg "github.com/drblury/sentryflow/internal/runtime/config"
	errspkg "github.com/drblury/sentryflow/internal/runtime/errors"
	"github.com/drblury/sentryflow/internal/runtime/lifecycle"
	"github.com/drblury/sentryflow/internal/runtime/listener"
	loggingpkg "github.com/drblury/sentryflow/internal/runtime/logging"
	"github.com/drblury/sentryflow/transport"
)

// Names under which the listeners are registered on a Service.
const (
	ConsoleListenerName   = "console_listener"
	RequestListenerName   = "request_listener"
	UserListenerName      = "user_listener"
	MessengerResetterName = "messenger_resetter"
	FailureTransportName  = "failure_transport"
)

// ServiceDependencies holds the optional collaborators that the Service can use.
// Leave fields nil to get the defaults.
type ServiceDependencies struct {
	// Hub replaces the hub built from the configuration.
	Hub        *sentry.Hub
	HubOptions HubOptions

	// Capabilities defaults to capability.DefaultRegistry.
	Capabilities *capability.Registry
	// Principals resolves the authenticated user. Defaults to the principal
	// stored on the request context.
	Principals lifecycle.PrincipalLookup

	// FailurePublisher replaces the publisher built from failure_transport.
	// The Service does not close it.
	FailurePublisher message.Publisher
	// Transports defaults to transport.DefaultRegistry.
	Transports *transport.Registry

	// Registerer receives the lifecycle metrics. When nil and metrics are
	// enabled, prometheus.DefaultRegisterer is used.
	Registerer prometheus.Registerer
	Tracer     trace.Tracer
}

// Service is the configured Sentry integration: the hub, the lifecycle
// dispatcher and the listeners wired on it for every active feature.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	hub        *sentry.Hub
	dispatcher *lifecycle.Dispatcher
	features   FeatureSet
	listeners  map[string]lifecycle.Subscriber

	publisher     message.Publisher
	ownsPublisher bool
	gatherer      prometheus.Gatherer
}

// NewService constructs a Service and panics when the configuration cannot be
// activated. Startup errors are fatal; use TryNewService to handle them.
func NewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) *Service {
	s, err := TryNewService(conf, log, ctx, deps)
	if err != nil {
		panic(err)
	}
	return s
}

// TryNewService is NewService returning the startup error instead of panicking.
func TryNewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) (*Service, error) {
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}

	features, err := Activate(conf, deps.Capabilities)
	if err != nil {
		return nil, err
	}

	effective := conf.WithDefaults()
	log.Info("Creating sentry service", loggingpkg.LogFields{
		"features": features.Strings(),
		"config":   effective,
	})

	s := &Service{
		Conf:      conf,
		Logger:    log,
		features:  features,
		listeners: make(map[string]lifecycle.Subscriber),
		gatherer:  prometheus.DefaultGatherer,
	}

	s.hub = deps.Hub
	if s.hub == nil {
		if s.hub, err = NewHub(conf, deps.HubOptions); err != nil {
			return nil, err
		}
	}

	dispatcherOpts, err := s.dispatcherOptions(deps)
	if err != nil {
		return nil, err
	}
	s.dispatcher = lifecycle.NewDispatcher(dispatcherOpts...)

	if err := s.registerListeners(deps); err != nil {
		return nil, err
	}
	if err := s.setupFailureTransport(ctx, &effective, deps); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) dispatcherOptions(deps ServiceDependencies) ([]lifecycle.DispatcherOption, error) {
	var opts []lifecycle.DispatcherOption
	if deps.Tracer != nil {
		opts = append(opts, lifecycle.WithTracer(deps.Tracer))
	}

	if !s.Conf.MetricsEnabled && deps.Registerer == nil {
		return opts, nil
	}
	registerer := deps.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	if g, ok := registerer.(prometheus.Gatherer); ok {
		s.gatherer = g
	}

	metrics := lifecycle.NewMetrics(registerer)
	if err := metrics.Register(); err != nil {
		return nil, fmt.Errorf("register lifecycle metrics: %w", err)
	}
	return append(opts, lifecycle.WithMetrics(metrics)), nil
}

func (s *Service) registerListeners(deps ServiceDependencies) error {
	if s.features.Has(FeatureConsoleListener) {
		s.subscribe(ConsoleListenerName, listener.NewConsoleListener(s.hub, s.Logger))
	}
	if s.features.Has(FeatureRequestListener) {
		s.subscribe(RequestListenerName, listener.NewRequestListener(s.hub, s.Logger))
	}
	if s.features.Has(FeatureUserListener) {
		s.subscribe(UserListenerName, listener.NewUserListener(s.hub, deps.Principals))
	}
	if s.features.Has(FeatureMessengerResetter) {
		resetter, err := listener.NewLoggerResetListener(s.Logger)
		if err != nil {
			return err
		}
		s.subscribe(MessengerResetterName, resetter)
	}
	return nil
}

func (s *Service) setupFailureTransport(ctx context.Context, conf *configpkg.Config, deps ServiceDependencies) error {
	publisher := deps.FailurePublisher
	if publisher == nil {
		if conf.FailureTransport == "" {
			return nil
		}
		registry := deps.Transports
		if registry == nil {
			registry = transport.DefaultRegistry
		}
		built, err := registry.Build(ctx, conf, loggingpkg.NewWatermillAdapter(s.Logger))
		if err != nil {
			return fmt.Errorf("build failure transport %q: %w", conf.FailureTransport, err)
		}
		publisher = built
		s.ownsPublisher = true
	}

	failure, err := listener.NewFailureTransportListener(publisher, conf.FailureTopic, s.Logger)
	if err != nil {
		if s.ownsPublisher {
			_ = publisher.Close()
		}
		return err
	}
	s.publisher = publisher
	s.subscribe(FailureTransportName, failure)
	s.Logger.Info("Failure transport enabled", loggingpkg.LogFields{
		"transport": conf.FailureTransport,
		"topic":     conf.FailureTopic,
	})
	return nil
}

func (s *Service) subscribe(name string, l lifecycle.Subscriber) {
	s.dispatcher.Subscribe(l)
	s.listeners[name] = l
}

// Hub returns the hub events are reported to.
func (s *Service) Hub() *sentry.Hub {
	return s.hub
}

// Dispatcher returns the dispatcher integrations deliver lifecycle events to.
func (s *Service) Dispatcher() *lifecycle.Dispatcher {
	return s.dispatcher
}

// Features returns the active features in activation order.
func (s *Service) Features() FeatureSet {
	return s.features
}

// Has reports whether the named listener is registered.
func (s *Service) Has(name string) bool {
	_, ok := s.listeners[name]
	return ok
}

// Listener returns the named listener.
func (s *Service) Listener(name string) (lifecycle.Subscriber, bool) {
	l, ok := s.listeners[name]
	return l, ok
}

// MetricsHandler serves the registry the lifecycle metrics were registered on.
func (s *Service) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})
}

// Close flushes buffered events and closes the failure publisher when the
// Service built it.
func (s *Service) Close() error {
	var errs []error
	timeout := s.Conf.WithDefaults().FlushTimeout
	if s.hub != nil && !s.hub.Flush(timeout) {
		errs = append(errs, fmt.Errorf("sentry flush timed out after %s", timeout))
	}
	if s.ownsPublisher && s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close failure transport: %w", err))
		}
	}
	return errors.Join(errs...)
}
