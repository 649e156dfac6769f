package messenger

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/message/router/plugin"
	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/drblury/sentryflow/internal/runtime/lifecycle"
)

// WorkerConfig customises the worker router.
type WorkerConfig struct {
	// MaxRetries is the number of retries before a message counts as failed.
	// Zero disables retrying.
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// AckAfterFailure, see the middleware option of the same name.
	AckAfterFailure bool

	// Registerer enables the Watermill router metrics.
	Registerer       prometheus.Registerer
	MetricsNamespace string

	// HandleSignals stops the worker on SIGINT and SIGTERM.
	HandleSignals bool
	CloseTimeout  time.Duration
}

func (cfg WorkerConfig) withDefaults() WorkerConfig {
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 10 * time.Second
	}
	if cfg.MetricsNamespace == "" {
		cfg.MetricsNamespace = "sentryflow"
	}
	return cfg
}

// Worker is a Watermill router whose handlers report to the dispatcher.
// Retries and panic recovery run inside the lifecycle middleware, so
// QueueMessageFailed is only dispatched for the final failure.
type Worker struct {
	router *message.Router
}

// NewWorker creates a worker. logger may be nil.
func NewWorker(d *lifecycle.Dispatcher, hub *sentry.Hub, logger watermill.LoggerAdapter, cfg WorkerConfig) (*Worker, error) {
	var opts []MiddlewareOption
	if cfg.AckAfterFailure {
		opts = append(opts, AckAfterFailure())
	}
	lifecycleMiddleware, err := Middleware(d, hub, opts...)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = watermill.NopLogger{}
	}
	cfg = cfg.withDefaults()

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, logger)
	if err != nil {
		return nil, err
	}
	if cfg.HandleSignals {
		router.AddPlugin(plugin.SignalsHandler)
	}

	if cfg.Registerer != nil {
		metricsBuilder := metrics.NewPrometheusMetricsBuilder(cfg.Registerer, cfg.MetricsNamespace, "worker")
		metricsBuilder.AddPrometheusRouterMetrics(router)
	}

	router.AddMiddleware(lifecycleMiddleware)
	if cfg.MaxRetries > 0 {
		router.AddMiddleware(middleware.Retry{
			MaxRetries:      cfg.MaxRetries,
			InitialInterval: cfg.InitialInterval,
			MaxInterval:     cfg.MaxInterval,
			Logger:          logger,
		}.Middleware)
	}
	router.AddMiddleware(middleware.Recoverer)

	return &Worker{router: router}, nil
}

// Handle consumes topic from subscriber with handler.
func (w *Worker) Handle(name, topic string, subscriber message.Subscriber, handler message.NoPublishHandlerFunc) {
	w.router.AddNoPublisherHandler(name, topic, subscriber, handler)
}

// Router exposes the underlying router for handlers that publish.
func (w *Worker) Router() *message.Router {
	return w.router
}

// Run processes messages until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	return w.router.Run(ctx)
}

// Running is closed once the worker is ready to process messages.
func (w *Worker) Running() chan struct{} {
	return w.router.Running()
}

// Close stops the worker.
func (w *Worker) Close() error {
	return w.router.Close()
}
