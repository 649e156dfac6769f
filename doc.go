// Package sentryflow reports the lifecycle of CLI commands, HTTP requests and
// queue messages to Sentry.
//
// A Service is built from a Config and a ServiceLogger. Activation checks the
// mandatory settings, resolves which listeners the feature toggles enable and
// verifies the integrations they depend on are linked into the binary. The
// Service then owns a Sentry hub whose scope carries the runtime tags and a
// Dispatcher the integrations publish lifecycle events to:
//
//	conf, err := sentryflow.LoadConfig("config/sentry.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	svc := sentryflow.NewService(conf, sentryflow.NewSlogServiceLogger(slog.Default()), ctx, sentryflow.ServiceDependencies{})
//	defer svc.Close()
//
// The integrations live in their own packages so binaries only link what they
// use:
//
//   - integration/console instruments a cobra command tree.
//   - integration/httpkernel wraps net/http handlers and gorilla/mux routes.
//   - integration/security authenticates requests from JWT bearer tokens.
//   - integration/messenger wraps Watermill handlers and runs a worker router.
//
// Messages that fail for good can be republished to a failure transport
// (Kafka, RabbitMQ, NATS, HTTP, AWS SNS or an in-process channel) by setting
// failure_transport in the configuration.
package sentryflow
