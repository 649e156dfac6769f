/*
Package runtime wires the Sentry hub into the lifecycle of console commands,
HTTP requests and queue messages.

# Architecture Overview

Integrations (console, HTTP kernel, messenger) translate what their framework
does into lifecycle events and hand them to a Dispatcher. Listeners subscribed
on the dispatcher turn those events into scope tags, user records and log
lines on the hub of the current unit of work.

# Package Structure

## Activation (activation.go)

Activate validates the configuration and decides which features to wire:
  - every mandatory setting must be present
  - every enabled feature must find its capabilities in the registry
  - user_listener only works together with request_listener

Disabled features are never checked.

## Hub (hub.go)

NewHub builds the sentry client with the process tags (os_name, go_version,
framework...) and an event processor marking in-app frames.

## Service (service.go)

The Service runs activation, builds the hub and dispatcher, subscribes the
listeners of every active feature and optionally the failure transport.

# Sub-packages

  - config/: settings, viper loading and validation
  - errors/: sentinel errors and typed startup errors
  - lifecycle/: event kinds, the priority dispatcher and the principal context
  - listener/: the listeners subscribed for each feature
  - logging/: logger interface, adapters and the buffered resettable logger
  - metadata/: message metadata helpers
  - ids/: ULID generation
  - jsoncodec/: JSON marshaling

# Usage Example

	conf, err := sentryflow.LoadConfig("config/sentry.yaml")
	if err != nil {
		log.Fatal(err)
	}

	svc := sentryflow.NewService(conf, logger, ctx, sentryflow.ServiceDependencies{})
	defer svc.Close()

	root := &cobra.Command{Use: "app"}
	runner, err := console.New(root, svc.Dispatcher())
	if err != nil {
		log.Fatal(err)
	}
	code, _ := runner.Run(ctx, os.Args[1:])
	os.Exit(code)
*/
package runtime
