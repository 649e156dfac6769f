// Package nats publishes failed messages to NATS Core subjects.
package nats

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"

	"github.com/drblury/sentryflow/transport"
)

// TransportName is the name used to register this publisher.
const TransportName = "nats"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg nats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return nats.NewPublisher(cfg, logger)
}

func init() {
	transport.Register(TransportName, Build)
}

// Build creates a new NATS publisher.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	url := cfg.GetNATSURL()
	if url == "" {
		return nil, errors.New("nats: URL is required")
	}

	return PublisherFactory(
		nats.PublisherConfig{
			URL:         url,
			NatsOptions: []nc.Option{nc.Name("sentryflow-failure-transport")},
			Marshaler:   &nats.NATSMarshaler{},
		},
		logger,
	)
}
