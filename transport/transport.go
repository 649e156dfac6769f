// Package transport builds the publishers that failed queue messages are
// forwarded to. Each backend lives in its own sub-package and registers
// itself from init(), so only linked backends can be selected in the
// failure_transport setting.
package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Builder creates a publisher from config.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (message.Publisher, error)

// Config provides the values the publishers need without depending on the
// full config package.
type Config interface {
	// GetFailureTransport returns the registered name of the publisher to build.
	GetFailureTransport() string

	// Kafka
	GetKafkaBrokers() []string

	// RabbitMQ
	GetRabbitMQURL() string

	// NATS
	GetNATSURL() string

	// HTTP
	GetHTTPPublisherURL() string

	// AWS
	GetAWSRegion() string
	GetAWSAccountID() string
	GetAWSAccessKeyID() string
	GetAWSSecretAccessKey() string
	GetAWSEndpoint() string
}
