// Package http publishes failed messages as HTTP POST requests. The topic is
// appended to the configured publisher URL.
package http

import (
	"context"
	"errors"
	nethttp "net/http"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/sentryflow/transport"
)

// TransportName is the name used to register this publisher.
const TransportName = "http"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(config http.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return http.NewPublisher(config, logger)
}

func init() {
	transport.Register(TransportName, Build)
}

// Build creates a new HTTP publisher.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	publisherURL := cfg.GetHTTPPublisherURL()
	if publisherURL == "" {
		return nil, errors.New("http: publisher URL is required")
	}

	return PublisherFactory(
		http.PublisherConfig{
			MarshalMessageFunc: MarshalMessageFunc(publisherURL),
		},
		logger,
	)
}

// MarshalMessageFunc builds POST requests to baseURL/topic.
func MarshalMessageFunc(baseURL string) http.MarshalMessageFunc {
	base := strings.TrimSuffix(baseURL, "/") + "/"
	return func(topic string, msg *message.Message) (*nethttp.Request, error) {
		return http.DefaultMarshalMessageFunc(base+strings.TrimPrefix(topic, "/"), msg)
	}
}
