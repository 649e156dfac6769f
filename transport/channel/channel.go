// Package channel publishes failed messages to an in-process Go channel
// pub/sub. Useful for tests and local development.
package channel

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/drblury/sentryflow/transport"
)

// TransportName is the name used to register this publisher.
const TransportName = "channel"

var (
	sharedMu sync.Mutex
	shared   *gochannel.GoChannel
)

// Factory allows overriding the channel creation for testing.
var Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(cfg, logger)
}

func init() {
	transport.Register(TransportName, Build)
}

// PubSub returns the process-wide pub/sub failed messages are published to.
// Subscribe to the failure topic on it to consume them in-process. Messages
// published before anyone subscribed are kept.
func PubSub(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if shared == nil {
		if logger == nil {
			logger = watermill.NopLogger{}
		}
		shared = Factory(gochannel.Config{Persistent: true}, logger)
	}
	return shared
}

// Build returns a publisher onto the shared pub/sub. Closing it does not
// close the shared pub/sub, which other components may still subscribe to.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return publisher{PubSub(logger)}, nil
}

type publisher struct {
	pubSub *gochannel.GoChannel
}

func (p publisher) Publish(topic string, messages ...*message.Message) error {
	return p.pubSub.Publish(topic, messages...)
}

func (p publisher) Close() error { return nil }
