package listener

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/sentryflow/internal/runtime/errors"
	"github.com/drblury/sentryflow/internal/runtime/ids"
	"github.com/drblury/sentryflow/internal/runtime/jsoncodec"
	"github.com/drblury/sentryflow/internal/runtime/lifecycle"
	"github.com/drblury/sentryflow/internal/runtime/logging"
	"github.com/drblury/sentryflow/internal/runtime/metadata"
)

// FailureEnvelope is the payload republished to the failure topic.
type FailureEnvelope struct {
	ID            string            `json:"id"`
	OriginalID    string            `json:"original_id"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Class         string            `json:"class"`
	Topic         string            `json:"topic,omitempty"`
	Handler       string            `json:"handler,omitempty"`
	Error         string            `json:"error"`
	FailedAt      time.Time         `json:"failed_at"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Payload       []byte            `json:"payload"`
}

// FailureTransportListener republishes failed queue messages to a failure
// topic so they can be inspected and replayed later.
type FailureTransportListener struct {
	publisher message.Publisher
	topic     string
	logger    logging.ServiceLogger
	now       func() time.Time
}

func NewFailureTransportListener(publisher message.Publisher, topic string, logger logging.ServiceLogger) (*FailureTransportListener, error) {
	if publisher == nil {
		return nil, errors.ErrPublisherRequired
	}
	if topic == "" {
		return nil, errors.ErrTopicRequired
	}
	if logger == nil {
		return nil, errors.ErrLoggerRequired
	}
	return &FailureTransportListener{publisher: publisher, topic: topic, logger: logger, now: time.Now}, nil
}

func (l *FailureTransportListener) Subscriptions() []lifecycle.Subscription {
	return []lifecycle.Subscription{
		{Kind: lifecycle.QueueMessageFailed, Priority: lifecycle.PriorityFailureTransport, Name: "failure_transport.message_failed", Handler: l.handleFailed},
	}
}

// OnMessageFailed publishes the failed message. Messages consumed from the
// failure topic itself are not sent back to it. Publishing is best effort: a
// failure is logged as a warning and never stops the listeners dispatched
// after this one, such as the logger reset.
func (l *FailureTransportListener) OnMessageFailed(ctx context.Context, event *lifecycle.QueueMessageFailedEvent) {
	if event.Message == nil || event.Topic == l.topic {
		return
	}
	if err := l.publish(ctx, event); err != nil {
		l.logger.Warn("Rejected message could not be sent to the failure transport", logging.LogFields{
			"message_id": event.Message.UUID,
			"topic":      l.topic,
			"error":      err.Error(),
		})
	}
}

func (l *FailureTransportListener) publish(ctx context.Context, event *lifecycle.QueueMessageFailedEvent) error {
	msg := event.Message
	class := metadata.MessageClass(msg)
	failedAt := l.now().UTC()

	l.logger.Info("Rejected message will be sent to the failure transport", logging.LogFields{
		"class":      class,
		"message_id": msg.UUID,
		"topic":      l.topic,
	})

	failure := metadata.Metadata{
		metadata.KeyFailureError:   errorMessage(event.Err),
		metadata.KeyFailureClass:   class,
		metadata.KeyFailureTopic:   event.Topic,
		metadata.KeyFailureHandler: event.Handler,
		metadata.KeyFailedAt:       failedAt.Format(time.RFC3339Nano),
		metadata.KeyOriginalUUID:   msg.UUID,
	}
	md := metadata.FromWatermill(msg.Metadata).WithAll(failure)

	id := ids.CreateULIDAt(failedAt)
	payload, err := jsoncodec.Marshal(FailureEnvelope{
		ID:            id,
		OriginalID:    msg.UUID,
		CorrelationID: msg.Metadata.Get(metadata.KeyCorrelationID),
		Class:         class,
		Topic:         event.Topic,
		Handler:       event.Handler,
		Error:         errorMessage(event.Err),
		FailedAt:      failedAt,
		Metadata:      metadata.FromWatermill(msg.Metadata),
		Payload:       msg.Payload,
	})
	if err != nil {
		return fmt.Errorf("encode failure envelope: %w", err)
	}

	out := message.NewMessage(id, payload)
	out.Metadata = metadata.ToWatermill(md)
	out.SetContext(ctx)

	if err := l.publisher.Publish(l.topic, out); err != nil {
		return fmt.Errorf("publish to failure topic %q: %w", l.topic, err)
	}
	return nil
}

func (l *FailureTransportListener) handleFailed(ctx context.Context, e lifecycle.Event) error {
	l.OnMessageFailed(ctx, e.(*lifecycle.QueueMessageFailedEvent))
	return nil
}
