// Package messenger reports Watermill message handling to the lifecycle
// dispatcher and runs handlers in a worker.
//
// Importing the package makes the messenger-available capability present,
// which the messenger_resetter feature requires.
package messenger

import (
	"errors"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/getsentry/sentry-go"

	"github.com/drblury/sentryflow/capability"
	errspkg "github.com/drblury/sentryflow/internal/runtime/errors"
	"github.com/drblury/sentryflow/internal/runtime/lifecycle"
)

const importPath = "github.com/drblury/sentryflow/integration/messenger"

func init() {
	capability.Provide(capability.Messenger, importPath)
}

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareOptions)

type middlewareOptions struct {
	ackAfterFailure bool
}

// AckAfterFailure acknowledges a failed message once QueueMessageFailed was
// delivered without error. Use it when a failure transport keeps the message,
// otherwise the broker redelivers it.
func AckAfterFailure() MiddlewareOption {
	return func(o *middlewareOptions) { o.ackAfterFailure = true }
}

// Middleware dispatches QueueMessageHandled after a handler succeeded and
// QueueMessageFailed after it failed. Each message gets its own clone of hub
// unless its context already carries one.
func Middleware(d *lifecycle.Dispatcher, hub *sentry.Hub, opts ...MiddlewareOption) (message.HandlerMiddleware, error) {
	if d == nil {
		return nil, errspkg.ErrDispatcherRequired
	}
	var o middlewareOptions
	for _, opt := range opts {
		opt(&o)
	}

	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			ctx := msg.Context()
			if hub != nil && sentry.GetHubFromContext(ctx) == nil {
				ctx = sentry.SetHubOnContext(ctx, hub.Clone())
				msg.SetContext(ctx)
			}
			handler := message.HandlerNameFromCtx(ctx)
			topic := message.SubscribeTopicFromCtx(ctx)

			produced, err := h(msg)
			if err != nil {
				failed := &lifecycle.QueueMessageFailedEvent{
					Message: msg,
					Err:     err,
					Handler: handler,
					Topic:   topic,
				}
				if dispatchErr := d.Dispatch(ctx, failed); dispatchErr != nil {
					return produced, errors.Join(err, dispatchErr)
				}
				if o.ackAfterFailure {
					return nil, nil
				}
				return produced, err
			}

			handled := &lifecycle.QueueMessageHandledEvent{
				Message: msg,
				Handler: handler,
				Topic:   topic,
			}
			if dispatchErr := d.Dispatch(ctx, handled); dispatchErr != nil {
				return nil, dispatchErr
			}
			return produced, nil
		}
	}, nil
}
