package listener

import (
	"context"
	"fmt"

	"github.com/drblury/sentryflow/internal/runtime/errors"
	"github.com/drblury/sentryflow/internal/runtime/lifecycle"
	"github.com/drblury/sentryflow/internal/runtime/logging"
	"github.com/drblury/sentryflow/internal/runtime/metadata"
)

type resettableLogger interface {
	logging.ServiceLogger
	logging.Resetter
}

// LoggerResetListener logs failed queue messages and resets the logger after
// every message so buffered records do not leak into the next one.
type LoggerResetListener struct {
	logger resettableLogger
}

// NewLoggerResetListener fails when logger cannot be reset.
func NewLoggerResetListener(logger logging.ServiceLogger) (*LoggerResetListener, error) {
	if logger == nil {
		return nil, errors.ErrLoggerRequired
	}
	r, ok := logger.(resettableLogger)
	if !ok {
		return nil, errors.UnsupportedLoggerError{Logger: fmt.Sprintf("%T", logger)}
	}
	return &LoggerResetListener{logger: r}, nil
}

func (l *LoggerResetListener) Subscriptions() []lifecycle.Subscription {
	return []lifecycle.Subscription{
		{Kind: lifecycle.QueueMessageFailed, Priority: lifecycle.PriorityLoggerReset, Name: "messenger_resetter.message_failed", Handler: l.handleFailed},
		{Kind: lifecycle.QueueMessageHandled, Priority: lifecycle.PriorityQueueHandled, Name: "messenger_resetter.message_handled", Handler: l.handleHandled},
	}
}

// OnMessageFailed logs the failure and resets the logger.
func (l *LoggerResetListener) OnMessageFailed(_ context.Context, event *lifecycle.QueueMessageFailedEvent) {
	class := metadata.MessageClass(event.Message)
	errMsg := errorMessage(event.Err)

	fields := logging.LogFields{
		"error":     errMsg,
		"class":     class,
		"exception": event.Err,
	}
	if event.Message != nil {
		fields["message"] = event.Message.UUID
	}

	l.logger.Error(fmt.Sprintf("Error thrown while handling message %s. Error: \"%s\"", class, errMsg), event.Err, fields)
	l.logger.Reset()
}

// OnMessageHandled resets the logger.
func (l *LoggerResetListener) OnMessageHandled(context.Context, *lifecycle.QueueMessageHandledEvent) {
	l.logger.Reset()
}

func (l *LoggerResetListener) handleFailed(ctx context.Context, e lifecycle.Event) error {
	l.OnMessageFailed(ctx, e.(*lifecycle.QueueMessageFailedEvent))
	return nil
}

func (l *LoggerResetListener) handleHandled(ctx context.Context, e lifecycle.Event) error {
	l.OnMessageHandled(ctx, e.(*lifecycle.QueueMessageHandledEvent))
	return nil
}
