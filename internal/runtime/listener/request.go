package listener

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/drblury/sentryflow/internal/runtime/lifecycle"
	"github.com/drblury/sentryflow/internal/runtime/logging"
)

// RequestListener tags the scope with the matched route and response status.
type RequestListener struct {
	hub    Hub
	logger logging.ServiceLogger
}

func NewRequestListener(hub Hub, logger logging.ServiceLogger) *RequestListener {
	return &RequestListener{hub: hub, logger: logger}
}

func (l *RequestListener) Subscriptions() []lifecycle.Subscription {
	return []lifecycle.Subscription{
		{Kind: lifecycle.ControllerResolved, Priority: lifecycle.PriorityControllerResolved, Name: "request_listener.controller_resolved", Handler: l.handleControllerResolved},
		{Kind: lifecycle.ResponseTerminate, Priority: lifecycle.PriorityResponseTerminate, Name: "request_listener.response_terminate", Handler: l.handleResponseTerminate},
	}
}

// OnControllerResolved sets the route tag for main requests matched by a
// named route.
func (l *RequestListener) OnControllerResolved(ctx context.Context, event *lifecycle.ControllerResolvedEvent) {
	if event.RequestType != lifecycle.MainRequest || event.Route == "" {
		return
	}
	setTag(ctx, l.hub, "route", event.Route)
}

// OnResponseTerminate sets the status_code tag. 5xx responses carry no
// private data, so they are logged for debugging.
func (l *RequestListener) OnResponseTerminate(ctx context.Context, event *lifecycle.ResponseTerminateEvent) {
	setTag(ctx, l.hub, "status_code", strconv.Itoa(event.StatusCode))

	if event.StatusCode >= http.StatusInternalServerError {
		l.logger.Error(fmt.Sprintf("%d returned", event.StatusCode), nil, nil)
	}
}

func (l *RequestListener) handleControllerResolved(ctx context.Context, e lifecycle.Event) error {
	l.OnControllerResolved(ctx, e.(*lifecycle.ControllerResolvedEvent))
	return nil
}

func (l *RequestListener) handleResponseTerminate(ctx context.Context, e lifecycle.Event) error {
	l.OnResponseTerminate(ctx, e.(*lifecycle.ResponseTerminateEvent))
	return nil
}
