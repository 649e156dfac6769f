// Package listener holds the lifecycle listeners that enrich the Sentry scope
// and the logs of console commands, HTTP requests and queue messages.
package listener

import (
	"context"

	"github.com/getsentry/sentry-go"
)

// Hub is the part of *sentry.Hub the listeners rely on.
type Hub interface {
	ConfigureScope(f func(scope *sentry.Scope))
}

// hubFor prefers the hub bound to the unit of work over the process hub.
func hubFor(ctx context.Context, fallback Hub) Hub {
	if ctx != nil {
		if hub := sentry.GetHubFromContext(ctx); hub != nil {
			return hub
		}
	}
	return fallback
}

func setTag(ctx context.Context, fallback Hub, key, value string) {
	hubFor(ctx, fallback).ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag(key, value)
	})
}
