package listener

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/getsentry/sentry-go"

	"github.com/drblury/sentryflow/internal/runtime/lifecycle"
)

// UserListener records the client IP and the authenticated principal as the
// Sentry user of a main request.
type UserListener struct {
	hub        Hub
	principals lifecycle.PrincipalLookup
}

// NewUserListener creates the listener. A nil lookup reads the principal from
// the request context.
func NewUserListener(hub Hub, principals lifecycle.PrincipalLookup) *UserListener {
	if principals == nil {
		principals = lifecycle.ContextPrincipalLookup
	}
	return &UserListener{hub: hub, principals: principals}
}

func (l *UserListener) Subscriptions() []lifecycle.Subscription {
	return []lifecycle.Subscription{
		{Kind: lifecycle.AuthenticatedRequest, Priority: lifecycle.PriorityAuthenticatedRequest, Name: "user_listener.authenticated_request", Handler: l.handleAuthenticatedRequest},
	}
}

// OnAuthenticatedRequest sets the scope user. Sub-requests are ignored.
func (l *UserListener) OnAuthenticatedRequest(ctx context.Context, event *lifecycle.AuthenticatedRequestEvent) {
	if event.RequestType != lifecycle.MainRequest {
		return
	}

	user := sentry.User{IPAddress: event.ClientIP}
	var roles []string

	if principal := l.principals.Principal(ctx); principal != nil {
		roles = principal.Roles()
		user.Username = principal.Username()
		// sentry.User has no list fields, roles travel as a joined string
		user.Data = map[string]string{
			"type":  shortTypeName(principal),
			"roles": strings.Join(roles, ","),
		}
	}

	hubFor(ctx, l.hub).ConfigureScope(func(scope *sentry.Scope) {
		scope.SetUser(user)
		if roles != nil {
			scope.SetContext("user_roles", sentry.Context{"roles": roles})
		}
	})
}

func (l *UserListener) handleAuthenticatedRequest(ctx context.Context, e lifecycle.Event) error {
	l.OnAuthenticatedRequest(ctx, e.(*lifecycle.AuthenticatedRequestEvent))
	return nil
}

func shortTypeName(v any) string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if name := t.Name(); name != "" {
		return name
	}
	return fmt.Sprintf("%T", v)
}
