package lifecycle

import "context"

// Principal is the authenticated identity of a request.
type Principal interface {
	Username() string
	Roles() []string
}

// PrincipalLookup resolves the principal of the unit of work behind ctx.
// It returns nil for anonymous requests.
type PrincipalLookup interface {
	Principal(ctx context.Context) Principal
}

// PrincipalLookupFunc adapts a function to PrincipalLookup.
type PrincipalLookupFunc func(ctx context.Context) Principal

func (f PrincipalLookupFunc) Principal(ctx context.Context) Principal { return f(ctx) }

type principalKey struct{}

// WithPrincipal stores p on ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored by WithPrincipal.
func PrincipalFromContext(ctx context.Context) Principal {
	if ctx == nil {
		return nil
	}
	p, _ := ctx.Value(principalKey{}).(Principal)
	return p
}

// ContextPrincipalLookup reads the principal from the request context.
var ContextPrincipalLookup PrincipalLookup = PrincipalLookupFunc(PrincipalFromContext)
