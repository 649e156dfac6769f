// Package security authenticates requests from JWT bearer tokens and stores
// the resulting principal on the request context.
//
// Importing the package makes the security-core-available capability
// present, which the user_listener feature requires.
package security

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/drblury/sentryflow/capability"
	"github.com/drblury/sentryflow/internal/runtime/lifecycle"
)

const importPath = "github.com/drblury/sentryflow/integration/security"

func init() {
	capability.Provide(capability.Security, importPath)
}

// ErrNoToken is returned by Authenticate when the request carries no bearer token.
var ErrNoToken = errors.New("security: no bearer token")

// User is the principal built from token claims.
type User struct {
	Name      string
	RoleNames []string
}

func (u *User) Username() string { return u.Name }
func (u *User) Roles() []string  { return u.RoleNames }

// Authenticator validates bearer tokens.
type Authenticator struct {
	keyFunc       jwt.Keyfunc
	parser        *jwt.Parser
	usernameClaim string
	rolesClaim    string
}

// Option configures an Authenticator.
type Option func(*authOptions)

type authOptions struct {
	usernameClaim string
	rolesClaim    string
	parserOpts    []jwt.ParserOption
}

// WithUsernameClaim sets the claim holding the username. The subject is
// used when the claim is absent.
func WithUsernameClaim(name string) Option {
	return func(o *authOptions) { o.usernameClaim = name }
}

// WithRolesClaim sets the claim holding the roles, either a list or a
// space separated string.
func WithRolesClaim(name string) Option {
	return func(o *authOptions) { o.rolesClaim = name }
}

// WithParserOptions forwards options to the JWT parser.
func WithParserOptions(opts ...jwt.ParserOption) Option {
	return func(o *authOptions) { o.parserOpts = append(o.parserOpts, opts...) }
}

// NewAuthenticator creates an Authenticator resolving signing keys with keyFunc.
func NewAuthenticator(keyFunc jwt.Keyfunc, opts ...Option) *Authenticator {
	o := authOptions{usernameClaim: "username", rolesClaim: "roles"}
	for _, opt := range opts {
		opt(&o)
	}
	return &Authenticator{
		keyFunc:       keyFunc,
		parser:        jwt.NewParser(o.parserOpts...),
		usernameClaim: o.usernameClaim,
		rolesClaim:    o.rolesClaim,
	}
}

// NewHMACAuthenticator accepts HS256, HS384 and HS512 tokens signed with secret.
func NewHMACAuthenticator(secret []byte, opts ...Option) *Authenticator {
	opts = append([]Option{WithParserOptions(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))}, opts...)
	return NewAuthenticator(func(*jwt.Token) (any, error) { return secret, nil }, opts...)
}

// Authenticate parses the bearer token of r.
func (a *Authenticator) Authenticate(r *http.Request) (*User, error) {
	raw, ok := bearerToken(r)
	if !ok {
		return nil, ErrNoToken
	}

	claims := jwt.MapClaims{}
	if _, err := a.parser.ParseWithClaims(raw, claims, a.keyFunc); err != nil {
		return nil, fmt.Errorf("security: invalid token: %w", err)
	}

	user := &User{RoleNames: stringList(claims[a.rolesClaim])}
	if name, ok := claims[a.usernameClaim].(string); ok && name != "" {
		user.Name = name
	} else if sub, err := claims.GetSubject(); err == nil {
		user.Name = sub
	}
	if user.Name == "" {
		return nil, errors.New("security: token has no username")
	}
	return user, nil
}

// Middleware stores the authenticated user on the request context. Requests
// without a valid token continue anonymously.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, err := a.Authenticate(r); err == nil {
			r = r.WithContext(lifecycle.WithPrincipal(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func stringList(v any) []string {
	switch roles := v.(type) {
	case string:
		return strings.Fields(roles)
	case []string:
		return roles
	case []any:
		out := make([]string, 0, len(roles))
		for _, role := range roles {
			if s, ok := role.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
