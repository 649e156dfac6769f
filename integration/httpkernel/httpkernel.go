// Package httpkernel reports net/http requests to the lifecycle dispatcher.
//
// Importing the package makes the http-kernel-available capability present,
// which the request_listener feature requires.
package httpkernel

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/gorilla/mux"

	"github.com/drblury/sentryflow/capability"
	errspkg "github.com/drblury/sentryflow/internal/runtime/errors"
	"github.com/drblury/sentryflow/internal/runtime/lifecycle"
)

const importPath = "github.com/drblury/sentryflow/integration/httpkernel"

func init() {
	capability.Provide(capability.HTTPKernel, importPath)
}

// ErrorHandler receives lifecycle listener failures. written reports whether
// the response header has already been sent.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error, written bool)

// Kernel gives every request its own hub and dispatches the request
// lifecycle events.
type Kernel struct {
	dispatcher     *lifecycle.Dispatcher
	hub            *sentry.Hub
	sentry         *sentryhttp.Handler
	authenticate   func(http.Handler) http.Handler
	trustForwarded bool
	onError        ErrorHandler
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithTrustedProxy makes the client IP come from X-Forwarded-For.
func WithTrustedProxy() Option {
	return func(k *Kernel) { k.trustForwarded = true }
}

// WithErrorHandler replaces the default listener failure handling.
func WithErrorHandler(h ErrorHandler) Option {
	return func(k *Kernel) { k.onError = h }
}

// WithAuthentication runs mw before AuthenticatedRequest is dispatched, so
// the principal it stores on the request context is visible to listeners.
func WithAuthentication(mw func(http.Handler) http.Handler) Option {
	return func(k *Kernel) { k.authenticate = mw }
}

// New creates a kernel. hub is cloned for every request; a nil hub falls
// back to sentry.CurrentHub.
func New(dispatcher *lifecycle.Dispatcher, hub *sentry.Hub, opts ...Option) (*Kernel, error) {
	if dispatcher == nil {
		return nil, errspkg.ErrDispatcherRequired
	}
	k := &Kernel{
		dispatcher: dispatcher,
		hub:        hub,
		sentry:     sentryhttp.New(sentryhttp.Options{Repanic: true}),
	}
	k.onError = k.defaultErrorHandler
	for _, opt := range opts {
		opt(k)
	}
	return k, nil
}

// Wrap installs the per-request hub and panic capture and dispatches
// AuthenticatedRequest and ResponseTerminate. It must be the outermost
// handler: requests the router cannot match (404, 405) still pass through it.
func (k *Kernel) Wrap(next http.Handler) http.Handler {
	var handler http.Handler = k.requestLifecycle(next)
	if k.authenticate != nil {
		handler = k.authenticate(handler)
	}
	captured := k.sentry.Handle(handler)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if k.hub != nil && sentry.GetHubFromContext(r.Context()) == nil {
			r = r.WithContext(sentry.SetHubOnContext(r.Context(), k.hub.Clone()))
		}
		captured.ServeHTTP(w, r)
	})
}

func (k *Kernel) requestLifecycle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestType := RequestType(ctx)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			recovered := recover()
			status := rec.status
			if recovered != nil {
				status = http.StatusInternalServerError
			}
			if err := k.dispatcher.Dispatch(ctx, &lifecycle.ResponseTerminateEvent{
				RequestType: requestType,
				StatusCode:  status,
			}); err != nil {
				k.onError(rec, r, err, rec.wroteHeader)
			}
			if recovered != nil {
				panic(recovered)
			}
		}()

		if err := k.dispatcher.Dispatch(ctx, &lifecycle.AuthenticatedRequestEvent{
			RequestType: requestType,
			ClientIP:    ClientIP(r, k.trustForwarded),
		}); err != nil {
			k.onError(rec, r, err, false)
			return
		}

		next.ServeHTTP(rec, r)
	})
}

// Middleware is a gorilla/mux middleware dispatching ControllerResolved with
// the name of the matched route.
func (k *Kernel) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := k.dispatcher.Dispatch(r.Context(), &lifecycle.ControllerResolvedEvent{
			RequestType: RequestType(r.Context()),
			Route:       routeName(r),
		}); err != nil {
			k.onError(w, r, err, false)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// defaultErrorHandler reports the failure on the request hub and answers 500
// when nothing was written yet.
func (k *Kernel) defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error, written bool) {
	hub := sentry.GetHubFromContext(r.Context())
	if hub == nil {
		hub = k.hub
	}
	if hub != nil {
		hub.CaptureException(err)
	}
	if !written {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func routeName(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return ""
	}
	return route.GetName()
}

type subRequestKey struct{}

// WithSubRequest marks r as an internal sub-request. Listeners only act on
// main requests for route and user information.
func WithSubRequest(r *http.Request) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), subRequestKey{}, true))
}

// RequestType reports whether ctx belongs to a main or a sub-request.
func RequestType(ctx context.Context) lifecycle.RequestType {
	if sub, _ := ctx.Value(subRequestKey{}).(bool); sub {
		return lifecycle.SubRequest
	}
	return lifecycle.MainRequest
}

// ClientIP returns the address of the client. With trustForwarded the first
// X-Forwarded-For entry wins.
func ClientIP(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
