package httpkernel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/sentryflow/capability"
	errspkg "github.com/drblury/sentryflow/internal/runtime/errors"
	"github.com/drblury/sentryflow/internal/runtime/lifecycle"
	"github.com/drblury/sentryflow/internal/runtime/listener"
	"github.com/drblury/sentryflow/internal/runtime/logging"
)

type recorder struct {
	mu     sync.Mutex
	events []lifecycle.Event
}

func (r *recorder) handler(_ context.Context, e lifecycle.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func newDispatcher(rec *recorder) *lifecycle.Dispatcher {
	d := lifecycle.NewDispatcher()
	for _, kind := range []lifecycle.Kind{lifecycle.AuthenticatedRequest, lifecycle.ControllerResolved, lifecycle.ResponseTerminate} {
		d.Register(kind, 0, "recorder", rec.handler)
	}
	return d
}

type nopLogger struct{}

func (nopLogger) With(logging.LogFields) logging.ServiceLogger { return nopLogger{} }
func (nopLogger) Trace(string, logging.LogFields)              {}
func (nopLogger) Debug(string, logging.LogFields)              {}
func (nopLogger) Info(string, logging.LogFields)               {}
func (nopLogger) Warn(string, logging.LogFields)               {}
func (nopLogger) Error(string, error, logging.LogFields)       {}
func (nopLogger) Critical(string, error, logging.LogFields)    {}

type staticPrincipal string

func (p staticPrincipal) Username() string { return string(p) }
func (staticPrincipal) Roles() []string    { return nil }

func TestProvidesCapability(t *testing.T) {
	assert.True(t, capability.Has(capability.HTTPKernel))
}

func newKernel(t *testing.T, d *lifecycle.Dispatcher, hub *sentry.Hub, opts ...Option) *Kernel {
	t.Helper()
	kernel, err := New(d, hub, opts...)
	require.NoError(t, err)
	return kernel
}

func TestNewRequiresDispatcher(t *testing.T) {
	_, err := New(nil, nil)
	assert.ErrorIs(t, err, errspkg.ErrDispatcherRequired)
}

func TestWrapDispatchesRequestLifecycle(t *testing.T) {
	rec := &recorder{}
	kernel := newKernel(t, newDispatcher(rec), nil)

	router := mux.NewRouter()
	router.Use(kernel.Middleware)
	router.HandleFunc("/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}).Name("orders_show")

	req := httptest.NewRequest(http.MethodGet, "/orders/42", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	kernel.Wrap(router).ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, rec.events, 3)
	auth := rec.events[0].(*lifecycle.AuthenticatedRequestEvent)
	assert.Equal(t, lifecycle.MainRequest, auth.RequestType)
	assert.Equal(t, "203.0.113.7", auth.ClientIP)

	resolved := rec.events[1].(*lifecycle.ControllerResolvedEvent)
	assert.Equal(t, "orders_show", resolved.Route)

	terminate := rec.events[2].(*lifecycle.ResponseTerminateEvent)
	assert.Equal(t, http.StatusServiceUnavailable, terminate.StatusCode)
}

func TestWrapDispatchesForUnmatchedRoutes(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"not found", http.MethodGet, "/missing", http.StatusNotFound},
		{"method not allowed", http.MethodPost, "/orders", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			kernel := newKernel(t, newDispatcher(rec), nil)

			router := mux.NewRouter()
			router.Use(kernel.Middleware)
			router.HandleFunc("/orders", func(http.ResponseWriter, *http.Request) {}).
				Methods(http.MethodGet).Name("orders")

			rr := httptest.NewRecorder()
			kernel.Wrap(router).ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, rr.Code)

			require.Len(t, rec.events, 2)
			assert.IsType(t, &lifecycle.AuthenticatedRequestEvent{}, rec.events[0])
			terminate := rec.events[1].(*lifecycle.ResponseTerminateEvent)
			assert.Equal(t, tt.status, terminate.StatusCode)
		})
	}
}

func TestWrapDefaultsToStatusOK(t *testing.T) {
	rec := &recorder{}
	kernel := newKernel(t, newDispatcher(rec), nil)
	handler := kernel.Wrap(kernel.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Len(t, rec.events, 3)
	assert.Empty(t, rec.events[1].(*lifecycle.ControllerResolvedEvent).Route)
	assert.Equal(t, http.StatusOK, rec.events[2].(*lifecycle.ResponseTerminateEvent).StatusCode)
}

func TestWrapSubRequest(t *testing.T) {
	rec := &recorder{}
	kernel := newKernel(t, newDispatcher(rec), nil)
	handler := kernel.Wrap(kernel.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})))

	handler.ServeHTTP(httptest.NewRecorder(), WithSubRequest(httptest.NewRequest(http.MethodGet, "/fragment", nil)))
	require.Len(t, rec.events, 3)
	assert.Equal(t, lifecycle.SubRequest, rec.events[0].(*lifecycle.AuthenticatedRequestEvent).RequestType)
	assert.Equal(t, lifecycle.SubRequest, rec.events[1].(*lifecycle.ControllerResolvedEvent).RequestType)
}

func TestWrapRunsAuthenticationBeforeDispatch(t *testing.T) {
	var seen lifecycle.Principal
	d := lifecycle.NewDispatcher()
	d.Register(lifecycle.AuthenticatedRequest, 0, "principal", func(ctx context.Context, _ lifecycle.Event) error {
		seen = lifecycle.PrincipalFromContext(ctx)
		return nil
	})

	authenticate := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(lifecycle.WithPrincipal(r.Context(), staticPrincipal("alice"))))
		})
	}
	kernel := newKernel(t, d, nil, WithAuthentication(authenticate))

	router := mux.NewRouter()
	kernel.Wrap(router).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	require.NotNil(t, seen)
	assert.Equal(t, "alice", seen.Username())
}

func TestWrapPanicReportsServerError(t *testing.T) {
	rec := &recorder{}
	kernel := newKernel(t, newDispatcher(rec), nil)
	handler := kernel.Wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	assert.PanicsWithValue(t, "boom", func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
	require.Len(t, rec.events, 2)
	assert.Equal(t, http.StatusInternalServerError, rec.events[1].(*lifecycle.ResponseTerminateEvent).StatusCode)
}

func TestMiddlewareListenerErrorAnswers500(t *testing.T) {
	d := lifecycle.NewDispatcher()
	d.Register(lifecycle.ControllerResolved, 0, "broken", func(context.Context, lifecycle.Event) error {
		return errors.New("listener down")
	})

	var handled error
	kernel := newKernel(t, d, nil, WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error, written bool) {
		handled = err
		assert.False(t, written)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	called := false
	handler := kernel.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.ErrorContains(t, handled, "listener down")
	assert.False(t, called)
}

func TestWrapAuthenticatedRequestErrorStillTerminates(t *testing.T) {
	rec := &recorder{}
	d := newDispatcher(rec)
	d.Register(lifecycle.AuthenticatedRequest, 10, "broken", func(context.Context, lifecycle.Event) error {
		return errors.New("user lookup down")
	})

	kernel := newKernel(t, d, nil)
	called := false
	rr := httptest.NewRecorder()
	kernel.Wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })).
		ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Len(t, rec.events, 2)
	assert.Equal(t, http.StatusInternalServerError, rec.events[1].(*lifecycle.ResponseTerminateEvent).StatusCode)
}

func TestWrapTagsPerRequestHub(t *testing.T) {
	var (
		mu     sync.Mutex
		events []*sentry.Event
	)
	client, err := sentry.NewClient(sentry.ClientOptions{
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			mu.Lock()
			events = append(events, event)
			mu.Unlock()
			return nil
		},
	})
	require.NoError(t, err)
	hub := sentry.NewHub(client, sentry.NewScope())

	d := lifecycle.NewDispatcher()
	d.Subscribe(listener.NewRequestListener(hub, nopLogger{}))
	kernel := newKernel(t, d, hub)

	router := mux.NewRouter()
	router.Use(kernel.Middleware)
	router.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		sentry.GetHubFromContext(r.Context()).CaptureMessage("inside")
	}).Name("orders_list")

	kernel.Wrap(router).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders", nil))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	assert.Equal(t, "orders_list", events[0].Tags["route"])

	// the shared hub is left untouched
	hub.CaptureMessage("outside")
	_, tagged := events[len(events)-1].Tags["route"]
	assert.False(t, tagged)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.1")

	assert.Equal(t, "10.0.0.1", ClientIP(r, false))
	assert.Equal(t, "198.51.100.1", ClientIP(r, true))

	r.RemoteAddr = "unix-socket"
	r.Header.Del("X-Forwarded-For")
	assert.Equal(t, "unix-socket", ClientIP(r, true))
}
