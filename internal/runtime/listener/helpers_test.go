package listener

import (
	"sync"
	"testing"

	"github.com/getsentry/sentry-go"

	"github.com/drblury/sentryflow/internal/runtime/logging"
)

// testHub is a real hub whose client keeps captured events in memory.
type testHub struct {
	*sentry.Hub
	mu     sync.Mutex
	events []*sentry.Event
}

func newTestHub(t *testing.T) *testHub {
	t.Helper()
	th := &testHub{}
	client, err := sentry.NewClient(sentry.ClientOptions{
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			th.mu.Lock()
			th.events = append(th.events, event)
			th.mu.Unlock()
			return nil
		},
	})
	if err != nil {
		t.Fatalf("create sentry client: %v", err)
	}
	th.Hub = sentry.NewHub(client, sentry.NewScope())
	return th
}

// snapshot captures a message and returns the resulting event, which carries the
// current scope state.
func (h *testHub) snapshot(t *testing.T) *sentry.Event {
	t.Helper()
	h.CaptureMessage("snapshot")
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.events) == 0 {
		t.Fatal("expected an event to be captured")
	}
	return h.events[len(h.events)-1]
}

// countingHub records how often the scope was configured.
type countingHub struct {
	calls int
}

func (c *countingHub) ConfigureScope(f func(scope *sentry.Scope)) {
	c.calls++
	f(sentry.NewScope())
}

type logRecord struct {
	level  string
	msg    string
	err    error
	fields logging.LogFields
}

type recordingLogger struct {
	mu      sync.Mutex
	records []logRecord
	resets  int
}

func (r *recordingLogger) add(level, msg string, err error, fields logging.LogFields) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, logRecord{level: level, msg: msg, err: err, fields: fields})
}

func (r *recordingLogger) With(logging.LogFields) logging.ServiceLogger { return r }
func (r *recordingLogger) Trace(msg string, fields logging.LogFields) {
	r.add("trace", msg, nil, fields)
}
func (r *recordingLogger) Debug(msg string, fields logging.LogFields) {
	r.add("debug", msg, nil, fields)
}
func (r *recordingLogger) Info(msg string, fields logging.LogFields) { r.add("info", msg, nil, fields) }
func (r *recordingLogger) Warn(msg string, fields logging.LogFields) { r.add("warn", msg, nil, fields) }
func (r *recordingLogger) Error(msg string, err error, fields logging.LogFields) {
	r.add("error", msg, err, fields)
}
func (r *recordingLogger) Critical(msg string, err error, fields logging.LogFields) {
	r.add("critical", msg, err, fields)
}

func (r *recordingLogger) byLevel(level string) []logRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []logRecord
	for _, rec := range r.records {
		if rec.level == level {
			out = append(out, rec)
		}
	}
	return out
}

// resettableRecordingLogger additionally implements logging.Resetter.
type resettableRecordingLogger struct {
	recordingLogger
}

func (r *resettableRecordingLogger) Reset() {
	r.mu.Lock()
	r.resets++
	r.mu.Unlock()
}
