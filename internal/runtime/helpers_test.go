package runtime

import (
	"bytes"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	configpkg "github.com/drblury/sentryflow/internal/runtime/config"
	loggingpkg "github.com/drblury/sentryflow/internal/runtime/logging"
)

func newTestConfig() *configpkg.Config {
	return &configpkg.Config{
		DSN:         "https://public@sentry.example.com/1",
		Environment: "test",
		ProjectDir:  "/srv/app",
		CacheDir:    "/srv/app/var/cache",
		SourceDir:   "/srv/app/internal",
		VendorDir:   "/srv/app/vendor",
		AppVersion:  "1.4.0",
	}
}

func newTestLogger() (loggingpkg.ServiceLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level:       loggingpkg.LevelTrace,
		ReplaceAttr: loggingpkg.ReplaceLevelNames,
	})
	return loggingpkg.NewSlogServiceLogger(slog.New(handler)), &buf
}

type testPublisher struct {
	mu        sync.Mutex
	published []string
	closed    int
	err       error
}

func (p *testPublisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	for range messages {
		p.published = append(p.published, topic)
	}
	return nil
}

func (p *testPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

func (p *testPublisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	clone := make([]string, len(p.published))
	copy(clone, p.published)
	return clone
}
