package runtime

import (
	"net/http"
	"path/filepath"
	goruntime "runtime"
	"runtime/debug"
	"strings"

	"github.com/getsentry/sentry-go"

	configpkg "github.com/drblury/sentryflow/internal/runtime/config"
	errspkg "github.com/drblury/sentryflow/internal/runtime/errors"
)

// FrameworkName is reported in the framework tag of every event.
const FrameworkName = "sentryflow"

const modulePath = "github.com/drblury/sentryflow"

// HubOptions tunes hub construction. The zero value is what production uses.
type HubOptions struct {
	// Transport replaces the HTTP transport, mostly for tests.
	Transport sentry.Transport
	// BeforeSend runs after the in-app processor.
	BeforeSend func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event
	// HTTPClient replaces the client built from SendTimeout.
	HTTPClient *http.Client
	Debug      bool
	// KeepGlobalHub leaves sentry.CurrentHub untouched.
	KeepGlobalHub bool
}

// keptIntegrations are the SDK defaults that still make sense when the
// request data is added by the HTTP kernel integration.
var keptIntegrations = map[string]bool{
	"Environment":  true,
	"IgnoreErrors": true,
}

// NewHub builds the Sentry hub from the configuration. An empty DSN yields a
// working hub that never delivers events. Unless KeepGlobalHub is set the
// client is also bound to sentry.CurrentHub, which sentryhttp and other SDK
// helpers fall back to.
func NewHub(conf *configpkg.Config, opts HubOptions) (*sentry.Hub, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	c := conf.WithDefaults()

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: c.SendTimeout}
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         c.DSN,
		Environment: c.Environment,
		Release:     c.AppVersion,
		Debug:       opts.Debug,
		HTTPClient:  httpClient,
		Transport:   opts.Transport,
		BeforeSend:  opts.BeforeSend,
		Integrations: func(defaults []sentry.Integration) []sentry.Integration {
			kept := make([]sentry.Integration, 0, len(defaults))
			for _, integration := range defaults {
				if keptIntegrations[integration.Name()] {
					kept = append(kept, integration)
				}
			}
			return kept
		},
	})
	if err != nil {
		return nil, errspkg.NewConfigValidationError(err)
	}
	client.AddEventProcessor(newInAppProcessor(c))

	scope := sentry.NewScope()
	scope.SetTags(hubTags(c))
	hub := sentry.NewHub(client, scope)

	if !opts.KeepGlobalHub {
		sentry.CurrentHub().BindClient(client)
		sentry.CurrentHub().ConfigureScope(func(s *sentry.Scope) {
			s.SetTags(hubTags(c))
		})
	}
	return hub, nil
}

func hubTags(c configpkg.Config) map[string]string {
	return map[string]string{
		"os_name":               goruntime.GOOS,
		"runtime_mode":          c.RuntimeMode,
		"go_version":            goruntime.Version(),
		"framework":             FrameworkName,
		"framework_version":     frameworkVersion(),
		"framework_environment": c.FrameworkEnvironment,
		"app_version":           c.AppVersion,
	}
}

// frameworkVersion reads the version this module was built at from the
// build info of the running binary.
func frameworkVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	if info.Main.Path == modulePath {
		return versionOrDevel(info.Main.Version)
	}
	for _, dep := range info.Deps {
		if dep.Path == modulePath {
			return versionOrDevel(dep.Version)
		}
	}
	return "(devel)"
}

func versionOrDevel(v string) string {
	if v == "" {
		return "(devel)"
	}
	return v
}

type inAppRules struct {
	include []string
	exclude []string
	prefix  string
}

// newInAppProcessor marks frames under the project or source directory as
// in-app unless they live in the cache or vendor directory, and makes their
// filenames relative to the project directory.
func newInAppProcessor(c configpkg.Config) sentry.EventProcessor {
	rules := inAppRules{
		include: cleanDirs(c.ProjectDir, c.SourceDir),
		exclude: cleanDirs(c.CacheDir, c.VendorDir),
		prefix:  cleanDir(c.ProjectDir),
	}
	return func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
		for i := range event.Exception {
			rules.apply(event.Exception[i].Stacktrace)
		}
		for i := range event.Threads {
			rules.apply(event.Threads[i].Stacktrace)
		}
		return event
	}
}

func (r inAppRules) apply(st *sentry.Stacktrace) {
	if st == nil {
		return
	}
	for i := range st.Frames {
		frame := &st.Frames[i]
		path := frame.AbsPath
		if path == "" {
			path = frame.Filename
		}
		if path == "" {
			continue
		}
		frame.InApp = hasAnyPrefix(path, r.include) && !hasAnyPrefix(path, r.exclude)
		if r.prefix != "" && isUnder(path, r.prefix) {
			frame.Filename = strings.TrimPrefix(strings.TrimPrefix(path, r.prefix), string(filepath.Separator))
		}
	}
}

func cleanDirs(dirs ...string) []string {
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if cleaned := cleanDir(d); cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}

func cleanDir(dir string) string {
	if dir == "" {
		return ""
	}
	return filepath.Clean(dir)
}

func hasAnyPrefix(path string, dirs []string) bool {
	for _, dir := range dirs {
		if isUnder(path, dir) {
			return true
		}
	}
	return false
}

func isUnder(path, dir string) bool {
	return path == dir || strings.HasPrefix(path, dir+string(filepath.Separator))
}
