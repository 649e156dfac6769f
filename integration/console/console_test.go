package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"github.com/getsentry/sentry-go"
	pkgerrors "github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/sentryflow/capability"
	errspkg "github.com/drblury/sentryflow/internal/runtime/errors"
	"github.com/drblury/sentryflow/internal/runtime/lifecycle"
)

type recorder struct {
	events []lifecycle.Event
	hubs   []*sentry.Hub
}

func (r *recorder) handler(ctx context.Context, e lifecycle.Event) error {
	r.events = append(r.events, e)
	r.hubs = append(r.hubs, sentry.GetHubFromContext(ctx))
	return nil
}

func (r *recorder) kinds() []lifecycle.Kind {
	out := make([]lifecycle.Kind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind()
	}
	return out
}

func newDispatcher(r *recorder) *lifecycle.Dispatcher {
	d := lifecycle.NewDispatcher()
	for _, kind := range []lifecycle.Kind{lifecycle.CommandStart, lifecycle.CommandError, lifecycle.CommandTerminate} {
		d.Register(kind, 0, "recorder", r.handler)
	}
	return d
}

func newRoot(sub *cobra.Command) *cobra.Command {
	root := &cobra.Command{Use: "app", SilenceErrors: true, SilenceUsage: true}
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.AddCommand(sub)
	return root
}

func newRunner(t *testing.T, root *cobra.Command, d *lifecycle.Dispatcher, opts ...Option) *Runner {
	t.Helper()
	runner, err := New(root, d, opts...)
	require.NoError(t, err)
	return runner
}

func TestNewValidatesArguments(t *testing.T) {
	_, err := New(newRoot(&cobra.Command{Use: "import"}), nil)
	assert.ErrorIs(t, err, errspkg.ErrDispatcherRequired)

	_, err = New(nil, lifecycle.NewDispatcher())
	assert.Error(t, err)
}

func TestProvidesCapability(t *testing.T) {
	assert.True(t, capability.Has(capability.Console))
}

func TestRunSuccessfulCommand(t *testing.T) {
	rec := &recorder{}
	ran := false
	root := newRoot(&cobra.Command{
		Use: "import",
		Run: func(cmd *cobra.Command, args []string) { ran = true },
	})

	code, err := newRunner(t, root, newDispatcher(rec)).Run(context.Background(), []string{"import"})
	require.NoError(t, err)
	assert.Zero(t, code)
	assert.True(t, ran)

	assert.Equal(t, []lifecycle.Kind{lifecycle.CommandStart, lifecycle.CommandTerminate}, rec.kinds())
	start := rec.events[0].(*lifecycle.CommandStartEvent)
	assert.Equal(t, "import", start.Command.Name)
	assert.Equal(t, "app import", start.Command.Path)
	assert.Zero(t, rec.events[1].(*lifecycle.CommandTerminateEvent).ExitCode)
}

func TestRunFailingCommand(t *testing.T) {
	rec := &recorder{}
	sub := &cobra.Command{
		Use: "sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			return pkgerrors.New("remote unavailable")
		},
	}
	sub.Flags().Bool("force", false, "")
	sub.Flags().String("region", "eu-west-1", "")
	root := newRoot(sub)

	code, err := newRunner(t, root, newDispatcher(rec)).Run(context.Background(), []string{"sync", "--force", "users"})
	require.Error(t, err)
	assert.Equal(t, 1, code)

	assert.Equal(t, []lifecycle.Kind{lifecycle.CommandStart, lifecycle.CommandError, lifecycle.CommandTerminate}, rec.kinds())
	failure := rec.events[1].(*lifecycle.CommandErrorEvent)
	assert.Equal(t, "sync", failure.Command.Name)
	assert.Equal(t, 1, failure.ExitCode)
	assert.Equal(t, []string{"users"}, failure.Arguments)
	// every option is reported with its resolved value, defaults included
	assert.Equal(t, "true", failure.Options["force"])
	assert.Equal(t, "eu-west-1", failure.Options["region"])
	assert.Equal(t, "console_test.go", filepath.Base(failure.File))
	assert.Positive(t, failure.Line)
}

func TestRunExitCodeFromError(t *testing.T) {
	rec := &recorder{}
	root := newRoot(&cobra.Command{
		Use: "check",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("check failed: %w", Exit(3, errors.New("3 problems")))
		},
	})

	code, err := newRunner(t, root, newDispatcher(rec)).Run(context.Background(), []string{"check"})
	require.Error(t, err)
	assert.Equal(t, 3, code)
	assert.Equal(t, 3, rec.events[2].(*lifecycle.CommandTerminateEvent).ExitCode)
	// no pkg/errors stack: the location falls back to the command function
	assert.Equal(t, "console_test.go", filepath.Base(rec.events[1].(*lifecycle.CommandErrorEvent).File))
}

func TestRunReturnsAdjustedExitCode(t *testing.T) {
	rec := &recorder{}
	d := newDispatcher(rec)
	d.Register(lifecycle.CommandTerminate, -1, "clamp", func(_ context.Context, e lifecycle.Event) error {
		e.(*lifecycle.CommandTerminateEvent).SetExitCode(255)
		return nil
	})
	root := newRoot(&cobra.Command{
		Use:  "overflow",
		RunE: func(cmd *cobra.Command, args []string) error { return Exit(300, nil) },
	})

	code, err := newRunner(t, root, d).Run(context.Background(), []string{"overflow"})
	require.Error(t, err)
	assert.Equal(t, "exit status 300", err.Error())
	assert.Equal(t, 255, code)
}

func TestRunUnknownCommand(t *testing.T) {
	rec := &recorder{}
	root := newRoot(&cobra.Command{Use: "import", Run: func(*cobra.Command, []string) {}})

	code, err := newRunner(t, root, newDispatcher(rec)).Run(context.Background(), []string{"missing"})
	require.Error(t, err)
	assert.Equal(t, 1, code)

	assert.Equal(t, []lifecycle.Kind{lifecycle.CommandError, lifecycle.CommandTerminate}, rec.kinds())
	assert.Nil(t, rec.events[0].(*lifecycle.CommandErrorEvent).Command)
}

func TestRunStartListenerErrorStopsCommand(t *testing.T) {
	d := lifecycle.NewDispatcher()
	d.Register(lifecycle.CommandStart, 0, "broken", func(context.Context, lifecycle.Event) error {
		return errors.New("listener down")
	})
	ran := false
	root := newRoot(&cobra.Command{Use: "import", Run: func(*cobra.Command, []string) { ran = true }})

	_, err := newRunner(t, root, d).Run(context.Background(), []string{"import"})
	assert.ErrorContains(t, err, "listener down")
	assert.False(t, ran)
}

func TestRunClonesHubPerRun(t *testing.T) {
	rec := &recorder{}
	hub := sentry.NewHub(nil, sentry.NewScope())
	root := newRoot(&cobra.Command{Use: "import", Run: func(*cobra.Command, []string) {}})
	runner := newRunner(t, root, newDispatcher(rec), WithHub(hub))

	_, err := runner.Run(context.Background(), []string{"import"})
	require.NoError(t, err)
	_, err = runner.Run(context.Background(), []string{"import"})
	require.NoError(t, err)

	require.Len(t, rec.hubs, 4)
	assert.NotNil(t, rec.hubs[0])
	assert.NotSame(t, hub, rec.hubs[0])
	assert.Same(t, rec.hubs[0], rec.hubs[1])
	assert.NotSame(t, rec.hubs[0], rec.hubs[2])
}

func TestExitCodeOf(t *testing.T) {
	assert.Zero(t, ExitCodeOf(nil))
	assert.Equal(t, 1, ExitCodeOf(errors.New("plain")))
	assert.Equal(t, 7, ExitCodeOf(fmt.Errorf("wrapped: %w", Exit(7, nil))))
}
