// Package console reports cobra command runs to the lifecycle dispatcher.
//
// Importing the package makes the console-events-available capability
// present, which the console_listener feature requires.
package console

import (
	"context"
	"errors"
	"reflect"
	goruntime "runtime"
	"strconv"
	"strings"

	"github.com/getsentry/sentry-go"
	pkgerrors "github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/drblury/sentryflow/capability"
	errspkg "github.com/drblury/sentryflow/internal/runtime/errors"
	"github.com/drblury/sentryflow/internal/runtime/lifecycle"
)

const importPath = "github.com/drblury/sentryflow/integration/console"

var errRootRequired = errors.New("console: root command is required")

func init() {
	capability.Provide(capability.Console, importPath)
}

// ExitCoder is implemented by errors that carry a process exit code.
type ExitCoder interface {
	ExitCode() int
}

type exitError struct {
	code int
	err  error
}

// Exit returns an error that makes Run report code as the exit code.
// err may be nil when the command only wants a non-zero status.
func Exit(code int, err error) error {
	return &exitError{code: code, err: err}
}

func (e *exitError) Error() string {
	if e.err == nil {
		return "exit status " + strconv.Itoa(e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func (e *exitError) ExitCode() int { return e.code }

// Runner executes a cobra command tree and dispatches CommandStart,
// CommandError and CommandTerminate around it.
type Runner struct {
	root       *cobra.Command
	dispatcher *lifecycle.Dispatcher
	hub        *sentry.Hub

	state *runState
}

type runState struct {
	cmd      *cobra.Command
	command  *lifecycle.Command
	args     []string
	function uintptr
}

// Option configures a Runner.
type Option func(*Runner)

// WithHub gives every run its own clone of hub, stored on the command context.
func WithHub(hub *sentry.Hub) Option {
	return func(r *Runner) { r.hub = hub }
}

// New instruments every runnable command currently attached to root.
// Commands added afterwards are not reported.
func New(root *cobra.Command, dispatcher *lifecycle.Dispatcher, opts ...Option) (*Runner, error) {
	if root == nil {
		return nil, errRootRequired
	}
	if dispatcher == nil {
		return nil, errspkg.ErrDispatcherRequired
	}
	r := &Runner{root: root, dispatcher: dispatcher}
	for _, opt := range opts {
		opt(r)
	}
	r.instrument(root)
	return r, nil
}

func (r *Runner) instrument(cmd *cobra.Command) {
	if cmd.Runnable() {
		r.wrap(cmd)
	}
	for _, child := range cmd.Commands() {
		r.instrument(child)
	}
}

func (r *Runner) wrap(cmd *cobra.Command) {
	body, function := commandBody(cmd)
	cmd.Run = nil
	cmd.RunE = func(c *cobra.Command, args []string) error {
		command := &lifecycle.Command{Name: r.commandName(c), Path: c.CommandPath()}
		if r.state != nil {
			r.state.cmd, r.state.command, r.state.args, r.state.function = c, command, args, function
		}
		if err := r.dispatcher.Dispatch(c.Context(), &lifecycle.CommandStartEvent{Command: command}); err != nil {
			return err
		}
		return body(c, args)
	}
}

func commandBody(cmd *cobra.Command) (func(*cobra.Command, []string) error, uintptr) {
	if cmd.RunE != nil {
		return cmd.RunE, reflect.ValueOf(cmd.RunE).Pointer()
	}
	run := cmd.Run
	return func(c *cobra.Command, args []string) error {
		run(c, args)
		return nil
	}, reflect.ValueOf(run).Pointer()
}

func (r *Runner) commandName(c *cobra.Command) string {
	if c == r.root {
		return c.Name()
	}
	return strings.TrimPrefix(c.CommandPath(), r.root.Name()+" ")
}

// Run executes the command tree with args and returns the exit code the
// process should terminate with, after CommandTerminate listeners had the
// chance to adjust it. The returned error is the command failure, if any,
// joined with listener failures.
func (r *Runner) Run(ctx context.Context, args []string) (int, error) {
	if r.hub != nil {
		ctx = sentry.SetHubOnContext(ctx, r.hub.Clone())
	}
	r.state = &runState{}
	defer func() { r.state = nil }()

	r.root.SetArgs(args)
	_, runErr := r.root.ExecuteContextC(ctx)
	state := r.state

	exitCode := 0
	var errs []error
	if runErr != nil {
		exitCode = ExitCodeOf(runErr)
		errs = append(errs, runErr)

		event := &lifecycle.CommandErrorEvent{
			Command:  state.command,
			Err:      runErr,
			ExitCode: exitCode,
		}
		// options and the error location are only worth collecting for a listener
		if r.dispatcher.HasListeners(lifecycle.CommandError) {
			if state.cmd != nil {
				event.Arguments = state.args
				event.Options = commandOptions(state.cmd)
			}
			event.File, event.Line = errorLocation(runErr, state.function)
		}

		if err := r.dispatcher.Dispatch(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}

	terminate := &lifecycle.CommandTerminateEvent{Command: state.command, ExitCode: exitCode}
	if err := r.dispatcher.Dispatch(ctx, terminate); err != nil {
		errs = append(errs, err)
	}
	return terminate.ExitCode, errors.Join(errs...)
}

// ExitCodeOf returns the exit code carried by err, 1 for other errors and 0
// for nil.
func ExitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var coder ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return 1
}

// commandOptions returns every flag of cmd with its resolved value, defaults
// included.
func commandOptions(cmd *cobra.Command) map[string]string {
	options := make(map[string]string)
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		options[f.Name] = f.Value.String()
	})
	return options
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// errorLocation prefers the innermost pkg/errors stack, then the function
// implementing the command.
func errorLocation(err error, function uintptr) (string, int) {
	var frame pkgerrors.Frame
	found := false
	for e := err; e != nil; e = unwrapOnce(e) {
		if st, ok := e.(stackTracer); ok && len(st.StackTrace()) > 0 {
			frame, found = st.StackTrace()[0], true
		}
	}
	if found {
		pc := uintptr(frame) - 1
		if fn := goruntime.FuncForPC(pc); fn != nil {
			return fn.FileLine(pc)
		}
	}
	if function != 0 {
		if fn := goruntime.FuncForPC(function); fn != nil {
			return fn.FileLine(fn.Entry())
		}
	}
	return "", 0
}

func unwrapOnce(err error) error {
	if u := errors.Unwrap(err); u != nil {
		return u
	}
	if c, ok := err.(interface{ Cause() error }); ok {
		return c.Cause()
	}
	return nil
}
