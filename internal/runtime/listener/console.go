package listener

import (
	"context"
	"fmt"
	"reflect"
	"strconv"

	"github.com/drblury/sentryflow/internal/runtime/lifecycle"
	"github.com/drblury/sentryflow/internal/runtime/logging"
)

const maxExitCode = 255

// ConsoleListener tags the scope with the running command and logs failures.
type ConsoleListener struct {
	hub    Hub
	logger logging.ServiceLogger
}

func NewConsoleListener(hub Hub, logger logging.ServiceLogger) *ConsoleListener {
	return &ConsoleListener{hub: hub, logger: logger}
}

func (l *ConsoleListener) Subscriptions() []lifecycle.Subscription {
	return []lifecycle.Subscription{
		{Kind: lifecycle.CommandStart, Priority: lifecycle.PriorityConsole, Name: "console_listener.command_start", Handler: l.handleStart},
		{Kind: lifecycle.CommandError, Priority: lifecycle.PriorityConsole, Name: "console_listener.command_error", Handler: l.handleError},
		{Kind: lifecycle.CommandTerminate, Priority: lifecycle.PriorityConsole, Name: "console_listener.command_terminate", Handler: l.handleTerminate},
	}
}

// OnCommandStart sets the command tag.
func (l *ConsoleListener) OnCommandStart(ctx context.Context, event *lifecycle.CommandStartEvent) {
	setTag(ctx, l.hub, "command", commandName(event.Command, "N/A"))
}

// OnCommandError sets the exit_code tag and logs the failure as critical.
func (l *ConsoleListener) OnCommandError(ctx context.Context, event *lifecycle.CommandErrorEvent) {
	setTag(ctx, l.hub, "exit_code", strconv.Itoa(event.ExitCode))

	name := commandName(event.Command, "-")
	file, line := event.File, event.Line
	if file == "" {
		file = "unknown"
	}

	msg := fmt.Sprintf(
		"%s: %s (uncaught exception) at %s line %d while running console command `%s`",
		errorTypeName(event.Err),
		errorMessage(event.Err),
		file,
		line,
		name,
	)

	l.logger.Critical(msg, event.Err, logging.LogFields{
		"exception": event.Err,
		"command":   name,
		"arguments": event.Arguments,
		"options":   event.Options,
	})
}

// OnCommandTerminate clamps exit codes above 255 and warns about non-zero exits.
func (l *ConsoleListener) OnCommandTerminate(_ context.Context, event *lifecycle.CommandTerminateEvent) {
	code := event.ExitCode
	if code == 0 {
		return
	}
	if code > maxExitCode {
		code = maxExitCode
		event.SetExitCode(code)
	}

	l.logger.Warn(fmt.Sprintf("Command `%s` exited with status code %d", commandName(event.Command, "N/A"), code), nil)
}

func (l *ConsoleListener) handleStart(ctx context.Context, e lifecycle.Event) error {
	l.OnCommandStart(ctx, e.(*lifecycle.CommandStartEvent))
	return nil
}

func (l *ConsoleListener) handleError(ctx context.Context, e lifecycle.Event) error {
	l.OnCommandError(ctx, e.(*lifecycle.CommandErrorEvent))
	return nil
}

func (l *ConsoleListener) handleTerminate(ctx context.Context, e lifecycle.Event) error {
	l.OnCommandTerminate(ctx, e.(*lifecycle.CommandTerminateEvent))
	return nil
}

func commandName(cmd *lifecycle.Command, fallback string) string {
	if cmd == nil || cmd.Name == "" {
		return fallback
	}
	return cmd.Name
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// errorTypeName returns the Go type of the first error in the chain that is
// not a plain wrapper added by fmt.Errorf or github.com/pkg/errors.
func errorTypeName(err error) string {
	if err == nil {
		return "<nil>"
	}
	last := err
	for e := err; e != nil; e = unwrap(e) {
		last = e
		if !isWrapperType(e) {
			return fmt.Sprintf("%T", e)
		}
	}
	return fmt.Sprintf("%T", last)
}

func unwrap(err error) error {
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		return u.Unwrap()
	case interface{ Cause() error }:
		return u.Cause()
	}
	return nil
}

func isWrapperType(err error) bool {
	t := reflect.TypeOf(err)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.PkgPath() {
	case "fmt":
		return true
	case "github.com/pkg/errors":
		return t.Name() != "fundamental"
	}
	return false
}
