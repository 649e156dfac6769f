package lifecycle

import "github.com/ThreeDotsLabs/watermill/message"

// Kind identifies a lifecycle event.
type Kind int

const (
	CommandStart Kind = iota + 1
	CommandError
	CommandTerminate
	ControllerResolved
	ResponseTerminate
	AuthenticatedRequest
	QueueMessageHandled
	QueueMessageFailed
)

var kindNames = map[Kind]string{
	CommandStart:         "command_start",
	CommandError:         "command_error",
	CommandTerminate:     "command_terminate",
	ControllerResolved:   "controller_resolved",
	ResponseTerminate:    "response_terminate",
	AuthenticatedRequest: "authenticated_request",
	QueueMessageHandled:  "queue_message_handled",
	QueueMessageFailed:   "queue_message_failed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is implemented by every lifecycle event payload. Events are passed by
// pointer so listeners can amend them (see CommandTerminateEvent.SetExitCode).
type Event interface {
	Kind() Kind
}

// RequestType distinguishes the outer request from internally forwarded ones.
type RequestType int

const (
	MainRequest RequestType = iota
	SubRequest
)

func (t RequestType) String() string {
	if t == SubRequest {
		return "sub"
	}
	return "main"
}

// Command describes the console command a console event belongs to.
type Command struct {
	// Name is the command's own name, e.g. "migrate".
	Name string
	// Path is the full invocation path, e.g. "app db migrate".
	Path string
}

// CommandStartEvent is dispatched before a command runs. Command is nil when
// the invoked command could not be resolved.
type CommandStartEvent struct {
	Command *Command
}

func (*CommandStartEvent) Kind() Kind { return CommandStart }

// CommandErrorEvent is dispatched when a command fails.
type CommandErrorEvent struct {
	Command   *Command
	Err       error
	ExitCode  int
	Arguments []string
	Options   map[string]string
	// File and Line locate where Err originated, when known.
	File string
	Line int
}

func (*CommandErrorEvent) Kind() Kind { return CommandError }

// CommandTerminateEvent is dispatched after a command has finished.
type CommandTerminateEvent struct {
	Command  *Command
	ExitCode int
}

func (*CommandTerminateEvent) Kind() Kind { return CommandTerminate }

// SetExitCode overrides the exit code the process will report.
func (e *CommandTerminateEvent) SetExitCode(code int) { e.ExitCode = code }

// ControllerResolvedEvent is dispatched once the router has matched a handler.
// Route is empty when the request was not matched by a named route.
type ControllerResolvedEvent struct {
	RequestType RequestType
	Route       string
}

func (*ControllerResolvedEvent) Kind() Kind { return ControllerResolved }

// ResponseTerminateEvent is dispatched after the response has been written.
type ResponseTerminateEvent struct {
	RequestType RequestType
	StatusCode  int
}

func (*ResponseTerminateEvent) Kind() Kind { return ResponseTerminate }

// AuthenticatedRequestEvent is dispatched once per request after authentication
// ran. The principal, if any, is looked up from the dispatch context.
type AuthenticatedRequestEvent struct {
	RequestType RequestType
	ClientIP    string
}

func (*AuthenticatedRequestEvent) Kind() Kind { return AuthenticatedRequest }

// QueueMessageHandledEvent is dispatched after a handler processed a message.
type QueueMessageHandledEvent struct {
	Message *message.Message
	Handler string
	Topic   string
}

func (*QueueMessageHandledEvent) Kind() Kind { return QueueMessageHandled }

// QueueMessageFailedEvent is dispatched when a handler returned an error.
type QueueMessageFailedEvent struct {
	Message *message.Message
	Err     error
	Handler string
	Topic   string
}

func (*QueueMessageFailedEvent) Kind() Kind { return QueueMessageFailed }
