package sentryflow

import (
	"github.com/drblury/sentryflow/capability"
	runtimepkg "github.com/drblury/sentryflow/internal/runtime"
	configpkg "github.com/drblury/sentryflow/internal/runtime/config"
	errspkg "github.com/drblury/sentryflow/internal/runtime/errors"
	idspkg "github.com/drblury/sentryflow/internal/runtime/ids"
	jsoncodec "github.com/drblury/sentryflow/internal/runtime/jsoncodec"
	"github.com/drblury/sentryflow/internal/runtime/lifecycle"
	"github.com/drblury/sentryflow/internal/runtime/listener"
	loggingpkg "github.com/drblury/sentryflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/sentryflow/internal/runtime/metadata"
	"github.com/drblury/sentryflow/transport"

	// Every built-in failure transport is selectable by name.
	_ "github.com/drblury/sentryflow/transport/transports"
)

type (
	Config              = configpkg.Config
	Service             = runtimepkg.Service
	ServiceDependencies = runtimepkg.ServiceDependencies
	HubOptions          = runtimepkg.HubOptions
	Feature             = runtimepkg.Feature
	FeatureSet          = runtimepkg.FeatureSet

	CapabilityID       = capability.ID
	CapabilityRegistry = capability.Registry

	Dispatcher       = lifecycle.Dispatcher
	DispatcherOption = lifecycle.DispatcherOption
	Event            = lifecycle.Event
	EventKind        = lifecycle.Kind
	Subscription     = lifecycle.Subscription
	Subscriber       = lifecycle.Subscriber
	HandlerFunc      = lifecycle.HandlerFunc
	RequestType      = lifecycle.RequestType
	Command          = lifecycle.Command
	Principal        = lifecycle.Principal
	PrincipalLookup  = lifecycle.PrincipalLookup

	CommandStartEvent         = lifecycle.CommandStartEvent
	CommandErrorEvent         = lifecycle.CommandErrorEvent
	CommandTerminateEvent     = lifecycle.CommandTerminateEvent
	ControllerResolvedEvent   = lifecycle.ControllerResolvedEvent
	ResponseTerminateEvent    = lifecycle.ResponseTerminateEvent
	AuthenticatedRequestEvent = lifecycle.AuthenticatedRequestEvent
	QueueMessageHandledEvent  = lifecycle.QueueMessageHandledEvent
	QueueMessageFailedEvent   = lifecycle.QueueMessageFailedEvent

	FailureEnvelope = listener.FailureEnvelope

	Metadata = metadatapkg.Metadata

	LogFields                 = loggingpkg.LogFields
	ServiceLogger             = loggingpkg.ServiceLogger
	EntryLogger               = loggingpkg.EntryLogger
	EntryLoggerAdapter[T any] = loggingpkg.EntryLoggerAdapter[T]
	BufferedServiceLogger     = loggingpkg.BufferedServiceLogger
	BufferOptions             = loggingpkg.BufferOptions
	LogLevel                  = loggingpkg.Level

	TransportBuilder  = transport.Builder
	TransportConfig   = transport.Config
	TransportRegistry = transport.Registry

	MissingRequiredSettingError = errspkg.MissingRequiredSettingError
	MissingCapabilityError      = errspkg.MissingCapabilityError
	InvalidCombinationError     = errspkg.InvalidCombinationError
	UnsupportedLoggerError      = errspkg.UnsupportedLoggerError
	ConfigValidationError       = errspkg.ConfigValidationError
)

var (
	NewService     = runtimepkg.NewService
	TryNewService  = runtimepkg.TryNewService
	NewHub         = runtimepkg.NewHub
	Activate       = runtimepkg.Activate
	LoadConfig     = configpkg.Load
	ConfigFromMap  = configpkg.FromMap
	ValidateConfig = configpkg.ValidateConfig

	NewDispatcher        = lifecycle.NewDispatcher
	WithPrincipal        = lifecycle.WithPrincipal
	PrincipalFromContext = lifecycle.PrincipalFromContext
	DefaultCapabilities  = capability.DefaultRegistry

	DefaultTransportRegistry = transport.DefaultRegistry
	RegisterTransport        = transport.Register
	BuildTransport           = transport.Build

	Marshal   = jsoncodec.Marshal
	Unmarshal = jsoncodec.Unmarshal

	ErrConfigRequired     = errspkg.ErrConfigRequired
	ErrLoggerRequired     = errspkg.ErrLoggerRequired
	ErrDispatcherRequired = errspkg.ErrDispatcherRequired
	ErrPublisherRequired  = errspkg.ErrPublisherRequired
	ErrTopicRequired      = errspkg.ErrTopicRequired
	ErrUnsupportedLogger  = errspkg.ErrUnsupportedLogger

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NewWatermillAdapter       = loggingpkg.NewWatermillAdapter
	NewBufferedServiceLogger  = loggingpkg.NewBufferedServiceLogger
	ReplaceLevelNames         = loggingpkg.ReplaceLevelNames

	MessageClass = metadatapkg.MessageClass

	CreateULID = idspkg.CreateULID
	ULIDTime   = idspkg.Time
)

// Lifecycle event kinds.
const (
	CommandStart         = lifecycle.CommandStart
	CommandError         = lifecycle.CommandError
	CommandTerminate     = lifecycle.CommandTerminate
	ControllerResolved   = lifecycle.ControllerResolved
	ResponseTerminate    = lifecycle.ResponseTerminate
	AuthenticatedRequest = lifecycle.AuthenticatedRequest
	QueueMessageHandled  = lifecycle.QueueMessageHandled
	QueueMessageFailed   = lifecycle.QueueMessageFailed

	MainRequest = lifecycle.MainRequest
	SubRequest  = lifecycle.SubRequest
)

// Feature toggles.
const (
	FeatureConsoleListener   = runtimepkg.FeatureConsoleListener
	FeatureRequestListener   = runtimepkg.FeatureRequestListener
	FeatureUserListener      = runtimepkg.FeatureUserListener
	FeatureMessengerResetter = runtimepkg.FeatureMessengerResetter
)

// slog levels for the severities slog does not define.
const (
	SlogLevelTrace    = loggingpkg.LevelTrace
	SlogLevelCritical = loggingpkg.LevelCritical
)

// Log levels for BufferOptions.
const (
	TraceLevel    = loggingpkg.TraceLevel
	DebugLevel    = loggingpkg.DebugLevel
	InfoLevel     = loggingpkg.InfoLevel
	WarnLevel     = loggingpkg.WarnLevel
	ErrorLevel    = loggingpkg.ErrorLevel
	CriticalLevel = loggingpkg.CriticalLevel
)

// Metadata keys written on messages republished to the failure transport.
const (
	MetadataKeyMessageClass   = metadatapkg.KeyMessageClass
	MetadataKeyCorrelationID  = metadatapkg.KeyCorrelationID
	MetadataKeyFailureError   = metadatapkg.KeyFailureError
	MetadataKeyFailureClass   = metadatapkg.KeyFailureClass
	MetadataKeyFailureTopic   = metadatapkg.KeyFailureTopic
	MetadataKeyFailureHandler = metadatapkg.KeyFailureHandler
	MetadataKeyFailedAt       = metadatapkg.KeyFailedAt
	MetadataKeyOriginalUUID   = metadatapkg.KeyOriginalUUID
)

func NewEntryServiceLogger[T EntryLoggerAdapter[T]](entry T) ServiceLogger {
	return loggingpkg.NewEntryServiceLogger(entry)
}
