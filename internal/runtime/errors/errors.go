package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrConfigRequired     = sterrors.New("sentryflow: configuration is required")
	ErrLoggerRequired     = sterrors.New("sentryflow: logger is required")
	ErrDispatcherRequired = sterrors.New("sentryflow: lifecycle dispatcher is required")
	ErrPublisherRequired  = sterrors.New("sentryflow: publisher is required")
	ErrTopicRequired      = sterrors.New("sentryflow: topic is required")
	ErrUnsupportedLogger  = sterrors.New("sentryflow: logger needs to be resettable")
)

// MissingRequiredSettingError reports the first mandatory setting absent from
// the configuration.
type MissingRequiredSettingError struct {
	Setting string
}

func (e MissingRequiredSettingError) Error() string {
	return fmt.Sprintf("sentryflow: the setting %q must be configured", e.Setting)
}

// MissingCapabilityError is returned when an enabled feature depends on an
// integration that is not linked into the binary.
type MissingCapabilityError struct {
	Feature    string
	Capability string
	// Hint names the package that provides the capability.
	Hint string
}

func (e MissingCapabilityError) Error() string {
	msg := fmt.Sprintf("sentryflow: %s requires capability %q which is not available", e.Feature, e.Capability)
	if e.Hint != "" {
		msg += " (import " + e.Hint + ")"
	}
	return msg
}

// InvalidCombinationError rejects feature toggles that cannot be enabled together.
type InvalidCombinationError struct {
	Reason string
}

func (e InvalidCombinationError) Error() string {
	return "sentryflow: invalid configuration: " + e.Reason
}

// UnsupportedLoggerError is returned when a listener needs to reset a logger
// that has no Reset method.
type UnsupportedLoggerError struct {
	Logger string
}

func (e UnsupportedLoggerError) Error() string {
	if e.Logger == "" {
		return ErrUnsupportedLogger.Error()
	}
	return fmt.Sprintf("%s (got %s)", ErrUnsupportedLogger.Error(), e.Logger)
}

func (e UnsupportedLoggerError) Is(target error) bool {
	return target == ErrUnsupportedLogger
}

// ConfigValidationError wraps configuration problems that are not covered by
// the typed errors above, such as an unknown failure transport.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "sentryflow: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError returns nil for a nil error so callers can wrap
// validation results unconditionally.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
