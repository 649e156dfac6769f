package metadata

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Keys sentryflow reads from or writes to message metadata.
const (
	// KeyMessageClass names the payload type of a message.
	KeyMessageClass = "event_message_schema"
	// KeyMessageName is the fallback payload type key used by some producers.
	KeyMessageName   = "name"
	KeyCorrelationID = "correlation_id"

	KeyFailureError   = "sentryflow_failure_error"
	KeyFailureClass   = "sentryflow_failure_class"
	KeyFailureTopic   = "sentryflow_failure_topic"
	KeyFailureHandler = "sentryflow_failure_handler"
	KeyFailedAt       = "sentryflow_failed_at"
	KeyOriginalUUID   = "sentryflow_original_uuid"
)

// Metadata represents the headers carried alongside a message.
type Metadata map[string]string

// WithAll returns a copy of m containing the supplied entries. m is left
// untouched.
func (m Metadata) WithAll(entries Metadata) Metadata {
	cloned := make(Metadata, len(m)+len(entries))
	for k, v := range m {
		cloned[k] = v
	}
	for k, v := range entries {
		cloned[k] = v
	}
	return cloned
}

// MessageClass returns the payload type of msg as announced by the producer,
// falling back to the Go type of the message itself.
func MessageClass(msg *message.Message) string {
	if msg == nil {
		return "-"
	}
	for _, key := range []string{KeyMessageClass, KeyMessageName} {
		if class := msg.Metadata.Get(key); class != "" {
			return class
		}
	}
	return fmt.Sprintf("%T", msg)
}
