// Package transports links every built-in failure transport. Import it for
// side effects to make all of them selectable by name.
package transports

import (
	_ "github.com/drblury/sentryflow/transport/aws"
	_ "github.com/drblury/sentryflow/transport/channel"
	_ "github.com/drblury/sentryflow/transport/http"
	_ "github.com/drblury/sentryflow/transport/kafka"
	_ "github.com/drblury/sentryflow/transport/nats"
	_ "github.com/drblury/sentryflow/transport/rabbitmq"
)
