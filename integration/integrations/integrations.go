// Package integrations links every framework integration, making all
// capabilities available. Import it for side effects.
package integrations

import (
	_ "github.com/drblury/sentryflow/integration/console"
	_ "github.com/drblury/sentryflow/integration/httpkernel"
	_ "github.com/drblury/sentryflow/integration/messenger"
	_ "github.com/drblury/sentryflow/integration/security"
)
