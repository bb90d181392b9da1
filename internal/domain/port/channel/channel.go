package channel

import (
	"context"
)

// Channel is one live, writable connection to a client session. Implementations
// must be comparable pointer types: the presence registry tells channels apart
// by identity.
type Channel interface {
	// Send writes a single protocol line. It must return within the transport's
	// own write timeout.
	Send(ctx context.Context, line string) error
}
