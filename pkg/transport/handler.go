package transport

import (
	"context"

	"github.com/rhuss/pubgate/pkg/publisher"
)

// Publisher runs one publication request to completion, including flushing
// its response. *publisher.Publisher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, req publisher.Request) error
}

// PublisherFunc is an adapter that allows using an ordinary function as a
// Publisher.
type PublisherFunc func(ctx context.Context, req publisher.Request) error

// Publish calls f(ctx, req).
func (f PublisherFunc) Publish(ctx context.Context, req publisher.Request) error {
	return f(ctx, req)
}

// HealthChecker reports whether a backing dependency is usable. The object
// stores implement it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
