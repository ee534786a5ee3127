package transport

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/rhuss/pubgate/pkg/publisher"
)

// RequestID returns middleware that assigns a unique request ID to each
// publication. An ID already in the context (set by the HTTP layer from
// X-Request-ID) is kept.
func RequestID() Middleware {
	return func(next Publisher) Publisher {
		return PublisherFunc(func(ctx context.Context, req publisher.Request) error {
			if RequestIDFromContext(ctx) == "" {
				ctx = ContextWithRequestID(ctx, NewRequestID())
			}
			return next.Publish(ctx, req)
		})
	}
}

// NewRequestID creates a new unique request ID as a hex string.
func NewRequestID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
