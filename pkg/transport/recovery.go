package transport

import (
	"context"
	"fmt"

	"github.com/rhuss/pubgate/pkg/api"
	"github.com/rhuss/pubgate/pkg/publisher"
)

// Recovery returns middleware that catches panics raised while publishing
// and converts them to server errors. The server keeps accepting requests
// after a panic is recovered.
func Recovery() Middleware {
	return func(next Publisher) Publisher {
		return PublisherFunc(func(ctx context.Context, req publisher.Request) (retErr error) {
			defer func() {
				if r := recover(); r != nil {
					retErr = api.NewServerError(fmt.Sprintf("internal server error: %v", r))
				}
			}()
			return next.Publish(ctx, req)
		})
	}
}
