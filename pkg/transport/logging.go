package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/rhuss/pubgate/pkg/publisher"
)

// Logging returns middleware that emits one structured access log entry per
// publication. The entry carries the request ID, method, path, request kind,
// duration, and, when an AccessEntry is present in the context, the status
// line and the user name reported through the output adapter.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Publisher) Publisher {
		return PublisherFunc(func(ctx context.Context, req publisher.Request) error {
			start := time.Now()

			err := next.Publish(ctx, req)

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.String("method", req.Method()),
				slog.String("path", req.URL().Path),
				slog.String("kind", req.Kind().String()),
				slog.Duration("duration", time.Since(start)),
			}
			if entry := AccessEntryFromContext(ctx); entry != nil {
				attrs = append(attrs,
					slog.String("status", entry.Status()),
					slog.String("user", entry.User()),
				)
			}

			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "request failed", attrs...)
			} else {
				logger.LogAttrs(ctx, slog.LevelInfo, "request completed", attrs...)
			}

			return err
		})
	}
}
