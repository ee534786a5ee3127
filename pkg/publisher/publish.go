package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rhuss/pubgate/pkg/api"
	"github.com/rhuss/pubgate/pkg/debug"
	"github.com/rhuss/pubgate/pkg/observability"
)

// DefaultMaxRetries is the number of times a publication is restarted
// after ErrRetry before the error is handled like any other.
const DefaultMaxRetries = 3

var (
	// ErrRetry asks the publisher to run the publication again from the
	// original traversal stack. Wrap it to keep the cause.
	ErrRetry = errors.New("publisher: retry")

	// ErrNoPublication is returned when a request has no publication set.
	ErrNoPublication = errors.New("publisher: request has no publication")

	// ErrClosed is returned when publishing a request that was closed.
	ErrClosed = errors.New("publisher: request closed")
)

// Option configures a Publisher.
type Option func(*Publisher)

// WithMaxRetries sets how often ErrRetry restarts a publication.
// Negative values are treated as zero.
func WithMaxRetries(n int) Option {
	return func(p *Publisher) {
		p.maxRetries = max(n, 0)
	}
}

// WithLogger sets the logger used for handled failures.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = l
	}
}

// Publisher runs publication requests through their Publication.
type Publisher struct {
	maxRetries int
	logger     *slog.Logger
}

// New returns a Publisher with the given options applied.
func New(opts ...Option) *Publisher {
	p := &Publisher{
		maxRetries: DefaultMaxRetries,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MaxRetries returns the configured retry limit.
func (p *Publisher) MaxRetries() int { return p.maxRetries }

// Publish traverses, calls and renders req, then flushes its response.
//
// Failures go to the publication's HandleException. An error is returned
// only when the publication could not handle the failure or the response
// could not be flushed; the response is not flushed in the first case.
func (p *Publisher) Publish(ctx context.Context, req Request) error {
	pub := req.Publication()
	if pub == nil {
		return ErrNoPublication
	}
	resp := req.Response()
	if resp == nil {
		return ErrClosed
	}

	stack := req.TraversalStack()
	for attempt := 0; ; attempt++ {
		ob, err := p.publishOnce(ctx, req, pub, resp)
		if err == nil {
			break
		}

		retryAllowed := attempt < p.maxRetries && !resp.HeadersSent()
		if errors.Is(err, ErrRetry) && retryAllowed {
			p.restart(req, resp, stack, attempt, err)
			continue
		}

		herr := pub.HandleException(ctx, req, ob, err, retryAllowed)
		if herr == nil {
			break
		}
		if errors.Is(herr, ErrRetry) && retryAllowed {
			p.restart(req, resp, stack, attempt, herr)
			continue
		}
		p.logger.Error("publication failed",
			"method", req.Method(),
			"path", req.URL().Path,
			"error", err,
			"handler_error", herr,
		)
		return fmt.Errorf("handling publication error: %w", herr)
	}

	return resp.Flush()
}

func (p *Publisher) restart(req Request, resp *Response, stack []string, attempt int, cause error) {
	observability.PublishRetriesTotal.Inc()
	debug.Log("publisher", "retrying publication",
		"path", req.URL().Path,
		"attempt", attempt+1,
		"cause", cause,
	)
	resp.Reset()
	req.resetTraversal(stack)
}

// publishOnce runs one attempt. On failure it returns the last object
// reached together with the error.
func (p *Publisher) publishOnce(ctx context.Context, req Request, pub Publication, resp *Response) (any, error) {
	if err := pub.BeforeTraversal(ctx, req); err != nil {
		return nil, err
	}

	ob, err := pub.GetApplication(ctx, req)
	if err != nil {
		return nil, err
	}

	ob, err = p.traverse(ctx, req, pub, ob)
	if err != nil {
		return ob, err
	}

	if err := pub.AfterTraversal(ctx, req, ob); err != nil {
		return ob, err
	}

	result, err := pub.CallObject(ctx, req, ob)
	if err != nil {
		return ob, err
	}

	if err := resp.SetResult(result); err != nil {
		return ob, err
	}

	if err := pub.AfterCall(ctx, req, ob); err != nil {
		return ob, err
	}
	return ob, nil
}

// traverse pops names off the traversal stack until it is empty. The
// traversal hooks run on every object reached, including the last one.
func (p *Publisher) traverse(ctx context.Context, req Request, pub Publication, ob any) (any, error) {
	for {
		if err := pub.CallTraversalHooks(ctx, req, ob); err != nil {
			return ob, err
		}

		stack := req.TraversalStack()
		if len(stack) == 0 {
			return ob, nil
		}
		if err := ctx.Err(); err != nil {
			return ob, err
		}

		name := stack[len(stack)-1]
		req.SetTraversalStack(stack[:len(stack)-1])

		next, err := pub.TraverseName(ctx, req, ob, name)
		if err != nil {
			observability.TraversalFailuresTotal.WithLabelValues(failureReason(err)).Inc()
			debug.Log("traversal", "step failed", "name", name, "error", err)
			return ob, err
		}
		debug.Log("traversal", "step", "name", name, "object", fmt.Sprintf("%T", next))

		req.pushTraversed(name)
		ob = next
	}
}

func failureReason(err error) string {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return string(apiErr.Type)
	}
	if errors.Is(err, ErrRetry) {
		return "retry"
	}
	return "error"
}
