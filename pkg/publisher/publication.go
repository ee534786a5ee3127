package publisher

import "context"

// Publication is the application-specific policy plugged into the
// publishing pipeline. Each hook receives the request being published;
// objects are opaque to the publisher.
type Publication interface {
	// BeforeTraversal runs once per attempt before any name is traversed.
	BeforeTraversal(ctx context.Context, req Request) error

	// GetApplication returns the root object traversal starts from.
	GetApplication(ctx context.Context, req Request) (any, error)

	// CallTraversalHooks runs before each traversal step on the object
	// about to be traversed.
	CallTraversalHooks(ctx context.Context, req Request, ob any) error

	// TraverseName resolves one path segment relative to ob.
	TraverseName(ctx context.Context, req Request, ob any, name string) (any, error)

	// AfterTraversal runs once the traversal stack is exhausted.
	AfterTraversal(ctx context.Context, req Request, ob any) error

	// CallObject invokes the published object and returns the result to
	// render into the response.
	CallObject(ctx context.Context, req Request, ob any) (any, error)

	// AfterCall runs after the result has been set on the response.
	AfterCall(ctx context.Context, req Request, ob any) error

	// HandleException turns a failure into a response. ob is the last
	// object reached, possibly nil. Returning an error wrapping ErrRetry
	// restarts the publication when retryAllowed is true.
	HandleException(ctx context.Context, req Request, ob any, err error, retryAllowed bool) error
}
