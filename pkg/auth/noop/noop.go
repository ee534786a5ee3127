// Package noop provides a no-op authenticator that accepts all requests
// as the anonymous identity. Used for development and as a default voter
// in the auth chain.
package noop

import (
	"context"
	"net/http"

	"github.com/rhuss/pubgate/pkg/auth"
)

// Authenticator always returns Yes with the anonymous identity.
type Authenticator struct{}

func (a *Authenticator) Authenticate(_ context.Context, _ *http.Request) auth.AuthResult {
	return auth.AuthResult{
		Decision: auth.Yes,
		Identity: auth.Anonymous(),
	}
}
