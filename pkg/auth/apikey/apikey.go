// Package apikey provides an API key authenticator that validates
// keys against a static key store using SHA-256 hashing and
// constant-time comparison.
//
// Keys are accepted as bearer tokens or as the password of HTTP Basic
// credentials, so plain browsers and XML-RPC clients can log in. A Basic
// user name, when given, must match the key's subject.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rhuss/pubgate/pkg/auth"
)

// KeyEntry maps a key hash to an identity.
type KeyEntry struct {
	KeyHash  [32]byte
	Identity auth.Identity
}

// Authenticator validates bearer tokens against a static key store.
type Authenticator struct {
	keys []KeyEntry
}

// New creates an API key authenticator from a list of raw keys and identities.
// Keys are hashed immediately; plaintext keys are not stored.
func New(entries []RawKeyEntry) *Authenticator {
	a := &Authenticator{}
	for _, e := range entries {
		a.keys = append(a.keys, KeyEntry{
			KeyHash:  sha256.Sum256([]byte(e.Key)),
			Identity: e.Identity,
		})
	}
	return a
}

// RawKeyEntry is the configuration format for API keys.
type RawKeyEntry struct {
	Key      string
	Identity auth.Identity
}

// Authenticate extracts the key and validates it.
// Returns Yes if valid, No if credentials are present but invalid,
// Abstain if there is no Authorization header or its scheme is unknown.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	header := r.Header.Get("Authorization")
	if header == "" {
		return auth.AuthResult{Decision: auth.Abstain}
	}

	var token, user string
	switch {
	case strings.HasPrefix(header, "Bearer "):
		token = strings.TrimPrefix(header, "Bearer ")
	case strings.HasPrefix(header, "Basic "):
		var ok bool
		user, token, ok = r.BasicAuth()
		if !ok {
			return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
		}
	default:
		return auth.AuthResult{Decision: auth.Abstain}
	}

	if token == "" {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	tokenHash := sha256.Sum256([]byte(token))

	for _, entry := range a.keys {
		if subtle.ConstantTimeCompare(tokenHash[:], entry.KeyHash[:]) == 1 {
			if user != "" && user != entry.Identity.Subject {
				return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
			}
			// Copy identity to avoid shared state.
			id := entry.Identity
			return auth.AuthResult{Decision: auth.Yes, Identity: &id}
		}
	}

	return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
}
