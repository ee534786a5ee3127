// Package jwt authenticates callers that present an RS256/RS384/RS512
// signed JWT as a bearer token.
//
// Keys come from a JWKS endpoint or from a single PEM public key. The
// token's permissions are collected from the scope and permissions claims
// and from role claims mapped through Config.Roles; they are matched
// against the permission guarding each published object.
package jwt

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/pubgate/pkg/auth"
	"github.com/rhuss/pubgate/pkg/debug"
)

// Config holds the JWT authenticator configuration.
type Config struct {
	// Issuer and Audience are checked when set.
	Issuer   string
	Audience string

	// JWKSURL serves the signing keys. Ignored when StaticKey is set.
	JWKSURL string

	// StaticKey verifies every token; tokens then need no kid header.
	StaticKey *rsa.PublicKey

	// Claim names. Nested claims use dots, e.g. "realm_access.roles".
	SubjectClaim     string // default "sub"
	TenantClaim      string // default "tenant_id"
	TierClaim        string // default "tier"
	ScopesClaim      string // default "scope"
	PermissionsClaim string // default "permissions"
	RolesClaim       string // default "roles"

	// Roles maps role names found in RolesClaim to the permissions they
	// grant, e.g. "editor": {"write", "staff"}.
	Roles map[string][]string

	// DeferOpaqueTokens makes bearer tokens that are not shaped like a JWT
	// abstain, so a later authenticator such as API keys can take them.
	// Otherwise they are rejected.
	DeferOpaqueTokens bool

	// Leeway tolerates clock skew on exp, nbf and iat.
	Leeway time.Duration

	// CacheTTL is how long fetched keys are trusted (default 1h).
	// RefreshInterval limits refetches for unknown key ids (default 1m).
	CacheTTL        time.Duration
	RefreshInterval time.Duration

	HTTPClient *http.Client
}

func (c *Config) applyDefaults() {
	def := func(s *string, v string) {
		if *s == "" {
			*s = v
		}
	}
	def(&c.SubjectClaim, "sub")
	def(&c.TenantClaim, "tenant_id")
	def(&c.TierClaim, "tier")
	def(&c.ScopesClaim, "scope")
	def(&c.PermissionsClaim, "permissions")
	def(&c.RolesClaim, "roles")
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Hour
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = time.Minute
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
}

// Authenticator validates JWT bearer tokens.
type Authenticator struct {
	config Config
	parser *jwtlib.Parser
	keys   keySource
}

// New creates a JWT authenticator.
func New(cfg Config) *Authenticator {
	cfg.applyDefaults()

	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(cfg.Audience))
	}

	var keys keySource
	if cfg.StaticKey != nil {
		keys = staticKey{pub: cfg.StaticKey}
	} else {
		keys = newJWKSSource(cfg.JWKSURL, cfg.HTTPClient, cfg.CacheTTL, cfg.RefreshInterval)
	}

	return &Authenticator{
		config: cfg,
		parser: jwtlib.NewParser(opts...),
		keys:   keys,
	}
}

var errNotJWT = errors.New("bearer token is not a JWT")

// Authenticate abstains without a bearer token, votes No for a token that
// fails validation and Yes with the token's identity otherwise.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) auth.AuthResult {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	token = strings.TrimSpace(token)
	if !looksLikeJWT(token) {
		if a.config.DeferOpaqueTokens {
			return auth.AuthResult{Decision: auth.Abstain}
		}
		return auth.AuthResult{Decision: auth.No, Err: errNotJWT}
	}

	claims := jwtlib.MapClaims{}
	if _, err := a.parser.ParseWithClaims(token, claims, a.keyFunc(ctx)); err != nil {
		debug.Log("auth", "jwt rejected", "error", err)
		return auth.AuthResult{Decision: auth.No, Err: fmt.Errorf("invalid token: %w", err)}
	}

	id, err := a.identity(claims)
	if err != nil {
		debug.Log("auth", "jwt rejected", "error", err)
		return auth.AuthResult{Decision: auth.No, Err: err}
	}
	debug.Log("auth", "jwt accepted", "subject", id.Subject, "tenant", id.TenantID(), "permissions", id.Scopes)
	return auth.AuthResult{Decision: auth.Yes, Identity: id}
}

func (a *Authenticator) keyFunc(ctx context.Context) jwtlib.Keyfunc {
	return func(t *jwtlib.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return a.keys.key(ctx, kid)
	}
}

// looksLikeJWT reports whether s has three non-empty dot-separated parts.
func looksLikeJWT(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}
