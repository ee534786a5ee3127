package jwt

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/rhuss/pubgate/pkg/debug"
)

// minKeyBits is the smallest RSA modulus accepted from a key set.
const minKeyBits = 2048

// maxJWKSSize caps the key set document.
const maxJWKSSize = 1 << 20

// keySource returns the verification key for a token's kid.
type keySource interface {
	key(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

type staticKey struct{ pub *rsa.PublicKey }

func (s staticKey) key(context.Context, string) (*rsa.PublicKey, error) { return s.pub, nil }

// jwksSource caches the keys of a JWKS endpoint. Concurrent refreshes
// share one fetch; unknown kids trigger at most one refetch per
// refreshInterval.
type jwksSource struct {
	url             string
	client          *http.Client
	ttl             time.Duration
	refreshInterval time.Duration
	now             func() time.Time

	fetches singleflight.Group

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

func newJWKSSource(url string, client *http.Client, ttl, refreshInterval time.Duration) *jwksSource {
	return &jwksSource{
		url:             url,
		client:          client,
		ttl:             ttl,
		refreshInterval: refreshInterval,
		now:             time.Now,
	}
}

func (s *jwksSource) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if kid == "" {
		return nil, errors.New("token has no kid header")
	}

	s.mu.RLock()
	k, known := s.keys[kid]
	seen := s.fetchedAt
	s.mu.RUnlock()
	age := s.now().Sub(seen)
	fetched := !seen.IsZero()

	if known && age < s.ttl {
		return k, nil
	}
	if !known && fetched && age < s.refreshInterval {
		return nil, fmt.Errorf("unknown key id %q", kid)
	}

	if err := s.refresh(ctx, seen); err != nil {
		if known {
			slog.Warn("jwks refresh failed, using cached key", "kid", kid, "error", err)
			return k, nil
		}
		return nil, err
	}

	s.mu.RLock()
	k, known = s.keys[kid]
	s.mu.RUnlock()
	if !known {
		return nil, fmt.Errorf("unknown key id %q", kid)
	}
	return k, nil
}

// refresh fetches the key set unless it was replaced after seen.
func (s *jwksSource) refresh(ctx context.Context, seen time.Time) error {
	_, err, _ := s.fetches.Do("jwks", func() (any, error) {
		s.mu.RLock()
		newer := s.fetchedAt.After(seen)
		s.mu.RUnlock()
		if newer {
			return nil, nil
		}

		keys, err := s.fetch(ctx)
		s.mu.Lock()
		defer s.mu.Unlock()
		// A failed fetch also starts the refresh interval.
		s.fetchedAt = s.now()
		if err != nil {
			return nil, err
		}
		s.keys = keys
		return nil, nil
	})
	return err
}

func (s *jwksSource) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating jwks request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching jwks: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching jwks: status %d", resp.StatusCode)
	}

	var set struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJWKSSize)).Decode(&set); err != nil {
		return nil, fmt.Errorf("decoding jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		pub, err := k.rsaKey()
		if err != nil {
			slog.Warn("skipping jwks key", "kid", k.Kid, "error", err)
			continue
		}
		keys[k.Kid] = pub
	}
	debug.Log("auth", "jwks refreshed", "url", s.url, "keys", len(keys))
	return keys, nil
}

// jwk is an RSA JSON Web Key with base64url-encoded modulus and exponent.
type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (k jwk) rsaKey() (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}

	pub := &rsa.PublicKey{N: new(big.Int).SetBytes(n)}
	exp := new(big.Int).SetBytes(e)
	if !exp.IsInt64() || exp.Int64() < 3 || exp.Int64() > 1<<31-1 {
		return nil, errors.New("invalid exponent")
	}
	pub.E = int(exp.Int64())
	if pub.N.BitLen() < minKeyBits {
		return nil, fmt.Errorf("modulus has %d bits, need %d", pub.N.BitLen(), minKeyBits)
	}
	return pub, nil
}

// LoadPublicKey reads a PEM-encoded RSA public key for Config.StaticKey.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}
	key, err := jwtlib.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("parsing public key %s: %w", path, err)
	}
	return key, nil
}
