package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rhuss/pubgate/pkg/auth"
	"github.com/rhuss/pubgate/pkg/auth/apikey"
	"github.com/rhuss/pubgate/pkg/auth/jwt"
	"github.com/rhuss/pubgate/pkg/auth/noop"
	"github.com/rhuss/pubgate/pkg/config"
	"github.com/rhuss/pubgate/pkg/storage"
	"github.com/rhuss/pubgate/pkg/storage/memory"
	"github.com/rhuss/pubgate/pkg/storage/postgres"
)

// openStore creates the object store selected by cfg.
func openStore(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStore, error) {
	switch cfg.Type {
	case "memory":
		slog.Info("storage enabled", "type", "memory")
		return memory.New(), nil
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			LockTimeout:    cfg.Postgres.LockTimeout,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("creating postgres store: %w", err)
		}
		slog.Info("storage enabled", "type", "postgres", "migrate_on_start", cfg.Postgres.MigrateOnStart)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

func seedStore(ctx context.Context, store storage.ObjectStore, path string) (int, error) {
	n, err := storage.SeedFile(ctx, store, path)
	if err != nil {
		return n, fmt.Errorf("seeding store from %s: %w", path, err)
	}
	return n, nil
}

// buildAuthChain assembles the authenticators for cfg. When anonymous
// access is on, callers without credentials continue as the anonymous
// principal.
func buildAuthChain(cfg config.AuthConfig) (*auth.AuthChain, error) {
	chain := &auth.AuthChain{DefaultDecision: auth.No}
	if cfg.Anonymous {
		chain.DefaultDecision = auth.Yes
	}

	switch cfg.Type {
	case "none":
		chain.Authenticators = []auth.Authenticator{&noop.Authenticator{}}
	case "apikey":
		chain.Authenticators = []auth.Authenticator{apikey.New(apiKeyEntries(cfg.APIKeys))}
	case "jwt":
		jcfg := jwt.Config{
			Issuer:            cfg.JWT.Issuer,
			Audience:          cfg.JWT.Audience,
			JWKSURL:           cfg.JWT.JWKSURL,
			SubjectClaim:      cfg.JWT.UserClaim,
			TenantClaim:       cfg.JWT.TenantClaim,
			TierClaim:         cfg.JWT.TierClaim,
			ScopesClaim:       cfg.JWT.ScopesClaim,
			PermissionsClaim:  cfg.JWT.PermissionsClaim,
			RolesClaim:        cfg.JWT.RolesClaim,
			Roles:             cfg.JWT.Roles,
			Leeway:            cfg.JWT.Leeway,
			CacheTTL:          cfg.JWT.CacheTTL,
			RefreshInterval:   cfg.JWT.RefreshInterval,
			DeferOpaqueTokens: len(cfg.APIKeys) > 0,
		}
		if cfg.JWT.PublicKeyFile != "" {
			key, err := jwt.LoadPublicKey(cfg.JWT.PublicKeyFile)
			if err != nil {
				return nil, fmt.Errorf("loading jwt public key: %w", err)
			}
			jcfg.StaticKey = key
		}
		// API keys configured next to JWT serve the tokens the JWT
		// authenticator defers.
		chain.Authenticators = []auth.Authenticator{jwt.New(jcfg)}
		if len(cfg.APIKeys) > 0 {
			chain.Authenticators = append(chain.Authenticators, apikey.New(apiKeyEntries(cfg.APIKeys)))
		}
	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Type)
	}
	return chain, nil
}

func apiKeyEntries(keys []config.APIKeyConfig) []apikey.RawKeyEntry {
	entries := make([]apikey.RawKeyEntry, 0, len(keys))
	for _, k := range keys {
		id := auth.Identity{
			Subject:     k.Subject,
			ServiceTier: k.ServiceTier,
			Scopes:      k.Scopes,
		}
		if k.TenantID != "" {
			id.Metadata = map[string]string{"tenant_id": k.TenantID}
		}
		entries = append(entries, apikey.RawKeyEntry{Key: k.Key, Identity: id})
	}
	return entries
}

func buildRateLimiter(cfg config.RateLimitConfig) *auth.InProcessLimiter {
	tiers := make(map[string]auth.TierConfig, len(cfg.Tiers))
	for name, rpm := range cfg.Tiers {
		tiers[name] = auth.TierConfig{RequestsPerMinute: rpm}
	}
	return auth.NewInProcessLimiter(tiers, cfg.DefaultRPM)
}
