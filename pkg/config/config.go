// Package config provides unified configuration for the pubgate server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (PUBGATE_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the pubgate server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Publisher     PublisherConfig     `yaml:"publisher"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 60s
	IdleTimeout     time.Duration `yaml:"idle_timeout"`     // default: 120s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
	MaxBodySize     int64         `yaml:"max_body_size"`    // bytes, default: 10 MB
}

// PublisherConfig holds publish pipeline settings.
type PublisherConfig struct {
	MaxRetries int `yaml:"max_retries"` // default: 3
}

// StorageConfig holds object store settings.
type StorageConfig struct {
	Type     string         `yaml:"type"`      // "memory" or "postgres", default: "memory"
	SeedFile string         `yaml:"seed_file"` // optional YAML object tree loaded at startup
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string        `yaml:"dsn"`
	DSNFile        string        `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32         `yaml:"max_conns"`        // default: 25
	LockTimeout    time.Duration `yaml:"lock_timeout"`     // default: 5s
	MigrateOnStart bool          `yaml:"migrate_on_start"` // default: false
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type string `yaml:"type"` // "none", "apikey" or "jwt", default: "none"

	// Anonymous lets requests without credentials through as the anonymous
	// principal; object permissions still apply. Default: true.
	Anonymous bool `yaml:"anonymous"`

	APIKeys   []APIKeyConfig  `yaml:"api_keys"` // entries for type=apikey
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key         string   `yaml:"key" json:"key"`
	KeyFile     string   `yaml:"key_file" json:"key_file"` // _file variant for key
	Subject     string   `yaml:"subject" json:"subject"`
	TenantID    string   `yaml:"tenant_id" json:"tenant_id"`
	ServiceTier string   `yaml:"service_tier" json:"service_tier"`
	Scopes      []string `yaml:"scopes" json:"scopes"`
}

// JWTConfig holds bearer token validation settings. Permissions are the
// union of the scopes and permissions claims and the permissions granted
// by the roles in roles_claim through Roles.
type JWTConfig struct {
	Issuer           string              `yaml:"issuer"`
	Audience         string              `yaml:"audience"`
	JWKSURL          string              `yaml:"jwks_url"`
	PublicKeyFile    string              `yaml:"public_key_file"` // PEM RSA key, instead of jwks_url
	UserClaim        string              `yaml:"user_claim"`
	TenantClaim      string              `yaml:"tenant_claim"`
	TierClaim        string              `yaml:"tier_claim"`
	ScopesClaim      string              `yaml:"scopes_claim"`
	PermissionsClaim string              `yaml:"permissions_claim"`
	RolesClaim       string              `yaml:"roles_claim"` // dotted for nested claims, e.g. realm_access.roles
	Roles            map[string][]string `yaml:"roles"`       // role name to granted permissions
	Leeway           time.Duration       `yaml:"leeway"`
	CacheTTL         time.Duration       `yaml:"cache_ttl"`
	RefreshInterval  time.Duration       `yaml:"refresh_interval"`
}

// RateLimitConfig holds the in-process rate limiter settings.
type RateLimitConfig struct {
	Enabled    bool           `yaml:"enabled"`
	DefaultRPM int            `yaml:"default_rpm"` // default: 600
	Tiers      map[string]int `yaml:"tiers"`       // tier name to requests per minute
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// LoggingConfig holds log output settings. PUBGATE_DEBUG and
// PUBGATE_LOG_LEVEL take precedence at runtime.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // default: "INFO"
	Debug  string `yaml:"debug"`  // comma-separated debug categories
	Format string `yaml:"format"` // "text" or "json", default: "text"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodySize:     10 << 20,
		},
		Publisher: PublisherConfig{
			MaxRetries: 3,
		},
		Storage: StorageConfig{
			Type: "memory",
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		Auth: AuthConfig{
			Type:      "none",
			Anonymous: true,
			RateLimit: RateLimitConfig{
				DefaultRPM: 600,
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}
