package postgres

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config configures a Store.
type Config struct {
	DSN string

	// Pool sizing. Zero values mean 25 connections, 2 idle and a five
	// minute connection lifetime.
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration

	// LockTimeout bounds how long a write waits for row locks held by
	// concurrent writes in the same subtree (default 5s). A write that
	// times out fails with storage.ErrConflict.
	LockTimeout time.Duration

	// MigrateOnStart applies pending schema migrations in New.
	MigrateOnStart bool
}

func (c Config) withDefaults() Config {
	if c.MaxConns <= 0 {
		c.MaxConns = 25
	}
	if c.MinConns <= 0 {
		c.MinConns = 2
	}
	if c.MinConns > c.MaxConns {
		c.MinConns = c.MaxConns
	}
	if c.MaxConnLifetime <= 0 {
		c.MaxConnLifetime = 5 * time.Minute
	}
	if c.LockTimeout <= 0 {
		c.LockTimeout = 5 * time.Second
	}
	return c
}

func (c Config) poolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	pc.MaxConns = c.MaxConns
	pc.MinConns = c.MinConns
	pc.MaxConnLifetime = c.MaxConnLifetime
	return pc, nil
}

// lockTimeoutSetting renders LockTimeout for set_config('lock_timeout').
func (c Config) lockTimeoutSetting() string {
	return fmt.Sprintf("%dms", c.LockTimeout.Milliseconds())
}
