// Package postgres provides a PostgreSQL implementation of storage.ObjectStore.
// It uses pgx/v5 for connection pooling and JSONB for object properties.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/pubgate/pkg/storage"
)

// Store is a PostgreSQL-backed ObjectStore.
type Store struct {
	pool        *pgxpool.Pool
	lockTimeout string
}

// Ensure Store implements storage.ObjectStore at compile time.
var _ storage.ObjectStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()

	poolCfg, err := cfg.poolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool, lockTimeout: cfg.lockTimeoutSetting()}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

const selectColumns = `path, title, content_type, content, permission, default_view, properties, modified_at`

// Get retrieves the object at path for the context's tenant.
func (s *Store) Get(ctx context.Context, path string) (*storage.Object, error) {
	path, err := storage.CleanPath(path)
	if err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM objects WHERE tenant_id = $1 AND path = $2`,
		storage.TenantFrom(ctx), path,
	)
	obj, err := scanObject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("querying object: %w", err)
	}
	return obj, nil
}

// Children returns the direct children of path ordered by path.
func (s *Store) Children(ctx context.Context, path string) ([]*storage.Object, error) {
	path, err := storage.CleanPath(path)
	if err != nil {
		return nil, err
	}
	if err := s.exists(ctx, path); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM objects WHERE tenant_id = $1 AND parent_path = $2 ORDER BY path`,
		storage.TenantFrom(ctx), path,
	)
	if err != nil {
		return nil, fmt.Errorf("querying children: %w", err)
	}
	defer rows.Close()

	var children []*storage.Object
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning child: %w", err)
		}
		children = append(children, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating children: %w", err)
	}
	return children, nil
}

// Put creates or replaces an object. The parent must exist unless obj is the
// root. The parent row is share-locked for the duration of the upsert, so a
// concurrent Delete of the parent either waits for the new child or makes
// Put fail with storage.ErrConflict.
func (s *Store) Put(ctx context.Context, obj *storage.Object) error {
	path, err := storage.CleanPath(obj.Path)
	if err != nil {
		return err
	}

	var propsJSON []byte
	if len(obj.Properties) > 0 {
		propsJSON, err = json.Marshal(obj.Properties)
		if err != nil {
			return fmt.Errorf("marshaling properties: %w", err)
		}
	}

	modified := obj.ModifiedAt
	if modified.IsZero() {
		modified = time.Now().UTC()
	}

	tenant := storage.TenantFrom(ctx)
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		var parent *string
		if path != "/" {
			p := storage.ParentPath(path)
			if err := lockParent(ctx, tx, tenant, p); err != nil {
				return fmt.Errorf("parent %s: %w", p, err)
			}
			parent = &p
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO objects (
				tenant_id, path, parent_path, title, content_type, content,
				permission, default_view, properties, modified_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (tenant_id, path) DO UPDATE SET
				title = EXCLUDED.title,
				content_type = EXCLUDED.content_type,
				content = EXCLUDED.content,
				permission = EXCLUDED.permission,
				default_view = EXCLUDED.default_view,
				properties = EXCLUDED.properties,
				modified_at = EXCLUDED.modified_at
		`,
			tenant, path, parent, obj.Title, obj.ContentType, obj.Content,
			obj.Permission, obj.DefaultView, nullJSON(propsJSON), modified,
		)
		if err != nil {
			return fmt.Errorf("upserting object: %w", err)
		}
		return nil
	})
	return err
}

// lockParent share-locks the parent row. A parent that is visible but gone
// once the lock is granted was deleted concurrently.
func lockParent(ctx context.Context, tx pgx.Tx, tenant, path string) error {
	var found bool
	err := tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM objects WHERE tenant_id = $1 AND path = $2)`,
		tenant, path,
	).Scan(&found)
	if err != nil {
		return fmt.Errorf("checking object: %w", err)
	}
	if !found {
		return storage.ErrNotFound
	}

	var locked string
	err = tx.QueryRow(ctx,
		`SELECT path FROM objects WHERE tenant_id = $1 AND path = $2 FOR SHARE`,
		tenant, path,
	).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("deleted concurrently: %w", storage.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("locking object: %w", err)
	}
	return nil
}

// Delete removes the object at path and its descendants. The subtree is
// locked first so children stored by a concurrent Put are deleted too.
func (s *Store) Delete(ctx context.Context, path string) error {
	path, err := storage.CleanPath(path)
	if err != nil {
		return err
	}
	if path == "/" {
		return fmt.Errorf("deleting root: %w", storage.ErrConflict)
	}

	tenant := storage.TenantFrom(ctx)
	pattern := escapeLike(path) + "/%"
	return s.inTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT path FROM objects WHERE tenant_id = $1 AND (path = $2 OR path LIKE $3) FOR UPDATE`,
			tenant, path, pattern,
		)
		if err != nil {
			return fmt.Errorf("locking subtree: %w", err)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("locking subtree: %w", err)
		}

		tag, err := tx.Exec(ctx,
			`DELETE FROM objects WHERE tenant_id = $1 AND (path = $2 OR path LIKE $3)`,
			tenant, path, pattern,
		)
		if err != nil {
			return fmt.Errorf("deleting object: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
}

// inTx runs fn in a transaction and commits it when fn succeeds.
// Serialization failures, deadlocks and lock timeouts are reported as storage.ErrConflict
// so callers can retry.
func (s *Store) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, s.lockTimeout); err != nil {
		return fmt.Errorf("setting lock timeout: %w", err)
	}
	if err := fn(tx); err != nil {
		return conflictError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return conflictError(fmt.Errorf("committing transaction: %w", err))
	}
	return nil
}

// SQLSTATE codes that mean the transaction lost a race and may be retried.
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
)

// conflictError marks retryable database errors with storage.ErrConflict.
func conflictError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateLockNotAvailable:
			return fmt.Errorf("%w: %w", storage.ErrConflict, err)
		}
	}
	return err
}

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) exists(ctx context.Context, path string) error {
	var found bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM objects WHERE tenant_id = $1 AND path = $2)`,
		storage.TenantFrom(ctx), path,
	).Scan(&found)
	if err != nil {
		return fmt.Errorf("checking object: %w", err)
	}
	if !found {
		return storage.ErrNotFound
	}
	return nil
}

func scanObject(row pgx.Row) (*storage.Object, error) {
	var (
		obj       storage.Object
		propsJSON []byte
	)
	err := row.Scan(
		&obj.Path, &obj.Title, &obj.ContentType, &obj.Content,
		&obj.Permission, &obj.DefaultView, &propsJSON, &obj.ModifiedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(propsJSON) > 0 {
		if err := json.Unmarshal(propsJSON, &obj.Properties); err != nil {
			return nil, fmt.Errorf("unmarshaling properties: %w", err)
		}
	}
	return &obj, nil
}

// nullJSON converts nil/empty byte slices to nil for nullable JSONB columns.
func nullJSON(b []byte) *[]byte {
	if len(b) == 0 {
		return nil
	}
	return &b
}

// escapeLike escapes LIKE wildcards so paths match literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
