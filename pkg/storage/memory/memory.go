// Package memory provides an in-memory implementation of storage.ObjectStore
// for tests, development and small read-mostly deployments. Objects are lost
// when the process restarts; use storage.Seed to load a tree at startup.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rhuss/pubgate/pkg/storage"
)

// key scopes a path by tenant.
type key struct {
	tenant string
	path   string
}

// Store is an in-memory ObjectStore.
type Store struct {
	mu      sync.RWMutex
	objects map[key]*storage.Object
}

// Ensure Store implements storage.ObjectStore at compile time.
var _ storage.ObjectStore = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		objects: make(map[key]*storage.Object),
	}
}

// Get returns a copy of the object at path for the context's tenant.
func (s *Store) Get(ctx context.Context, path string) (*storage.Object, error) {
	path, err := storage.CleanPath(path)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key{storage.TenantFrom(ctx), path}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return obj.Clone(), nil
}

// Children returns copies of the direct children of path, ordered by path.
func (s *Store) Children(ctx context.Context, path string) ([]*storage.Object, error) {
	path, err := storage.CleanPath(path)
	if err != nil {
		return nil, err
	}
	tenant := storage.TenantFrom(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.objects[key{tenant, path}]; !ok {
		return nil, storage.ErrNotFound
	}

	var children []*storage.Object
	for k, obj := range s.objects {
		if k.tenant != tenant || k.path == "/" {
			continue
		}
		if storage.ParentPath(k.path) == path {
			children = append(children, obj.Clone())
		}
	}
	sort.Slice(children, func(i, j int) bool {
		return children[i].Path < children[j].Path
	})
	return children, nil
}

// Put stores a copy of obj, replacing any existing object at its path.
func (s *Store) Put(ctx context.Context, obj *storage.Object) error {
	path, err := storage.CleanPath(obj.Path)
	if err != nil {
		return err
	}
	tenant := storage.TenantFrom(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if path != "/" {
		parent := storage.ParentPath(path)
		if _, ok := s.objects[key{tenant, parent}]; !ok {
			return fmt.Errorf("parent %s: %w", parent, storage.ErrNotFound)
		}
	}

	stored := obj.Clone()
	stored.Path = path
	s.objects[key{tenant, path}] = stored
	return nil
}

// Delete removes the object at path and all of its descendants.
func (s *Store) Delete(ctx context.Context, path string) error {
	path, err := storage.CleanPath(path)
	if err != nil {
		return err
	}
	if path == "/" {
		return fmt.Errorf("deleting root: %w", storage.ErrConflict)
	}
	tenant := storage.TenantFrom(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[key{tenant, path}]; !ok {
		return storage.ErrNotFound
	}

	prefix := path + "/"
	for k := range s.objects {
		if k.tenant == tenant && (k.path == path || strings.HasPrefix(k.path, prefix)) {
			delete(s.objects, k)
		}
	}
	return nil
}

// Len returns the total number of stored objects across all tenants.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
