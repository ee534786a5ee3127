package storage

import (
	"context"
	"maps"
	"strings"
	"time"
)

// PermissionPublic marks an object as readable without any scope.
const PermissionPublic = "public"

// Object is a node in the published tree.
type Object struct {
	Path        string
	Title       string
	ContentType string
	Content     []byte

	// Permission is the scope a principal needs to traverse to the object.
	// Empty or PermissionPublic means anyone may.
	Permission string

	// DefaultView names the child rendered when the object itself is
	// requested by a browser.
	DefaultView string

	Properties map[string]string
	ModifiedAt time.Time
}

// Name returns the last path segment ("" for the root).
func (o *Object) Name() string {
	return BaseName(o.Path)
}

// Clone returns a deep copy, so callers can't mutate stored state.
func (o *Object) Clone() *Object {
	c := *o
	if o.Content != nil {
		c.Content = append([]byte(nil), o.Content...)
	}
	if o.Properties != nil {
		c.Properties = maps.Clone(o.Properties)
	}
	return &c
}

// ObjectStore persists the published object tree.
type ObjectStore interface {
	// Get returns the object at path or ErrNotFound.
	Get(ctx context.Context, path string) (*Object, error)

	// Children returns the direct children of path ordered by path.
	Children(ctx context.Context, path string) ([]*Object, error)

	// Put creates or replaces an object. The parent must already exist,
	// except for the root.
	Put(ctx context.Context, obj *Object) error

	// Delete removes the object at path together with its descendants.
	// The root cannot be deleted.
	Delete(ctx context.Context, path string) error

	// HealthCheck verifies the store backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases connections and resources.
	Close() error
}

// CleanPath validates path and returns it without a trailing slash.
func CleanPath(path string) (string, error) {
	if !strings.HasPrefix(path, "/") {
		return "", ErrInvalidPath
	}
	if path == "/" {
		return path, nil
	}
	path = strings.TrimSuffix(path, "/")
	for _, seg := range strings.Split(path[1:], "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", ErrInvalidPath
		}
	}
	return path, nil
}

// JoinPath appends name to the parent path.
func JoinPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

// ParentPath returns the parent of path. The root is its own parent.
func ParentPath(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i <= 0 {
		return "/"
	}
	return path[:i]
}

// BaseName returns the last segment of path.
func BaseName(path string) string {
	return path[strings.LastIndexByte(path, '/')+1:]
}
