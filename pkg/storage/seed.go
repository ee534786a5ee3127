package storage

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// seedFile is the YAML layout of a seed file.
type seedFile struct {
	Objects []seedObject `yaml:"objects"`
}

type seedObject struct {
	Path        string            `yaml:"path"`
	Title       string            `yaml:"title"`
	ContentType string            `yaml:"content_type"`
	Content     string            `yaml:"content"`
	Permission  string            `yaml:"permission"`
	DefaultView string            `yaml:"default_view"`
	Properties  map[string]string `yaml:"properties"`
}

// Seed parses a YAML object list and stores every object, parents first.
// It returns the number of objects stored.
func Seed(ctx context.Context, store ObjectStore, data []byte) (int, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return 0, fmt.Errorf("parsing seed: %w", err)
	}

	objs := make([]*Object, 0, len(f.Objects))
	now := time.Now().UTC()
	for _, so := range f.Objects {
		path, err := CleanPath(so.Path)
		if err != nil {
			return 0, fmt.Errorf("seed object %q: %w", so.Path, err)
		}
		objs = append(objs, &Object{
			Path:        path,
			Title:       so.Title,
			ContentType: so.ContentType,
			Content:     []byte(so.Content),
			Permission:  so.Permission,
			DefaultView: so.DefaultView,
			Properties:  so.Properties,
			ModifiedAt:  now,
		})
	}

	// Parents before children.
	sort.SliceStable(objs, func(i, j int) bool {
		return depth(objs[i].Path) < depth(objs[j].Path)
	})

	for _, obj := range objs {
		if err := store.Put(ctx, obj); err != nil {
			return 0, fmt.Errorf("storing %s: %w", obj.Path, err)
		}
	}
	return len(objs), nil
}

// SeedFile reads path and passes its content to Seed.
func SeedFile(ctx context.Context, store ObjectStore, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return Seed(ctx, store, data)
}

func depth(path string) int {
	if path == "/" {
		return 0
	}
	return strings.Count(path, "/")
}
