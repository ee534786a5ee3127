package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/rhuss/pubgate/pkg/storage"
)

func newTree(t *testing.T) *Store {
	t.Helper()
	s := New()
	ctx := context.Background()
	for _, obj := range []*storage.Object{
		{Path: "/", Title: "Root"},
		{Path: "/AcmeCorp", Title: "AcmeCorp"},
		{Path: "/AcmeCorp/Engineering", Title: "Engineering", Content: []byte("eng")},
		{Path: "/AcmeCorp/Sales", Title: "Sales"},
	} {
		if err := s.Put(ctx, obj); err != nil {
			t.Fatalf("Put(%s): %v", obj.Path, err)
		}
	}
	return s
}

func TestPutAndGet(t *testing.T) {
	s := newTree(t)

	got, err := s.Get(context.Background(), "/AcmeCorp/Engineering")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Title != "Engineering" {
		t.Errorf("Title = %q, want %q", got.Title, "Engineering")
	}
	if string(got.Content) != "eng" {
		t.Errorf("Content = %q, want %q", got.Content, "eng")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := newTree(t)
	ctx := context.Background()

	got, _ := s.Get(ctx, "/AcmeCorp/Engineering")
	got.Title = "mutated"
	got.Content[0] = 'X'

	again, _ := s.Get(ctx, "/AcmeCorp/Engineering")
	if again.Title != "Engineering" || string(again.Content) != "eng" {
		t.Errorf("stored object was mutated through returned copy: %+v", again)
	}
}

func TestGetNotFound(t *testing.T) {
	s := newTree(t)

	_, err := s.Get(context.Background(), "/missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetInvalidPath(t *testing.T) {
	s := newTree(t)

	_, err := s.Get(context.Background(), "relative")
	if !errors.Is(err, storage.ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath, got %v", err)
	}
}

func TestPutRequiresParent(t *testing.T) {
	s := newTree(t)

	err := s.Put(context.Background(), &storage.Object{Path: "/nope/child"})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing parent, got %v", err)
	}
}

func TestPutReplaces(t *testing.T) {
	s := newTree(t)
	ctx := context.Background()

	if err := s.Put(ctx, &storage.Object{Path: "/AcmeCorp/Sales/", Title: "New Sales"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, _ := s.Get(ctx, "/AcmeCorp/Sales")
	if got.Title != "New Sales" {
		t.Errorf("Title = %q, want %q", got.Title, "New Sales")
	}
	if s.Len() != 4 {
		t.Errorf("Len() = %d, want 4", s.Len())
	}
}

func TestChildren(t *testing.T) {
	s := newTree(t)

	children, err := s.Children(context.Background(), "/AcmeCorp")
	if err != nil {
		t.Fatalf("Children failed: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("len(children) = %d, want 2", len(children))
	}
	if children[0].Path != "/AcmeCorp/Engineering" || children[1].Path != "/AcmeCorp/Sales" {
		t.Errorf("children = %s, %s", children[0].Path, children[1].Path)
	}

	root, _ := s.Children(context.Background(), "/")
	if len(root) != 1 || root[0].Path != "/AcmeCorp" {
		t.Errorf("root children = %v", root)
	}
}

func TestDeleteRemovesSubtree(t *testing.T) {
	s := newTree(t)
	ctx := context.Background()

	if err := s.Delete(ctx, "/AcmeCorp"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, "/AcmeCorp/Engineering"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("descendant survived delete: %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestDeleteRootConflict(t *testing.T) {
	s := newTree(t)

	err := s.Delete(context.Background(), "/")
	if !errors.Is(err, storage.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestDeleteNotFound(t *testing.T) {
	s := newTree(t)

	err := s.Delete(context.Background(), "/missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTenantIsolation(t *testing.T) {
	s := New()
	ctxA := storage.WithTenant(context.Background(), "tenant-a")
	ctxB := storage.WithTenant(context.Background(), "tenant-b")

	s.Put(ctxA, &storage.Object{Path: "/", Title: "A"})
	s.Put(ctxB, &storage.Object{Path: "/", Title: "B"})

	a, err := s.Get(ctxA, "/")
	if err != nil || a.Title != "A" {
		t.Errorf("tenant A root = %+v, %v", a, err)
	}
	b, err := s.Get(ctxB, "/")
	if err != nil || b.Title != "B" {
		t.Errorf("tenant B root = %+v, %v", b, err)
	}
	if _, err := s.Get(context.Background(), "/"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("default tenant should not see other tenants, got %v", err)
	}
}

func TestSeed(t *testing.T) {
	s := New()
	seed := `
objects:
  - path: /docs/intro
    title: Intro
    content_type: text/plain
    content: hello
  - path: /
    title: Root
    default_view: index_html
  - path: /docs
    title: Docs
    permission: read
    properties:
      owner: alice
`
	n, err := storage.Seed(context.Background(), s, []byte(seed))
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if n != 3 {
		t.Errorf("seeded %d objects, want 3", n)
	}

	docs, err := s.Get(context.Background(), "/docs")
	if err != nil {
		t.Fatalf("Get(/docs): %v", err)
	}
	if docs.Permission != "read" || docs.Properties["owner"] != "alice" {
		t.Errorf("docs = %+v", docs)
	}
	intro, _ := s.Get(context.Background(), "/docs/intro")
	if string(intro.Content) != "hello" || intro.ContentType != "text/plain" {
		t.Errorf("intro = %+v", intro)
	}
}

func TestSeedInvalidPath(t *testing.T) {
	_, err := storage.Seed(context.Background(), New(), []byte("objects:\n  - path: nope\n"))
	if !errors.Is(err, storage.ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath, got %v", err)
	}
}
