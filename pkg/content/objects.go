package content

import (
	"bytes"
	"fmt"
	"html"
	"time"

	"github.com/rhuss/pubgate/pkg/api"
	"github.com/rhuss/pubgate/pkg/storage"
)

// ListingView is the name that renders the children of an object.
const ListingView = "contents"

// skinViewPrefix marks properties naming the default view of one skin,
// e.g. "view:mobile".
const skinViewPrefix = "view:"

// Document is a stored object reached by traversal.
type Document struct {
	*storage.Object

	// view is the default view resolved after traversal, if any.
	view *Document
}

// Render implements publisher.Renderable.
func (d *Document) Render() ([]byte, string, error) {
	ct := d.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	return d.Content, ct, nil
}

// XMLRPCValue implements xmlrpc.Valuer.
func (d *Document) XMLRPCValue() any {
	props := d.Properties
	if props == nil {
		props = map[string]string{}
	}
	return map[string]any{
		"path":         d.Path,
		"title":        d.Title,
		"content_type": d.ContentType,
		"content":      string(d.Content),
		"properties":   props,
		"modified":     d.ModifiedAt.UTC(),
	}
}

// property resolves name against the stored properties, then the
// built-in attributes.
func (d *Document) property(name string) (string, bool) {
	if v, ok := d.Properties[name]; ok {
		return v, true
	}
	switch name {
	case "title":
		return d.Title, true
	case "content_type":
		return d.ContentType, true
	case "modified":
		if d.ModifiedAt.IsZero() {
			return "", true
		}
		return d.ModifiedAt.UTC().Format(time.RFC3339), true
	}
	return "", false
}

// Property is a single property value of a document.
type Property struct {
	Owner *Document
	Name  string
	Value string
}

// Render implements publisher.Renderable.
func (p *Property) Render() ([]byte, string, error) {
	return []byte(p.Value), "text/plain; charset=utf-8", nil
}

// XMLRPCValue implements xmlrpc.Valuer.
func (p *Property) XMLRPCValue() any { return p.Value }

// NullResource stands in for an object that a PUT is about to create.
type NullResource struct {
	Parent *Document
	Name   string
}

// Path returns the path the resource will be created at.
func (n *NullResource) Path() string { return storage.JoinPath(n.Parent.Path, n.Name) }

// Listing is the list of children of a document visible to the caller.
type Listing struct {
	Parent   *Document
	Children []*Document
}

// Render implements publisher.Renderable as a minimal HTML index.
func (l *Listing) Render() ([]byte, string, error) {
	var buf bytes.Buffer
	title := html.EscapeString(l.Parent.Title)
	if title == "" {
		title = html.EscapeString(l.Parent.Path)
	}
	fmt.Fprintf(&buf, "<html><head><title>%s</title></head><body><h1>%s</h1><ul>\n", title, title)
	for _, c := range l.Children {
		label := c.Title
		if label == "" {
			label = c.Name()
		}
		fmt.Fprintf(&buf, "<li><a href=\"%s\">%s</a></li>\n", html.EscapeString(c.Path), html.EscapeString(label))
	}
	buf.WriteString("</ul></body></html>\n")
	return buf.Bytes(), "text/html; charset=utf-8", nil
}

// XMLRPCValue implements xmlrpc.Valuer.
func (l *Listing) XMLRPCValue() any {
	items := make([]any, 0, len(l.Children))
	for _, c := range l.Children {
		items = append(items, map[string]any{
			"name":         c.Name(),
			"path":         c.Path,
			"title":        c.Title,
			"content_type": c.ContentType,
		})
	}
	return items
}

// withProperty returns a copy of obj with one property changed. The
// built-in title and content_type attributes are written to their fields;
// modified is maintained by the publication and cannot be set.
func withProperty(obj *storage.Object, name, value string) (*storage.Object, error) {
	c := obj.Clone()
	switch name {
	case "title":
		c.Title = value
		delete(c.Properties, name)
		return c, nil
	case "content_type":
		c.ContentType = value
		delete(c.Properties, name)
		return c, nil
	case "modified":
		return nil, api.NewInvalidRequestError(name, "property is read-only")
	}
	if c.Properties == nil {
		c.Properties = make(map[string]string)
	}
	c.Properties[name] = value
	return c, nil
}
