package publisher

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
)

// Request is the publication request seen by the pipeline and by
// Publication implementations.
type Request interface {
	Kind() Kind
	Method() string
	URL() *url.URL
	Header(name string) string
	Body() []byte
	Form() url.Values
	PositionalArguments() []any

	// TraversalStack returns the names left to traverse. The next name
	// is the last element.
	TraversalStack() []string
	SetTraversalStack(stack []string)
	// Traversed returns the names traversed so far, in order.
	Traversed() []string

	Response() *Response
	Publication() Publication
	SetPublication(p Publication)

	Principal() LoggingInfo
	SetPrincipal(p LoggingInfo)

	ProvideSkin(name string)
	ProvidesSkin(name string) bool
	Skin() string

	// Hold keeps c alive until Close.
	Hold(c io.Closer)
	// Close releases held resources in reverse order and drops the
	// response. It is safe to call more than once.
	Close() error

	pushTraversed(name string)
	resetTraversal(stack []string)
}

// BaseRequest carries the state shared by every request kind. The
// concrete kinds embed it.
type BaseRequest struct {
	kind   Kind
	method string
	url    *url.URL
	header http.Header
	body   []byte
	form   url.Values
	args   []any

	stack     []string
	traversed []string

	response    *Response
	publication Publication
	principal   LoggingInfo

	skins map[string]bool
	skin  string

	mu     sync.Mutex
	held   []io.Closer
	closed bool
}

func newBaseRequest(kind Kind, r *http.Request, body []byte, renderer Renderer) *BaseRequest {
	method := strings.ToUpper(r.Method)
	if method == "" {
		method = http.MethodGet
	}
	resp := NewResponse(renderer)
	resp.omitBody = method == http.MethodHead
	return &BaseRequest{
		kind:     kind,
		method:   method,
		url:      r.URL,
		header:   r.Header.Clone(),
		body:     body,
		form:     url.Values{},
		stack:    pathStack(r.URL.Path),
		response: resp,
		skins:    make(map[string]bool),
	}
}

// pathStack turns a URL path into a traversal stack.
func pathStack(p string) []string {
	names := pathNames(p)
	slices.Reverse(names)
	return names
}

// pathNames splits a URL path into names in traversal order. Empty and
// "." segments are dropped and ".." removes the previous segment.
func pathNames(p string) []string {
	var names []string
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(names) > 0 {
				names = names[:len(names)-1]
			}
		default:
			names = append(names, seg)
		}
	}
	return names
}

func (r *BaseRequest) Kind() Kind                 { return r.kind }
func (r *BaseRequest) Method() string             { return r.method }
func (r *BaseRequest) URL() *url.URL              { return r.url }
func (r *BaseRequest) Header(name string) string  { return r.header.Get(name) }
func (r *BaseRequest) Body() []byte               { return r.body }
func (r *BaseRequest) Form() url.Values           { return r.form }
func (r *BaseRequest) PositionalArguments() []any { return r.args }

func (r *BaseRequest) TraversalStack() []string {
	return slices.Clone(r.stack)
}

func (r *BaseRequest) SetTraversalStack(stack []string) {
	r.stack = slices.Clone(stack)
}

func (r *BaseRequest) Traversed() []string {
	return slices.Clone(r.traversed)
}

func (r *BaseRequest) pushTraversed(name string) {
	r.traversed = append(r.traversed, name)
}

func (r *BaseRequest) resetTraversal(stack []string) {
	r.stack = slices.Clone(stack)
	r.traversed = nil
}

func (r *BaseRequest) Response() *Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.response
}

func (r *BaseRequest) Publication() Publication     { return r.publication }
func (r *BaseRequest) SetPublication(p Publication) { r.publication = p }
func (r *BaseRequest) Principal() LoggingInfo       { return r.principal }

// SetPrincipal records the authenticated principal and reports it to the
// response so it reaches the header output on flush.
func (r *BaseRequest) SetPrincipal(p LoggingInfo) {
	r.principal = p
	if resp := r.Response(); resp != nil {
		resp.authUser = ""
		if p != nil {
			resp.authUser = p.LogMessage()
		}
	}
}

// ProvideSkin marks the request as providing the named skin. The most
// recently provided skin becomes the active one.
func (r *BaseRequest) ProvideSkin(name string) {
	r.skins[name] = true
	r.skin = name
}

func (r *BaseRequest) ProvidesSkin(name string) bool { return r.skins[name] }

// Skin returns the active skin, or "" when none was provided.
func (r *BaseRequest) Skin() string { return r.skin }

func (r *BaseRequest) Hold(c io.Closer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		_ = c.Close()
		return
	}
	r.held = append(r.held, c)
}

func (r *BaseRequest) Close() error {
	r.mu.Lock()
	held := r.held
	r.held = nil
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.response = nil
	r.publication = nil
	r.mu.Unlock()

	var errs []error
	for i := len(held) - 1; i >= 0; i-- {
		if err := held[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CloserFunc adapts a function to io.Closer for use with Hold.
type CloserFunc func() error

// Close calls f.
func (f CloserFunc) Close() error { return f() }
