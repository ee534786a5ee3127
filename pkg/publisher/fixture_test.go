package publisher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rhuss/pubgate/pkg/output"
)

// app is a node in the fixture application tree.
type app struct {
	name     string
	children map[string]*app
}

func newApp(name string, children ...*app) *app {
	a := &app{name: name, children: make(map[string]*app)}
	for _, c := range children {
		a.children[c.name] = c
	}
	return a
}

func (a *app) String() string { return "app " + a.name }

// fixtureTree returns the root of /AcmeCorp/Engineering.
func fixtureTree() *app {
	return newApp("", newApp("AcmeCorp", newApp("Engineering")))
}

// testPublication counts hook invocations over a fixture tree owned by
// the test. Names missing from the tree traverse to "<name> value".
type testPublication struct {
	root *app

	beforeTraversal    int
	traversalHooks     int
	afterTraversal     int
	afterCall          int
	handled            []error
	handledRetryAllows []bool

	// callErr, if set, is returned by CallObject for the first
	// failCalls calls (all calls when failCalls is zero).
	callErr   error
	failCalls int
	calls     int

	// handleErr is returned by HandleException.
	handleErr error
}

func (p *testPublication) BeforeTraversal(ctx context.Context, req Request) error {
	p.beforeTraversal++
	return nil
}

func (p *testPublication) GetApplication(ctx context.Context, req Request) (any, error) {
	return p.root, nil
}

func (p *testPublication) CallTraversalHooks(ctx context.Context, req Request, ob any) error {
	p.traversalHooks++
	return nil
}

func (p *testPublication) TraverseName(ctx context.Context, req Request, ob any, name string) (any, error) {
	if a, ok := ob.(*app); ok {
		if child, ok := a.children[name]; ok {
			return child, nil
		}
	}
	return name + " value", nil
}

func (p *testPublication) AfterTraversal(ctx context.Context, req Request, ob any) error {
	p.afterTraversal++
	return nil
}

func (p *testPublication) CallObject(ctx context.Context, req Request, ob any) (any, error) {
	p.calls++
	if p.callErr != nil && (p.failCalls == 0 || p.calls <= p.failCalls) {
		return nil, p.callErr
	}
	return ob, nil
}

func (p *testPublication) AfterCall(ctx context.Context, req Request, ob any) error {
	p.afterCall++
	return nil
}

func (p *testPublication) HandleException(ctx context.Context, req Request, ob any, err error, retryAllowed bool) error {
	p.handled = append(p.handled, err)
	p.handledRetryAllows = append(p.handledRetryAllows, retryAllowed)
	if p.handleErr != nil {
		return p.handleErr
	}
	req.Response().SetBody([]byte(fmt.Sprintf("%T: %v", err, err)))
	return nil
}

// recorder is the transport end of an output.Output.
type recorder struct {
	starts  int
	status  string
	headers []output.Header
	body    bytes.Buffer
	user    string
}

func (r *recorder) start(status string, headers []output.Header) (output.Sink, error) {
	r.starts++
	r.status = status
	r.headers = headers
	return func(p []byte) error {
		r.body.Write(p)
		return nil
	}, nil
}

func (r *recorder) header(name string) (string, bool) {
	for _, h := range r.headers {
		if h.Name == name {
			return strings.TrimSpace(h.Value), true
		}
	}
	return "", false
}

// newTestRequest builds a request of the selected kind bound to pub and
// a recording output.
func newTestRequest(t *testing.T, method, target, contentType string, body io.Reader, pub Publication) (Request, *recorder) {
	t.Helper()
	hr := httptest.NewRequest(method, target, body)
	if contentType != "" {
		hr.Header.Set("Content-Type", contentType)
	}

	req, err := NewRequest(SelectKindFor(hr), hr, 1<<20)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}

	rec := &recorder{}
	out := output.New(rec.start, output.WithAuthUserHook(func(name string) { rec.user = name }))
	req.SetPublication(pub)
	req.Response().SetHeaderOutput(out)
	t.Cleanup(func() { _ = req.Close() })
	return req, rec
}

func newKindRequest(t *testing.T, kind Kind) Request {
	t.Helper()
	var hr *http.Request
	switch kind {
	case KindXMLRPC:
		hr = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(
			`<methodCall><methodName>ping</methodName></methodCall>`))
		hr.Header.Set("Content-Type", "text/xml")
	case KindBrowser:
		hr = httptest.NewRequest(http.MethodGet, "/", nil)
	default:
		hr = httptest.NewRequest(http.MethodPut, "/", nil)
	}
	req, err := NewRequest(kind, hr, 0)
	if err != nil {
		t.Fatalf("NewRequest(%v): %v", kind, err)
	}
	return req
}
