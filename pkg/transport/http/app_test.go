package http

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	gohttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rhuss/pubgate/pkg/api"
	"github.com/rhuss/pubgate/pkg/output"
	"github.com/rhuss/pubgate/pkg/publisher"
	"github.com/rhuss/pubgate/pkg/publisher/xmlrpc"
	"github.com/rhuss/pubgate/pkg/transport"
)

// echoPublication publishes every path as the string "published <path>".
// The names "missing", "boom" and "unhandled" trigger the failure modes,
// and "/badstatus" sets a status the transport cannot send.
type echoPublication struct {
	principal string
	held      *closeTracker
	during    func()
}

type closeTracker struct{ closed bool }

func (c *closeTracker) Close() error { c.closed = true; return nil }

func (p *echoPublication) BeforeTraversal(ctx context.Context, req publisher.Request) error {
	if p.principal != "" {
		req.SetPrincipal(publisher.PrincipalLoggingInfo(p.principal))
	}
	if p.held != nil {
		req.Hold(p.held)
	}
	return nil
}

func (p *echoPublication) GetApplication(ctx context.Context, req publisher.Request) (any, error) {
	return "", nil
}

func (p *echoPublication) CallTraversalHooks(ctx context.Context, req publisher.Request, ob any) error {
	return nil
}

func (p *echoPublication) TraverseName(ctx context.Context, req publisher.Request, ob any, name string) (any, error) {
	switch name {
	case "missing":
		return nil, api.NewNotFoundError(name + " not found")
	case "boom":
		panic("traversal exploded")
	case "unhandled":
		return nil, errors.New("unhandled failure")
	}
	return ob.(string) + "/" + name, nil
}

func (p *echoPublication) AfterTraversal(ctx context.Context, req publisher.Request, ob any) error {
	return nil
}

func (p *echoPublication) CallObject(ctx context.Context, req publisher.Request, ob any) (any, error) {
	if p.during != nil {
		p.during()
	}
	if ob == "/stream" {
		_, err := req.Response().Write([]byte("streamed chunk"))
		return nil, err
	}
	if ob == "/badstatus" {
		req.Response().SetStatus(42)
		return "body", nil
	}
	if req.Kind() == publisher.KindXMLRPC {
		return req.PositionalArguments(), nil
	}
	return "published " + ob.(string), nil
}

func (p *echoPublication) AfterCall(ctx context.Context, req publisher.Request, ob any) error {
	return nil
}

func (p *echoPublication) HandleException(ctx context.Context, req publisher.Request, ob any, err error, retryAllowed bool) error {
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	resp := req.Response()
	resp.Reset()
	resp.HandleError(apiErr)
	return nil
}

func newTestApp(pub publisher.Publication, cfg Config, mw ...transport.Middleware) *App {
	return NewApp(pub, publisher.New(), cfg, mw...)
}

func TestAppBrowserGet(t *testing.T) {
	app := newTestApp(&echoPublication{}, DefaultConfig())

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(gohttp.MethodGet, "/docs/readme", nil))

	if rec.Code != gohttp.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "published /docs/readme" {
		t.Errorf("body = %q", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cl := rec.Header().Get("Content-Length"); cl != "22" {
		t.Errorf("Content-Length = %q, want 22", cl)
	}
}

func TestAppHeadOmitsBody(t *testing.T) {
	app := newTestApp(&echoPublication{}, DefaultConfig())

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(gohttp.MethodHead, "/docs", nil))

	if rec.Code != gohttp.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("HEAD body = %q, want empty", rec.Body.String())
	}
	if cl := rec.Header().Get("Content-Length"); cl != "15" {
		t.Errorf("Content-Length = %q, want 15", cl)
	}
}

func TestAppHandledError(t *testing.T) {
	app := newTestApp(&echoPublication{}, DefaultConfig())

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(gohttp.MethodGet, "/docs/missing", nil))

	if rec.Code != gohttp.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "missing not found") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestAppUnhandledError(t *testing.T) {
	app := newTestApp(&echoPublication{}, DefaultConfig())

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(gohttp.MethodPut, "/unhandled", strings.NewReader("x")))

	if rec.Code != gohttp.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestAppRecoversPanic(t *testing.T) {
	app := newTestApp(&echoPublication{}, DefaultConfig(), transport.Recovery())

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(gohttp.MethodGet, "/boom", nil))

	if rec.Code != gohttp.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "traversal exploded") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestAppStreamedBody(t *testing.T) {
	app := newTestApp(&echoPublication{}, DefaultConfig())

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(gohttp.MethodGet, "/stream", nil))

	if rec.Code != gohttp.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "streamed chunk" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if cl := rec.Header().Get("Content-Length"); cl != "" {
		t.Errorf("streamed response carries Content-Length %q", cl)
	}
}

func TestAppXMLRPC(t *testing.T) {
	app := newTestApp(&echoPublication{}, DefaultConfig())

	var body bytes.Buffer
	if err := xmlrpc.EncodeCall(&body, "docs.echo", "hello", 42); err != nil {
		t.Fatalf("EncodeCall: %v", err)
	}
	r := httptest.NewRequest(gohttp.MethodPost, "/", &body)
	r.Header.Set("Content-Type", "text/xml; charset=utf-8")

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, r)

	if rec.Code != gohttp.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	result, err := xmlrpc.DecodeResponse(rec.Body)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	params, ok := result.([]any)
	if !ok || len(params) != 2 || params[0] != "hello" || params[1] != int64(42) {
		t.Errorf("result = %#v", result)
	}
}

func TestAppXMLRPCMalformedBody(t *testing.T) {
	app := newTestApp(&echoPublication{}, DefaultConfig())

	r := httptest.NewRequest(gohttp.MethodPost, "/", strings.NewReader("<methodCall><oops"))
	r.Header.Set("Content-Type", "text/xml")

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, r)

	if rec.Code != gohttp.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	_, err := xmlrpc.DecodeResponse(rec.Body)
	var fault *xmlrpc.Fault
	if !errors.As(err, &fault) {
		t.Fatalf("expected fault, got %v", err)
	}
	if fault.Code != gohttp.StatusBadRequest {
		t.Errorf("fault code = %d, want 400", fault.Code)
	}
}

func TestAppBodyTooLarge(t *testing.T) {
	app := newTestApp(&echoPublication{}, Config{MaxBodySize: 8})

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(gohttp.MethodPut, "/docs", strings.NewReader(strings.Repeat("x", 100))))

	if rec.Code != gohttp.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestAppAccessLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	app := newTestApp(&echoPublication{principal: "alice"}, DefaultConfig(), transport.Logging(logger))

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(gohttp.MethodGet, "/docs", nil))

	out := buf.String()
	for _, want := range []string{"user=alice", `status="200 OK"`, "kind=browser", "path=/docs"} {
		if !strings.Contains(out, want) {
			t.Errorf("access log missing %q in:\n%s", want, out)
		}
	}
}

func TestAppClosesRequest(t *testing.T) {
	tracker := &closeTracker{}
	app := newTestApp(&echoPublication{held: tracker}, DefaultConfig())

	app.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(gohttp.MethodGet, "/docs", nil))

	if !tracker.closed {
		t.Error("held resource was not closed")
	}
}

func TestAppTracksInFlight(t *testing.T) {
	pub := &echoPublication{}
	app := newTestApp(pub, DefaultConfig())

	var during int
	pub.during = func() { during = app.InFlight().Len() }

	app.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(gohttp.MethodGet, "/docs", nil))

	if during != 1 {
		t.Errorf("in-flight during publish = %d, want 1", during)
	}
	if app.InFlight().Len() != 0 {
		t.Errorf("in-flight after publish = %d, want 0", app.InFlight().Len())
	}
}

func TestStartResponsePreservesHeaderCase(t *testing.T) {
	rec := httptest.NewRecorder()
	entry := &transport.AccessEntry{}

	sink, err := startResponse(rec, entry)("201 Created", []output.Header{
		{Name: "x-weird-Case", Value: " spaced "},
		{Name: "Set-Cookie", Value: " a=1"},
		{Name: "Set-Cookie", Value: " b=2"},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := sink([]byte("body")); err != nil {
		t.Fatalf("sink: %v", err)
	}

	if rec.Code != gohttp.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if got := rec.Header()["x-weird-Case"]; len(got) != 1 || got[0] != "spaced" {
		t.Errorf("x-weird-Case = %v", got)
	}
	if got := rec.Header()["Set-Cookie"]; len(got) != 2 || got[0] != "a=1" || got[1] != "b=2" {
		t.Errorf("Set-Cookie = %v", got)
	}
	if entry.Status() != "201 Created" {
		t.Errorf("access status = %q", entry.Status())
	}
	if rec.Body.String() != "body" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		status  string
		want    int
		wantErr bool
	}{
		{"200 OK", 200, false},
		{"404 Not Found", 404, false},
		{"299", 299, false},
		{"", 0, true},
		{"abc OK", 0, true},
		{"42 Tiny", 0, true},
	}
	for _, tt := range tests {
		got, err := parseStatus(tt.status)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseStatus(%q) error = %v, wantErr %v", tt.status, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseStatus(%q) = %d, want %d", tt.status, got, tt.want)
		}
	}
}

func TestAppInvalidStatusRendersServerError(t *testing.T) {
	app := newTestApp(&echoPublication{}, DefaultConfig())

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(gohttp.MethodGet, "/badstatus", nil))

	if rec.Code != gohttp.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := rec.Body.String(); got == "" || got == "body" {
		t.Errorf("body = %q, want an error page", got)
	}
}
