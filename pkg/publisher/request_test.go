package publisher

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/rhuss/pubgate/pkg/api"
)

var allKinds = []Kind{KindBrowser, KindXMLRPC, KindHTTP}

func TestTraversalStack(t *testing.T) {
	for _, kind := range allKinds {
		t.Run(kind.String(), func(t *testing.T) {
			req := newKindRequest(t, kind)
			stack := []string{"Engineering", "AcmeCorp"}
			req.SetTraversalStack(stack)

			if got := req.TraversalStack(); !reflect.DeepEqual(got, stack) {
				t.Errorf("TraversalStack() = %v, want %v", got, stack)
			}

			// The request keeps its own copy.
			stack[0] = "changed"
			if got := req.TraversalStack(); got[0] != "Engineering" {
				t.Errorf("stack aliased caller slice: %v", got)
			}
		})
	}
}

type trackingCloser struct {
	name   string
	closed *[]string
	err    error
}

func (c trackingCloser) Close() error {
	*c.closed = append(*c.closed, c.name)
	return c.err
}

func TestHoldCloseAndResponse(t *testing.T) {
	for _, kind := range allKinds {
		t.Run(kind.String(), func(t *testing.T) {
			req := newKindRequest(t, kind)
			if req.Response() == nil {
				t.Fatal("Response() is nil before Close")
			}

			var closed []string
			req.Hold(trackingCloser{name: "first", closed: &closed})
			req.Hold(trackingCloser{name: "second", closed: &closed})
			if len(closed) != 0 {
				t.Fatalf("held resources closed early: %v", closed)
			}

			if err := req.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			if want := []string{"second", "first"}; !reflect.DeepEqual(closed, want) {
				t.Errorf("close order = %v, want %v", closed, want)
			}
			if req.Response() != nil {
				t.Error("Response() should be released after Close")
			}

			if err := req.Close(); err != nil {
				t.Errorf("second Close: %v", err)
			}
			if len(closed) != 2 {
				t.Errorf("resources closed again: %v", closed)
			}
		})
	}
}

func TestHoldAfterCloseClosesImmediately(t *testing.T) {
	req := newKindRequest(t, KindBrowser)
	_ = req.Close()

	var closed []string
	req.Hold(trackingCloser{name: "late", closed: &closed})
	if !reflect.DeepEqual(closed, []string{"late"}) {
		t.Errorf("closed = %v, want [late]", closed)
	}
}

func TestCloseJoinsErrors(t *testing.T) {
	req := newKindRequest(t, KindHTTP)
	var closed []string
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	req.Hold(trackingCloser{name: "a", closed: &closed, err: errA})
	req.Hold(trackingCloser{name: "b", closed: &closed, err: errB})

	err := req.Close()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Close() = %v, want both errors", err)
	}
	if len(closed) != 2 {
		t.Errorf("closed = %v, want both resources closed", closed)
	}
}

func TestSkinManagement(t *testing.T) {
	for _, kind := range allKinds {
		t.Run(kind.String(), func(t *testing.T) {
			req := newKindRequest(t, kind)
			if req.ProvidesSkin("MoreFoo") {
				t.Error("request should not provide MoreFoo yet")
			}
			req.ProvideSkin("MoreFoo")
			if !req.ProvidesSkin("MoreFoo") {
				t.Error("request should provide MoreFoo")
			}
			if req.Skin() != "MoreFoo" {
				t.Errorf("Skin() = %q, want MoreFoo", req.Skin())
			}
		})
	}
}

func TestPathStack(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"/", nil},
		{"/AcmeCorp/Engineering", []string{"Engineering", "AcmeCorp"}},
		{"//AcmeCorp/./Engineering/", []string{"Engineering", "AcmeCorp"}},
		{"/AcmeCorp/x/../Engineering", []string{"Engineering", "AcmeCorp"}},
		{"/../../a", []string{"a"}},
	}
	for _, tt := range tests {
		if got := pathStack(tt.path); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("pathStack(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestBrowserRequestForm(t *testing.T) {
	hr := httptest.NewRequest(http.MethodPost, "/docs?q=1", strings.NewReader("title=Hello&q=2"))
	hr.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	req, err := NewRequest(KindBrowser, hr, 0)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	defer req.Close()

	if got := req.Form().Get("title"); got != "Hello" {
		t.Errorf("title = %q, want Hello", got)
	}
	if got := req.Form()["q"]; !reflect.DeepEqual(got, []string{"1", "2"}) {
		t.Errorf("q = %v, want [1 2]", got)
	}
	if len(req.PositionalArguments()) != 0 {
		t.Errorf("browser requests have no positional arguments, got %v", req.PositionalArguments())
	}
}

func TestBrowserRequestMultipart(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("title", "Report")
	fw, _ := mw.CreateFormFile("file", "report.txt")
	_, _ = fw.Write([]byte("contents"))
	_ = mw.Close()

	hr := httptest.NewRequest(http.MethodPost, "/docs", &buf)
	hr.Header.Set("Content-Type", mw.FormDataContentType())

	req, err := NewRequest(KindBrowser, hr, 0)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	defer req.Close()

	if got := req.Form().Get("title"); got != "Report" {
		t.Errorf("title = %q, want Report", got)
	}
	br := req.(*BrowserRequest)
	if files := br.Files()["file"]; len(files) != 1 || files[0].Filename != "report.txt" {
		t.Errorf("files = %v", br.Files())
	}
}

func TestXMLRPCRequest(t *testing.T) {
	body := `<?xml version="1.0"?>
<methodCall>
  <methodName>reports.summary</methodName>
  <params>
    <param><value><string>2024</string></value></param>
    <param><value><int>3</int></value></param>
  </params>
</methodCall>`
	hr := httptest.NewRequest(http.MethodPost, "/AcmeCorp", strings.NewReader(body))
	hr.Header.Set("Content-Type", "text/xml")

	req, err := NewRequest(KindXMLRPC, hr, 0)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	defer req.Close()

	if want := []string{"summary", "reports", "AcmeCorp"}; !reflect.DeepEqual(req.TraversalStack(), want) {
		t.Errorf("TraversalStack() = %v, want %v", req.TraversalStack(), want)
	}
	if want := []any{"2024", int64(3)}; !reflect.DeepEqual(req.PositionalArguments(), want) {
		t.Errorf("PositionalArguments() = %v, want %v", req.PositionalArguments(), want)
	}
	if got := req.(*XMLRPCRequest).MethodName(); got != "reports.summary" {
		t.Errorf("MethodName() = %q", got)
	}
	if req.Method() != http.MethodPost {
		t.Errorf("Method() = %q, want POST", req.Method())
	}
}

func TestNewRequestErrors(t *testing.T) {
	t.Run("malformed xml-rpc", func(t *testing.T) {
		hr := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("not xml"))
		_, err := NewRequest(KindXMLRPC, hr, 0)
		var apiErr *api.APIError
		if !errors.As(err, &apiErr) || apiErr.Type != api.ErrorTypeInvalidRequest {
			t.Errorf("err = %v, want invalid_request", err)
		}
	})

	t.Run("body too large", func(t *testing.T) {
		hr := httptest.NewRequest(http.MethodPut, "/doc", strings.NewReader(strings.Repeat("x", 11)))
		_, err := NewRequest(KindHTTP, hr, 10)
		var apiErr *api.APIError
		if !errors.As(err, &apiErr) || apiErr.HTTPStatus() != http.StatusRequestEntityTooLarge {
			t.Errorf("err = %v, want request_too_large", err)
		}
	})

	t.Run("body at limit", func(t *testing.T) {
		hr := httptest.NewRequest(http.MethodPut, "/doc", strings.NewReader(strings.Repeat("x", 10)))
		req, err := NewRequest(KindHTTP, hr, 10)
		if err != nil {
			t.Fatalf("NewRequest: %v", err)
		}
		if len(req.Body()) != 10 {
			t.Errorf("len(Body()) = %d, want 10", len(req.Body()))
		}
	})

	t.Run("malformed form", func(t *testing.T) {
		hr := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("a=%zz"))
		hr.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		_, err := NewRequest(KindBrowser, hr, 0)
		var apiErr *api.APIError
		if !errors.As(err, &apiErr) || apiErr.Type != api.ErrorTypeInvalidRequest {
			t.Errorf("err = %v, want invalid_request", err)
		}
	})
}

func TestPrincipalLoggingInfo(t *testing.T) {
	if got := PrincipalLoggingInfo("acme/alice").LogMessage(); got != "acme/alice" {
		t.Errorf("LogMessage() = %q", got)
	}
	if got := PrincipalLoggingInfo("bob\nsmith").LogMessage(); got != "bob?smith" {
		t.Errorf("LogMessage() = %q, want control characters replaced", got)
	}
}
