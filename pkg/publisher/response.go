package publisher

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"strconv"

	"github.com/rhuss/pubgate/pkg/debug"
)

// ErrNoHeaderOutput is returned by Flush when no header output is bound.
var ErrNoHeaderOutput = errors.New("publisher: response has no header output")

// HeaderOutput receives the status, headers and body of a response. It
// defers sending headers until the first Write.
type HeaderOutput interface {
	SetStatus(code, reason string)
	SetHeaders(mapping map[string]string)
	AppendHeaders(lines []string)
	HeadersSent() bool
	SetAuthUserName(name string)
	Write(p []byte) (int, error)
}

// Renderer turns call results and errors into response bodies for one
// request kind.
type Renderer interface {
	RenderResult(resp *Response, result any) error
	RenderError(resp *Response, err error)
}

// Response collects the status, headers and body of a publication until
// it is flushed to its HeaderOutput.
type Response struct {
	renderer Renderer
	out      HeaderOutput

	status      int
	reason      string
	headers     map[string]string
	accumulated []string
	body        []byte

	authUser string
	omitBody bool
	streamed bool
	flushed  bool
}

// NewResponse returns a 200 OK response rendering through r.
func NewResponse(r Renderer) *Response {
	return &Response{
		renderer: r,
		status:   http.StatusOK,
		reason:   http.StatusText(http.StatusOK),
		headers:  make(map[string]string),
	}
}

// SetHeaderOutput binds the output the response is flushed to.
func (r *Response) SetHeaderOutput(out HeaderOutput) { r.out = out }

// HeaderOutput returns the bound output, or nil.
func (r *Response) HeaderOutput() HeaderOutput { return r.out }

// Status returns the status code.
func (r *Response) Status() int { return r.status }

// Reason returns the status reason phrase.
func (r *Response) Reason() string { return r.reason }

// SetStatus sets the status code. The reason defaults to the standard
// text for the code.
func (r *Response) SetStatus(code int, reason ...string) {
	r.status = code
	switch {
	case len(reason) > 0 && reason[0] != "":
		r.reason = reason[0]
	case http.StatusText(code) != "":
		r.reason = http.StatusText(code)
	default:
		r.reason = "Unknown"
	}
}

// Header returns the value of a unique header.
func (r *Response) Header(name string) string {
	return r.headers[http.CanonicalHeaderKey(name)]
}

// SetHeader sets a unique header, replacing any previous value.
func (r *Response) SetHeader(name, value string) {
	r.headers[http.CanonicalHeaderKey(name)] = value
}

// AppendHeader adds a header that may repeat, such as Set-Cookie.
func (r *Response) AppendHeader(name, value string) {
	r.accumulated = append(r.accumulated, http.CanonicalHeaderKey(name)+": "+value)
}

// SetCookie appends a Set-Cookie header for c.
func (r *Response) SetCookie(c *http.Cookie) {
	if v := c.String(); v != "" {
		r.AppendHeader("Set-Cookie", v)
	}
}

// Headers returns a copy of the unique headers.
func (r *Response) Headers() map[string]string { return maps.Clone(r.headers) }

// Body returns the buffered body.
func (r *Response) Body() []byte { return r.body }

// SetBody replaces the buffered body.
func (r *Response) SetBody(b []byte) { r.body = b }

// SetResult renders a call result into the response.
func (r *Response) SetResult(result any) error {
	return r.renderer.RenderResult(r, result)
}

// HandleError renders err into the response according to the request kind.
func (r *Response) HandleError(err error) {
	r.renderer.RenderError(r, err)
}

// Reset clears status, headers and body so the publication can run again.
func (r *Response) Reset() {
	r.status = http.StatusOK
	r.reason = http.StatusText(http.StatusOK)
	r.headers = make(map[string]string)
	r.accumulated = nil
	r.body = nil
}

// HeadersSent reports whether the output has already sent the headers.
func (r *Response) HeadersSent() bool {
	return r.out != nil && r.out.HeadersSent()
}

// Write streams p straight to the output, sending the headers collected
// so far first. Headers set afterwards are not sent.
func (r *Response) Write(p []byte) (int, error) {
	if r.out == nil {
		return 0, ErrNoHeaderOutput
	}
	if !r.out.HeadersSent() {
		r.pushHeaders(false)
	}
	if r.omitBody {
		r.streamed = true
		return len(p), nil
	}
	n, err := r.out.Write(p)
	if err != nil {
		return n, err
	}
	r.streamed = true
	return n, nil
}

// Flush sends the status, headers and buffered body. The body is written
// in a single call, even when empty. Flushing again after a successful
// flush is a no-op; a failed flush leaves the response unflushed so an
// error response can still replace it.
func (r *Response) Flush() error {
	if r.flushed {
		return nil
	}
	if r.out == nil {
		return ErrNoHeaderOutput
	}
	if r.streamed {
		r.flushed = true
		return nil
	}

	r.pushHeaders(true)
	body := r.body
	if r.omitBody {
		body = nil
	}
	if _, err := r.out.Write(body); err != nil {
		return fmt.Errorf("writing response body: %w", err)
	}
	r.flushed = true
	return nil
}

func (r *Response) pushHeaders(withLength bool) {
	headers := maps.Clone(r.headers)
	if withLength {
		if _, ok := headers["Content-Length"]; !ok {
			headers["Content-Length"] = strconv.Itoa(len(r.body))
		}
	}

	debug.Log("output", "sending headers", "status", r.status, "headers", len(headers)+len(r.accumulated))

	r.out.SetStatus(strconv.Itoa(r.status), r.reason)
	r.out.SetHeaders(headers)
	r.out.AppendHeaders(r.accumulated)
	if r.authUser != "" {
		r.out.SetAuthUserName(r.authUser)
	}
}
