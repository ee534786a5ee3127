package output

import (
	"errors"
	"strings"
)

// ErrNilSink is returned by Write when the StartFunc returns no sink.
var ErrNilSink = errors.New("output: start returned nil sink")

// Header is a single response header as handed to the transport.
type Header struct {
	Name  string
	Value string
}

// Sink receives body bytes once the response has begun.
type Sink func(p []byte) error

// StartFunc begins the response on the underlying transport. It receives the
// status line ("<code> <reason>") and the full header list, and returns the
// sink that accepts the body.
type StartFunc func(status string, headers []Header) (Sink, error)

// Option configures an Output.
type Option func(*Output)

// WithAuthUserHook forwards names passed to SetAuthUserName to fn, typically
// an access logger.
func WithAuthUserHook(fn func(name string)) Option {
	return func(o *Output) { o.onAuthUser = fn }
}

// Output accumulates status and headers and flushes them on first write.
// It is not safe for concurrent use; one Output serves one request.
type Output struct {
	start StartFunc
	sink  Sink

	status      string
	headers     map[string]string
	headerOrder []string
	accumulated []string
	headersSent bool

	onAuthUser func(name string)
}

// New creates an Output that begins the response through start.
func New(start StartFunc, opts ...Option) *Output {
	o := &Output{
		start:   start,
		headers: make(map[string]string),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SetStatus sets the status line to "<code> <reason>". The code is not
// validated; the last call wins.
func (o *Output) SetStatus(code, reason string) {
	o.status = code + " " + reason
}

// Status returns the current status line.
func (o *Output) Status() string {
	return o.status
}

// SetHeaders merges headers into the unique header set. Names are used as
// given; callers are responsible for their casing.
func (o *Output) SetHeaders(headers map[string]string) {
	for name, value := range headers {
		if _, ok := o.headers[name]; !ok {
			o.headerOrder = append(o.headerOrder, name)
		}
		o.headers[name] = value
	}
}

// AppendHeaders appends raw "Name: value" lines that may repeat.
func (o *Output) AppendHeaders(lines []string) {
	o.accumulated = append(o.accumulated, lines...)
}

// HeadersSent reports whether the response has begun on the transport.
func (o *Output) HeadersSent() bool {
	return o.headersSent
}

// SetAuthUserName records the authenticated user for logging. Without a
// hook installed it does nothing.
func (o *Output) SetAuthUserName(name string) {
	if o.onAuthUser != nil {
		o.onAuthUser(name)
	}
}

// HeaderList returns the unique headers in insertion order followed by the
// repeatable headers in append order.
func (o *Output) HeaderList() []Header {
	list := make([]Header, 0, len(o.headerOrder)+len(o.accumulated))
	for _, name := range o.headerOrder {
		list = append(list, Header{Name: name, Value: o.headers[name]})
	}
	for _, line := range o.accumulated {
		list = append(list, ParseHeaderLine(line))
	}
	return list
}

// Write begins the response on first use and forwards p to the transport
// sink. Errors from the StartFunc or the sink are returned unchanged; if the
// StartFunc fails, headers are considered unsent.
func (o *Output) Write(p []byte) (int, error) {
	if !o.headersSent {
		sink, err := o.start(o.status, o.HeaderList())
		if err != nil {
			return 0, err
		}
		if sink == nil {
			return 0, ErrNilSink
		}
		o.sink = sink
		o.headersSent = true
	}

	if err := o.sink(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// ParseHeaderLine splits a raw header line on its first colon. The value is
// kept verbatim, including leading whitespace.
func ParseHeaderLine(line string) Header {
	name, value, _ := strings.Cut(line, ":")
	return Header{Name: name, Value: value}
}
