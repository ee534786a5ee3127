package publisher

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"net/http"

	"github.com/rhuss/pubgate/pkg/api"
	"github.com/rhuss/pubgate/pkg/publisher/xmlrpc"
)

// Renderable is implemented by results that carry their own
// representation, such as stored documents.
type Renderable interface {
	Render() (body []byte, contentType string, err error)
}

// ErrorStatus maps an error to the status code and message sent to
// clients. Errors other than *api.APIError are reported as a generic
// server error so internal details do not leak.
func ErrorStatus(err error) (int, string) {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatus(), apiErr.Message
	}
	return http.StatusInternalServerError, "internal server error"
}

// renderValue writes result into resp. textType is the content type used
// for string results.
func renderValue(resp *Response, result any, textType string) error {
	var (
		body []byte
		ct   string
	)
	switch v := result.(type) {
	case nil:
		return nil
	case Renderable:
		b, t, err := v.Render()
		if err != nil {
			return err
		}
		body, ct = b, t
	case string:
		body, ct = []byte(v), textType
	case []byte:
		body, ct = v, "application/octet-stream"
	case fmt.Stringer:
		body, ct = []byte(v.String()), textType
	default:
		body, ct = []byte(fmt.Sprint(v)), "text/plain; charset=utf-8"
	}

	if resp.Header("Content-Type") == "" && ct != "" {
		resp.SetHeader("Content-Type", ct)
	}
	resp.SetBody(body)
	return nil
}

type browserRenderer struct{}

func (browserRenderer) RenderResult(resp *Response, result any) error {
	return renderValue(resp, result, "text/html; charset=utf-8")
}

func (browserRenderer) RenderError(resp *Response, err error) {
	status, msg := ErrorStatus(err)
	resp.SetStatus(status)
	resp.SetHeader("Content-Type", "text/html; charset=utf-8")
	title := html.EscapeString(fmt.Sprintf("%d %s", status, resp.Reason()))
	resp.SetBody(fmt.Appendf(nil,
		"<html><head><title>%s</title></head><body><h1>%s</h1><p>%s</p></body></html>\n",
		title, title, html.EscapeString(msg)))
}

type httpRenderer struct{}

func (httpRenderer) RenderResult(resp *Response, result any) error {
	return renderValue(resp, result, "text/plain; charset=utf-8")
}

func (httpRenderer) RenderError(resp *Response, err error) {
	status, msg := ErrorStatus(err)
	resp.SetStatus(status)
	resp.SetHeader("Content-Type", "text/plain; charset=utf-8")
	resp.SetBody([]byte(msg + "\n"))
}

// xmlrpcRenderer encodes results as methodResponse documents. Errors
// become faults carrying the HTTP status as fault code, sent with a 200
// status. Unauthorized stays a 401 so clients can answer the challenge.
type xmlrpcRenderer struct{}

func (xmlrpcRenderer) RenderResult(resp *Response, result any) error {
	if r, ok := result.(Renderable); ok {
		if _, isValuer := result.(xmlrpc.Valuer); !isValuer {
			b, _, err := r.Render()
			if err != nil {
				return err
			}
			result = string(b)
		}
	}

	var buf bytes.Buffer
	if err := xmlrpc.EncodeResponse(&buf, result); err != nil {
		return fmt.Errorf("encoding xml-rpc response: %w", err)
	}
	resp.SetHeader("Content-Type", xmlrpc.ContentType)
	resp.SetBody(buf.Bytes())
	return nil
}

func (xmlrpcRenderer) RenderError(resp *Response, err error) {
	status, msg := ErrorStatus(err)
	if status == http.StatusUnauthorized {
		resp.SetStatus(status)
		resp.SetHeader("Content-Type", "text/plain; charset=utf-8")
		resp.SetBody([]byte(msg + "\n"))
		return
	}

	var buf bytes.Buffer
	// Encoding a fault of an int and a string cannot fail.
	_ = xmlrpc.EncodeFault(&buf, status, msg)
	resp.SetStatus(http.StatusOK)
	resp.SetHeader("Content-Type", xmlrpc.ContentType)
	resp.SetBody(buf.Bytes())
}
