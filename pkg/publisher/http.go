package publisher

import "net/http"

// HTTPRequest publishes requests with methods outside the browser set,
// such as PUT, DELETE and OPTIONS. The body is left raw.
type HTTPRequest struct {
	*BaseRequest
}

// NewHTTPRequest builds a generic request over an already read body.
func NewHTTPRequest(r *http.Request, body []byte) *HTTPRequest {
	req := &HTTPRequest{BaseRequest: newBaseRequest(KindHTTP, r, body, httpRenderer{})}
	req.form = r.URL.Query()
	return req
}
