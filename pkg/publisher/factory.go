package publisher

import (
	"fmt"
	"io"
	"net/http"

	"github.com/rhuss/pubgate/pkg/api"
)

// NewRequest reads the body of r, at most maxBodySize bytes when positive,
// and builds the request variant for kind. Body and decoding failures are
// returned as *api.APIError.
func NewRequest(kind Kind, r *http.Request, maxBodySize int64) (Request, error) {
	body, err := readBody(r, maxBodySize)
	if err != nil {
		return nil, err
	}

	var req Request
	switch kind {
	case KindXMLRPC:
		xr, err := NewXMLRPCRequest(r, body)
		if err != nil {
			return nil, err
		}
		req = xr
	case KindBrowser:
		br, err := NewBrowserRequest(r, body)
		if err != nil {
			return nil, err
		}
		req = br
	default:
		req = NewHTTPRequest(r, body)
	}
	return req, nil
}

// readBody buffers the body so a retried publication can read it again.
func readBody(r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	defer r.Body.Close()

	var src io.Reader = r.Body
	if limit > 0 {
		src = io.LimitReader(r.Body, limit+1)
	}
	body, err := io.ReadAll(src)
	if err != nil {
		return nil, api.NewInvalidRequestError("body", fmt.Sprintf("reading request body: %v", err))
	}
	if limit > 0 && int64(len(body)) > limit {
		return nil, api.NewTooLargeError(limit)
	}
	return body, nil
}
