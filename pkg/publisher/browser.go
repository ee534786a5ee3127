package publisher

import (
	"bytes"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/rhuss/pubgate/pkg/api"
)

// maxFormMemory bounds the multipart data kept in memory; larger file
// parts spill to temporary files removed on Close.
const maxFormMemory = 32 << 20

// BrowserRequest publishes GET, POST and HEAD requests from browsers.
// Query parameters and urlencoded or multipart POST bodies are merged
// into Form.
type BrowserRequest struct {
	*BaseRequest
	files map[string][]*multipart.FileHeader
}

// NewBrowserRequest builds a browser request over an already read body.
func NewBrowserRequest(r *http.Request, body []byte) (*BrowserRequest, error) {
	req := &BrowserRequest{BaseRequest: newBaseRequest(KindBrowser, r, body, browserRenderer{})}
	req.form = r.URL.Query()

	if req.method != http.MethodPost || len(body) == 0 {
		return req, nil
	}

	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		// Bodies without a usable content type are left for the
		// publication to read raw.
		return req, nil
	}

	switch mediaType {
	case "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, api.NewInvalidRequestError("body", fmt.Sprintf("malformed form body: %v", err))
		}
		mergeValues(req.form, values)
	case "multipart/form-data":
		boundary := params["boundary"]
		if boundary == "" {
			return nil, api.NewInvalidRequestError("body", "multipart body without boundary")
		}
		mf, err := multipart.NewReader(bytes.NewReader(body), boundary).ReadForm(maxFormMemory)
		if err != nil {
			return nil, api.NewInvalidRequestError("body", fmt.Sprintf("malformed multipart body: %v", err))
		}
		req.Hold(CloserFunc(mf.RemoveAll))
		mergeValues(req.form, mf.Value)
		req.files = mf.File
	}
	return req, nil
}

// Files returns the uploaded files of a multipart POST.
func (r *BrowserRequest) Files() map[string][]*multipart.FileHeader { return r.files }

func mergeValues(dst url.Values, src map[string][]string) {
	for k, vs := range src {
		dst[k] = append(dst[k], vs...)
	}
}
