package publisher

import (
	"bytes"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/rhuss/pubgate/pkg/api"
	"github.com/rhuss/pubgate/pkg/publisher/xmlrpc"
)

// XMLRPCRequest publishes an XML-RPC method call. The dotted method name
// is traversed after the URL path and the call parameters become the
// positional arguments.
type XMLRPCRequest struct {
	*BaseRequest
	methodName string
}

// NewXMLRPCRequest builds an XML-RPC request by decoding body.
func NewXMLRPCRequest(r *http.Request, body []byte) (*XMLRPCRequest, error) {
	call, err := xmlrpc.DecodeCall(bytes.NewReader(body))
	if err != nil {
		return nil, api.NewInvalidRequestError("body", fmt.Sprintf("invalid xml-rpc call: %v", err))
	}

	req := &XMLRPCRequest{
		BaseRequest: newBaseRequest(KindXMLRPC, r, body, xmlrpcRenderer{}),
		methodName:  call.Method,
	}
	req.form = r.URL.Query()
	req.args = call.Params

	names := pathNames(r.URL.Path)
	for _, part := range strings.Split(call.Method, ".") {
		if part != "" {
			names = append(names, part)
		}
	}
	slices.Reverse(names)
	req.stack = names
	return req, nil
}

// MethodName returns the called XML-RPC method.
func (r *XMLRPCRequest) MethodName() string { return r.methodName }
