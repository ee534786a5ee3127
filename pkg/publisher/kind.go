package publisher

import (
	"net/http"
	"strings"
)

// Kind identifies the request variant used to publish an HTTP request.
type Kind int

const (
	// KindHTTP is the generic request for non-browser methods.
	KindHTTP Kind = iota
	// KindBrowser handles GET, POST and HEAD with form semantics.
	KindBrowser
	// KindXMLRPC handles XML-RPC method calls posted as text/xml.
	KindXMLRPC
)

func (k Kind) String() string {
	switch k {
	case KindBrowser:
		return "browser"
	case KindXMLRPC:
		return "xmlrpc"
	default:
		return "http"
	}
}

// SelectKind picks the request kind for a method and content type.
// An empty method is treated as GET.
func SelectKind(method, contentType string) Kind {
	method = strings.ToUpper(method)
	if method == "" {
		method = http.MethodGet
	}

	switch method {
	case http.MethodPost:
		if strings.HasPrefix(contentType, "text/xml") {
			return KindXMLRPC
		}
		return KindBrowser
	case http.MethodGet, http.MethodHead:
		return KindBrowser
	default:
		return KindHTTP
	}
}

// SelectKindFor is SelectKind applied to an incoming HTTP request.
func SelectKindFor(r *http.Request) Kind {
	return SelectKind(r.Method, r.Header.Get("Content-Type"))
}
