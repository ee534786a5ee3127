// Package publisher implements object publishing: an HTTP request is turned
// into a publication request, its path is traversed name by name through a
// Publication, and the resulting object is called and rendered into a
// Response that is flushed through a header output.
//
// Three request kinds exist. SelectKind chooses between them from the
// method and content type:
//
//   - KindBrowser for GET, POST and HEAD
//   - KindXMLRPC for POST with a text/xml body
//   - KindHTTP for everything else (PUT, DELETE, OPTIONS, ...)
//
// A Publisher drives the fixed publication sequence and retries it when a
// step reports ErrRetry.
package publisher
