// Package api defines the error vocabulary shared by the pubgate publisher,
// its publications and the HTTP transport.
//
// Errors are represented as [APIError] values carrying a type, an optional
// param and a human readable message. Each type maps to a single HTTP status
// code through [APIError.HTTPStatus], so publications can fail with a typed
// error and let the transport or the publication's exception handler decide
// how to render it.
//
// The package has no external dependencies and performs no I/O.
package api
