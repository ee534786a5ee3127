// Package http binds the publisher to net/http.
//
// App is an http.Handler that turns each incoming request into a
// publication request, runs it through the transport middleware and the
// publisher, and streams the result through an output.Output whose start
// callback writes the status line and headers to the http.ResponseWriter.
// Server wraps App with the operational endpoints and graceful shutdown.
package http
