// Package output buffers the status line and headers of a response and hands
// them to the underlying transport exactly once, on the first body write.
//
// An [Output] is created per request around a [StartFunc]. The publisher sets
// the status, unique headers and repeatable headers in any order and any
// number of times. The first call to [Output.Write] invokes the StartFunc
// with a snapshot of the status line and header list and keeps the [Sink] it
// returns; every write after that goes straight to the sink.
//
// Once headers are sent, setters are still accepted but no longer reach the
// transport. Callers that set headers opportunistically late in a request
// rely on this: it is not an error.
//
// Repeatable header lines use the raw "Name: value" form and are split on
// the first colon only, so the value keeps its leading whitespace and may
// itself contain colons. A line without any colon yields a header whose name
// is the whole line and whose value is empty.
package output
