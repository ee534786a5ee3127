// Package transport holds the protocol-agnostic pieces that sit between a
// network server and the publisher: the Publisher handler contract, the
// middleware chain applied around every publication, the access entry that
// records what the output adapter reported, and the error helpers used when
// a request fails before a publication request could be built.
//
// The HTTP binding lives in the http subpackage.
package transport
