// Package netlog carries request/response log events from the HTTP client to
// a pluggable sink without blocking the request path.
//
// The dispatcher is best-effort: a full buffer drops events (counted) when
// DropIfFull is set, and nothing here ever changes the outcome of a request.
package netlog
