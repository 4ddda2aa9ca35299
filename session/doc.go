// Package session owns the process-wide authentication state and broadcasts
// every change, in order, to subscribers.
//
// Only the Controller mutates [State]. A new subscription receives the
// current state first, then each later change. Each subscriber has its own
// unbounded queue, so a slow consumer never blocks the controller or other
// subscribers.
package session
