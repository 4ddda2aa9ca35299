// Package httpclient performs typed JSON requests against the FinFlow API.
//
// A 401 on a request that allows it triggers a token refresh shared by every
// concurrent caller (at most one refresh call is in flight per Client), and
// the request is retried exactly once with the new token. A second 401, or a
// failed refresh, invokes the unauthorized hook and fails with
// [apperr.ErrUnauthorized].
//
// The refresh handler and unauthorized hook are injected after construction
// with [Client.ConfigureAuthHooks]. Until then a 401 fails immediately with
// an Unauthorized error wrapping [ErrRefreshUnavailable].
package httpclient
