// Package jwt reads access-token payloads on the client and mints/validates
// tokens for the reference backend used in tests and local development.
//
// [Peek] and [SubjectHint] never verify signatures. Their output is a cache
// key hint, not an identity assertion.
package jwt
