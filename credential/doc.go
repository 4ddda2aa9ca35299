// Package credential persists the access and refresh tokens of the signed-in
// user.
//
// # Backends
//
// [MemoryStore] keeps secrets in process memory, [FileStore] in a
// device-local file readable only by the owner, and [RedisStore] in Redis for
// deployments where several processes share one session.
//
// # Atomicity
//
// [Store.Save] writes both secrets as one unit; a reader never observes an
// access token from one login paired with a refresh token from another.
//
// # What this package must NOT do
//
//   - Interpret token contents.
//   - Import authcore or any package above it.
package credential
