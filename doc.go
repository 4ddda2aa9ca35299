// Package authcore is the authenticated session and token-refresh core of the
// FinFlow client.
//
// It holds the user's credentials, attaches them to API calls, refreshes an
// expired access token transparently while many calls are in flight, and
// publishes the session state to observers. When the backend is unreachable
// the last known user profile is served from a local cache.
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Core], [Builder], [Config] and
// value types (MetricsSnapshot, LogEvent). The building blocks live in
// sub-packages that never import authcore:
//
//   - credential: the credential store (memory, file, redis).
//   - profilecache: the user profile cache (file, redis).
//   - httpclient: typed requests, the 401 policy and single-flight refresh.
//   - identity: the auth gateway (login, register, profile, refresh, logout).
//   - session: the session state machine and its ordered broadcast.
//
// # Construction
//
// The API client is created without auth hooks, the gateway is created on
// top of it, and the hooks are installed afterwards:
//
//	core, err := authcore.New().
//		WithConfig(cfg).
//		Build()
//	if err != nil {
//		return err
//	}
//	defer core.Close()
//
//	core.Session().RestoreSession(ctx)
//
// Every method on [Core] is safe for concurrent use once Build returns.
package authcore
