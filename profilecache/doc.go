// Package profilecache stores JSON snapshots of per-user data so the client
// can keep working offline.
//
// Keys are user-scoped (see [UserProfileKey]) so a device that switches
// accounts never serves one user's profile to another.
package profilecache
