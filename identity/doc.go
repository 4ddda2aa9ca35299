// Package identity implements the account operations of the FinFlow API on
// top of httpclient: login, registration, profile, token refresh, logout and
// the OTP / password-reset flows.
//
// The Gateway persists tokens returned by login and refresh into the
// credential store and keeps a per-user profile cache for offline use.
package identity
