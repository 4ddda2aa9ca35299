// Package authtest runs an in-process FinFlow API for tests: login, Google
// login, registration, refresh with rotation, logout, profile, OTP and
// password reset, plus knobs to force 401s, fail or slow down refreshes and
// drop connections.
package authtest
