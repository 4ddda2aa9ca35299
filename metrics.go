package authcore

import "github.com/finflow/authcore/internal/metrics"

// MetricID identifies a counter or histogram in a [MetricsSnapshot].
type MetricID = metrics.ID

// MetricsSnapshot is a point-in-time copy of the core's counters.
type MetricsSnapshot = metrics.Snapshot

const (
	MetricRequests                 = metrics.Requests
	MetricRequestFailures          = metrics.RequestFailures
	MetricUnauthorized401          = metrics.Unauthorized401
	MetricRefreshStarted           = metrics.RefreshStarted
	MetricRefreshShared            = metrics.RefreshShared
	MetricRefreshSuccess           = metrics.RefreshSuccess
	MetricRefreshFailure           = metrics.RefreshFailure
	MetricUnauthorizedHook         = metrics.UnauthorizedHook
	MetricLogins                   = metrics.Logins
	MetricLoginFailures            = metrics.LoginFailures
	MetricLogouts                  = metrics.Logouts
	MetricProfileCacheFallbackHit  = metrics.ProfileCacheFallbackHit
	MetricProfileCacheFallbackMiss = metrics.ProfileCacheFallbackMiss
	MetricSessionTransitions       = metrics.SessionTransitions
	MetricRequestLatency           = metrics.RequestLatency
)
