package internaldefs

import (
	"github.com/finflow/authcore"
)

// CounterDef names one counter for every exporter.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef names one histogram for every exporter.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter with its name and help text.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricRequests, Name: "finflow_requests_total", Help: "API requests sent, retries included."},
	{ID: authcore.MetricRequestFailures, Name: "finflow_request_failures_total", Help: "API requests that failed in transport or returned a non-2xx status."},
	{ID: authcore.MetricUnauthorized401, Name: "finflow_unauthorized_responses_total", Help: "HTTP 401 responses received."},
	{ID: authcore.MetricRefreshStarted, Name: "finflow_refresh_started_total", Help: "Token refreshes started."},
	{ID: authcore.MetricRefreshShared, Name: "finflow_refresh_shared_total", Help: "Callers that reused an in-flight or already completed refresh."},
	{ID: authcore.MetricRefreshSuccess, Name: "finflow_refresh_success_total", Help: "Successful token refreshes."},
	{ID: authcore.MetricRefreshFailure, Name: "finflow_refresh_failure_total", Help: "Failed token refreshes."},
	{ID: authcore.MetricUnauthorizedHook, Name: "finflow_unauthorized_hook_total", Help: "Sessions ended by the unauthorized hook."},
	{ID: authcore.MetricLogins, Name: "finflow_login_success_total", Help: "Successful logins."},
	{ID: authcore.MetricLoginFailures, Name: "finflow_login_failure_total", Help: "Failed logins."},
	{ID: authcore.MetricLogouts, Name: "finflow_logout_total", Help: "Logout operations."},
	{ID: authcore.MetricProfileCacheFallbackHit, Name: "finflow_profile_cache_fallback_hit_total", Help: "Profiles served from cache after a failed fetch."},
	{ID: authcore.MetricProfileCacheFallbackMiss, Name: "finflow_profile_cache_fallback_miss_total", Help: "Failed profile fetches with no cached profile."},
	{ID: authcore.MetricSessionTransitions, Name: "finflow_session_transitions_total", Help: "Session state changes."},
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricRequestLatency, Name: "finflow_request_latency_seconds", Help: "API request latency histogram."},
}

// HistogramBounds are the upper bounds, in seconds, of the latency buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix names the upper bound of each bucket.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into cumulative counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
