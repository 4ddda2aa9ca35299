// Package prometheus renders authcore metrics in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] accepts a [authcore.Core] and exposes an
// [http.Handler]. Counter names are prefixed finflow_*_total; the single
// histogram is finflow_request_latency_seconds. Two gauges describe the
// session: finflow_refresh_shared_ratio and finflow_session_phase{phase=...}.
//
// Nothing is registered in a global registry; callers mount the Handler.
package prometheus
