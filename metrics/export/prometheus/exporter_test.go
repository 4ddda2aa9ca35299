package prometheus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/finflow/authcore"
	"github.com/finflow/authcore/internal/authtest"
	"github.com/finflow/authcore/session"
)

type fakeSource struct {
	snapshot authcore.MetricsSnapshot
	dropped  uint64
	phase    session.Phase
}

func (f fakeSource) MetricsSnapshot() authcore.MetricsSnapshot { return f.snapshot }
func (f fakeSource) LogDropped() uint64                        { return f.dropped }
func (f fakeSource) SessionPhase() session.Phase               { return f.phase }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters:   map[authcore.MetricID]uint64{},
			Histograms: map[authcore.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCountersHistogramAndDrops(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters: map[authcore.MetricID]uint64{
				authcore.MetricRefreshStarted: 1,
				authcore.MetricRefreshShared:  9,
			},
			Histograms: map[authcore.MetricID][]uint64{
				authcore.MetricRequestLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"finflow_refresh_started_total 1",
		"finflow_refresh_shared_total 9",
		"finflow_login_success_total 0",
		"finflow_request_latency_seconds_bucket{le=\"0.005\"} 1",
		"finflow_request_latency_seconds_bucket{le=\"+Inf\"} 36",
		"finflow_request_latency_seconds_count 36",
		"finflow_request_log_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRenderRefreshRatioAndSessionPhase(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters: map[authcore.MetricID]uint64{
				authcore.MetricRefreshStarted: 1,
				authcore.MetricRefreshShared:  3,
			},
			Histograms: map[authcore.MetricID][]uint64{},
		},
		phase: session.PhaseRefreshing,
	})

	out := exp.Render()
	for _, want := range []string{
		"# TYPE finflow_refresh_shared_ratio gauge",
		"finflow_refresh_shared_ratio 0.75",
		"# TYPE finflow_session_phase gauge",
		`finflow_session_phase{phase="refreshing"} 1`,
		`finflow_session_phase{phase="authenticated"} 0`,
		`finflow_session_phase{phase="session_expired"} 0`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRenderNilCore(t *testing.T) {
	if got := NewPrometheusExporter(nil).Render(); got != "" {
		t.Fatalf("expected empty output, got:\n%s", got)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters:   map[authcore.MetricID]uint64{authcore.MetricLogins: 1},
			Histograms: map[authcore.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRenderFromCore(t *testing.T) {
	backend := authtest.NewBackend(t)
	backend.AddUser(authtest.User{Username: "alice", Password: "secret1", Email: "alice@example.com"})

	cfg := authcore.DefaultConfig()
	cfg.API.BaseURL = backend.URL()
	core, err := authcore.New().WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer core.Close()

	if _, err := core.Login(context.Background(), "alice", "secret1"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	out := NewPrometheusExporter(core).Render()
	if !strings.Contains(out, "finflow_login_success_total 1") {
		t.Fatalf("expected one login in output, got:\n%s", out)
	}
	if strings.Contains(out, "finflow_requests_total 0") {
		t.Fatalf("expected requests to be counted, got:\n%s", out)
	}
	if !strings.Contains(out, `finflow_session_phase{phase="authenticated"} 1`) {
		t.Fatalf("expected authenticated phase, got:\n%s", out)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters: map[authcore.MetricID]uint64{
				authcore.MetricRequests:        1000,
				authcore.MetricRequestFailures: 40,
				authcore.MetricRefreshSuccess:  800,
				authcore.MetricRefreshFailure:  10,
				authcore.MetricLogins:          800,
				authcore.MetricLogouts:         20,
			},
			Histograms: map[authcore.MetricID][]uint64{
				authcore.MetricRequestLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
