package prometheus

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/finflow/authcore"
	"github.com/finflow/authcore/metrics/export/internaldefs"
)

// PrometheusExporter renders authcore metrics in Prometheus text exposition format.
type PrometheusExporter struct {
	source internaldefs.Source
}

// NewPrometheusExporter creates an exporter that reads from core.
func NewPrometheusExporter(core *authcore.Core) *PrometheusExporter {
	if core == nil {
		return &PrometheusExporter{}
	}
	return &PrometheusExporter{source: core}
}

// NewPrometheusExporterFromSource creates an exporter reading from source.
func NewPrometheusExporterFromSource(source internaldefs.Source) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = io.WriteString(w, p.Render())
	})
}

// Render returns the current metrics, or "" when metrics are disabled and no
// request log event was dropped.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}
	sample, ok := internaldefs.Collect(p.source)
	if !ok {
		return ""
	}

	var b strings.Builder
	b.Grow(8192)

	for i, def := range internaldefs.CounterDefs {
		writeSeries(&b, def.Name, def.Help, "counter", strconv.FormatUint(sample.Counters[i], 10))
	}
	writeSeries(&b, internaldefs.LogDroppedName, internaldefs.LogDroppedHelp, "counter", strconv.FormatUint(sample.LogDropped, 10))

	for i, def := range internaldefs.HistogramDefs {
		writeHeader(&b, def.Name, def.Help, "histogram")
		buckets := sample.Histograms[i]
		for j, le := range internaldefs.HistogramBounds {
			fmt.Fprintf(&b, "%s_bucket{le=%q} %d\n", def.Name, le, buckets[j])
		}
		// Snapshots carry no sum.
		fmt.Fprintf(&b, "%s_count %d\n%s_sum 0\n", def.Name, buckets[len(buckets)-1], def.Name)
	}

	writeSeries(&b, internaldefs.RefreshSharedRatioName, internaldefs.RefreshSharedRatioHelp, "gauge",
		strconv.FormatFloat(sample.RefreshSharedRatio, 'g', -1, 64))

	writeHeader(&b, internaldefs.SessionPhaseName, internaldefs.SessionPhaseHelp, "gauge")
	for _, phase := range internaldefs.SessionPhases {
		fmt.Fprintf(&b, "%s{%s=%q} %d\n", internaldefs.SessionPhaseName, internaldefs.SessionPhaseKey,
			phase.String(), internaldefs.PhaseValue(sample.Phase, phase))
	}

	return b.String()
}

func writeHeader(b *strings.Builder, name, help, kind string) {
	fmt.Fprintf(b, "# HELP %s %s\n# TYPE %s %s\n", name, escapeHelp(help), name, kind)
}

func writeSeries(b *strings.Builder, name, help, kind, value string) {
	writeHeader(b, name, help, kind)
	fmt.Fprintf(b, "%s %s\n", name, value)
}

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)

func escapeHelp(help string) string {
	return helpEscaper.Replace(help)
}
