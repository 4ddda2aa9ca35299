package internaldefs

import (
	"github.com/finflow/authcore"
	"github.com/finflow/authcore/session"
)

// Source is what every exporter reads. *authcore.Core implements it.
type Source interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	LogDropped() uint64
	SessionPhase() session.Phase
}

// Series derived from more than one counter, or not from counters at all.
const (
	LogDroppedName = "finflow_request_log_dropped_total"
	LogDroppedHelp = "Request log events dropped due to dispatcher backpressure."

	RefreshSharedRatioName = "finflow_refresh_shared_ratio"
	RefreshSharedRatioHelp = "Share of refresh demands served by an in-flight or completed refresh."

	SessionPhaseName = "finflow_session_phase"
	SessionPhaseHelp = "1 for the current session phase, 0 for every other phase."
	SessionPhaseKey  = "phase"
)

// SessionPhases are the phases reported by the session phase gauge.
var SessionPhases = []session.Phase{
	session.PhaseLoading,
	session.PhaseAuthenticated,
	session.PhaseUnauthenticated,
	session.PhaseRefreshing,
	session.PhaseSessionExpired,
}

// Sample is one reading of a Source. Counters and Histograms are aligned
// with CounterDefs and HistogramDefs; histogram buckets are cumulative.
type Sample struct {
	Counters           []uint64
	Histograms         [][8]uint64
	LogDropped         uint64
	RefreshSharedRatio float64
	Phase              session.Phase
}

// Collect reads src once. It reports false when metrics are disabled and no
// request log event was dropped, so there is nothing to export.
func Collect(src Source) (Sample, bool) {
	snap := src.MetricsSnapshot()
	s := Sample{
		Counters:   make([]uint64, len(CounterDefs)),
		Histograms: make([][8]uint64, len(HistogramDefs)),
		LogDropped: src.LogDropped(),
		Phase:      src.SessionPhase(),
	}
	for i, def := range CounterDefs {
		s.Counters[i] = snap.Counters[def.ID]
	}
	for i, def := range HistogramDefs {
		s.Histograms[i] = CumulativeBuckets(NormalizeBuckets(snap.Histograms[def.ID]))
	}
	s.RefreshSharedRatio = RefreshSharedRatio(
		snap.Counters[authcore.MetricRefreshStarted],
		snap.Counters[authcore.MetricRefreshShared],
	)
	return s, len(snap.Counters) > 0 || len(snap.Histograms) > 0 || s.LogDropped > 0
}

// RefreshSharedRatio returns shared/(started+shared). Every caller that
// needed a new token either started a refresh or shared one, so the ratio
// shows how well concurrent 401s were coalesced. It is 0 before any demand.
func RefreshSharedRatio(started, shared uint64) float64 {
	total := started + shared
	if total == 0 {
		return 0
	}
	return float64(shared) / float64(total)
}

// PhaseValue is the gauge value of phase when current is the session phase.
func PhaseValue(current, phase session.Phase) int64 {
	if current == phase {
		return 1
	}
	return 0
}
