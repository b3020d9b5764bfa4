// Package metrics exposes the oracle's prometheus instrumentation,
// following the promauto registration style of the teacher's
// internal/bgp/metrics.go.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every gauge/counter/histogram the scanner, importer,
// and zlookup client update. A nil *Metrics is safe to call methods on
// (every method short-circuits), so components can be constructed
// without a registry in tests.
type Metrics struct {
	scanDuration   *prometheus.HistogramVec
	scanCacheSize  *prometheus.GaugeVec
	scanChanged    *prometheus.CounterVec
	scanValidFlips *prometheus.CounterVec
	rgateDesyncs   prometheus.Counter
	socketUp       prometheus.Gauge
	importRuns     prometheus.Counter
	importFlips    *prometheus.CounterVec
}

// New registers every metric under reg and returns the populated
// Metrics. Pass prometheus.NewRegistry() in tests to avoid colliding
// with the global default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		scanDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bgpscand",
			Subsystem: "scanner",
			Name:      "scan_duration_seconds",
			Help:      "Duration of one Scanner.RunOnce pass.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"afi"}),
		scanCacheSize: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "bgpscand",
			Subsystem: "scanner",
			Name:      "active_cache_entries",
			Help:      "Number of entries in the active BNCT generation.",
		}, []string{"afi"}),
		scanChanged: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bgpscand",
			Subsystem: "scanner",
			Name:      "changed_entries_total",
			Help:      "Cache entries whose nexthop list changed since the previous generation.",
		}, []string{"afi"}),
		scanValidFlips: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bgpscand",
			Subsystem: "scanner",
			Name:      "valid_flips_total",
			Help:      "Route VALID flag transitions, split by direction.",
		}, []string{"afi", "direction"}),
		rgateDesyncs: f.NewCounter(prometheus.CounterOpts{
			Namespace: "bgpscand",
			Subsystem: "rgateverify",
			Name:      "desyncs_total",
			Help:      "Prefixes reported desynced by the recursive-gate verifier.",
		}),
		socketUp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "bgpscand",
			Subsystem: "zlookup",
			Name:      "socket_up",
			Help:      "1 if the routing-daemon socket is connected, 0 otherwise.",
		}),
		importRuns: f.NewCounter(prometheus.CounterOpts{
			Namespace: "bgpscand",
			Subsystem: "importer",
			Name:      "runs_total",
			Help:      "Importer.RunOnce invocations.",
		}),
		importFlips: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bgpscand",
			Subsystem: "importer",
			Name:      "valid_flips_total",
			Help:      "Static route VALID flag transitions, split by direction.",
		}, []string{"direction"}),
	}
}

func (m *Metrics) ObserveScanDuration(afi string, seconds float64) {
	if m == nil {
		return
	}
	m.scanDuration.WithLabelValues(afi).Observe(seconds)
}

func (m *Metrics) SetActiveCacheEntries(afi string, n int) {
	if m == nil {
		return
	}
	m.scanCacheSize.WithLabelValues(afi).Set(float64(n))
}

func (m *Metrics) IncChanged(afi string) {
	if m == nil {
		return
	}
	m.scanChanged.WithLabelValues(afi).Inc()
}

func (m *Metrics) IncValidFlip(afi string, wentValid bool) {
	if m == nil {
		return
	}
	dir := "invalid"
	if wentValid {
		dir = "valid"
	}
	m.scanValidFlips.WithLabelValues(afi, dir).Inc()
}

func (m *Metrics) AddRGateDesyncs(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rgateDesyncs.Add(float64(n))
}

func (m *Metrics) SetSocketUp(up bool) {
	if m == nil {
		return
	}
	if up {
		m.socketUp.Set(1)
	} else {
		m.socketUp.Set(0)
	}
}

func (m *Metrics) IncImportRun() {
	if m == nil {
		return
	}
	m.importRuns.Inc()
}

func (m *Metrics) IncImportFlip(wentValid bool) {
	if m == nil {
		return
	}
	dir := "invalid"
	if wentValid {
		dir = "valid"
	}
	m.importFlips.WithLabelValues(dir).Inc()
}
