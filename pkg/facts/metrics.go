package facts

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/archkit/archkit/pkg/types"
)

type metricEntry struct {
	count          int
	cumulativeSecs float64
	longestSecs    float64
}

// MetricsStore is the local, run-scoped source of truth for fact
// execution metrics (spec.md §4.5: count, cumulative/longest wall time,
// derived average). Values are also mirrored into Prometheus vectors so
// a process embedding archkit can scrape them, but MetricsStore remains
// authoritative for ExecutionResult.FactMetrics, since Prometheus
// histograms aren't round-trippable into the result document's
// fixed-point seconds format.
type MetricsStore struct {
	mu      sync.Mutex
	entries map[string]*metricEntry

	promCount *prometheus.CounterVec
	promDur   *prometheus.HistogramVec
}

// NewMetricsStore builds a MetricsStore. If reg is non-nil, the
// Prometheus vectors are registered against it; pass nil in tests or
// when multiple stores coexist in one process to avoid duplicate
// registration panics.
func NewMetricsStore(reg prometheus.Registerer) *MetricsStore {
	s := &MetricsStore{
		entries: make(map[string]*metricEntry),
		promCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "archkit",
			Subsystem: "facts",
			Name:      "executions_total",
			Help:      "Total fact function executions, by fact name.",
		}, []string{"fact"}),
		promDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "archkit",
			Subsystem: "facts",
			Name:      "execution_seconds",
			Help:      "Fact function execution duration in seconds, by fact name.",
		}, []string{"fact"}),
	}
	if reg != nil {
		reg.MustRegister(s.promCount, s.promDur)
	}
	return s
}

// Record logs one execution of name taking d.
func (s *MetricsStore) Record(name string, d time.Duration) {
	secs := d.Seconds()

	s.mu.Lock()
	e, ok := s.entries[name]
	if !ok {
		e = &metricEntry{}
		s.entries[name] = e
	}
	e.count++
	e.cumulativeSecs += secs
	if secs > e.longestSecs {
		e.longestSecs = secs
	}
	s.mu.Unlock()

	s.promCount.WithLabelValues(name).Inc()
	s.promDur.WithLabelValues(name).Observe(secs)
}

// Snapshot returns the accumulated metrics, keyed by fact name, rounded
// to 4 decimal places as the result document format requires.
func (s *MetricsStore) Snapshot() map[string]types.FactMetric {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]types.FactMetric, len(s.entries))
	for name, e := range s.entries {
		avg := 0.0
		if e.count > 0 {
			avg = e.cumulativeSecs / float64(e.count)
		}
		out[name] = types.FactMetric{
			Count:          e.count,
			CumulativeSecs: round4(e.cumulativeSecs),
			LongestSecs:    round4(e.longestSecs),
			AverageSecs:    round4(avg),
		}
	}
	return out
}

func round4(v float64) float64 {
	const factor = 10000
	return float64(int64(v*factor+0.5)) / factor
}
