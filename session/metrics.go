package session

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the ProcessList-equivalent gauge set spec.md's ambient stack
// calls for, mirroring the teacher's ProcessList concept with real metrics
// plumbing instead of an in-memory snapshot struct. Create and Destroy keep
// ConnectionsOpen current; DelegatedScans and HashJoinSpills are defined and
// registered, but nothing in this module updates them.
type Metrics struct {
	ConnectionsOpen   prometheus.Gauge
	DelegatedScans    prometheus.Gauge
	HashJoinSpills    prometheus.Counter
}

// NewMetrics builds a Metrics set registered against reg. Pass a fresh
// prometheus.NewRegistry() per engine instance in a host process that
// creates more than one engine, to avoid duplicate-registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weaverdb",
			Name:      "connections_open",
			Help:      "Number of currently open session.Connections.",
		}),
		DelegatedScans: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weaverdb",
			Name:      "delegated_scans_active",
			Help:      "Number of currently active delegated (producer/consumer) scans.",
		}),
		HashJoinSpills: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weaverdb",
			Name:      "hashjoin_spill_batches_total",
			Help:      "Total hash-join batches spilled to a temp file.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ConnectionsOpen, m.DelegatedScans, m.HashJoinSpills)
	}
	return m
}

// defaultMetrics backs Connections created without an explicit
// Options.Metrics; it is deliberately unregistered (nil Registerer) so
// tests creating many Connections never hit a duplicate-registration panic.
var defaultMetrics = NewMetrics(nil)
