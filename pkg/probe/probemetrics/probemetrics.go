// Package probemetrics exports probe controller activity as Prometheus
// metrics, wired the way cmd/server wires promhttp in the reference
// pipeline.
package probemetrics

import (
	"github.com/google/uuid"
	"github.com/muxable/probectl/pkg/probe"
	"github.com/prometheus/client_golang/prometheus"
)

// unknownReason labels clusters logged by callers that never set
// ProbeClusterConfig.Reason (e.g. hand-built structs in tests), so the
// label set stays fixed instead of growing unbounded.
const unknownReason = "unknown"

// PrometheusSink implements probe.EventLogSink with counters and a
// histogram suitable for scraping via promhttp.Handler.
type PrometheusSink struct {
	clustersEmitted *prometheus.CounterVec
	targetRate      prometheus.Histogram
	lastClusterID   prometheus.Gauge
}

// NewPrometheusSink registers its metrics with reg and returns a ready
// sink. Pass prometheus.DefaultRegisterer to use the global registry.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{
		clustersEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "probe_clusters_emitted_total",
			Help: "Total number of probe cluster configs emitted by the probe controller, by the policy path that emitted them.",
		}, []string{"reason"}),
		targetRate: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "probe_cluster_target_rate_bps",
			Help:    "Distribution of target rates for emitted probe clusters.",
			Buckets: prometheus.ExponentialBuckets(100_000, 2, 12),
		}),
		lastClusterID: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "probe_cluster_last_id",
			Help: "The id of the most recently emitted probe cluster.",
		}),
	}
	reg.MustRegister(s.clustersEmitted, s.targetRate, s.lastClusterID)
	return s
}

// LogProbeClusterCreated implements probe.EventLogSink.
func (s *PrometheusSink) LogProbeClusterCreated(_ uuid.UUID, cluster probe.ProbeClusterConfig) {
	reason := cluster.Reason
	if reason == "" {
		reason = unknownReason
	}
	s.clustersEmitted.WithLabelValues(reason).Inc()
	s.targetRate.Observe(float64(cluster.TargetRate))
	s.lastClusterID.Set(float64(cluster.ID))
}
