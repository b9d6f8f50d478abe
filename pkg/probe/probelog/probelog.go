// Package probelog provides EventLogSink implementations for the probe
// controller, in the style of the reference pipeline's zerolog usage.
package probelog

import (
	"github.com/google/uuid"
	"github.com/muxable/probectl/pkg/probe"
	"github.com/rs/zerolog/log"
)

// ZerologSink logs one structured event per emitted cluster.
type ZerologSink struct{}

// LogProbeClusterCreated implements probe.EventLogSink.
func (ZerologSink) LogProbeClusterCreated(sessionID uuid.UUID, cluster probe.ProbeClusterConfig) {
	log.Info().
		Str("session", sessionID.String()).
		Int64("clusterId", cluster.ID).
		Str("reason", cluster.Reason).
		Dur("atTime", cluster.AtTime).
		Float64("targetRateBps", float64(cluster.TargetRate)).
		Dur("targetDuration", cluster.TargetDuration).
		Int("targetProbeCount", cluster.TargetProbeCount).
		Msg("probe cluster created")
}

// MultiSink fans a single event out to every non-nil child sink, so a
// deployment can log and export metrics from the same emission without the
// controller knowing about either concern.
type MultiSink struct {
	Sinks []probe.EventLogSink
}

// LogProbeClusterCreated implements probe.EventLogSink.
func (m MultiSink) LogProbeClusterCreated(sessionID uuid.UUID, cluster probe.ProbeClusterConfig) {
	for _, s := range m.Sinks {
		if s == nil {
			continue
		}
		s.LogProbeClusterCreated(sessionID, cluster)
	}
}
