package probemetrics

import (
	"testing"

	"github.com/google/uuid"
	"github.com/muxable/probectl/pkg/probe"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestPrometheusSink_CountsMatchEmissions(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewPrometheusSink(reg)

	sessionID := uuid.New()
	for i := int64(1); i <= 3; i++ {
		sink.LogProbeClusterCreated(sessionID, probe.ProbeClusterConfig{ID: i, TargetRate: probe.DataRate(i * 100_000), Reason: "alr"})
	}
	sink.LogProbeClusterCreated(sessionID, probe.ProbeClusterConfig{ID: 4, TargetRate: 100_000})

	metric := &dto.Metric{}
	if err := sink.clustersEmitted.WithLabelValues("alr").Write(metric); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	if got := metric.GetCounter().GetValue(); got != 3 {
		t.Fatalf("expected alr-labeled counter 3, got %v", got)
	}

	unknown := &dto.Metric{}
	if err := sink.clustersEmitted.WithLabelValues("unknown").Write(unknown); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	if got := unknown.GetCounter().GetValue(); got != 1 {
		t.Fatalf("expected unlabeled cluster to fall back to \"unknown\", got %v", got)
	}

	gauge := &dto.Metric{}
	if err := sink.lastClusterID.Write(gauge); err != nil {
		t.Fatalf("failed to read gauge: %v", err)
	}
	if got := gauge.GetGauge().GetValue(); got != 4 {
		t.Fatalf("expected last id gauge 4, got %v", got)
	}
}
