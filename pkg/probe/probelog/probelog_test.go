package probelog

import (
	"testing"

	"github.com/google/uuid"
	"github.com/muxable/probectl/pkg/probe"
)

type recordingSink struct {
	calls int
}

func (r *recordingSink) LogProbeClusterCreated(uuid.UUID, probe.ProbeClusterConfig) {
	r.calls++
}

func TestMultiSink_FansOutAndToleratesNil(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}

	m := MultiSink{Sinks: []probe.EventLogSink{a, nil, b}}
	m.LogProbeClusterCreated(uuid.New(), probe.ProbeClusterConfig{ID: 1})

	if a.calls != 1 || b.calls != 1 {
		t.Fatalf("expected both non-nil sinks to be called once, got a=%d b=%d", a.calls, b.calls)
	}
}

func TestZerologSink_DoesNotPanic(t *testing.T) {
	ZerologSink{}.LogProbeClusterCreated(uuid.New(), probe.ProbeClusterConfig{ID: 1, TargetRate: 100})
}
