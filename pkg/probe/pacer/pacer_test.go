package pacer

import (
	"bytes"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/muxable/probectl/pkg/probe"
	"github.com/pion/rtp"
	"go.uber.org/goleak"
)

// packetRecorder keeps each Write as its own datagram, the way a UDP socket
// would: an RTP packet carries no length field, so packets cannot be split
// back out of one concatenated byte stream.
type packetRecorder struct {
	packets [][]byte
}

func (r *packetRecorder) Write(b []byte) (int, error) {
	r.packets = append(r.packets, append([]byte(nil), b...))
	return len(b), nil
}

func TestPacer_EmitsAtLeastTargetProbeCount(t *testing.T) {
	defer goleak.VerifyNone(t)

	mock := clock.NewMock()
	rec := &packetRecorder{}
	p := NewPacer(mock, rec, 12345)

	cfg := probe.ProbeClusterConfig{
		AtTime:           0,
		TargetRate:       1_000_000,
		TargetDuration:   15 * time.Millisecond,
		TargetProbeCount: 5,
		ID:               1,
	}
	p.Enqueue(cfg)

	// Drive the mock clock forward instead of sleeping on the wall clock:
	// the pacer's inter-packet delay is a clock.Timer, so advancing mock
	// time is what makes run() proceed to the next packet.
	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-done:
			break loop
		case <-ticker.C:
			mock.Add(time.Millisecond)
		}
	}

	count := 0
	for _, raw := range rec.packets {
		pkt := &rtp.Packet{}
		if err := pkt.Unmarshal(raw); err != nil {
			t.Fatalf("failed to unmarshal packet %d: %v", count, err)
		}
		count++
	}

	if count < cfg.TargetProbeCount {
		t.Fatalf("expected at least %d packets, got %d", cfg.TargetProbeCount, count)
	}
}

func TestPacer_ZeroRateSkipsCluster(t *testing.T) {
	defer goleak.VerifyNone(t)

	var buf bytes.Buffer
	p := NewPacer(clock.NewMock(), &buf, 1)
	p.Enqueue(probe.ProbeClusterConfig{TargetRate: 0, TargetProbeCount: 5})
	p.Wait()

	if buf.Len() != 0 {
		t.Fatalf("expected no packets for a zero-rate cluster, got %d bytes", buf.Len())
	}
}
