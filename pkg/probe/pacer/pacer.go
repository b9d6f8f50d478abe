// Package pacer is a reference implementation of the probe controller's
// external pacing collaborator: it turns a probe.ProbeClusterConfig into a
// paced burst of RTP padding packets. It is not part of the decision
// module, and the controller has no dependency on it; it exists to give the
// emitted cluster descriptors a real consumer.
package pacer

import (
	"io"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/muxable/probectl/pkg/probe"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/rs/zerolog/log"
)

// paddingPayloadType is an arbitrary dynamic payload type used for the
// padding-only packets the pacer generates; a real deployment would
// negotiate this via SDP the way the reference pipeline's codec set does.
const paddingPayloadType = 120

// packetSize is the on-wire payload size the pacer targets per packet,
// chosen to sit comfortably under typical path MTUs.
const packetSize = 1200

// Pacer paces probe cluster traffic out to w as RTP packets and keeps
// enough bookkeeping to build a matching RTCP sender report on request.
type Pacer struct {
	clock clock.Clock
	w     io.Writer
	ssrc  uint32

	mu          sync.Mutex
	seq         uint16
	packetCount uint32
	octetCount  uint32
	wg          sync.WaitGroup
}

// NewPacer constructs a Pacer that writes marshaled RTP packets to w.
func NewPacer(clk clock.Clock, w io.Writer, ssrc uint32) *Pacer {
	return &Pacer{clock: clk, w: w, ssrc: ssrc}
}

// Enqueue schedules the packets for cfg on a background goroutine, spaced
// by an interval derived from cfg.TargetRate via the pacer's clock. It
// returns immediately.
func (p *Pacer) Enqueue(cfg probe.ProbeClusterConfig) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(cfg)
	}()
}

// Wait blocks until every enqueued cluster has finished sending.
func (p *Pacer) Wait() {
	p.wg.Wait()
}

func (p *Pacer) run(cfg probe.ProbeClusterConfig) {
	if cfg.TargetRate <= 0 {
		return
	}

	bytesPerSecond := float64(cfg.TargetRate) / 8
	packetCount := requiredPacketCount(cfg, bytesPerSecond)
	interval := time.Duration(float64(time.Second) * packetSize / bytesPerSecond)

	for i := 0; i < packetCount; i++ {
		if i > 0 {
			<-p.clock.After(interval)
		}

		pkt := p.buildPacket(p.clock.Now(), i == packetCount-1)
		buf, err := pkt.Marshal()
		if err != nil {
			log.Warn().Err(err).Msg("failed to marshal probe packet")
			continue
		}
		if _, err := p.w.Write(buf); err != nil {
			log.Warn().Err(err).Msg("failed to write probe packet")
			return
		}
	}
}

func requiredPacketCount(cfg probe.ProbeClusterConfig, bytesPerSecond float64) int {
	byDuration := int(math.Ceil(cfg.TargetDuration.Seconds() * bytesPerSecond / packetSize))
	if cfg.TargetProbeCount > byDuration {
		return cfg.TargetProbeCount
	}
	return byDuration
}

func (p *Pacer) buildPacket(now time.Time, last bool) *rtp.Packet {
	p.mu.Lock()
	defer p.mu.Unlock()

	seq := p.seq
	p.seq++
	p.packetCount++
	p.octetCount += packetSize

	return &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Padding:        true,
			Marker:         last,
			PayloadType:    paddingPayloadType,
			SequenceNumber: seq,
			Timestamp:      uint32(now.UnixNano() / 1000),
			SSRC:           p.ssrc,
		},
		Payload: make([]byte, packetSize),
	}
}

// SenderReport builds an rtcp.SenderReport reflecting every packet the
// pacer has sent so far, so a receiver can correlate probe traffic with
// RTCP timing the same way the reference pipeline's reports.SenderStream
// does for media streams.
func (p *Pacer) SenderReport(now time.Time) *rtcp.SenderReport {
	p.mu.Lock()
	defer p.mu.Unlock()

	return &rtcp.SenderReport{
		SSRC:        p.ssrc,
		NTPTime:     ntpTime(now),
		RTPTime:     uint32(now.UnixNano() / 1000),
		PacketCount: p.packetCount,
		OctetCount:  p.octetCount,
	}
}

func ntpTime(t time.Time) uint64 {
	s := (float64(t.UnixNano()) / 1e9) + 2208988800
	integerPart := uint32(s)
	fractionalPart := uint32((s - float64(integerPart)) * 0xFFFFFFFF)
	return uint64(integerPart)<<32 | uint64(fractionalPart)
}
