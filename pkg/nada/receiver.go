package nada

import (
	"math"
	"time"
)

// Receiver runs the NADA receive-side algorithm: it turns arriving media
// packets into a congestion signal and an instantaneous receiving rate,
// which BuildFeedbackPacket packages into a report for the sender. It is
// used in this repository as a reference bandwidth estimator: cmd/probesim
// can drive a ProbeController's SetEstimatedBitrate from a Sender fed by
// this Receiver's reports, exercising the estimator/controller boundary the
// probe controller spec treats as an external collaborator.
type Receiver struct {
	config                         Config
	BaselineDelay                  time.Duration // d_base
	EstimatedQueuingDelay          time.Duration // d_queue
	EstimatedPacketLossRatio       float64
	EstimatedPacketECNMarkingRatio float64
	ReceivingRate                  BitsPerSecond
	LastTimestamp                  time.Time
	CurrentTimestamp               time.Time

	haveLastSeq      bool
	lastSeq          uint16
	bytesInLogWindow uint64
	logWindowStart   time.Time
}

func NewReceiver(now time.Time, config Config) *Receiver {
	return &Receiver{
		config:                         config,
		BaselineDelay:                  time.Duration(1<<63 - 1),
		EstimatedPacketLossRatio:       0.0,
		EstimatedPacketECNMarkingRatio: 0.0,
		ReceivingRate:                  0.0,
		LastTimestamp:                  now,
		CurrentTimestamp:               now,
		logWindowStart:                 now,
	}
}

// OnReceiveMediaPacket implements the media receive algorithm. sentAt is the
// packet's own sending timestamp (carried in the packet header by a real
// transport); it is a parameter here rather than a TODO because the
// estimator core must stay clock-free like the probe controller it feeds.
func (r *Receiver) OnReceiveMediaPacket(now time.Time, sentAt time.Time, seq uint16, size int, ecn bool) {
	r.CurrentTimestamp = now

	// one-way delay measurement: d_fwd = t_curr - t_sent
	dFwd := r.CurrentTimestamp.Sub(sentAt)

	// update baseline delay: d_base = min(d_base, d_fwd)
	if dFwd < r.BaselineDelay {
		r.BaselineDelay = dFwd
	}

	// update queuing delay: d_queue = d_fwd - d_base
	r.EstimatedQueuingDelay = dFwd - r.BaselineDelay

	// update packet loss ratio estimate p_loss using sequence gaps observed
	// since the last packet.
	r.EstimatedPacketLossRatio = r.config.α*r.instantLossRatio(seq) + (1-r.config.α)*r.EstimatedPacketLossRatio

	// update packet marking ratio estimate p_mark
	r.EstimatedPacketECNMarkingRatio = r.config.α*instantMarkRatio(ecn) + (1-r.config.α)*r.EstimatedPacketECNMarkingRatio

	// update measurement of receiving rate r_recv over LOGWIN
	r.bytesInLogWindow += uint64(size)
	if elapsed := now.Sub(r.logWindowStart); elapsed >= r.config.LogWindow {
		r.ReceivingRate = BitsPerSecond(float64(r.bytesInLogWindow*8) / elapsed.Seconds())
		r.bytesInLogWindow = 0
		r.logWindowStart = now
	}
}

// instantLossRatio treats any gap in the sequence number space since the
// last received packet as loss.
func (r *Receiver) instantLossRatio(seq uint16) float64 {
	if !r.haveLastSeq {
		r.haveLastSeq = true
		r.lastSeq = seq
		return 0
	}
	gap := seq - r.lastSeq - 1 // wraps naturally for uint16 sequence space
	r.lastSeq = seq
	if gap == 0 {
		return 0
	}
	return float64(gap) / float64(gap+1)
}

func instantMarkRatio(ecn bool) float64 {
	if ecn {
		return 1.0
	}
	return 0.0
}

// BuildFeedbackPacket creates a new feedback packet.
func (r *Receiver) BuildFeedbackPacket() NADAReport {
	// calculate non-linear warping of delay d_tilde if packet loss exists
	equivalentDelay := r.EstimatedQueuingDelay
	if r.EstimatedPacketLossRatio > 0 {
		equivalentDelay = r.equivalentDelay()
	}

	// calculate current aggregate congestion signal x_curr
	aggregatedCongestionSignal := equivalentDelay +
		scale(r.config.ReferenceDelayMarking, math.Pow(r.EstimatedPacketECNMarkingRatio/r.config.ReferencePacketMarkingRatio, 2)) +
		scale(r.config.ReferenceDelayLoss, math.Pow(r.EstimatedPacketLossRatio/r.config.ReferencePacketLossRatio, 2))

	// determine mode of rate adaptation for sender: rmode. Gradual update
	// mode is recommended whenever loss, marking, or queueing delay exceed
	// their reference bounds; otherwise the sender is clear to ramp up
	// aggressively.
	rmode := r.EstimatedPacketLossRatio > r.config.ReferencePacketLossRatio ||
		r.EstimatedPacketECNMarkingRatio > r.config.ReferencePacketMarkingRatio ||
		r.EstimatedQueuingDelay > r.config.QueueBound

	r.LastTimestamp = r.CurrentTimestamp

	return NADAReport{
		RecommendedRateAdaptionMode: rmode,
		AggregatedCongestionSignal:  aggregatedCongestionSignal,
		ReceivingRate:               r.ReceivingRate,
		ReceiverTimestamp:           r.CurrentTimestamp,
	}
}

func scale(t time.Duration, x float64) time.Duration {
	return time.Duration(float64(t) * x)
}

// equivalentDelay computes d_tilde as described by
//
//	           / d_queue,                   if d_queue<QTH;
//	           |
//	d_tilde = <                                           (1)
//	           |                  (d_queue-QTH)
//	           \ QTH exp(-LAMBDA ---------------) , otherwise.
//	                                 QTH
func (r *Receiver) equivalentDelay() time.Duration {
	if r.EstimatedQueuingDelay < r.config.DelayThreshold {
		return r.EstimatedQueuingDelay
	}
	scaling := math.Exp(-r.config.λ * float64(r.EstimatedQueuingDelay-r.config.DelayThreshold) / float64(r.config.DelayThreshold))
	return scale(r.config.DelayThreshold, scaling)
}
