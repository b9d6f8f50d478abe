package nada

import (
	"testing"
	"time"
)

func TestReceiverBuildFeedbackPacket_NoLossStaysInAccelRampUp(t *testing.T) {
	base := time.Unix(0, 0)
	r := NewReceiver(base, DefaultConfig)

	for i := uint16(0); i < 10; i++ {
		sentAt := base.Add(time.Duration(i) * 20 * time.Millisecond)
		recvAt := sentAt.Add(5 * time.Millisecond)
		r.OnReceiveMediaPacket(recvAt, sentAt, i, 1200, false)
	}

	report := r.BuildFeedbackPacket()
	if report.RecommendedRateAdaptionMode {
		t.Fatalf("expected accelerated ramp-up mode with no loss or marking, got gradual mode")
	}
	if report.AggregatedCongestionSignal < 0 {
		t.Fatalf("expected non-negative congestion signal, got %v", report.AggregatedCongestionSignal)
	}
}

func TestReceiverBuildFeedbackPacket_LossTriggersGradualMode(t *testing.T) {
	base := time.Unix(0, 0)
	r := NewReceiver(base, DefaultConfig)

	seq := uint16(0)
	for i := 0; i < 20; i++ {
		sentAt := base.Add(time.Duration(i) * 20 * time.Millisecond)
		recvAt := sentAt.Add(5 * time.Millisecond)
		r.OnReceiveMediaPacket(recvAt, sentAt, seq, 1200, false)
		seq += 3 // skip two sequence numbers each time to simulate steady loss
	}

	report := r.BuildFeedbackPacket()
	if !report.RecommendedRateAdaptionMode {
		t.Fatalf("expected gradual update mode once sustained loss exceeds the reference ratio")
	}
}

func TestSenderOnReceiveFeedbackReport_AccelRampUpTracksReceivingRate(t *testing.T) {
	base := time.Unix(0, 0)
	s := NewSender(base, DefaultConfig)

	report := NADAReport{
		RecommendedRateAdaptionMode: false,
		ReceivingRate:               800_000,
	}
	s.OnReceiveFeedbackReport(base.Add(100*time.Millisecond), report)

	if s.ReferenceRate < BitsPerSecond(800_000) {
		t.Fatalf("expected reference rate to track receiving rate upward, got %v", s.ReferenceRate)
	}
	if s.ReferenceRate > DefaultConfig.MaximumRate {
		t.Fatalf("reference rate %v exceeds configured maximum %v", s.ReferenceRate, DefaultConfig.MaximumRate)
	}
}

func TestSenderOnReceiveFeedbackReport_EstimatesRoundTripTimeFromReceiverTimestamp(t *testing.T) {
	base := time.Unix(0, 0)
	s := NewSender(base, DefaultConfig)

	report := NADAReport{
		RecommendedRateAdaptionMode: false,
		ReceivingRate:               800_000,
		ReceiverTimestamp:           base,
	}
	s.OnReceiveFeedbackReport(base.Add(40*time.Millisecond), report)

	if s.SenderEstimatedRoundTripTime != 40*time.Millisecond {
		t.Fatalf("expected first rtt sample to be taken as-is, got %v", s.SenderEstimatedRoundTripTime)
	}

	report.ReceiverTimestamp = base.Add(40 * time.Millisecond)
	s.OnReceiveFeedbackReport(base.Add(100*time.Millisecond), report)

	if s.SenderEstimatedRoundTripTime <= 0 {
		t.Fatalf("expected a positive smoothed rtt estimate, got %v", s.SenderEstimatedRoundTripTime)
	}
}

func TestSenderOnReceiveFeedbackReport_ClipsToConfiguredBounds(t *testing.T) {
	base := time.Unix(0, 0)
	s := NewSender(base, DefaultConfig)

	report := NADAReport{
		RecommendedRateAdaptionMode: false,
		ReceivingRate:               10_000_000,
	}
	s.OnReceiveFeedbackReport(base.Add(100*time.Millisecond), report)

	if s.ReferenceRate > DefaultConfig.MaximumRate {
		t.Fatalf("expected reference rate clipped to %v, got %v", DefaultConfig.MaximumRate, s.ReferenceRate)
	}
}
