// Package probe implements the probe controller: the policy engine that
// decides when and how large to emit active bandwidth probes in a real-time
// congestion-control stack.
package probe

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// DataRate is a send rate in bits per second. Zero and PlusInfinity are used
// as sentinels the way the upstream implementation uses DataRate::Zero() and
// DataRate::PlusInfinity().
type DataRate float64

// DataRateZero returns the zero rate.
func DataRateZero() DataRate { return 0 }

// DataRatePlusInfinity returns a rate that compares greater than any finite
// rate, used to mean "no cap" / "no follow-up probing threshold".
func DataRatePlusInfinity() DataRate { return DataRate(math.Inf(1)) }

// IsFinite reports whether r is neither +Inf nor -Inf.
func (r DataRate) IsFinite() bool { return !math.IsInf(float64(r), 0) }

func minRate(a, b DataRate) DataRate {
	if a < b {
		return a
	}
	return b
}

func maxRate(a, b DataRate) DataRate {
	if a > b {
		return a
	}
	return b
}

// durationMinusInfinity/durationPlusInfinity stand in for
// Timestamp::MinusInfinity()/PlusInfinity() from the upstream C++. time.Duration
// arithmetic does not saturate near these bounds (int64 wraps), so the sentinels
// are never added to or subtracted from directly; see elapsedSince.
const (
	durationMinusInfinity = time.Duration(math.MinInt64)
	durationPlusInfinity  = time.Duration(math.MaxInt64)
)

// elapsedSince computes at-last without overflowing when last is the
// durationMinusInfinity sentinel: subtracting straight from MinInt64 would
// wrap around instead of saturating. Any caller comparing the result against
// a finite threshold gets the "infinitely long ago" answer it expects.
func elapsedSince(at, last time.Duration) time.Duration {
	if last == durationMinusInfinity {
		return durationPlusInfinity
	}
	return at - last
}

// NetworkStateEstimate is an externally supplied path-capacity prediction.
// Only the field the controller reasons about is modeled; a real estimator
// may attach more fields for other consumers.
type NetworkStateEstimate struct {
	LinkCapacityUpper DataRate
}

// NetworkAvailability reports a change in whether the network path is usable
// at all (e.g. an interface came up or down).
type NetworkAvailability struct {
	AtTime    time.Duration
	Available bool
}

// ProbeClusterConfig describes a single burst of probe traffic for the pacer
// to emit. IDs are strictly increasing within one controller's lifetime
// (across Reset calls too, per the Lifecycle requirement).
type ProbeClusterConfig struct {
	AtTime           time.Duration
	TargetRate       DataRate
	TargetDuration   time.Duration
	TargetProbeCount int
	ID               int64
	// Reason names the policy path that emitted this cluster (e.g.
	// "initial-exponential", "alr", "network-state", "rapid-recovery"), so a
	// sink can break down emission volume by cause without inspecting
	// controller internals.
	Reason string
}

// EventLogSink receives one record per emitted cluster. Implementations must
// not block the caller for long; the controller calls this synchronously
// from within the event method that triggered the emission. A nil sink is
// valid and simply means "don't log".
type EventLogSink interface {
	LogProbeClusterCreated(sessionID uuid.UUID, cluster ProbeClusterConfig)
}
