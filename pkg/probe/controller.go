package probe

import (
	"time"

	"github.com/google/uuid"
)

// controllerState is the tri-state state machine from the upstream design:
// no exhaustive-match language feature in Go, so every switch over it must
// be kept exhaustive by hand.
type controllerState int

const (
	stateInit controllerState = iota
	stateWaitingForProbingResult
	stateProbingComplete
)

// kProbeClusterTimeout bounds how long the controller waits in
// stateWaitingForProbingResult before giving up and declaring the probe
// round complete on its own, via Process.
const kProbeClusterTimeout = 5 * time.Second

// largeDropRatio is the "estimate fell below this fraction of the previous
// estimate" threshold that arms the rapid-recovery regime. The upstream
// source ties 0.5 to an experiment flag; this spec follows the source.
const largeDropRatio = 0.5

// rapidRecoveryProbeScale is applied to the pre-drop bitrate when emitting a
// rapid-recovery or RequestProbe probe.
const rapidRecoveryProbeScale = 0.85

// rapidRecoveryGuard is the minimum spacing between recorded large-drop
// events, so a single drop doesn't retrigger recovery probing repeatedly.
const rapidRecoveryGuard = 1 * time.Second

// ProbeController decides when and how large to emit active bandwidth
// probes. It is a pure, single-threaded value: every method call is
// synchronous, returns immediately, and performs no I/O other than the
// optional EventLogSink callback. Callers must invoke methods in
// non-decreasing at_time order.
type ProbeController struct {
	config ProbeControllerConfig
	sink   EventLogSink

	sessionID uuid.UUID

	state controllerState

	networkAvailable          bool
	bweLimitedDueToPacketLoss bool

	minBitrateToProbeFurther DataRate
	timeLastProbingInitiated time.Duration
	estimatedBitrate         DataRate

	sendProbeOnNextProcessInterval bool
	networkEstimate                *NetworkStateEstimate

	startBitrate             DataRate
	maxBitrate               DataRate
	maxTotalAllocatedBitrate DataRate

	alrStartTime *time.Duration
	alrEndTime   *time.Duration

	enablePeriodicAlrProbing bool

	timeOfLastLargeDrop       time.Duration
	bitrateBeforeLastLargeDrop DataRate

	lastBweDropProbingTime time.Duration

	nextProbeClusterID int64

	inRapidRecoveryExperiment bool

	lastAtTime time.Duration
}

// New constructs a ProbeController. cfg is validated via NewConfig; if it
// was out of range the controller still constructs, using the corrected
// copy, and New returns the wrapped ErrConfigOutOfRange alongside a usable
// controller (never nil).
func New(cfg ProbeControllerConfig, sink EventLogSink) (*ProbeController, error) {
	corrected, err := NewConfig(cfg)
	pc := &ProbeController{
		sessionID: uuid.New(),
	}
	pc.applyConfig(corrected)
	pc.sink = sink
	pc.resetState()
	return pc, err
}

func (pc *ProbeController) applyConfig(cfg ProbeControllerConfig) {
	pc.config = cfg
	pc.inRapidRecoveryExperiment = cfg.InRapidRecoveryExperiment
}

// resetState reinitializes every field except config, sink, sessionID, and
// nextProbeClusterID -- matching the Lifecycle requirement that Reset
// preserves enablePeriodicAlrProbing (handled by the caller of resetState)
// and keeps cluster IDs strictly increasing across resets.
func (pc *ProbeController) resetState() {
	pc.state = stateInit
	pc.networkAvailable = false
	pc.bweLimitedDueToPacketLoss = false
	pc.minBitrateToProbeFurther = DataRatePlusInfinity()
	pc.timeLastProbingInitiated = durationMinusInfinity
	pc.estimatedBitrate = DataRateZero()
	pc.sendProbeOnNextProcessInterval = false
	pc.networkEstimate = nil
	pc.startBitrate = DataRateZero()
	pc.maxBitrate = DataRatePlusInfinity()
	pc.maxTotalAllocatedBitrate = DataRateZero()
	pc.alrStartTime = nil
	pc.alrEndTime = nil
	pc.timeOfLastLargeDrop = durationMinusInfinity
	pc.bitrateBeforeLastLargeDrop = DataRateZero()
	pc.lastBweDropProbingTime = 0
	pc.lastAtTime = 0
	if pc.nextProbeClusterID == 0 {
		pc.nextProbeClusterID = 1
	}
}

// clampTime enforces invariant 7 (non-decreasing timestamps) and reports
// whether it had to clamp.
func (pc *ProbeController) clampTime(atTime time.Duration) (time.Duration, bool) {
	if atTime < pc.lastAtTime {
		return pc.lastAtTime, true
	}
	pc.lastAtTime = atTime
	return atTime, false
}

// SetBitrates updates the stored min/start/max bitrates. See §4.1.1.
func (pc *ProbeController) SetBitrates(min, start, max DataRate, atTime time.Duration) ([]ProbeClusterConfig, error) {
	if min < 0 || min > start || start > max {
		return nil, ErrInvalidRange
	}
	atTime, _ = pc.clampTime(atTime)

	oldMax := pc.maxBitrate
	pc.maxBitrate = max

	switch pc.state {
	case stateInit:
		pc.startBitrate = start
		if pc.networkAvailable {
			return pc.initiateExponentialProbing(atTime), nil
		}
		return nil, nil
	case stateWaitingForProbingResult:
		return nil, nil
	case stateProbingComplete:
		if max > oldMax && pc.estimatedBitrate.IsFinite() && pc.estimatedBitrate < max {
			rate := minRate(pc.estimatedBitrate*DataRate(pc.config.FurtherExponentialProbeScale), max)
			return pc.initiateProbing(atTime, []DataRate{rate}, false, "max-bitrate-increased"), nil
		}
		return nil, nil
	}
	return nil, nil
}

// OnMaxTotalAllocatedBitrate handles a change in the sum of allocated
// stream bitrates. See §4.1.2.
func (pc *ProbeController) OnMaxTotalAllocatedBitrate(total DataRate, atTime time.Duration) []ProbeClusterConfig {
	atTime, _ = pc.clampTime(atTime)

	increased := total > pc.maxTotalAllocatedBitrate
	pc.maxTotalAllocatedBitrate = total

	if !increased || pc.state != stateProbingComplete || pc.estimatedBitrate >= pc.maxBitrate {
		return nil
	}
	if pc.config.FirstAllocationProbeScale == nil {
		return nil
	}

	rates := []DataRate{
		minRate(total*DataRate(*pc.config.FirstAllocationProbeScale), pc.config.AllocationProbeMax),
	}
	if pc.config.SecondAllocationProbeScale != nil {
		rates = append(rates, minRate(total*DataRate(*pc.config.SecondAllocationProbeScale), pc.config.AllocationProbeMax))
	}

	return pc.initiateProbing(atTime, rates, pc.config.AllocationAllowFurtherProbing, "allocation")
}

// OnNetworkAvailability handles a network-up/network-down transition. See
// §4.1.3.
func (pc *ProbeController) OnNetworkAvailability(msg NetworkAvailability) []ProbeClusterConfig {
	atTime, _ := pc.clampTime(msg.AtTime)

	wasAvailable := pc.networkAvailable
	pc.networkAvailable = msg.Available

	if !wasAvailable && msg.Available && pc.state == stateInit && pc.startBitrate > 0 {
		return pc.initiateExponentialProbing(atTime)
	}
	return nil
}

// SetEstimatedBitrate stores the estimator's latest bitrate and, depending
// on state, may chain a follow-up exponential probe or a rapid-recovery
// probe. See §4.1.4.
func (pc *ProbeController) SetEstimatedBitrate(bitrate DataRate, bweLimitedDueToPacketLoss bool, atTime time.Duration) []ProbeClusterConfig {
	atTime, _ = pc.clampTime(atTime)
	pc.bweLimitedDueToPacketLoss = bweLimitedDueToPacketLoss

	var out []ProbeClusterConfig

	if pc.state == stateWaitingForProbingResult && bitrate >= pc.minBitrateToProbeFurther {
		rate := minRate(bitrate*DataRate(pc.config.FurtherExponentialProbeScale), pc.maxBitrate)
		out = pc.initiateProbing(atTime, []DataRate{rate}, true, "exponential-follow-up")
	} else {
		// Either we were never waiting on a probe result, or the new
		// estimate didn't clear the follow-up threshold -- either way the
		// current probing round is over.
		if pc.state == stateWaitingForProbingResult {
			pc.state = stateProbingComplete
			pc.minBitrateToProbeFurther = DataRatePlusInfinity()
		}

		if pc.estimatedBitrate > 0 && float64(bitrate) < largeDropRatio*float64(pc.estimatedBitrate) &&
			elapsedSince(atTime, pc.timeOfLastLargeDrop) > rapidRecoveryGuard {
			pc.timeOfLastLargeDrop = atTime
			pc.bitrateBeforeLastLargeDrop = pc.estimatedBitrate

			if pc.inRapidRecoveryExperiment || pc.alrActive() {
				rate := pc.bitrateBeforeLastLargeDrop * rapidRecoveryProbeScale
				out = pc.initiateProbing(atTime, []DataRate{rate}, false, "rapid-recovery")
			}
		}
	}

	pc.estimatedBitrate = bitrate
	return out
}

// EnablePeriodicAlrProbing toggles ALR-driven periodic probing. Never emits.
func (pc *ProbeController) EnablePeriodicAlrProbing(enable bool) {
	pc.enablePeriodicAlrProbing = enable
}

// SetAlrStartTimeMs records the start of an ALR interval, or clears it when
// t is nil.
func (pc *ProbeController) SetAlrStartTimeMs(t *time.Duration) {
	pc.alrStartTime = t
}

// SetAlrEndedTimeMs records the end of the current ALR interval.
func (pc *ProbeController) SetAlrEndedTimeMs(t time.Duration) {
	pc.alrEndTime = &t
}

func (pc *ProbeController) alrActive() bool {
	if pc.alrStartTime == nil {
		return false
	}
	if pc.alrEndTime == nil {
		return true
	}
	return *pc.alrEndTime < *pc.alrStartTime
}

// RequestProbe handles a caller-initiated probe request after a perceived
// bandwidth drop. See §4.1.7.
func (pc *ProbeController) RequestProbe(atTime time.Duration) []ProbeClusterConfig {
	atTime, _ = pc.clampTime(atTime)

	if !pc.networkAvailable {
		return nil
	}
	if pc.state == stateWaitingForProbingResult {
		return nil
	}
	if pc.estimatedBitrate >= pc.maxBitrate {
		return nil
	}

	recentlyInAlr := pc.alrActive()
	if !recentlyInAlr && pc.alrEndTime != nil {
		recentlyInAlr = atTime-*pc.alrEndTime < pc.config.AlrProbingInterval
	}
	if !recentlyInAlr {
		return nil
	}

	rate := minRate(pc.estimatedBitrate*rapidRecoveryProbeScale, pc.bitrateBeforeLastLargeDrop*rapidRecoveryProbeScale)
	pc.lastBweDropProbingTime = atTime
	return pc.initiateProbing(atTime, []DataRate{rate}, false, "requested")
}

// SetMaxBitrate stores a new max probing bitrate without generating a probe.
func (pc *ProbeController) SetMaxBitrate(max DataRate) {
	pc.maxBitrate = max
}

// SetNetworkStateEstimate stores a new network-state estimate. If capacity
// jumped or dropped sharply relative to the prior estimate, it arms
// sendProbeOnNextProcessInterval so the next Process call probes
// immediately. See §4.1.8.
func (pc *ProbeController) SetNetworkStateEstimate(estimate NetworkStateEstimate) {
	if pc.networkEstimate != nil && pc.networkEstimate.LinkCapacityUpper > 0 {
		ratio := float64(estimate.LinkCapacityUpper) / float64(pc.networkEstimate.LinkCapacityUpper)
		if ratio >= pc.config.NetworkStateEstimateFastRampupRate ||
			ratio <= pc.config.NetworkStateEstimateDropDownRate {
			pc.sendProbeOnNextProcessInterval = true
		}
	}
	pc.networkEstimate = &estimate
}

// Reset reinitializes the controller to construction defaults, preserving
// only enablePeriodicAlrProbing, the config, the sink, the session id, and
// the monotonically increasing cluster id counter.
func (pc *ProbeController) Reset(atTime time.Duration) {
	keepAlr := pc.enablePeriodicAlrProbing
	pc.resetState()
	pc.enablePeriodicAlrProbing = keepAlr
	pc.lastAtTime = atTime
}

// Process is the periodic tick the caller drives at its own cadence
// (typically ~1s). See §4.1.10.
func (pc *ProbeController) Process(atTime time.Duration) ([]ProbeClusterConfig, error) {
	clamped, wasClamped := pc.clampTime(atTime)
	atTime = clamped

	var tickErr error
	if wasClamped {
		tickErr = ErrNonMonotonicTime
	}

	if pc.state == stateWaitingForProbingResult && elapsedSince(atTime, pc.timeLastProbingInitiated) > kProbeClusterTimeout {
		pc.state = stateProbingComplete
		pc.minBitrateToProbeFurther = DataRatePlusInfinity()
	}

	if pc.sendProbeOnNextProcessInterval {
		pc.sendProbeOnNextProcessInterval = false
		return pc.networkStateProbe(atTime), tickErr
	}

	if pc.timeForAlrProbe(atTime) {
		rate := minRate(pc.estimatedBitrate*DataRate(pc.config.AlrProbeScale), pc.maxBitrate)
		return pc.initiateProbing(atTime, []DataRate{rate}, false, "alr"), tickErr
	}

	if pc.timeForNetworkStateProbe(atTime) {
		return pc.networkStateProbe(atTime), tickErr
	}

	return nil, tickErr
}
