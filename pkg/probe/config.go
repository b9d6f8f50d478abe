package probe

import (
	"fmt"
	"time"
)

// ProbeControllerConfig holds every tunable of the probing policy. It is
// immutable once handed to New: the controller keeps its own copy.
type ProbeControllerConfig struct {
	// FirstExponentialProbeScale multiplies StartBitrate for the first
	// initial probe.
	FirstExponentialProbeScale float64
	// SecondExponentialProbeScale multiplies StartBitrate for the second
	// initial probe. If nil, only one initial probe is issued.
	SecondExponentialProbeScale *float64
	// FurtherExponentialProbeScale multiplies the newest estimate for
	// follow-up exponential probes.
	FurtherExponentialProbeScale float64
	// FurtherProbeThreshold is the minimum fraction of the last probe's
	// target the new estimate must reach to trigger a follow-up probe.
	FurtherProbeThreshold float64

	// AlrProbingInterval is the minimum wall-time gap between ALR probes.
	AlrProbingInterval time.Duration
	// AlrProbeScale multiplies the current estimate for ALR probes.
	AlrProbeScale float64

	// NetworkStateEstimateProbingInterval is the minimum wall-time gap
	// between network-state-driven probes.
	NetworkStateEstimateProbingInterval time.Duration
	// NetworkStateEstimateFastRampupRate is the ratio of new/old net-state
	// link capacity above which to probe immediately on the next tick.
	NetworkStateEstimateFastRampupRate float64
	// NetworkStateEstimateDropDownRate is the ratio of new/old net-state
	// capacity below which to probe immediately (detecting rebound).
	NetworkStateEstimateDropDownRate float64
	// NetworkStateProbeScale multiplies min(estimate, net-state capacity)
	// for net-state probes.
	NetworkStateProbeScale float64
	// NetworkStateProbeDuration overrides MinProbeDuration while net-state
	// probing is active.
	NetworkStateProbeDuration time.Duration

	// FirstAllocationProbeScale and SecondAllocationProbeScale multiply a
	// newly reported max allocated bitrate. Either may be nil.
	FirstAllocationProbeScale  *float64
	SecondAllocationProbeScale *float64
	// AllocationAllowFurtherProbing allows follow-up exponential probing
	// to continue after an allocation probe.
	AllocationAllowFurtherProbing bool
	// AllocationProbeMax caps the target rate of an allocation probe.
	AllocationProbeMax DataRate

	// MinProbePacketsSent is written into every emitted cluster.
	MinProbePacketsSent int
	// MinProbeDuration is written into every emitted cluster, unless
	// overridden by NetworkStateProbeDuration.
	MinProbeDuration time.Duration
	// LimitProbeTargetRateToLossBwe clamps a probe's target rate to the
	// current estimate whenever the estimator reports loss-limited state.
	LimitProbeTargetRateToLossBwe bool
	// SkipIfEstimateLargerThanFractionOfMax suppresses all probing once
	// min(estimate, net-state) exceeds this fraction of MaxBitrate.
	SkipIfEstimateLargerThanFractionOfMax float64

	// InRapidRecoveryExperiment enables the aggressive post-drop recovery
	// probe regardless of ALR state. In the upstream implementation this
	// is a field-trial flag; here it is a plain bool set at construction.
	InRapidRecoveryExperiment bool
}

// DefaultConfig mirrors the field-trial defaults documented in the upstream
// probe controller.
var DefaultConfig = ProbeControllerConfig{
	FirstExponentialProbeScale:   3.0,
	SecondExponentialProbeScale:  floatPtr(6.0),
	FurtherExponentialProbeScale: 2.0,
	FurtherProbeThreshold:        0.7,

	AlrProbingInterval: 5 * time.Second,
	AlrProbeScale:      2.0,

	NetworkStateEstimateProbingInterval: 5 * time.Second,
	NetworkStateEstimateFastRampupRate:  1.2,
	NetworkStateEstimateDropDownRate:    0.8,
	NetworkStateProbeScale:              1.0,
	NetworkStateProbeDuration:           15 * time.Millisecond,

	FirstAllocationProbeScale:     floatPtr(1.0),
	SecondAllocationProbeScale:    floatPtr(2.0),
	AllocationAllowFurtherProbing: false,
	AllocationProbeMax:            DataRate(100_000_000),

	MinProbePacketsSent:           5,
	MinProbeDuration:              15 * time.Millisecond,
	LimitProbeTargetRateToLossBwe: true,

	SkipIfEstimateLargerThanFractionOfMax: 0.0,

	InRapidRecoveryExperiment: false,
}

func floatPtr(v float64) *float64 { return &v }

// NewConfig validates cfg, returning a corrected copy alongside
// ErrConfigOutOfRange if any field was substituted with its DefaultConfig
// value. The returned config is always usable.
func NewConfig(cfg ProbeControllerConfig) (ProbeControllerConfig, error) {
	var errs []string

	if cfg.FirstExponentialProbeScale <= 0 {
		cfg.FirstExponentialProbeScale = DefaultConfig.FirstExponentialProbeScale
		errs = append(errs, "FirstExponentialProbeScale")
	}
	if cfg.FurtherExponentialProbeScale <= 0 {
		cfg.FurtherExponentialProbeScale = DefaultConfig.FurtherExponentialProbeScale
		errs = append(errs, "FurtherExponentialProbeScale")
	}
	if cfg.FurtherProbeThreshold <= 0 {
		cfg.FurtherProbeThreshold = DefaultConfig.FurtherProbeThreshold
		errs = append(errs, "FurtherProbeThreshold")
	}
	if cfg.AlrProbingInterval <= 0 {
		cfg.AlrProbingInterval = DefaultConfig.AlrProbingInterval
		errs = append(errs, "AlrProbingInterval")
	}
	if cfg.AlrProbeScale <= 0 {
		cfg.AlrProbeScale = DefaultConfig.AlrProbeScale
		errs = append(errs, "AlrProbeScale")
	}
	if cfg.NetworkStateEstimateProbingInterval <= 0 {
		cfg.NetworkStateEstimateProbingInterval = DefaultConfig.NetworkStateEstimateProbingInterval
		errs = append(errs, "NetworkStateEstimateProbingInterval")
	}
	if cfg.NetworkStateEstimateFastRampupRate <= 1.0 {
		cfg.NetworkStateEstimateFastRampupRate = DefaultConfig.NetworkStateEstimateFastRampupRate
		errs = append(errs, "NetworkStateEstimateFastRampupRate")
	}
	if cfg.NetworkStateEstimateDropDownRate <= 0 || cfg.NetworkStateEstimateDropDownRate >= 1.0 {
		cfg.NetworkStateEstimateDropDownRate = DefaultConfig.NetworkStateEstimateDropDownRate
		errs = append(errs, "NetworkStateEstimateDropDownRate")
	}
	if cfg.NetworkStateProbeScale <= 0 {
		cfg.NetworkStateProbeScale = DefaultConfig.NetworkStateProbeScale
		errs = append(errs, "NetworkStateProbeScale")
	}
	if cfg.NetworkStateProbeDuration <= 0 {
		cfg.NetworkStateProbeDuration = DefaultConfig.NetworkStateProbeDuration
		errs = append(errs, "NetworkStateProbeDuration")
	}
	if cfg.AllocationProbeMax <= 0 {
		cfg.AllocationProbeMax = DefaultConfig.AllocationProbeMax
		errs = append(errs, "AllocationProbeMax")
	}
	if cfg.MinProbePacketsSent <= 0 {
		cfg.MinProbePacketsSent = DefaultConfig.MinProbePacketsSent
		errs = append(errs, "MinProbePacketsSent")
	}
	if cfg.MinProbeDuration <= 0 {
		cfg.MinProbeDuration = DefaultConfig.MinProbeDuration
		errs = append(errs, "MinProbeDuration")
	}
	if cfg.SkipIfEstimateLargerThanFractionOfMax < 0 {
		cfg.SkipIfEstimateLargerThanFractionOfMax = DefaultConfig.SkipIfEstimateLargerThanFractionOfMax
		errs = append(errs, "SkipIfEstimateLargerThanFractionOfMax")
	}

	if len(errs) > 0 {
		return cfg, fmt.Errorf("%w: reset to defaults: %v", ErrConfigOutOfRange, errs)
	}
	return cfg, nil
}
