package probe

import "time"

// initiateProbing is the single emission point: every policy routine that
// wants to send probes funnels through here. reason names the calling
// policy path and is stamped onto every cluster this call emits. See §4.5.
func (pc *ProbeController) initiateProbing(atTime time.Duration, rates []DataRate, probeFurther bool, reason string) []ProbeClusterConfig {
	return pc.initiateProbingWithDuration(atTime, rates, probeFurther, pc.config.MinProbeDuration, reason)
}

func (pc *ProbeController) initiateProbingWithDuration(atTime time.Duration, rates []DataRate, probeFurther bool, duration time.Duration, reason string) []ProbeClusterConfig {
	if !pc.networkAvailable {
		return nil
	}

	if pc.shouldSkip() {
		pc.state = stateProbingComplete
		pc.minBitrateToProbeFurther = DataRatePlusInfinity()
		return nil
	}

	var out []ProbeClusterConfig
	var lastRate DataRate

	for _, rate := range rates {
		if pc.config.LimitProbeTargetRateToLossBwe && pc.bweLimitedDueToPacketLoss {
			rate = minRate(rate, pc.estimatedBitrate)
		}
		rate = minRate(rate, pc.maxBitrate)

		cluster := ProbeClusterConfig{
			AtTime:           atTime,
			TargetRate:       rate,
			TargetDuration:   duration,
			TargetProbeCount: pc.config.MinProbePacketsSent,
			ID:               pc.nextProbeClusterID,
			Reason:           reason,
		}
		pc.nextProbeClusterID++

		out = append(out, cluster)
		lastRate = rate

		if pc.sink != nil {
			pc.sink.LogProbeClusterCreated(pc.sessionID, cluster)
		}
	}

	if len(out) > 0 {
		pc.timeLastProbingInitiated = atTime
	}

	if probeFurther {
		pc.state = stateWaitingForProbingResult
		pc.minBitrateToProbeFurther = lastRate * DataRate(pc.config.FurtherProbeThreshold)
	} else {
		pc.state = stateProbingComplete
		pc.minBitrateToProbeFurther = DataRatePlusInfinity()
	}

	return out
}

// shouldSkip implements invariant 6: suppress all probing once
// min(estimate, net-state) exceeds the configured fraction of max_bitrate.
// A zero SkipIfEstimateLargerThanFractionOfMax disables the rule entirely,
// matching the upstream field trial's "unset" behavior.
func (pc *ProbeController) shouldSkip() bool {
	if pc.config.SkipIfEstimateLargerThanFractionOfMax <= 0 {
		return false
	}
	bound := pc.estimatedBitrate
	if pc.networkEstimate != nil {
		bound = minRate(bound, pc.networkEstimate.LinkCapacityUpper)
	}
	threshold := DataRate(pc.config.SkipIfEstimateLargerThanFractionOfMax) * pc.maxBitrate
	return threshold <= bound
}
