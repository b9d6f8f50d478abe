package probe

import "time"

// initiateExponentialProbing builds the one or two initial probe clusters
// and arms follow-up probing. See §4.2.
func (pc *ProbeController) initiateExponentialProbing(atTime time.Duration) []ProbeClusterConfig {
	rates := []DataRate{pc.startBitrate * DataRate(pc.config.FirstExponentialProbeScale)}
	if pc.config.SecondExponentialProbeScale != nil {
		rates = append(rates, pc.startBitrate*DataRate(*pc.config.SecondExponentialProbeScale))
	}
	return pc.initiateProbing(atTime, rates, true, "initial-exponential")
}

// timeForAlrProbe reports whether the ALR periodic-probing regime is
// eligible to fire on this tick. See §4.3.
func (pc *ProbeController) timeForAlrProbe(atTime time.Duration) bool {
	if !pc.enablePeriodicAlrProbing {
		return false
	}
	if !pc.alrActive() {
		return false
	}
	if pc.state != stateProbingComplete {
		return false
	}
	if !(pc.estimatedBitrate > 0 && pc.estimatedBitrate < pc.maxBitrate) {
		return false
	}
	return elapsedSince(atTime, pc.timeLastProbingInitiated) >= pc.config.AlrProbingInterval
}

// timeForNetworkStateProbe reports whether the network-state-estimate
// probing regime is eligible to fire on this tick. See §4.4.
func (pc *ProbeController) timeForNetworkStateProbe(atTime time.Duration) bool {
	if pc.networkEstimate == nil {
		return false
	}
	if pc.state != stateProbingComplete {
		return false
	}
	return elapsedSince(atTime, pc.timeLastProbingInitiated) >= pc.config.NetworkStateEstimateProbingInterval
}

// networkStateProbe builds the single net-state-driven probe cluster,
// applying the network-state probe duration override. See §4.4.
func (pc *ProbeController) networkStateProbe(atTime time.Duration) []ProbeClusterConfig {
	if pc.networkEstimate == nil {
		return nil
	}
	rate := minRate(pc.estimatedBitrate, pc.networkEstimate.LinkCapacityUpper) * DataRate(pc.config.NetworkStateProbeScale)
	rate = minRate(rate, pc.maxBitrate)
	return pc.initiateProbingWithDuration(atTime, []DataRate{rate}, false, pc.config.NetworkStateProbeDuration, "network-state")
}
