// Command probesim drives a probe.ProbeController from a small synthetic
// event feed, prints every emitted cluster, and paces it out through a
// pacer.Pacer, illustrating how the controller, its event log sinks, and
// the reference pacer are wired together end to end. It is a demonstration
// harness, not a production sender.
package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/muxable/probectl/pkg/nada"
	"github.com/muxable/probectl/pkg/probe"
	"github.com/muxable/probectl/pkg/probe/pacer"
	"github.com/muxable/probectl/pkg/probe/probelog"
	"github.com/muxable/probectl/pkg/probe/probemetrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	metricsAddr := flag.String("metrics-addr", ":8013", "address to serve /metrics on")
	configPath := flag.String("config", "", "optional YAML file with ProbeControllerConfig overrides")
	withNada := flag.Bool("nada", false, "drive SetEstimatedBitrate from a NADA reference estimator instead of the fixed synthetic feed")
	transportAddr := flag.String("transport", "", "optional UDP address to send paced probe RTP packets to; defaults to discarding them")
	flag.Parse()

	go func() {
		m := http.NewServeMux()
		m.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(*metricsAddr, m); err != nil {
			log.Warn().Err(err).Msg("metrics server exited")
		}
	}()

	cfg := probe.DefaultConfig
	if *configPath != "" {
		overridden, err := loadConfig(*configPath, cfg)
		if err != nil {
			log.Fatal().Err(err).Str("path", *configPath).Msg("failed to load probe config")
		}
		cfg = overridden
	}

	sink := probelog.MultiSink{
		Sinks: []probe.EventLogSink{
			probelog.ZerologSink{},
			probemetrics.NewPrometheusSink(prometheus.DefaultRegisterer),
		},
	}

	pc, err := probe.New(cfg, sink)
	if err != nil {
		log.Warn().Err(err).Msg("probe config had out-of-range values, using corrected defaults")
	}

	var w io.Writer = io.Discard
	if *transportAddr != "" {
		conn, err := net.Dial("udp", *transportAddr)
		if err != nil {
			log.Fatal().Err(err).Str("addr", *transportAddr).Msg("failed to dial probe transport")
		}
		defer conn.Close()
		w = conn
	}
	p := pacer.NewPacer(clock.New(), w, 0x1eaf1234)

	if *withNada {
		runNadaDrivenFeed(pc, p)
	} else {
		runSyntheticFeed(pc, p)
	}
	p.Wait()
}

// configFile mirrors the subset of probe.ProbeControllerConfig a deployment
// is likely to want to tune from a file, rather than exposing every field
// (matching the spec's carve-out that "field trial" style deserialization
// is an external, out-of-scope concern -- this is a much smaller, ambient
// convenience layer on top of it).
type configFile struct {
	FirstExponentialProbeScale *float64 `yaml:"first_exponential_probe_scale"`
	AlrProbeScale              *float64 `yaml:"alr_probe_scale"`
	AlrProbingIntervalMs       *int64   `yaml:"alr_probing_interval_ms"`
	MinProbePacketsSent        *int     `yaml:"min_probe_packets_sent"`
}

func loadConfig(path string, base probe.ProbeControllerConfig) (probe.ProbeControllerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, err
	}
	var f configFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return base, fmt.Errorf("parsing %s: %w", path, err)
	}
	if f.FirstExponentialProbeScale != nil {
		base.FirstExponentialProbeScale = *f.FirstExponentialProbeScale
	}
	if f.AlrProbeScale != nil {
		base.AlrProbeScale = *f.AlrProbeScale
	}
	if f.AlrProbingIntervalMs != nil {
		base.AlrProbingInterval = time.Duration(*f.AlrProbingIntervalMs) * time.Millisecond
	}
	if f.MinProbePacketsSent != nil {
		base.MinProbePacketsSent = *f.MinProbePacketsSent
	}
	return base, nil
}

// runNadaDrivenFeed wires a nada.Receiver/nada.Sender pair as a reference
// bandwidth estimator: simulated media packets flow through the receiver,
// its feedback reports drive the sender's reference rate, and each updated
// rate becomes a SetEstimatedBitrate call on pc. This demonstrates the
// controller's real deployment shape, where an external estimator -- not
// the controller itself -- decides the operating point that probing
// results are compared against.
func runNadaDrivenFeed(pc *probe.ProbeController, p *pacer.Pacer) {
	base := time.Unix(0, 0)
	nadaCfg := nada.DefaultConfig
	recv := nada.NewReceiver(base, nadaCfg)
	send := nada.NewSender(base, nadaCfg)

	t := time.Duration(0)
	pc.EnablePeriodicAlrProbing(true)
	if clusters, err := pc.SetBitrates(probe.DataRate(nadaCfg.MinimumRate), 300_000, probe.DataRate(nadaCfg.MaximumRate), t); err != nil {
		log.Fatal().Err(err).Msg("invalid initial bitrate range")
	} else {
		reportClusters(p, clusters)
	}

	seq := uint16(0)
	const feedbackInterval = 200 * time.Millisecond
	for round := 0; round < 25; round++ {
		roundStart := base.Add(time.Duration(round) * feedbackInterval)
		for i := 0; i < 10; i++ {
			sentAt := roundStart.Add(time.Duration(i) * 20 * time.Millisecond)
			recvAt := sentAt.Add(5 * time.Millisecond)
			recv.OnReceiveMediaPacket(recvAt, sentAt, seq, 1200, false)
			seq++
		}

		report := recv.BuildFeedbackPacket()
		send.OnReceiveFeedbackReport(roundStart.Add(feedbackInterval), report)

		t += feedbackInterval
		clusters := pc.SetEstimatedBitrate(probe.DataRate(send.ReferenceRate), false, t)
		reportClusters(p, clusters)

		clusters, tickErr := pc.Process(t)
		if tickErr != nil {
			log.Warn().Err(tickErr).Msg("clock skew detected on process tick")
		}
		reportClusters(p, clusters)
	}
}

// reportClusters prints every emitted cluster and hands it to the pacer, so
// the demo's clusters end up as an actual paced RTP stream rather than just
// log lines. No RTCP is sent.
func reportClusters(p *pacer.Pacer, clusters []probe.ProbeClusterConfig) {
	for _, c := range clusters {
		fmt.Printf("t=%v cluster#%d reason=%s rate=%.0fbps duration=%v count=%d\n",
			c.AtTime, c.ID, c.Reason, float64(c.TargetRate), c.TargetDuration, c.TargetProbeCount)
		p.Enqueue(c)
	}
}

// runSyntheticFeed drives pc through a bitrate ramp, an ALR window, a
// network-state estimate bump, and a caller-initiated RequestProbe,
// printing each emitted cluster and pacing it out through p.
func runSyntheticFeed(pc *probe.ProbeController, p *pacer.Pacer) {
	t := time.Duration(0)

	pc.EnablePeriodicAlrProbing(true)

	reportClusters(p, pc.OnNetworkAvailability(probe.NetworkAvailability{AtTime: t, Available: true}))
	clusters, err := pc.SetBitrates(50_000, 300_000, 5_000_000, t)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid initial bitrate range")
	}
	reportClusters(p, clusters)

	t += time.Second
	reportClusters(p, pc.SetEstimatedBitrate(1_500_000, false, t))

	t += 4 * time.Second
	alrStart := t
	pc.SetAlrStartTimeMs(&alrStart)

	t += 6 * time.Second
	clusters, tickErr := pc.Process(t)
	if tickErr != nil {
		log.Warn().Err(tickErr).Msg("clock skew detected on process tick")
	}
	reportClusters(p, clusters)

	t += time.Second
	pc.SetNetworkStateEstimate(probe.NetworkStateEstimate{LinkCapacityUpper: 3_000_000})

	t += time.Second
	clusters, tickErr = pc.Process(t)
	if tickErr != nil {
		log.Warn().Err(tickErr).Msg("clock skew detected on process tick")
	}
	reportClusters(p, clusters)

	// simulate a caller (e.g. a jitter buffer noticing a stall) explicitly
	// asking for a probe, still within the ALR window opened above.
	t += time.Second
	reportClusters(p, pc.RequestProbe(t))
}
