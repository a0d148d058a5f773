// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package scorer derives a 0..100 quality score from a Path's rolling
// sample window and drives the PathStatus state machine, per §4.3.
package scorer

import (
	"math"

	"patronus.dev/core/internal/probe"
)

// meanSample is the arithmetic mean of a window of raw samples.
type meanSample struct {
	latencyMS     float64
	jitterMS      float64
	packetLossPct float64
	bandwidthMbps float64
}

func mean(window []probe.Sample) meanSample {
	if len(window) == 0 {
		return meanSample{}
	}
	var m meanSample
	for _, s := range window {
		m.latencyMS += s.LatencyMS
		m.jitterMS += s.JitterMS
		m.packetLossPct += s.PacketLossPct
		m.bandwidthMbps += s.BandwidthMbps
	}
	n := float64(len(window))
	m.latencyMS /= n
	m.jitterMS /= n
	m.packetLossPct /= n
	m.bandwidthMbps /= n
	return m
}

// Score applies the §4.3 formula to a window of samples:
//
//	raw =  40 * min(latency_ms / 200, 1)
//	     + 20 * min(jitter_ms  / 50,  1)
//	     + 30 * min(packet_loss_pct / 100, 1)
//	     + 10 * min(max(0, 1000 - bandwidth_mbps) / 1000, 1)
//	score = clamp(round(100 - raw), 0, 100)
func Score(window []probe.Sample) int {
	m := mean(window)

	latencyTerm := 40 * min1(m.latencyMS/200)
	jitterTerm := 20 * min1(m.jitterMS/50)
	lossTerm := 30 * min1(m.packetLossPct/100)
	bwTerm := 10 * min1(math.Max(0, 1000-m.bandwidthMbps)/1000)

	raw := latencyTerm + jitterTerm + lossTerm + bwTerm
	score := int(math.Round(100 - raw))
	return clamp(score, 0, 100)
}

func min1(x float64) float64 {
	if x > 1 {
		return 1
	}
	if x < 0 {
		return 0
	}
	return x
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
