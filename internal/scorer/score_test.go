// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"patronus.dev/core/internal/probe"
)

func window(n int, s probe.Sample) []probe.Sample {
	out := make([]probe.Sample, n)
	for i := range out {
		out[i] = s
	}
	return out
}

// S1: ten samples of {latency=10, jitter=1, loss=0, bw=900} score 97.
func TestScore_S1(t *testing.T) {
	w := window(10, probe.Sample{LatencyMS: 10, JitterMS: 1, PacketLossPct: 0, BandwidthMbps: 900})
	assert.Equal(t, 97, Score(w))
}

// S2: ten samples of {latency=250, jitter=60, loss=5, bw=50} score 29.
func TestScore_S2(t *testing.T) {
	w := window(10, probe.Sample{LatencyMS: 250, JitterMS: 60, PacketLossPct: 5, BandwidthMbps: 50})
	assert.Equal(t, 29, Score(w))
}

func TestScore_ClampsToBounds(t *testing.T) {
	perfect := window(5, probe.Sample{LatencyMS: 0, JitterMS: 0, PacketLossPct: 0, BandwidthMbps: 2000})
	assert.Equal(t, 100, Score(perfect))

	worst := window(5, probe.Sample{LatencyMS: 1000, JitterMS: 1000, PacketLossPct: 100, BandwidthMbps: 0})
	assert.Equal(t, 0, Score(worst))
}
