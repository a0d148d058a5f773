// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package probe periodically measures every Path whose status is not
// Down and emits raw quality samples, per §4.2. The probe method
// itself is injected as a capability (Prober) so the core never hard
// codes a packet format; internal/probe only owns the scheduling,
// the per-path ring of the last W samples, and the timeout contract.
package probe

import (
	"context"
	"time"

	"patronus.dev/core/internal/model"
)

// Sample is one raw measurement of a Path, as produced by a Prober.
type Sample struct {
	MeasuredAt    time.Time
	LatencyMS     float64
	JitterMS      float64
	PacketLossPct float64 // 0..100
	BandwidthMbps float64
	TimedOut      bool
}

// Prober is the injected capability that actually measures a Path.
// Implementations are polymorphic over transport: ICMP echo for
// latency/loss, short UDP bursts for jitter, a UDP throughput probe or
// passive counter delta for bandwidth. The core never interprets the
// wire format a Prober uses.
type Prober interface {
	Probe(ctx context.Context, src, dst model.Endpoint) (Sample, error)
}

// timeoutSample is what gets recorded when a probe attempt exceeds
// its per-attempt timeout: 100% loss, latency pinned at the timeout
// ceiling, per §4.2.
func timeoutSample(ceiling time.Duration) Sample {
	return Sample{
		MeasuredAt:    time.Now().UTC(),
		LatencyMS:     float64(ceiling.Milliseconds()),
		JitterMS:      0,
		PacketLossPct: 100,
		BandwidthMbps: 0,
		TimedOut:      true,
	}
}
