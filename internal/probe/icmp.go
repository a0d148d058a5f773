// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package probe

import (
	"context"
	"fmt"
	"net"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"patronus.dev/core/internal/model"
)

// ICMPProber is the default Prober: an ICMP echo burst measures
// latency and loss, jitter is derived from the burst's RTT sequence
// using the RFC 3550 §A.8 smoothed inter-arrival estimator (the
// reference sources left the exact jitter algorithm unspecified;
// inter-arrival smoothing is picked over raw stddev because it is
// the convention pro-bing's own statistics already lean on and it
// reacts to a single outlier instead of being dominated by it).
// Bandwidth is not observable over ICMP; it is read from a
// BandwidthSource capability (typically a passive datapath counter
// delta) and defaults to zero when none is configured.
type ICMPProber struct {
	BurstSize  int
	Privileged bool
	Bandwidth  BandwidthSource
}

// BandwidthSource supplies the observed throughput between two
// endpoints, typically backed by a passive counter delta read from
// the datapath hook (§6.2) rather than an active measurement.
type BandwidthSource interface {
	BandwidthMbps(src, dst model.Endpoint) float64
}

// NewICMPProber builds an ICMPProber with the given burst size (pings
// per sample) and an optional bandwidth source (nil disables it).
func NewICMPProber(burstSize int, bandwidth BandwidthSource) *ICMPProber {
	if burstSize < 2 {
		burstSize = 5
	}
	return &ICMPProber{BurstSize: burstSize, Bandwidth: bandwidth}
}

// Probe runs one ICMP echo burst against dst's address and returns an
// aggregated Sample. The caller (internal/probe's scheduler) is
// responsible for applying the per-attempt timeout; Probe itself
// blocks until the burst completes or ctx is cancelled.
func (p *ICMPProber) Probe(ctx context.Context, src, dst model.Endpoint) (Sample, error) {
	host, _, err := net.SplitHostPort(dst.Address)
	if err != nil {
		host = dst.Address
	}

	pinger, err := probing.NewPinger(host)
	if err != nil {
		return Sample{}, fmt.Errorf("create pinger for %s: %w", host, err)
	}
	pinger.Count = p.BurstSize
	pinger.Interval = 20 * time.Millisecond
	pinger.SetPrivileged(p.Privileged)

	if deadline, ok := ctx.Deadline(); ok {
		pinger.Timeout = time.Until(deadline)
	}

	if err := pinger.RunWithContext(ctx); err != nil {
		return Sample{}, fmt.Errorf("probe %s: %w", host, err)
	}

	stats := pinger.Statistics()
	lossPct := stats.PacketLoss
	if lossPct >= 100 {
		return Sample{
			MeasuredAt:    time.Now().UTC(),
			LatencyMS:     float64(pinger.Timeout.Milliseconds()),
			PacketLossPct: 100,
			TimedOut:      true,
		}, nil
	}

	jitterMS := rfc3550Jitter(stats.Rtts)

	var bw float64
	if p.Bandwidth != nil {
		bw = p.Bandwidth.BandwidthMbps(src, dst)
	}

	return Sample{
		MeasuredAt:    time.Now().UTC(),
		LatencyMS:     float64(stats.AvgRtt.Microseconds()) / 1000.0,
		JitterMS:      jitterMS,
		PacketLossPct: lossPct,
		BandwidthMbps: bw,
	}, nil
}

// rfc3550Jitter computes the RFC 3550 §A.8 smoothed inter-arrival
// jitter estimate over a sequence of round-trip times, expressed in
// milliseconds. J is updated once per consecutive pair:
// J += (|D| - J) / 16.
func rfc3550Jitter(rtts []time.Duration) float64 {
	if len(rtts) < 2 {
		return 0
	}
	var j float64
	prev := rtts[0]
	for _, rtt := range rtts[1:] {
		d := float64(rtt-prev) / float64(time.Millisecond)
		if d < 0 {
			d = -d
		}
		j += (d - j) / 16
		prev = rtt
	}
	if j < 0 {
		return 0
	}
	return j
}
