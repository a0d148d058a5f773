// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metricsagg

import (
	"context"
	"time"

	"patronus.dev/core/internal/logging"
	"patronus.dev/core/internal/model"
	"patronus.dev/core/internal/perrs"
)

// Store is the subset of *store.Store the Aggregator needs.
type Store interface {
	AppendSystemMetrics(m model.SystemMetrics) error
	AppendPathMetrics(m model.PathMetrics) error
}

// PathSource gives the Aggregator the current Path set and each
// Path's latest quality sample.
type PathSource interface {
	ListPaths(siteID string) ([]model.Path, error)
	LatestPathMetrics(pathID int64) (model.PathMetrics, error)
}

// FlowSource reports the Flow Table's current size for active_flows.
type FlowSource interface {
	ActiveCount() int
}

// CounterSource reports cumulative byte/packet counters across all
// tracked traffic, used to derive throughput_mbps and
// packets_per_second from counter deltas, per §4.8.
type CounterSource interface {
	TotalCounters() (bytes, packets uint64)
}

// Aggregator runs the fixed-tick collection loop of §4.8.
type Aggregator struct {
	store   Store
	paths   PathSource
	flows   FlowSource
	counter CounterSource
	logger  *logging.Logger

	ringSize int
	ring     []model.SystemMetrics
	ringPos  int

	alerts *AlertEngine
	prom   *PromCollector

	prevCPU      cpuTimes
	prevCounters struct{ bytes, packets uint64 }
	prevTick     time.Time
}

// New builds an Aggregator. ringSize bounds the in-memory snapshot
// history (default 360, one hour at the default 10s tick). Every
// snapshot is also mirrored onto a PromCollector the control API can
// expose at /metrics.
func New(store Store, paths PathSource, flows FlowSource, counter CounterSource, alerts *AlertEngine, ringSize int, logger *logging.Logger) *Aggregator {
	if ringSize <= 0 {
		ringSize = 360
	}
	return &Aggregator{store: store, paths: paths, flows: flows, counter: counter, alerts: alerts, prom: NewPromCollector(), ringSize: ringSize, logger: logger}
}

// Prometheus returns the gauge set backing the /metrics endpoint.
func (a *Aggregator) Prometheus() *PromCollector {
	return a.prom
}

// Run ticks Collect every `every` until ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := a.Collect(ctx); err != nil {
				a.logger.Error("metricsagg: collection failed", "error", err)
			}
		}
	}
}

// Collect gathers one snapshot per §4.8 and persists it, pushing it
// into the in-memory ring and evaluating alert thresholds.
func (a *Aggregator) Collect(ctx context.Context) error {
	now := time.Now()

	cpuPct := 0.0
	if cur, err := readCPUTimes(); err == nil {
		if !a.prevTick.IsZero() {
			cpuPct = cpuUsagePct(a.prevCPU, cur)
		}
		a.prevCPU = cur
	} else {
		a.logger.Debug("metricsagg: cpu read failed", "error", err)
	}

	memPct, err := memoryUsagePct()
	if err != nil {
		a.logger.Debug("metricsagg: memory read failed", "error", err)
	}

	elapsed := now.Sub(a.prevTick).Seconds()
	var throughputMbps, pps float64
	if curBytes, curPackets := a.counter.TotalCounters(); elapsed > 0 && !a.prevTick.IsZero() {
		throughputMbps = rate(curBytes, a.prevCounters.bytes, elapsed) * 8 / 1e6
		pps = rate(curPackets, a.prevCounters.packets, elapsed)
		a.prevCounters.bytes = curBytes
		a.prevCounters.packets = curPackets
	} else {
		a.prevCounters.bytes, a.prevCounters.packets = a.counter.TotalCounters()
	}
	a.prevTick = now

	avgLatency, avgLoss, err := a.pathAverages()
	if err != nil {
		return err
	}

	snapshot := model.SystemMetrics{
		Timestamp:        now,
		ThroughputMbps:   throughputMbps,
		PacketsPerSecond: pps,
		ActiveFlows:      a.flows.ActiveCount(),
		AvgLatencyMS:     avgLatency,
		AvgPacketLoss:    avgLoss,
		CPUUsage:         cpuPct,
		MemoryUsage:      memPct,
	}

	if err := a.store.AppendSystemMetrics(snapshot); err != nil {
		return perrs.Wrap(err, perrs.KindTransientIO, "persist system metrics snapshot")
	}
	a.pushRing(snapshot)
	a.prom.Observe(snapshot)

	if a.alerts != nil {
		a.alerts.EvaluateSystem(snapshot)
	}
	return nil
}

// pathAverages computes avg_latency_ms and avg_packet_loss over every
// Path whose status != Down, using each Path's latest sample, per
// §4.8. It also fans alert evaluation out per-path since path score
// and latency thresholds are path-scoped, not system-scoped.
func (a *Aggregator) pathAverages() (avgLatency, avgLoss float64, err error) {
	paths, err := a.paths.ListPaths("")
	if err != nil {
		return 0, 0, perrs.Wrap(err, perrs.KindTransientIO, "list paths for metrics aggregation")
	}

	var latencySum, lossSum float64
	var n int
	for _, p := range paths {
		if p.Status == model.PathDown {
			continue
		}
		m, err := a.paths.LatestPathMetrics(p.ID)
		if err != nil {
			continue // no sample yet for this path
		}
		latencySum += m.LatencyMS
		lossSum += m.PacketLossPct
		n++
		if a.alerts != nil {
			a.alerts.EvaluatePath(p, m)
		}
	}
	if n == 0 {
		return 0, 0, nil
	}
	return latencySum / float64(n), lossSum / float64(n), nil
}

func (a *Aggregator) pushRing(m model.SystemMetrics) {
	if len(a.ring) < a.ringSize {
		a.ring = append(a.ring, m)
		return
	}
	a.ring[a.ringPos] = m
	a.ringPos = (a.ringPos + 1) % a.ringSize
}

// Recent returns up to the last N snapshots, oldest first.
func (a *Aggregator) Recent() []model.SystemMetrics {
	if len(a.ring) < a.ringSize {
		out := make([]model.SystemMetrics, len(a.ring))
		copy(out, a.ring)
		return out
	}
	out := make([]model.SystemMetrics, 0, a.ringSize)
	out = append(out, a.ring[a.ringPos:]...)
	out = append(out, a.ring[:a.ringPos]...)
	return out
}

func rate(current, previous uint64, elapsedSeconds float64) float64 {
	if elapsedSeconds <= 0 {
		return 0
	}
	if current < previous {
		// Counter reset: no meaningful delta for this window.
		return 0
	}
	return float64(current-previous) / elapsedSeconds
}
