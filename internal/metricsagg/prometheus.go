// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metricsagg

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"patronus.dev/core/internal/model"
)

// PromCollector exposes every §4.8 SystemMetrics field as a Prometheus
// gauge, generalized from the teacher's nftables Collector (one struct
// owning a private registry plus a promhttp.Handler for the control
// API to mount) onto control-plane-wide throughput/latency/flow
// figures instead of firewall rule counters.
type PromCollector struct {
	registry *prometheus.Registry

	throughputMbps prometheus.Gauge
	packetsPerSec  prometheus.Gauge
	activeFlows    prometheus.Gauge
	avgLatencyMS   prometheus.Gauge
	avgPacketLoss  prometheus.Gauge
	cpuUsage       prometheus.Gauge
	memoryUsage    prometheus.Gauge
	droppedSamples prometheus.Gauge
}

// NewPromCollector registers a fresh gauge set on its own registry, kept
// separate from the default global one so tests can construct more than
// one without collector-already-registered panics.
func NewPromCollector() *PromCollector {
	c := &PromCollector{
		registry: prometheus.NewRegistry(),
		throughputMbps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "patronus", Name: "throughput_mbps", Help: "Aggregate measured throughput across all Paths, in megabits per second.",
		}),
		packetsPerSec: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "patronus", Name: "packets_per_second", Help: "Aggregate packet rate across all tracked Flows.",
		}),
		activeFlows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "patronus", Name: "active_flows", Help: "Number of Flows currently tracked in the Flow Table.",
		}),
		avgLatencyMS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "patronus", Name: "avg_path_latency_ms", Help: "Average latency across every non-Down Path's latest sample.",
		}),
		avgPacketLoss: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "patronus", Name: "avg_path_packet_loss_pct", Help: "Average packet loss percentage across every non-Down Path's latest sample.",
		}),
		cpuUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "patronus", Name: "cpu_usage_pct", Help: "Host CPU usage percentage.",
		}),
		memoryUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "patronus", Name: "memory_usage_pct", Help: "Host memory usage percentage.",
		}),
		droppedSamples: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "patronus", Name: "probe_dropped_samples_total", Help: "Probe Emissions dropped under Scorer queue backpressure since startup.",
		}),
	}
	c.registry.MustRegister(
		c.throughputMbps, c.packetsPerSec, c.activeFlows,
		c.avgLatencyMS, c.avgPacketLoss, c.cpuUsage, c.memoryUsage, c.droppedSamples,
	)
	return c
}

// Observe updates every gauge from one SystemMetrics snapshot.
func (c *PromCollector) Observe(m model.SystemMetrics) {
	c.throughputMbps.Set(m.ThroughputMbps)
	c.packetsPerSec.Set(m.PacketsPerSecond)
	c.activeFlows.Set(float64(m.ActiveFlows))
	c.avgLatencyMS.Set(m.AvgLatencyMS)
	c.avgPacketLoss.Set(m.AvgPacketLoss)
	c.cpuUsage.Set(m.CPUUsage)
	c.memoryUsage.Set(m.MemoryUsage)
}

// SetDroppedSamples reports the Monitor's current backpressure-drop
// counter.
func (c *PromCollector) SetDroppedSamples(n uint64) {
	c.droppedSamples.Set(float64(n))
}

// Handler returns the http.Handler the control API mounts at /metrics.
func (c *PromCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
