// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metricsagg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"patronus.dev/core/internal/config"
	"patronus.dev/core/internal/logging"
	"patronus.dev/core/internal/model"
)

// Severity mirrors the teacher alerting engine's AlertLevel, narrowed
// to the two tiers §6.4's threshold families actually use.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is one threshold breach, adapted from the teacher's
// alerting.AlertEvent to the five §6.4 threshold families instead of
// free-form rule conditions.
type Event struct {
	Rule      string    `json:"rule"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	PathID    *int64    `json:"path_id,omitempty"`
}

// Channel is a webhook delivery target, the minimal surface the
// teacher's config.NotificationChannel exposed for the "webhook" type
// — the only channel type this control plane wires up.
type Channel struct {
	Name    string
	URL     string
	Headers map[string]string
}

// AlertEngine evaluates the five threshold families of §6.4 (CPU,
// memory, path latency, packet loss, path score) on every
// Aggregator tick and per-Path metric, firing webhook notifications
// with a per-rule cooldown, ported from alerting.Engine's
// history+cooldown+webhook-delivery pattern.
type AlertEngine struct {
	thresholds config.AlertThresholds
	channels   []Channel
	cooldown   time.Duration
	httpClient *http.Client
	logger     *logging.Logger

	mu        sync.Mutex
	lastFired map[string]time.Time
	history   []Event
	maxHist   int
}

// NewAlertEngine builds an AlertEngine evaluating thresholds against
// channels, each notification subject to cooldown before re-firing the
// same rule (and, for path-scoped rules, the same path).
func NewAlertEngine(thresholds config.AlertThresholds, channels []Channel, cooldown time.Duration, logger *logging.Logger) *AlertEngine {
	if cooldown <= 0 {
		cooldown = 15 * time.Minute
	}
	return &AlertEngine{
		thresholds: thresholds,
		channels:   channels,
		cooldown:   cooldown,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		lastFired:  make(map[string]time.Time),
		maxHist:    1000,
	}
}

// EvaluateSystem checks the CPU and memory threshold families against
// one SystemMetrics snapshot.
func (e *AlertEngine) EvaluateSystem(m model.SystemMetrics) {
	if m.CPUUsage >= e.thresholds.CPUCriticalPct {
		e.fire("cpu_critical", SeverityCritical, fmt.Sprintf("CPU usage %.1f%% >= critical threshold %.1f%%", m.CPUUsage, e.thresholds.CPUCriticalPct), nil)
	} else if m.CPUUsage >= e.thresholds.CPUWarningPct {
		e.fire("cpu_warning", SeverityWarning, fmt.Sprintf("CPU usage %.1f%% >= warning threshold %.1f%%", m.CPUUsage, e.thresholds.CPUWarningPct), nil)
	}
	if m.MemoryUsage >= e.thresholds.MemoryCriticalPct {
		e.fire("memory_critical", SeverityCritical, fmt.Sprintf("memory usage %.1f%% >= critical threshold %.1f%%", m.MemoryUsage, e.thresholds.MemoryCriticalPct), nil)
	}
}

// EvaluatePath checks the path latency, packet loss, and score
// threshold families against one Path's latest sample.
func (e *AlertEngine) EvaluatePath(p model.Path, m model.PathMetrics) {
	if m.LatencyMS >= e.thresholds.PathLatencyWarnMS {
		e.fire(fmt.Sprintf("path_latency_warn_%d", p.ID), SeverityWarning,
			fmt.Sprintf("path %d latency %.1fms >= warning threshold %.1fms", p.ID, m.LatencyMS, e.thresholds.PathLatencyWarnMS), &p.ID)
	}
	if m.PacketLossPct >= e.thresholds.PacketLossWarnPct {
		e.fire(fmt.Sprintf("path_loss_warn_%d", p.ID), SeverityWarning,
			fmt.Sprintf("path %d packet loss %.1f%% >= warning threshold %.1f%%", p.ID, m.PacketLossPct, e.thresholds.PacketLossWarnPct), &p.ID)
	}
	if m.Score < e.thresholds.PathScoreCriticalMin {
		e.fire(fmt.Sprintf("path_score_critical_%d", p.ID), SeverityCritical,
			fmt.Sprintf("path %d score %d < critical threshold %d", p.ID, m.Score, e.thresholds.PathScoreCriticalMin), &p.ID)
	}
}

func (e *AlertEngine) fire(rule string, severity Severity, message string, pathID *int64) {
	e.mu.Lock()
	if last, ok := e.lastFired[rule]; ok && time.Since(last) < e.cooldown {
		e.mu.Unlock()
		return
	}
	e.lastFired[rule] = time.Now()

	event := Event{Rule: rule, Severity: severity, Message: message, Timestamp: time.Now(), PathID: pathID}
	e.history = append(e.history, event)
	if len(e.history) > e.maxHist {
		e.history = e.history[1:]
	}
	e.mu.Unlock()

	e.logger.Warn("alert fired", "rule", rule, "severity", severity, "message", message)
	for _, ch := range e.channels {
		go e.deliver(ch, event)
	}
}

func (e *AlertEngine) deliver(ch Channel, event Event) {
	if ch.URL == "" {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		e.logger.Error("alert: marshal webhook payload failed", "error", err)
		return
	}
	req, err := http.NewRequest(http.MethodPost, ch.URL, bytes.NewReader(data))
	if err != nil {
		e.logger.Error("alert: build webhook request failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range ch.Headers {
		req.Header.Set(k, v)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		e.logger.Error("alert: webhook delivery failed", "channel", ch.Name, "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e.logger.Error("alert: webhook returned non-success status", "channel", ch.Name, "status", resp.StatusCode)
	}
}

// History returns a copy of every alert fired so far.
func (e *AlertEngine) History() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Event, len(e.history))
	copy(out, e.history)
	return out
}
