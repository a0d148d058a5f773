// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config defines RuntimeConfig, the single source of tunable
// values for the control plane core. There is no global mutable
// config: RuntimeConfig is built once at startup (by Load or
// Default) and threaded through every component's constructor, per
// the design notes in §9.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"

	"patronus.dev/core/internal/perrs"
)

// PolicyPrecedence names which admission engine runs first at the
// Flow boundary. spec.md §9 leaves this an explicit Open Question;
// RuntimeConfig carries it as a validated config value.
type PolicyPrecedence string

const (
	// NetworkPolicyFirst evaluates the NetworkPolicy engine before
	// RoutingPolicy selection, the order stated as primary in §9.
	NetworkPolicyFirst PolicyPrecedence = "network_policy_first"
	// RoutingPolicyFirst names the RoutingPolicy-before-NetworkPolicy
	// order. Validate accepts it, but the selection path (routingloop
	// and selector.Select) does not read PolicyPrecedence and always
	// applies the NetworkPolicy verdict first.
	RoutingPolicyFirst PolicyPrecedence = "routing_policy_first"
)

// AlertThresholds are the default threshold values of §6.4.
type AlertThresholds struct {
	CPUWarningPct      float64 `hcl:"cpu_warning_pct,optional"`
	CPUCriticalPct     float64 `hcl:"cpu_critical_pct,optional"`
	MemoryCriticalPct  float64 `hcl:"memory_critical_pct,optional"`
	PathLatencyWarnMS  float64 `hcl:"path_latency_warn_ms,optional"`
	PacketLossWarnPct  float64 `hcl:"packet_loss_warn_pct,optional"`
	PathScoreCriticalMin int   `hcl:"path_score_critical_min,optional"`
}

// AlertWebhook names one outbound delivery target for threshold
// breaches, the minimal surface the teacher's notification channel
// config carried for its "webhook" channel type.
type AlertWebhook struct {
	Name string `hcl:"name,label"`
	URL  string `hcl:"url"`
}

// AlertCooldown bounds how often the same alert rule may re-fire.
const defaultAlertCooldown = 15 * time.Minute

// DefaultAlertThresholds returns the literal defaults enumerated in §6.4.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		CPUWarningPct:        75,
		CPUCriticalPct:       90,
		MemoryCriticalPct:    90,
		PathLatencyWarnMS:    200,
		PacketLossWarnPct:    2,
		PathScoreCriticalMin: 50,
	}
}

// RuntimeConfig is the full set of tunables for one control-plane
// process. Every duration/count named in the specification as
// "default X, configurable Y" is a field here.
type RuntimeConfig struct {
	// Store
	StorePath string `hcl:"store_path,optional"`

	// Probe/Monitor (§4.2)
	ProbeInterval    time.Duration `hcl:"probe_interval,optional"`
	ProbeIntervalMin time.Duration `hcl:"probe_interval_min,optional"`
	ProbeIntervalMax time.Duration `hcl:"probe_interval_max,optional"`
	ProbeAttemptTimeout time.Duration `hcl:"probe_attempt_timeout,optional"`
	SampleWindow     int           `hcl:"sample_window,optional"` // W

	// Scorer (§4.3)
	NFailConsecutive int `hcl:"n_fail_consecutive,optional"`

	// Selector (§4.4)
	FlowTTL               time.Duration `hcl:"flow_ttl,optional"`
	StickinessHysteresis  time.Duration `hcl:"stickiness_hysteresis,optional"`
	StickinessScoreDelta  int           `hcl:"stickiness_score_delta,optional"`
	FailoverBatchSize     int           `hcl:"failover_batch_size,optional"`
	SelectionTickInterval time.Duration `hcl:"selection_tick_interval,optional"`

	// Policy precedence (§9 Open Question)
	PolicyPrecedence PolicyPrecedence `hcl:"policy_precedence,optional"`

	// Flow Table (§4.7)
	FlowTableMaxEntries int `hcl:"flow_table_max_entries,optional"`
	FlowTableShards     int `hcl:"flow_table_shards,optional"`

	// Mesh Manager (§4.6)
	TopologyTick time.Duration `hcl:"topology_tick,optional"`

	// Metrics Aggregator (§4.8)
	MetricsTickInterval time.Duration `hcl:"metrics_tick_interval,optional"`
	MetricsRingSize     int           `hcl:"metrics_ring_size,optional"`
	RetentionHorizon    time.Duration `hcl:"retention_horizon,optional"`
	RetentionTick       time.Duration `hcl:"retention_tick,optional"`

	Alerts         AlertThresholds `hcl:"alerts,block"`
	AlertWebhooks  []AlertWebhook  `hcl:"webhook,block"`
	AlertCooldown  time.Duration   `hcl:"alert_cooldown,optional"`

	// Control API (§6.1)
	ControlAPIAddr string `hcl:"control_api_addr,optional"`
}

// Default returns the documented defaults for every field, per the
// "default X (configurable Y)" language throughout §4.
func Default() *RuntimeConfig {
	return &RuntimeConfig{
		StorePath: "patronus.db",

		ProbeInterval:       10 * time.Second,
		ProbeIntervalMin:    5 * time.Second,
		ProbeIntervalMax:    60 * time.Second,
		ProbeAttemptTimeout: time.Second,
		SampleWindow:        10,

		NFailConsecutive: 3,

		FlowTTL:               5 * time.Minute,
		StickinessHysteresis:  60 * time.Second,
		StickinessScoreDelta:  20,
		FailoverBatchSize:     256,
		SelectionTickInterval: time.Second,

		PolicyPrecedence: NetworkPolicyFirst,

		FlowTableMaxEntries: 1_000_000,
		FlowTableShards:     64,

		TopologyTick: 30 * time.Second,

		MetricsTickInterval: 10 * time.Second,
		MetricsRingSize:     360,
		RetentionHorizon:    30 * 24 * time.Hour,
		RetentionTick:       24 * time.Hour,

		Alerts:        DefaultAlertThresholds(),
		AlertCooldown: defaultAlertCooldown,

		ControlAPIAddr: ":8443",
	}
}

// Load reads an HCL configuration file and overlays it onto Default(),
// mirroring the teacher's hclsimple-based decode path. The process
// environment is exposed to the file as env.VARNAME, letting an
// operator write e.g. webhook "pagerduty" { url = env.PAGERDUTY_URL }
// instead of committing secrets to the config file.
func Load(path string) (*RuntimeConfig, error) {
	cfg := Default()
	if err := hclsimple.DecodeFile(path, envEvalContext(), cfg); err != nil {
		return nil, perrs.Wrap(err, perrs.KindValidation, "decode runtime config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envEvalContext builds the HCL evaluation context exposing the
// process environment as an `env` object of cty strings.
func envEvalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		vars[parts[0]] = cty.StringVal(parts[1])
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(vars),
		},
	}
}

// Validate rejects configurations with values outside their documented
// bounds (probe interval 5-60s, at least one sample per window, etc.).
func (c *RuntimeConfig) Validate() error {
	if c.ProbeInterval < c.ProbeIntervalMin || c.ProbeInterval > c.ProbeIntervalMax {
		return perrs.Errorf(perrs.KindValidation, "probe_interval %s outside [%s,%s]", c.ProbeInterval, c.ProbeIntervalMin, c.ProbeIntervalMax)
	}
	if c.SampleWindow < 1 {
		return perrs.New(perrs.KindValidation, "sample_window must be >= 1")
	}
	if c.FlowTableShards < 1 {
		return perrs.New(perrs.KindValidation, "flow_table_shards must be >= 1")
	}
	if c.FailoverBatchSize < 1 {
		return perrs.New(perrs.KindValidation, "failover_batch_size must be >= 1")
	}
	if c.PolicyPrecedence != NetworkPolicyFirst && c.PolicyPrecedence != RoutingPolicyFirst {
		return perrs.Errorf(perrs.KindValidation, "unknown policy_precedence %q", c.PolicyPrecedence)
	}
	return nil
}
