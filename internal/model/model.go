// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package model defines the durable entities of the Patronus control
// plane core: sites, endpoints, paths, flows, and policies, per §3 of
// the specification.
package model

import (
	"strings"
	"time"
)

// SiteStatus is the health state of a Site.
type SiteStatus string

const (
	SiteActive   SiteStatus = "active"
	SiteDegraded SiteStatus = "degraded"
	SiteOffline  SiteStatus = "offline"
)

// InterfaceType tags the transport class of an Endpoint.
type InterfaceType string

const (
	InterfaceWAN InterfaceType = "wan"
	InterfaceLAN InterfaceType = "lan"
	InterfaceLTE InterfaceType = "lte"
)

// Endpoint is a socket address at a Site usable as a tunnel terminus.
// It is exclusively owned by its Site; it has no independent identity
// outside of the Site's endpoint list.
type Endpoint struct {
	ID            string        `json:"id"`
	Address       string        `json:"address"` // host:port
	InterfaceType InterfaceType `json:"interface_type"`
	CostPerGB     float64       `json:"cost_per_gb"`
	Reachable     bool          `json:"reachable"`
}

// Site is a geographic/administrative node owning one or more endpoints.
type Site struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Location  string     `json:"location,omitempty"`
	Status    SiteStatus `json:"status"`
	Endpoints []Endpoint `json:"endpoints"`
	CreatedAt time.Time  `json:"created_at"`
	LastSeen  time.Time  `json:"last_seen"`
}

// Endpoint looks up an endpoint by id, returning ok=false if absent.
func (s *Site) Endpoint(id string) (Endpoint, bool) {
	for _, e := range s.Endpoints {
		if e.ID == id {
			return e, true
		}
	}
	return Endpoint{}, false
}

// Transport tags the tunnel technology backing a Path.
type Transport string

const (
	TransportWireGuard Transport = "wireguard"
	TransportIPsec     Transport = "ipsec"
)

// PathStatus is the quality state machine value of a Path, driven by
// the Scorer per §4.3.
type PathStatus string

const (
	PathUp       PathStatus = "up"
	PathDegraded PathStatus = "degraded"
	PathDown     PathStatus = "down"
)

// TunnelDescriptor is the opaque result of materializing a tunnel via
// the injected Tunnel capability. The core never interprets these bytes.
type TunnelDescriptor struct {
	Opaque       []byte `json:"opaque"`
	PeerPublicKey []byte `json:"peer_public_key"`
}

// Path is a directional link between two endpoints of two different
// Sites. Invariant: if a Path exists, both referenced sites exist
// (enforced by the Store).
type Path struct {
	ID           int64            `json:"id"`
	SrcSiteID    string           `json:"src_site_id"`
	DstSiteID    string           `json:"dst_site_id"`
	SrcEndpointID string          `json:"src_endpoint_id"`
	DstEndpointID string          `json:"dst_endpoint_id"`
	Transport    Transport        `json:"transport"`
	Status       PathStatus       `json:"status"`
	Tunnel       *TunnelDescriptor `json:"tunnel,omitempty"`
}

// PathMetrics is one append-only sample in a Path's time series.
type PathMetrics struct {
	PathID         int64     `json:"path_id"`
	MeasuredAt     time.Time `json:"measured_at"`
	LatencyMS      float64   `json:"latency_ms"`
	JitterMS       float64   `json:"jitter_ms"`
	PacketLossPct  float64   `json:"packet_loss_pct"` // 0..100
	BandwidthMbps  float64   `json:"bandwidth_mbps"`
	Score          int       `json:"score"` // 0..100, derived
}

// SystemMetrics is one append-only system-wide snapshot.
type SystemMetrics struct {
	Timestamp        time.Time `json:"timestamp"`
	ThroughputMbps   float64   `json:"throughput_mbps"`
	PacketsPerSecond float64   `json:"packets_per_second"`
	ActiveFlows      int       `json:"active_flows"`
	AvgLatencyMS     float64   `json:"avg_latency_ms"`
	AvgPacketLoss    float64   `json:"avg_packet_loss"`
	CPUUsage         float64   `json:"cpu_usage"`    // 0..100
	MemoryUsage      float64   `json:"memory_usage"` // 0..100
}

// Protocol is an L4 protocol tag used in a FlowKey and port specs.
type Protocol string

const (
	ProtocolTCP  Protocol = "tcp"
	ProtocolUDP  Protocol = "udp"
	ProtocolICMP Protocol = "icmp"
)

// HasPorts reports whether the protocol carries port numbers.
func (p Protocol) HasPorts() bool {
	return p == ProtocolTCP || p == ProtocolUDP
}

// FlowKey identifies a unidirectional 5-tuple traffic stream.
// Equality is structural: ports are normalized to 0 for protocols
// without them, per §3.
type FlowKey struct {
	SrcIP    string   `json:"src_ip"`
	DstIP    string   `json:"dst_ip"`
	SrcPort  int      `json:"src_port"`
	DstPort  int      `json:"dst_port"`
	Protocol Protocol `json:"protocol"`
}

// Canonical returns a copy of k with IPs normalized and ports zeroed
// out for protocols that don't carry them.
func (k FlowKey) Canonical() FlowKey {
	c := k
	c.SrcIP = canonicalIP(k.SrcIP)
	c.DstIP = canonicalIP(k.DstIP)
	if !k.Protocol.HasPorts() {
		c.SrcPort = 0
		c.DstPort = 0
	}
	return c
}

// Priority is the per-flow service-class tag driving default routing
// actions per §4.4.
type Priority string

const (
	PriorityCritical   Priority = "critical"
	PriorityHigh       Priority = "high"
	PriorityNormal     Priority = "normal"
	PriorityLow        Priority = "low"
	PriorityBestEffort Priority = "best_effort"
)

// FlowCounters are byte/packet counters maintained by the Flow Table.
type FlowCounters struct {
	BytesSent   uint64 `json:"bytes_sent"`
	PacketsSent uint64 `json:"packets_sent"`
}

// Flow is a tracked traffic stream bound (or not yet bound) to a Path.
type Flow struct {
	Key            FlowKey      `json:"key"`
	Priority       Priority     `json:"priority"`
	SelectedPathID *int64       `json:"selected_path_id,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	LastActive     time.Time    `json:"last_active"`
	Counters       FlowCounters `json:"counters"`
}

// RoutingAction is the decision a matched RoutingPolicy, or a Flow's
// default priority mapping, produces.
type RoutingAction string

const (
	ActionRouteLowestLatency   RoutingAction = "route_lowest_latency"
	ActionRouteHighestBandwidth RoutingAction = "route_highest_bandwidth"
	ActionRouteLeastLoss       RoutingAction = "route_least_loss"
	ActionRouteRoundRobin      RoutingAction = "route_round_robin"
	ActionAllow                RoutingAction = "allow"
	ActionDrop                 RoutingAction = "drop"
)

// MatchRule is one clause of a RoutingPolicy's match_rules DSL,
// evaluated against a Flow's 5-tuple. L7Tag is stored with the rule,
// but the Selector's matcher does not evaluate it, so it does not
// restrict which Flows a clause matches.
type MatchRule struct {
	SrcCIDR      string   `json:"src_cidr,omitempty"`
	DstCIDR      string   `json:"dst_cidr,omitempty"`
	InvertSrc    bool     `json:"invert_src,omitempty"`
	InvertDst    bool     `json:"invert_dst,omitempty"`
	Protocol     Protocol `json:"protocol,omitempty"`
	SrcPorts     []int    `json:"src_ports,omitempty"`
	DstPorts     []int    `json:"dst_ports,omitempty"`
	L7Tag        string   `json:"l7_tag,omitempty"`
}

// RoutingPolicy is a priority-ordered match_rules → action rule feeding
// the Selector, per §3/§4.4.
type RoutingPolicy struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	Priority      int           `json:"priority"` // higher evaluated first
	MatchRules    []MatchRule   `json:"match_rules"`
	Action        RoutingAction `json:"action"`
	Enabled       bool          `json:"enabled"`
	PacketsMatched uint64       `json:"packets_matched"`
	BytesMatched   uint64       `json:"bytes_matched"`
}

// SelectorOp is a match_expressions operator for a LabelSelector.
type SelectorOp string

const (
	OpIn           SelectorOp = "In"
	OpNotIn        SelectorOp = "NotIn"
	OpExists       SelectorOp = "Exists"
	OpDoesNotExist SelectorOp = "DoesNotExist"
)

// SelectorRequirement is one match_expressions clause.
type SelectorRequirement struct {
	Key    string     `json:"key"`
	Op     SelectorOp `json:"op"`
	Values []string   `json:"values,omitempty"`
}

// LabelSelector selects workloads by exact-match labels AND-combined
// with set-based expressions, per §3/§4.5.
type LabelSelector struct {
	MatchLabels      map[string]string     `json:"match_labels,omitempty"`
	MatchExpressions []SelectorRequirement `json:"match_expressions,omitempty"`
}

// Empty reports whether the selector has no constraints at all, which
// — per Kubernetes-style semantics adopted here — selects everything.
func (s LabelSelector) Empty() bool {
	return len(s.MatchLabels) == 0 && len(s.MatchExpressions) == 0
}

// Matches reports whether labels satisfies s: match_labels is
// AND-combined with match_expressions, per §4.5/§3.
func (s LabelSelector) Matches(labels map[string]string) bool {
	for k, v := range s.MatchLabels {
		if labels[k] != v {
			return false
		}
	}
	for _, req := range s.MatchExpressions {
		if !req.matches(labels) {
			return false
		}
	}
	return true
}

func (r SelectorRequirement) matches(labels map[string]string) bool {
	v, present := labels[r.Key]
	switch r.Op {
	case OpExists:
		return present
	case OpDoesNotExist:
		return !present
	case OpIn:
		if !present {
			return false
		}
		return containsStr(r.Values, v)
	case OpNotIn:
		if !present {
			return true
		}
		return !containsStr(r.Values, v)
	default:
		return false
	}
}

func containsStr(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

// LabelKeys returns every label key referenced by s, used by the
// Policy Engine's compiled per-namespace index (§4.5).
func (s LabelSelector) LabelKeys() []string {
	keys := make(map[string]struct{}, len(s.MatchLabels)+len(s.MatchExpressions))
	for k := range s.MatchLabels {
		keys[k] = struct{}{}
	}
	for _, r := range s.MatchExpressions {
		keys[r.Key] = struct{}{}
	}
	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}
	return out
}

// PolicyType identifies a traffic direction a NetworkPolicy governs.
type PolicyType string

const (
	PolicyIngress PolicyType = "Ingress"
	PolicyEgress  PolicyType = "Egress"
)

// PortSpec matches a single port, a named port, or an inclusive range
// `[Port, EndPort]` for a given protocol.
type PortSpec struct {
	Protocol Protocol `json:"protocol"`
	Port     *int     `json:"port,omitempty"`      // number; nil means "any port"
	Name     string   `json:"name,omitempty"`       // named port, resolved against workload metadata
	EndPort  *int     `json:"end_port,omitempty"`   // inclusive range end; Port must be set
}

// IPBlock admits a CIDR range, optionally minus a set of exceptions.
type IPBlock struct {
	CIDR   string   `json:"cidr"`
	Except []string `json:"except,omitempty"`
}

// NetworkPeer is one element of a rule's `from`/`to` peer set.
type NetworkPeer struct {
	PodSelector       *LabelSelector `json:"pod_selector,omitempty"`
	NamespaceSelector *LabelSelector `json:"namespace_selector,omitempty"`
	IPBlock           *IPBlock       `json:"ip_block,omitempty"`
}

// NetworkRule is one ordered ingress or egress rule: a peer set AND'd
// with a port-spec set (a Flow must match both).
type NetworkRule struct {
	Peers []NetworkPeer `json:"peers"`
	Ports []PortSpec    `json:"ports"`
}

// NetworkPolicy is a Kubernetes-style label-selector admission policy,
// per §3/§4.5.
type NetworkPolicy struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Namespace   string       `json:"namespace"`
	PodSelector LabelSelector `json:"pod_selector"`
	PolicyTypes []PolicyType `json:"policy_types"`
	Ingress     []NetworkRule `json:"ingress"`
	Egress      []NetworkRule `json:"egress"`
	Priority    int          `json:"priority"`
	Enabled     bool         `json:"enabled"`
}

// Workload is the label-bearing identity of a flow's source or
// destination, as seen by the Policy Engine.
type Workload struct {
	Namespace string            `json:"namespace"`
	Labels    map[string]string `json:"labels"`
	IP        string            `json:"ip"`
	// PortNames resolves a named port (e.g. "https") to its numeric
	// value for this workload, per §4.5's named-port matching.
	PortNames map[string]int `json:"port_names,omitempty"`
}

func canonicalIP(ip string) string {
	// Normalization (e.g. IPv4-mapped-IPv6 collapsing, zero-padding
	// removal) is delegated to net/netip by callers that parse
	// addresses off the wire; FlowKey.Canonical assumes ip is already
	// a parseable textual address and only strips incidental
	// whitespace differences callers might introduce.
	return strings.TrimSpace(ip)
}
