// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package selector implements the Flow → Path decision algorithm of
// §4.4: RoutingPolicy evaluation, candidate restriction, the
// per-action comparator, round-robin, stickiness and failover.
package selector

import (
	"log"
	"net"
	"strings"

	"patronus.dev/core/internal/model"
)

// matchRule reports whether a RoutingPolicy's match_rules clause
// matches a Flow's 5-tuple, ported from the teacher's packet matcher
// and generalized from a single-IP/port rule to the CIDR+port-list
// MatchRule DSL of §3.
func matchRule(rule model.MatchRule, key model.FlowKey) bool {
	if !matchProtocol(rule.Protocol, key.Protocol) {
		return false
	}
	if rule.SrcCIDR != "" {
		m := matchIP(rule.SrcCIDR, key.SrcIP)
		if rule.InvertSrc {
			m = !m
		}
		if !m {
			return false
		}
	}
	if rule.DstCIDR != "" {
		m := matchIP(rule.DstCIDR, key.DstIP)
		if rule.InvertDst {
			m = !m
		}
		if !m {
			return false
		}
	}
	if !matchPort(rule.SrcPorts, key.SrcPort) {
		return false
	}
	if !matchPort(rule.DstPorts, key.DstPort) {
		return false
	}
	return true
}

// matchPolicy reports whether any of a RoutingPolicy's match_rules
// clauses matches the Flow. An empty rule set matches everything,
// mirroring a default/catch-all policy.
func matchPolicy(p model.RoutingPolicy, key model.FlowKey) bool {
	if len(p.MatchRules) == 0 {
		return true
	}
	for _, r := range p.MatchRules {
		if matchRule(r, key) {
			return true
		}
	}
	return false
}

func matchProtocol(ruleProto, flowProto model.Protocol) bool {
	if ruleProto == "" {
		return true
	}
	return strings.EqualFold(string(ruleProto), string(flowProto))
}

func matchIP(ruleIP, flowIP string) bool {
	if ruleIP == "" {
		return true
	}
	if strings.Contains(ruleIP, "/") {
		_, ipNet, err := net.ParseCIDR(ruleIP)
		if err != nil {
			log.Printf("selector: invalid rule CIDR %q: %v", ruleIP, err)
			return false
		}
		parsed := net.ParseIP(flowIP)
		if parsed == nil {
			return false
		}
		return ipNet.Contains(parsed)
	}
	return ruleIP == flowIP
}

func matchPort(allowed []int, port int) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, p := range allowed {
		if p == port {
			return true
		}
	}
	return false
}
