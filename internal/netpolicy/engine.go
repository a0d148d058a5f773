// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netpolicy

import (
	"sync/atomic"

	"patronus.dev/core/internal/model"
)

// Verdict is the outcome of admitting one Flow.
type Verdict struct {
	Admit  bool
	Reason string
}

func admit(reason string) Verdict { return Verdict{Admit: true, Reason: reason} }
func deny(reason string) Verdict  { return Verdict{Admit: false, Reason: reason} }

// Engine evaluates NetworkPolicy admission for a Flow, per §4.5:
// symmetric ingress (against the destination workload) and egress
// (against the source workload) evaluation, admitting only if both
// sides admit.
type Engine struct {
	idx *Index
}

// NewEngine wraps a compiled Index. Swap in a freshly Build'd Index
// on every policy-set mutation rather than mutating this Engine.
func NewEngine(idx *Index) *Engine {
	return &Engine{idx: idx}
}

// Admit decides whether a flow from src to dst is allowed, evaluating
// ingress against dst and egress against src. A workload not selected
// by any policy in its namespace is not isolated and defaults to
// admit, per the Kubernetes-style "default allow absent a selecting
// policy" semantics §4.5 adopts.
func (e *Engine) Admit(flow model.Flow, src, dst model.Workload) Verdict {
	ingress := e.evalDirection(model.PolicyIngress, dst, src, flow.Key.Protocol, flow.Key.DstPort)
	if !ingress.Admit {
		return ingress
	}
	egress := e.evalDirection(model.PolicyEgress, src, dst, flow.Key.Protocol, flow.Key.DstPort)
	if !egress.Admit {
		return egress
	}
	return admit("no selecting policy denied the flow")
}

// evalDirection evaluates one direction against `self` (the workload
// being isolated) with `peer` as the other end of the flow.
func (e *Engine) evalDirection(dir model.PolicyType, self, peer model.Workload, protocol model.Protocol, port int) Verdict {
	candidates := e.idx.candidates(self.Namespace, self.Labels)

	var selecting []*compiledPolicy
	for _, cp := range candidates {
		if !cp.policy.PodSelector.Matches(self.Labels) {
			continue
		}
		if !governsDirection(cp.policy, dir) {
			continue
		}
		selecting = append(selecting, cp)
	}

	if len(selecting) == 0 {
		return admit("workload not isolated for this direction")
	}

	for _, cp := range selecting {
		rules := cp.ingress
		if dir == model.PolicyEgress {
			rules = cp.egress
		}
		for _, rule := range rules {
			if !matchesAnyPeer(rule.peers, peer.Namespace, peer.Labels, peer.IP) {
				continue
			}
			if !rule.ports.matches(protocol, port, selfOrPeerForPorts(dir, self, peer)) {
				continue
			}
			return admit("matched rule in policy " + cp.policy.Name)
		}
	}
	return deny("isolated by policy but no rule admitted the flow")
}

// selfOrPeerForPorts resolves named ports against the workload the
// port actually belongs to: the destination for ingress (dst_port is
// a port on self), and the destination again for egress (dst_port is
// a port on peer).
func selfOrPeerForPorts(dir model.PolicyType, self, peer model.Workload) model.Workload {
	if dir == model.PolicyIngress {
		return self
	}
	return peer
}

// LiveEngine holds the Engine compiled from whatever NetworkPolicy set
// was last Build'd, swapped atomically so an in-flight Admit never
// observes a half-updated Index, per §4.5's "the compiled index is
// swapped, not mutated in place" requirement.
type LiveEngine struct {
	current atomic.Pointer[Engine]
}

// NewLiveEngine creates a LiveEngine with no Index loaded yet; Admit
// admits everything until the first Swap.
func NewLiveEngine() *LiveEngine {
	return &LiveEngine{}
}

// Swap compiles idx into a fresh Engine and makes it the one Admit
// evaluates against.
func (l *LiveEngine) Swap(idx *Index) {
	l.current.Store(NewEngine(idx))
}

// Admit evaluates against the currently loaded Engine.
func (l *LiveEngine) Admit(flow model.Flow, src, dst model.Workload) Verdict {
	e := l.current.Load()
	if e == nil {
		return admit("no network policies loaded yet")
	}
	return e.Admit(flow, src, dst)
}

func governsDirection(p model.NetworkPolicy, dir model.PolicyType) bool {
	if len(p.PolicyTypes) == 0 {
		// Unspecified policy_types defaults to governing whichever
		// direction has rules, mirroring Kubernetes' implicit default.
		if dir == model.PolicyIngress {
			return len(p.Ingress) > 0
		}
		return len(p.Egress) > 0
	}
	for _, t := range p.PolicyTypes {
		if t == dir {
			return true
		}
	}
	return false
}
