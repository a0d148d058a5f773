// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netpolicy

import (
	"net"

	"patronus.dev/core/internal/model"
)

// peerMatcher is the compiled form of a model.NetworkPeer plus enough
// policy context (its own namespace, and a shared NamespaceLabeler) to
// evaluate a NamespaceSelector peer without re-threading arguments
// through every call.
type peerMatcher struct {
	ownNamespace      string
	podSelector       *model.LabelSelector
	namespaceSelector *model.LabelSelector
	nsLabeler         NamespaceLabeler
	ipBlock           *ipBlock
}

type ipBlock struct {
	cidr   *net.IPNet
	except []*net.IPNet
}

func compilePeers(namespace string, peers []model.NetworkPeer, nsLabeler NamespaceLabeler) []peerMatcher {
	out := make([]peerMatcher, 0, len(peers))
	for _, p := range peers {
		pm := peerMatcher{ownNamespace: namespace, podSelector: p.PodSelector, namespaceSelector: p.NamespaceSelector, nsLabeler: nsLabeler}
		if p.IPBlock != nil {
			pm.ipBlock = compileIPBlock(*p.IPBlock)
		}
		out = append(out, pm)
	}
	return out
}

func compileIPBlock(b model.IPBlock) *ipBlock {
	_, cidr, err := net.ParseCIDR(b.CIDR)
	if err != nil {
		return nil
	}
	compiled := &ipBlock{cidr: cidr}
	for _, ex := range b.Except {
		if _, n, err := net.ParseCIDR(ex); err == nil {
			compiled.except = append(compiled.except, n)
		}
	}
	return compiled
}

// matchesAnyPeer reports whether an empty peer set (select all) or
// any compiled peer admits the candidate.
func matchesAnyPeer(peers []peerMatcher, candidateNamespace string, candidateLabels map[string]string, candidateIP string) bool {
	if len(peers) == 0 {
		return true
	}
	for _, pm := range peers {
		if matchesPeer(pm, candidateNamespace, candidateLabels, candidateIP) {
			return true
		}
	}
	return false
}
