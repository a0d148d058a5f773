// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netpolicy

import "net"

// NamespaceLabeler resolves a namespace's own labels, needed for peer
// rules that use NamespaceSelector rather than PodSelector. A nil
// NamespaceLabeler makes every NamespaceSelector peer match nothing.
type NamespaceLabeler interface {
	Labels(namespace string) map[string]string
}

// matchesPeer reports whether peer's set-wise OR'd selectors admit
// candidate (the other end of the flow), mirroring Kubernetes
// NetworkPolicy peer semantics: PodSelector matches labels within
// candidate's own namespace, NamespaceSelector matches by the
// namespace's labels, and IPBlock matches by raw address — and an
// empty peer (all three nil) matches nothing, never everything.
func matchesPeer(peer peerMatcher, candidateNamespace string, candidateLabels map[string]string, candidateIP string) bool {
	if peer.podSelector != nil && candidateNamespace == peer.ownNamespace && peer.podSelector.Matches(candidateLabels) {
		return true
	}
	if peer.namespaceSelector != nil && peer.nsLabeler != nil {
		nsLabels := peer.nsLabeler.Labels(candidateNamespace)
		if peer.namespaceSelector.Matches(nsLabels) {
			return true
		}
	}
	if peer.ipBlock != nil && matchesIPBlock(*peer.ipBlock, candidateIP) {
		return true
	}
	return false
}

func matchesIPBlock(block ipBlock, ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	if !block.cidr.Contains(parsed) {
		return false
	}
	for _, ex := range block.except {
		if ex.Contains(parsed) {
			return false
		}
	}
	return true
}
