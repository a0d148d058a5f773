// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netpolicy

import "patronus.dev/core/internal/model"

// portSet is the compiled form of one NetworkRule's []PortSpec: a
// rule with no ports admits any (protocol, port) pair, matching
// Kubernetes NetworkPolicy semantics for an omitted `ports` list.
type portSet struct {
	specs []model.PortSpec
}

func newPortSet(specs []model.PortSpec) portSet {
	return portSet{specs: specs}
}

// matches reports whether (protocol, port) satisfies the set against
// dst, which resolves named ports via dst.PortNames.
func (ps portSet) matches(protocol model.Protocol, port int, dst model.Workload) bool {
	if len(ps.specs) == 0 {
		return true
	}
	for _, spec := range ps.specs {
		if spec.Protocol != protocol {
			continue
		}
		if matchesPortSpec(spec, port, dst) {
			return true
		}
	}
	return false
}

func matchesPortSpec(spec model.PortSpec, port int, dst model.Workload) bool {
	if spec.Name != "" {
		resolved, ok := dst.PortNames[spec.Name]
		return ok && resolved == port
	}
	if spec.Port == nil {
		// No number and no name: spec matches any port for this protocol.
		return true
	}
	if spec.EndPort != nil {
		return port >= *spec.Port && port <= *spec.EndPort
	}
	return port == *spec.Port
}
