// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netpolicy

import (
	"patronus.dev/core/internal/model"
	"patronus.dev/core/internal/selector"
)

// WorkloadResolver maps a flow endpoint IP to the Workload identity
// the Policy Engine evaluates against. bootstrap.SiteWorkloadResolver
// implements it by matching the IP against Site endpoint addresses.
type WorkloadResolver interface {
	Resolve(ip string) (model.Workload, bool)
}

// engineAdmitter is satisfied by both *Engine (a fixed, already
// compiled policy set) and *LiveEngine (one that can be swapped out
// from under a running Admitter as policies change).
type engineAdmitter interface {
	Admit(flow model.Flow, src, dst model.Workload) Verdict
}

// Admitter adapts an Engine to selector.NetworkAdmitter, resolving a
// Flow's source and destination IPs into Workloads before delegating
// to Engine.Admit.
type Admitter struct {
	engine   engineAdmitter
	resolver WorkloadResolver
}

func NewAdmitter(engine engineAdmitter, resolver WorkloadResolver) *Admitter {
	return &Admitter{engine: engine, resolver: resolver}
}

// Admit implements selector.NetworkAdmitter. A Flow whose endpoints
// both resolve to no known workload is admitted. When only one end is
// unresolved, the Flow is evaluated with that end as a workload outside
// any namespace, identified only by its IP (so ipBlock peers can match it).
func (a *Admitter) Admit(flow model.Flow) selector.NetworkPolicyVerdict {
	src, srcOK := a.resolver.Resolve(flow.Key.SrcIP)
	dst, dstOK := a.resolver.Resolve(flow.Key.DstIP)
	if !srcOK && !dstOK {
		return selector.NetworkPolicyVerdict{Admit: true}
	}
	if !srcOK {
		src.IP = flow.Key.SrcIP
	}
	if !dstOK {
		dst.IP = flow.Key.DstIP
	}
	v := a.engine.Admit(flow, src, dst)
	return selector.NetworkPolicyVerdict{Admit: v.Admit}
}
