// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package selector

import (
	"patronus.dev/core/internal/model"
	"patronus.dev/core/internal/perrs"
)

var errNoSiteMapping = perrs.New(perrs.KindNoPathAvailable, "flow does not resolve to a known site pair")

// FlowSource lists the Flows currently pinned to a Path, used to
// drive bulk re-selection on failover (§4.4).
type FlowSource interface {
	FlowsByPath(pathID int64) []model.Flow
}

// CandidateResolver returns the current candidate Paths between a
// Flow's source and destination sites, with their latest metrics.
type CandidateResolver interface {
	CandidatesForSitePair(srcSite, dstSite string) []Candidate
}

// SiteResolver maps a Flow's 5-tuple to the (src_site, dst_site) pair
// it traverses. The specification leaves the address→site lookup to
// an external collaborator (the datapath hook observes flows by IP,
// not by site id); in this module it is backed by
// bootstrap.SiteWorkloadResolver, which matches flow IPs against Site
// endpoint addresses.
type SiteResolver interface {
	SitesForFlow(key model.FlowKey) (srcSite, dstSite string, ok bool)
}

// PolicySource returns the current RoutingPolicy snapshot, ordered by
// priority descending (the Store's invariant, §8).
type PolicySource interface {
	RoutingPolicies() []model.RoutingPolicy
}

// NetworkAdmitter is the Policy Engine's verdict function (§4.5).
type NetworkAdmitter interface {
	Admit(flow model.Flow) NetworkPolicyVerdict
}

// ReassignSink receives the outcome of each re-selection.
type ReassignSink interface {
	Reassign(key model.FlowKey, decision Decision)
	Reject(key model.FlowKey, err error)
}

// HandlePathDown re-runs Select for every Flow pinned to pathID, in
// batches bounded by RuntimeLimits.FailoverBatchSize so a site with a
// very large number of Flows pinned to one Path cannot stall the
// selection tick (§4.4's "sub-second under default thresholds"
// latency target).
func (sel *Selector) HandlePathDown(pathID int64, flows FlowSource, sites SiteResolver, resolve CandidateResolver, policies PolicySource, net NetworkAdmitter, sink ReassignSink) {
	pending := flows.FlowsByPath(pathID)
	batchSize := sel.cfg.FailoverBatchSize
	if batchSize < 1 {
		batchSize = 256
	}

	for start := 0; start < len(pending); start += batchSize {
		end := start + batchSize
		if end > len(pending) {
			end = len(pending)
		}
		sel.runBatch(pending[start:end], sites, resolve, policies, net, sink)
	}
}

func (sel *Selector) runBatch(batch []model.Flow, sites SiteResolver, resolve CandidateResolver, policies PolicySource, net NetworkAdmitter, sink ReassignSink) {
	policySnapshot := policies.RoutingPolicies()
	for _, flow := range batch {
		srcSite, dstSite, ok := sites.SitesForFlow(flow.Key)
		if !ok {
			sink.Reject(flow.Key, errNoSiteMapping)
			continue
		}
		candidates := resolve.CandidatesForSitePair(srcSite, dstSite)
		verdict := net.Admit(flow)
		decision, err := sel.Select(flow, candidates, policySnapshot, verdict)
		if err != nil {
			sink.Reject(flow.Key, err)
			continue
		}
		sink.Reassign(flow.Key, decision)
	}
}
