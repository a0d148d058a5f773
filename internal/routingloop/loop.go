// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package routingloop ties the Selector (§4.4) to the Flow Table
// (§4.7), the Store's RoutingPolicy snapshot, and the Policy Engine
// (§4.5): it is the periodic tick that assigns a Path to every
// newly-observed Flow, and the StatusPublisher the Scorer (§4.3)
// drives to trigger bulk re-selection the moment a Path transitions
// away from Up, per §5's end-to-end sequence.
package routingloop

import (
	"context"
	"time"

	"patronus.dev/core/internal/logging"
	"patronus.dev/core/internal/model"
	"patronus.dev/core/internal/selector"
)

// FlowTable is the subset of *flowtable.Table the loop needs.
type FlowTable interface {
	Unassigned() []model.Flow
	FlowsByPath(pathID int64) []model.Flow
	SetPath(key model.FlowKey, pathID *int64) error
}

// Store is the subset of *store.Store the loop needs.
type Store interface {
	ListPathsByPair(srcSiteID, dstSiteID string) ([]model.Path, error)
	LatestPathMetrics(pathID int64) (model.PathMetrics, error)
	ListRoutingPolicies() ([]model.RoutingPolicy, error)
}

// Loop runs the §4.4 selection tick: one pass over every Unassigned
// Flow in the Flow Table, plus on-demand batch re-selection whenever
// PublishStatusChange reports a Path leaving PathUp.
type Loop struct {
	selector *selector.Selector
	flows    FlowTable
	store    Store
	sites    selector.SiteResolver
	net      selector.NetworkAdmitter
	logger   *logging.Logger
}

// New creates a Loop.
func New(sel *selector.Selector, flows FlowTable, store Store, sites selector.SiteResolver, net selector.NetworkAdmitter, logger *logging.Logger) *Loop {
	return &Loop{selector: sel, flows: flows, store: store, sites: sites, net: net, logger: logger}
}

// Run ticks Tick on the given interval until ctx is cancelled.
func (l *Loop) Run(ctx context.Context, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Tick()
		}
	}
}

// Tick selects a Path for every currently Unassigned Flow.
func (l *Loop) Tick() {
	policies, err := l.store.ListRoutingPolicies()
	if err != nil {
		l.logger.Error("routingloop: failed to load routing policies", "error", err)
		return
	}
	for _, flow := range l.flows.Unassigned() {
		l.selectOne(flow, policies)
	}
}

func (l *Loop) selectOne(flow model.Flow, policies []model.RoutingPolicy) {
	srcSite, dstSite, ok := l.sites.SitesForFlow(flow.Key)
	if !ok {
		return // datapath hasn't told us this flow's site mapping yet
	}
	candidates, err := l.candidatesForSitePair(srcSite, dstSite)
	if err != nil {
		l.logger.Error("routingloop: failed to build candidates", "error", err)
		return
	}
	verdict := l.net.Admit(flow)
	decision, err := l.selector.Select(flow, candidates, policies, verdict)
	if err != nil {
		l.logger.Debug("routingloop: flow not routed", "src", flow.Key.SrcIP, "dst", flow.Key.DstIP, "error", err)
		return
	}
	if err := l.flows.SetPath(flow.Key, &decision.PathID); err != nil {
		l.logger.Error("routingloop: failed to install selection", "error", err)
	}
}

// CandidatesForSitePair implements selector.CandidateResolver.
func (l *Loop) CandidatesForSitePair(srcSite, dstSite string) []selector.Candidate {
	candidates, err := l.candidatesForSitePair(srcSite, dstSite)
	if err != nil {
		l.logger.Error("routingloop: failed to build candidates", "error", err)
		return nil
	}
	return candidates
}

func (l *Loop) candidatesForSitePair(srcSite, dstSite string) ([]selector.Candidate, error) {
	paths, err := l.store.ListPathsByPair(srcSite, dstSite)
	if err != nil {
		return nil, err
	}
	out := make([]selector.Candidate, 0, len(paths))
	for _, p := range paths {
		c := selector.Candidate{Path: p}
		if latest, err := l.store.LatestPathMetrics(p.ID); err == nil {
			c.Latest = latest
			c.HasData = true
		}
		out = append(out, c)
	}
	return out, nil
}

// PublishStatusChange implements scorer.StatusPublisher: when a Path
// leaves PathUp, every Flow currently pinned to it is re-selected in
// batches immediately, rather than waiting for the next Tick.
func (l *Loop) PublishStatusChange(pathID int64, from, to model.PathStatus) {
	if to == model.PathUp {
		return
	}
	l.selector.HandlePathDown(pathID, flowSourceAdapter{l.flows}, l.sites, l, policySourceFunc(l.store.ListRoutingPolicies), l.net, reassignSink{l})
}

type flowSourceAdapter struct{ flows FlowTable }

func (a flowSourceAdapter) FlowsByPath(pathID int64) []model.Flow { return a.flows.FlowsByPath(pathID) }

// policySourceFunc adapts a ListRoutingPolicies-shaped func to
// selector.PolicySource, swallowing the store error so a failed
// refresh during failover does not abort the batch. On an error it
// returns no policies, so that batch is selected with each Flow's
// priority-derived default action and no RoutingPolicy (drop policies
// included) applies.
type policySourceFunc func() ([]model.RoutingPolicy, error)

func (f policySourceFunc) RoutingPolicies() []model.RoutingPolicy {
	policies, err := f()
	if err != nil {
		return nil
	}
	return policies
}

type reassignSink struct{ l *Loop }

func (s reassignSink) Reassign(key model.FlowKey, decision selector.Decision) {
	if err := s.l.flows.SetPath(key, &decision.PathID); err != nil {
		s.l.logger.Error("routingloop: failed to install failover selection", "error", err)
	}
}

func (s reassignSink) Reject(key model.FlowKey, err error) {
	if installErr := s.l.flows.SetPath(key, nil); installErr != nil {
		s.l.logger.Error("routingloop: failed to clear rejected flow's path", "error", installErr)
	}
	s.l.logger.Warn("routingloop: flow rejected on failover", "src", key.SrcIP, "dst", key.DstIP, "error", err)
}
