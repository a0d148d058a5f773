// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package selector

import (
	"sort"
	"sync"
	"time"

	"patronus.dev/core/internal/model"
	"patronus.dev/core/internal/perrs"
)

// Candidate is one Path considered for a selection decision, carrying
// the latest metrics the comparators in step 3 of §4.4 need.
type Candidate struct {
	Path    model.Path
	Latest  model.PathMetrics
	HasData bool
}

// NetworkPolicyVerdict is what the Policy Engine (§4.5) decides for a
// Flow before the Selector runs. Admitting components call
// Select with an already-computed verdict; the Selector never
// evaluates NetworkPolicy itself.
type NetworkPolicyVerdict struct {
	Admit bool
}

// Decision is the outcome of a successful selection.
type Decision struct {
	PathID int64
	Action model.RoutingAction
}

// defaultAction maps a Flow's own priority to a routing action when no
// RoutingPolicy matches, per §4.4 step 1.
func defaultAction(priority model.Priority) model.RoutingAction {
	switch priority {
	case model.PriorityCritical:
		return model.ActionRouteLowestLatency
	case model.PriorityHigh:
		return model.ActionRouteLeastLoss
	case model.PriorityNormal:
		return model.ActionRouteHighestBandwidth
	default: // Low, BestEffort
		return model.ActionRouteRoundRobin
	}
}

// Selector holds the round-robin cursor state shared across decisions
// for the same (src_site, dst_site) pair, per §4.4 step 3.
type Selector struct {
	cfg RuntimeLimits

	mu      sync.Mutex
	cursors map[sitePair]int
}

// RuntimeLimits is the subset of config.RuntimeConfig the Selector
// needs, narrowed to avoid an import cycle with packages that
// themselves depend on selector.
type RuntimeLimits struct {
	StickinessHysteresis time.Duration
	StickinessScoreDelta int
	FailoverBatchSize    int
}

type sitePair struct {
	src, dst string
}

// New creates a Selector.
func New(limits RuntimeLimits) *Selector {
	return &Selector{cfg: limits, cursors: make(map[sitePair]int)}
}

// Select runs steps 1-4 of §4.4 for one Flow against the given
// RoutingPolicy snapshot (already priority-ordered, per the Store's
// invariant) and candidate Paths between the Flow's source and
// destination sites. netVerdict is the already-computed NetworkPolicy
// decision (§4.5); Select always checks it before any RoutingPolicy and
// does not read config.RuntimeConfig.PolicyPrecedence.
func (sel *Selector) Select(flow model.Flow, candidates []Candidate, policies []model.RoutingPolicy, netVerdict NetworkPolicyVerdict) (Decision, error) {
	if !netVerdict.Admit {
		return Decision{}, perrs.New(perrs.KindDeniedByNetworkPolicy, "flow denied by network policy")
	}

	action := defaultAction(flow.Priority)
	for _, p := range policies {
		if !p.Enabled {
			continue
		}
		if !matchPolicy(p, flow.Key) {
			continue
		}
		if p.Action == model.ActionDrop {
			return Decision{}, perrs.New(perrs.KindNoRouteByPolicy, "flow rejected by routing policy "+p.Name)
		}
		if p.Action == model.ActionAllow {
			break // admit, fall through to the priority-derived default action
		}
		action = p.Action
		break
	}

	pool := restrictToAdmissible(candidates)
	if len(pool) == 0 {
		return Decision{}, perrs.New(perrs.KindNoPathAvailable, "no candidate path is Up or qualifying Degraded")
	}

	chosen, err := sel.applyComparator(action, flow, pool)
	if err != nil {
		return Decision{}, err
	}
	return Decision{PathID: chosen.Path.ID, Action: action}, nil
}

// restrictToAdmissible implements §4.4 step 2: prefer Up, fall back to
// Degraded with score >= 50.
func restrictToAdmissible(candidates []Candidate) []Candidate {
	var up []Candidate
	for _, c := range candidates {
		if c.Path.Status == model.PathUp {
			up = append(up, c)
		}
	}
	if len(up) > 0 {
		return up
	}
	var degraded []Candidate
	for _, c := range candidates {
		if c.Path.Status == model.PathDegraded && c.HasData && c.Latest.Score >= 50 {
			degraded = append(degraded, c)
		}
	}
	return degraded
}

func (sel *Selector) applyComparator(action model.RoutingAction, flow model.Flow, pool []Candidate) (Candidate, error) {
	switch action {
	case model.ActionRouteLowestLatency:
		return pickBest(pool, func(a, b Candidate) bool {
			if a.Latest.LatencyMS != b.Latest.LatencyMS {
				return a.Latest.LatencyMS < b.Latest.LatencyMS
			}
			if a.Latest.Score != b.Latest.Score {
				return a.Latest.Score > b.Latest.Score
			}
			return a.Path.ID < b.Path.ID
		}), nil

	case model.ActionRouteHighestBandwidth:
		return pickBest(pool, func(a, b Candidate) bool {
			if a.Latest.BandwidthMbps != b.Latest.BandwidthMbps {
				return a.Latest.BandwidthMbps > b.Latest.BandwidthMbps
			}
			if a.Latest.LatencyMS != b.Latest.LatencyMS {
				return a.Latest.LatencyMS < b.Latest.LatencyMS
			}
			return a.Path.ID < b.Path.ID
		}), nil

	case model.ActionRouteLeastLoss:
		return pickBest(pool, func(a, b Candidate) bool {
			if a.Latest.PacketLossPct != b.Latest.PacketLossPct {
				return a.Latest.PacketLossPct < b.Latest.PacketLossPct
			}
			if a.Latest.Score != b.Latest.Score {
				return a.Latest.Score > b.Latest.Score
			}
			return a.Path.ID < b.Path.ID
		}), nil

	case model.ActionRouteRoundRobin:
		return sel.pickRoundRobin(flow, pool), nil

	default:
		return Candidate{}, perrs.Errorf(perrs.KindInternal, "unknown routing action %q", action)
	}
}

func pickBest(pool []Candidate, less func(a, b Candidate) bool) Candidate {
	best := pool[0]
	for _, c := range pool[1:] {
		if less(c, best) {
			best = c
		}
	}
	return best
}

// pickRoundRobin implements §4.4 step 3's round_robin comparator: the
// cursor is keyed by (src_site, dst_site), incremented under a mutex,
// and indexes into the candidate list sorted by path_id. Persistence
// across restarts is explicitly not required (§9 Open Questions); the
// cursor resets to zero on process start.
func (sel *Selector) pickRoundRobin(flow model.Flow, pool []Candidate) Candidate {
	sorted := make([]Candidate, len(pool))
	copy(sorted, pool)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path.ID < sorted[j].Path.ID })

	key := sitePair{src: sorted[0].Path.SrcSiteID, dst: sorted[0].Path.DstSiteID}

	sel.mu.Lock()
	idx := sel.cursors[key] % len(sorted)
	sel.cursors[key] = sel.cursors[key] + 1
	sel.mu.Unlock()

	return sorted[idx]
}
