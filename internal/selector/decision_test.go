// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package selector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patronus.dev/core/internal/model"
)

func testLimits() RuntimeLimits {
	return RuntimeLimits{
		StickinessHysteresis: 60 * time.Second,
		StickinessScoreDelta: 20,
		FailoverBatchSize:    256,
	}
}

// S3: two candidate paths P1 (score 92, latency 20ms) and P2 (score
// 80, latency 10ms) between A and B. A Critical flow defaults to
// route_lowest_latency and must pick P2.
func TestSelect_CriticalPicksLowestLatency(t *testing.T) {
	sel := New(testLimits())

	flow := model.Flow{
		Key:      model.FlowKey{SrcIP: "10.0.0.1", DstIP: "10.0.1.1", DstPort: 5060, Protocol: model.ProtocolUDP},
		Priority: model.PriorityCritical,
	}

	p1 := Candidate{Path: model.Path{ID: 1, Status: model.PathUp}, Latest: model.PathMetrics{Score: 92, LatencyMS: 20}, HasData: true}
	p2 := Candidate{Path: model.Path{ID: 2, Status: model.PathUp}, Latest: model.PathMetrics{Score: 80, LatencyMS: 10}, HasData: true}

	decision, err := sel.Select(flow, []Candidate{p1, p2}, nil, NetworkPolicyVerdict{Admit: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), decision.PathID)
	assert.Equal(t, model.ActionRouteLowestLatency, decision.Action)

	// After P2 is forced Down, the same flow reassigns to P1.
	p2.Path.Status = model.PathDown
	decision, err = sel.Select(flow, []Candidate{p1, p2}, nil, NetworkPolicyVerdict{Admit: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), decision.PathID)
}

func TestSelect_NoPathAvailable(t *testing.T) {
	sel := New(testLimits())
	flow := model.Flow{Key: model.FlowKey{Protocol: model.ProtocolTCP}, Priority: model.PriorityNormal}

	_, err := sel.Select(flow, nil, nil, NetworkPolicyVerdict{Admit: true})
	require.Error(t, err)
}

func TestSelect_DeniedByNetworkPolicy(t *testing.T) {
	sel := New(testLimits())
	flow := model.Flow{Key: model.FlowKey{Protocol: model.ProtocolTCP}, Priority: model.PriorityNormal}
	candidates := []Candidate{{Path: model.Path{ID: 1, Status: model.PathUp}, HasData: true}}

	_, err := sel.Select(flow, candidates, nil, NetworkPolicyVerdict{Admit: false})
	require.Error(t, err)
}

func TestSelect_RoutingPolicyDrop(t *testing.T) {
	sel := New(testLimits())
	flow := model.Flow{
		Key:      model.FlowKey{SrcIP: "10.0.0.5", DstIP: "10.0.1.5", Protocol: model.ProtocolTCP, DstPort: 22},
		Priority: model.PriorityNormal,
	}
	candidates := []Candidate{{Path: model.Path{ID: 1, Status: model.PathUp}, HasData: true}}
	policies := []model.RoutingPolicy{
		{ID: 1, Name: "block-ssh", Priority: 100, Enabled: true, Action: model.ActionDrop,
			MatchRules: []model.MatchRule{{DstPorts: []int{22}}}},
	}

	_, err := sel.Select(flow, candidates, policies, NetworkPolicyVerdict{Admit: true})
	require.Error(t, err)
}

func TestSelect_DegradedFallback(t *testing.T) {
	sel := New(testLimits())
	flow := model.Flow{Priority: model.PriorityNormal}

	low := Candidate{Path: model.Path{ID: 1, Status: model.PathDegraded}, Latest: model.PathMetrics{Score: 40}, HasData: true}
	high := Candidate{Path: model.Path{ID: 2, Status: model.PathDegraded}, Latest: model.PathMetrics{Score: 60, BandwidthMbps: 500}, HasData: true}

	decision, err := sel.Select(flow, []Candidate{low, high}, nil, NetworkPolicyVerdict{Admit: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), decision.PathID)
}

func TestRoundRobin_CyclesAcrossCalls(t *testing.T) {
	sel := New(testLimits())
	flow := model.Flow{Priority: model.PriorityBestEffort}
	candidates := []Candidate{
		{Path: model.Path{ID: 1, SrcSiteID: "a", DstSiteID: "b", Status: model.PathUp}, HasData: true},
		{Path: model.Path{ID: 2, SrcSiteID: "a", DstSiteID: "b", Status: model.PathUp}, HasData: true},
	}

	first, err := sel.Select(flow, candidates, nil, NetworkPolicyVerdict{Admit: true})
	require.NoError(t, err)
	second, err := sel.Select(flow, candidates, nil, NetworkPolicyVerdict{Admit: true})
	require.NoError(t, err)
	assert.NotEqual(t, first.PathID, second.PathID)
}

func TestShouldReassign(t *testing.T) {
	sel := New(testLimits())
	now := time.Now()

	better := Candidate{Latest: model.PathMetrics{Score: 90}, HasData: true}

	assert.False(t, sel.ShouldReassign(now.Add(-10*time.Second), now, 70, []Candidate{better}))
	assert.True(t, sel.ShouldReassign(now.Add(-61*time.Second), now, 70, []Candidate{better}))
	assert.False(t, sel.ShouldReassign(now.Add(-61*time.Second), now, 75, []Candidate{better}))
}
