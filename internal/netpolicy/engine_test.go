// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netpolicy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"patronus.dev/core/internal/model"
)

// S4: namespace "prod", pod_selector {app=web}, one ingress rule
// admitting TCP/80 from {role=frontend}. TCP/80 from role=frontend is
// admitted; TCP/81 from role=frontend is denied; TCP/80 from
// role=backend is denied.
func s4Policy() model.NetworkPolicy {
	port80 := 80
	return model.NetworkPolicy{
		ID:          1,
		Name:        "web-ingress",
		Namespace:   "prod",
		PodSelector: model.LabelSelector{MatchLabels: map[string]string{"app": "web"}},
		PolicyTypes: []model.PolicyType{model.PolicyIngress},
		Ingress: []model.NetworkRule{
			{
				Peers: []model.NetworkPeer{{PodSelector: &model.LabelSelector{MatchLabels: map[string]string{"role": "frontend"}}}},
				Ports: []model.PortSpec{{Protocol: model.ProtocolTCP, Port: &port80}},
			},
		},
		Priority: 100,
		Enabled:  true,
	}
}

func TestAdmit_MatchingPeerAndPort(t *testing.T) {
	idx := Build([]model.NetworkPolicy{s4Policy()}, nil)
	e := NewEngine(idx)

	dst := model.Workload{Namespace: "prod", Labels: map[string]string{"app": "web"}, IP: "10.0.0.1"}
	src := model.Workload{Namespace: "prod", Labels: map[string]string{"role": "frontend"}, IP: "10.0.0.2"}
	flow := model.Flow{Key: model.FlowKey{SrcIP: src.IP, DstIP: dst.IP, DstPort: 80, Protocol: model.ProtocolTCP}}

	v := e.Admit(flow, src, dst)
	assert.True(t, v.Admit)
}

func TestAdmit_WrongPortDenied(t *testing.T) {
	idx := Build([]model.NetworkPolicy{s4Policy()}, nil)
	e := NewEngine(idx)

	dst := model.Workload{Namespace: "prod", Labels: map[string]string{"app": "web"}, IP: "10.0.0.1"}
	src := model.Workload{Namespace: "prod", Labels: map[string]string{"role": "frontend"}, IP: "10.0.0.2"}
	flow := model.Flow{Key: model.FlowKey{SrcIP: src.IP, DstIP: dst.IP, DstPort: 81, Protocol: model.ProtocolTCP}}

	v := e.Admit(flow, src, dst)
	assert.False(t, v.Admit)
}

func TestAdmit_WrongPeerDenied(t *testing.T) {
	idx := Build([]model.NetworkPolicy{s4Policy()}, nil)
	e := NewEngine(idx)

	dst := model.Workload{Namespace: "prod", Labels: map[string]string{"app": "web"}, IP: "10.0.0.1"}
	src := model.Workload{Namespace: "prod", Labels: map[string]string{"role": "backend"}, IP: "10.0.0.3"}
	flow := model.Flow{Key: model.FlowKey{SrcIP: src.IP, DstIP: dst.IP, DstPort: 80, Protocol: model.ProtocolTCP}}

	v := e.Admit(flow, src, dst)
	assert.False(t, v.Admit)
}

func TestAdmit_NotIsolatedDefaultsAllow(t *testing.T) {
	idx := Build([]model.NetworkPolicy{s4Policy()}, nil)
	e := NewEngine(idx)

	dst := model.Workload{Namespace: "prod", Labels: map[string]string{"app": "other"}, IP: "10.0.0.9"}
	src := model.Workload{Namespace: "prod", Labels: map[string]string{"role": "backend"}, IP: "10.0.0.3"}
	flow := model.Flow{Key: model.FlowKey{SrcIP: src.IP, DstIP: dst.IP, DstPort: 12345, Protocol: model.ProtocolTCP}}

	v := e.Admit(flow, src, dst)
	assert.True(t, v.Admit)
}

func TestAdmit_IPBlockPeer(t *testing.T) {
	policy := s4Policy()
	policy.Ingress[0].Peers = []model.NetworkPeer{{IPBlock: &model.IPBlock{CIDR: "10.1.0.0/16", Except: []string{"10.1.5.0/24"}}}}

	idx := Build([]model.NetworkPolicy{policy}, nil)
	e := NewEngine(idx)
	dst := model.Workload{Namespace: "prod", Labels: map[string]string{"app": "web"}, IP: "10.0.0.1"}

	admitted := model.Workload{Namespace: "external", IP: "10.1.9.9"}
	flow := model.Flow{Key: model.FlowKey{SrcIP: admitted.IP, DstIP: dst.IP, DstPort: 80, Protocol: model.ProtocolTCP}}
	assert.True(t, e.Admit(flow, admitted, dst).Admit)

	excepted := model.Workload{Namespace: "external", IP: "10.1.5.5"}
	flow2 := model.Flow{Key: model.FlowKey{SrcIP: excepted.IP, DstIP: dst.IP, DstPort: 80, Protocol: model.ProtocolTCP}}
	assert.False(t, e.Admit(flow2, excepted, dst).Admit)
}
