// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package mesh implements the Mesh Manager of §4.6: deriving the
// demanded Path set from the current Site set and a TopologyPolicy,
// and materializing/tearing down tunnels to match.
package mesh

import "patronus.dev/core/internal/model"

// demandedLink is one directional Path the topology requires, before
// endpoint/transport selection.
type demandedLink struct {
	srcSiteID, dstSiteID string
}

// desiredLinks computes the set of site pairs a TopologyPolicy demands
// over the given sites. Full mesh connects every ordered pair;
// hub-spoke connects every spoke to the designated hub only, in both
// directions, per §4.6.
func desiredLinks(sites []model.Site, policy model.TopologyPolicy) []demandedLink {
	switch policy.Kind {
	case model.TopologyHubSpoke:
		return hubSpokeLinks(sites, policy.HubSiteID)
	default:
		return fullMeshLinks(sites)
	}
}

func fullMeshLinks(sites []model.Site) []demandedLink {
	var links []demandedLink
	for i := range sites {
		for j := range sites {
			if i == j {
				continue
			}
			links = append(links, demandedLink{srcSiteID: sites[i].ID, dstSiteID: sites[j].ID})
		}
	}
	return links
}

func hubSpokeLinks(sites []model.Site, hubSiteID string) []demandedLink {
	var links []demandedLink
	for _, s := range sites {
		if s.ID == hubSiteID {
			continue
		}
		links = append(links, demandedLink{srcSiteID: hubSiteID, dstSiteID: s.ID})
		links = append(links, demandedLink{srcSiteID: s.ID, dstSiteID: hubSiteID})
	}
	return links
}
