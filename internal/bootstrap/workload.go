// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package bootstrap

import (
	"net"
	"strings"

	"patronus.dev/core/internal/model"
)

// SiteStore is the subset of *store.Store SiteWorkloadResolver needs.
type SiteStore interface {
	ListSites() ([]model.Site, error)
}

// SiteWorkloadResolver resolves a flow endpoint IP to the Workload
// identity of the Site that owns it, treating each Site as its own
// NetworkPolicy namespace and its ID, status and location as labels. This is the
// minimal mapping available without a real workload/pod identity
// system; a deployment with one (e.g. a CNI plugin) would supply its
// own WorkloadResolver instead.
type SiteWorkloadResolver struct {
	store SiteStore
}

// NewSiteWorkloadResolver creates a SiteWorkloadResolver.
func NewSiteWorkloadResolver(store SiteStore) *SiteWorkloadResolver {
	return &SiteWorkloadResolver{store: store}
}

// Resolve implements netpolicy.WorkloadResolver.
func (r *SiteWorkloadResolver) Resolve(ip string) (model.Workload, bool) {
	sites, err := r.store.ListSites()
	if err != nil {
		return model.Workload{}, false
	}
	for _, site := range sites {
		for _, ep := range site.Endpoints {
			if hostOf(ep.Address) == ip {
				return model.Workload{
					Namespace: site.ID,
					Labels:    siteLabels(site),
					IP:        ip,
				}, true
			}
		}
	}
	return model.Workload{}, false
}

// SitesForFlow implements selector.SiteResolver by resolving both ends
// of key to the Site owning the endpoint whose address matches.
func (r *SiteWorkloadResolver) SitesForFlow(key model.FlowKey) (srcSite, dstSite string, ok bool) {
	sites, err := r.store.ListSites()
	if err != nil {
		return "", "", false
	}
	for _, site := range sites {
		for _, ep := range site.Endpoints {
			host := hostOf(ep.Address)
			if host == key.SrcIP {
				srcSite = site.ID
			}
			if host == key.DstIP {
				dstSite = site.ID
			}
		}
	}
	return srcSite, dstSite, srcSite != "" && dstSite != ""
}

// Labels implements netpolicy.NamespaceLabeler: a namespace here is a
// Site ID, so its labels are the same derived label set Resolve
// attaches to workloads within it.
func (r *SiteWorkloadResolver) Labels(namespace string) map[string]string {
	sites, err := r.store.ListSites()
	if err != nil {
		return nil
	}
	for _, site := range sites {
		if site.ID == namespace {
			return siteLabels(site)
		}
	}
	return nil
}

func siteLabels(site model.Site) map[string]string {
	labels := map[string]string{
		"site":   site.ID,
		"status": string(site.Status),
	}
	if site.Location != "" {
		labels["location"] = site.Location
	}
	return labels
}

func hostOf(address string) string {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return strings.TrimSpace(address)
	}
	return host
}
