// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mesh

import (
	"context"
	"sync"
	"time"

	"patronus.dev/core/internal/logging"
	"patronus.dev/core/internal/model"
	"patronus.dev/core/internal/perrs"
)

// Store is the subset of *store.Store the Mesh Manager needs.
type Store interface {
	ListSites() ([]model.Site, error)
	ListPaths(siteID string) ([]model.Path, error)
	UpsertPath(p model.Path) (model.Path, error)
	DeletePath(id int64) error
}

// Manager reconciles the Path set demanded by a TopologyPolicy against
// the Sites currently known to the Store, bringing up new tunnels and
// tearing down ones for Paths that no longer belong, per §4.6.
type Manager struct {
	store    Store
	tunnel   Tunnel
	logger   *logging.Logger
	interval time.Duration

	mu     sync.Mutex
	policy model.TopologyPolicy
}

// New creates a Manager. SetPolicy must be called at least once before
// the first Reconcile, typically from loaded RuntimeConfig.
func New(store Store, tunnel Tunnel, interval time.Duration, logger *logging.Logger) *Manager {
	return &Manager{store: store, tunnel: tunnel, interval: interval, logger: logger}
}

// SetPolicy swaps the active TopologyPolicy. The next Reconcile picks
// it up.
func (m *Manager) SetPolicy(policy model.TopologyPolicy) {
	m.mu.Lock()
	m.policy = policy
	m.mu.Unlock()
}

func (m *Manager) currentPolicy() model.TopologyPolicy {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.policy
}

// Run ticks Reconcile on the configured interval until ctx is
// cancelled, additionally reconciling once immediately on start.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Reconcile(ctx); err != nil {
		m.logger.Error("initial mesh reconcile failed", "error", err)
	}
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := m.Reconcile(ctx); err != nil {
				m.logger.Error("mesh reconcile failed", "error", err)
			}
		}
	}
}

// Reconcile computes the demanded link set from the current Site set
// and TopologyPolicy, creates Paths (and their tunnels) for demanded
// links missing a Path, and tears down Paths for links no longer
// demanded — idempotent under repeated calls, per §4.6's "desired
// state reconciliation" requirement.
func (m *Manager) Reconcile(ctx context.Context) error {
	sites, err := m.store.ListSites()
	if err != nil {
		return perrs.Wrap(err, perrs.KindTransientIO, "list sites for mesh reconcile")
	}
	siteByID := make(map[string]model.Site, len(sites))
	for _, s := range sites {
		siteByID[s.ID] = s
	}

	existing, err := m.store.ListPaths("")
	if err != nil {
		return perrs.Wrap(err, perrs.KindTransientIO, "list paths for mesh reconcile")
	}
	existingByPair := make(map[demandedLink]model.Path, len(existing))
	for _, p := range existing {
		existingByPair[demandedLink{srcSiteID: p.SrcSiteID, dstSiteID: p.DstSiteID}] = p
	}

	demanded := desiredLinks(sites, m.currentPolicy())
	demandedSet := make(map[demandedLink]struct{}, len(demanded))

	for _, link := range demanded {
		demandedSet[link] = struct{}{}
		if _, ok := existingByPair[link]; ok {
			continue
		}
		if err := m.bringUp(ctx, link, siteByID); err != nil {
			m.logger.Error("mesh: bring up link failed", "src", link.srcSiteID, "dst", link.dstSiteID, "error", err)
		}
	}

	for link, path := range existingByPair {
		if _, ok := demandedSet[link]; ok {
			continue
		}
		if err := m.tearDown(ctx, path); err != nil {
			m.logger.Error("mesh: tear down link failed", "path_id", path.ID, "error", err)
		}
	}
	return nil
}

func (m *Manager) bringUp(ctx context.Context, link demandedLink, siteByID map[string]model.Site) error {
	src, ok := siteByID[link.srcSiteID]
	if !ok || len(src.Endpoints) == 0 {
		return perrs.Errorf(perrs.KindNotFound, "site %q has no endpoints", link.srcSiteID)
	}
	dst, ok := siteByID[link.dstSiteID]
	if !ok || len(dst.Endpoints) == 0 {
		return perrs.Errorf(perrs.KindNotFound, "site %q has no endpoints", link.dstSiteID)
	}
	srcEndpoint := pickEndpoint(src)
	dstEndpoint := pickEndpoint(dst)

	path := model.Path{
		SrcSiteID:     src.ID,
		DstSiteID:     dst.ID,
		SrcEndpointID: srcEndpoint.ID,
		DstEndpointID: dstEndpoint.ID,
		Transport:     model.TransportWireGuard,
		Status:        model.PathDown,
	}

	descriptor, err := m.tunnel.Ensure(ctx, path, srcEndpoint, dstEndpoint)
	if err != nil {
		return perrs.Wrap(err, perrs.KindTransientIO, "establish tunnel")
	}
	path.Tunnel = &descriptor

	if _, err := m.store.UpsertPath(path); err != nil {
		return perrs.Wrap(err, perrs.KindTransientIO, "persist new path")
	}
	m.logger.Info("mesh: path established", "src_site", src.ID, "dst_site", dst.ID)
	return nil
}

func (m *Manager) tearDown(ctx context.Context, path model.Path) error {
	if err := m.tunnel.Teardown(ctx, path); err != nil {
		return perrs.Wrap(err, perrs.KindTransientIO, "tear down tunnel")
	}
	if err := m.store.DeletePath(path.ID); err != nil {
		return perrs.Wrap(err, perrs.KindTransientIO, "delete stale path")
	}
	m.logger.Info("mesh: path torn down", "path_id", path.ID)
	return nil
}

// pickEndpoint prefers a reachable endpoint, falling back to the
// first one declared, so a freshly-added site with no probe data yet
// still gets a tunnel attempt.
func pickEndpoint(s model.Site) model.Endpoint {
	for _, e := range s.Endpoints {
		if e.Reachable {
			return e
		}
	}
	return s.Endpoints[0]
}
