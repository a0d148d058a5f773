// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mesh

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patronus.dev/core/internal/logging"
	"patronus.dev/core/internal/model"
)

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: "error", Output: io.Discard})
}

type fakeStore struct {
	sites   []model.Site
	paths   []model.Path
	nextID  int64
	deleted []int64
}

func (f *fakeStore) ListSites() ([]model.Site, error) { return f.sites, nil }
func (f *fakeStore) ListPaths(siteID string) ([]model.Path, error) {
	return f.paths, nil
}
func (f *fakeStore) UpsertPath(p model.Path) (model.Path, error) {
	f.nextID++
	p.ID = f.nextID
	f.paths = append(f.paths, p)
	return p, nil
}
func (f *fakeStore) DeletePath(id int64) error {
	f.deleted = append(f.deleted, id)
	var kept []model.Path
	for _, p := range f.paths {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	f.paths = kept
	return nil
}

type fakeTunnel struct {
	ensured   int
	tornDown  int
}

func (f *fakeTunnel) Ensure(ctx context.Context, path model.Path, src, dst model.Endpoint) (model.TunnelDescriptor, error) {
	f.ensured++
	return model.TunnelDescriptor{PeerPublicKey: []byte("key")}, nil
}
func (f *fakeTunnel) Teardown(ctx context.Context, path model.Path) error {
	f.tornDown++
	return nil
}

func twoSites() []model.Site {
	return []model.Site{
		{ID: "a", Endpoints: []model.Endpoint{{ID: "a-1", Address: "10.0.0.1:51820", Reachable: true}}},
		{ID: "b", Endpoints: []model.Endpoint{{ID: "b-1", Address: "10.0.0.2:51820", Reachable: true}}},
	}
}

func TestReconcile_FullMeshCreatesBothDirections(t *testing.T) {
	store := &fakeStore{sites: twoSites()}
	tunnel := &fakeTunnel{}
	m := New(store, tunnel, 0, testLogger())
	m.SetPolicy(model.TopologyPolicy{Kind: model.TopologyFullMesh})

	require.NoError(t, m.Reconcile(context.Background()))
	assert.Len(t, store.paths, 2)
	assert.Equal(t, 2, tunnel.ensured)
}

func TestReconcile_HubSpokeSkipsSpokeToSpoke(t *testing.T) {
	sites := append(twoSites(), model.Site{ID: "c", Endpoints: []model.Endpoint{{ID: "c-1", Address: "10.0.0.3:51820", Reachable: true}}})
	store := &fakeStore{sites: sites}
	tunnel := &fakeTunnel{}
	m := New(store, tunnel, 0, testLogger())
	m.SetPolicy(model.TopologyPolicy{Kind: model.TopologyHubSpoke, HubSiteID: "a"})

	require.NoError(t, m.Reconcile(context.Background()))
	assert.Len(t, store.paths, 4) // a->b, b->a, a->c, c->a
	for _, p := range store.paths {
		assert.True(t, p.SrcSiteID == "a" || p.DstSiteID == "a")
	}
}

func TestReconcile_RemovesStaleLink(t *testing.T) {
	store := &fakeStore{
		sites: twoSites(),
		paths: []model.Path{{ID: 99, SrcSiteID: "a", DstSiteID: "z"}},
	}
	tunnel := &fakeTunnel{}
	m := New(store, tunnel, 0, testLogger())
	m.SetPolicy(model.TopologyPolicy{Kind: model.TopologyFullMesh})

	require.NoError(t, m.Reconcile(context.Background()))
	assert.Contains(t, store.deleted, int64(99))
	assert.Equal(t, 1, tunnel.tornDown)
}
