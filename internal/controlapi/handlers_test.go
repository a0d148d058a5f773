// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package controlapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patronus.dev/core/internal/audit"
	"patronus.dev/core/internal/logging"
	"patronus.dev/core/internal/model"
	"patronus.dev/core/internal/perrs"
)

type fakeStore struct {
	sites           map[string]model.Site
	paths           map[int64]model.Path
	pathMetrics     map[int64]model.PathMetrics
	routingPolicies map[int64]model.RoutingPolicy
	networkPolicies map[int64]model.NetworkPolicy
	flows           map[model.FlowKey]model.Flow
	systemMetrics   model.SystemMetrics
	audit           []model.AuditRecord
	nextID          int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sites:           make(map[string]model.Site),
		paths:           make(map[int64]model.Path),
		pathMetrics:     make(map[int64]model.PathMetrics),
		routingPolicies: make(map[int64]model.RoutingPolicy),
		networkPolicies: make(map[int64]model.NetworkPolicy),
		flows:           make(map[model.FlowKey]model.Flow),
	}
}

func (f *fakeStore) ListSites() ([]model.Site, error) {
	var out []model.Site
	for _, s := range f.sites {
		out = append(out, s)
	}
	return out, nil
}
func (f *fakeStore) GetSite(id string) (model.Site, error) {
	s, ok := f.sites[id]
	if !ok {
		return model.Site{}, notFound("site")
	}
	return s, nil
}
func (f *fakeStore) UpsertSite(site model.Site) error {
	f.sites[site.ID] = site
	return nil
}
func (f *fakeStore) DeleteSite(id string) error {
	if _, ok := f.sites[id]; !ok {
		return notFound("site")
	}
	delete(f.sites, id)
	return nil
}

func (f *fakeStore) ListPaths(siteID string) ([]model.Path, error) {
	var out []model.Path
	for _, p := range f.paths {
		if siteID == "" || p.SrcSiteID == siteID || p.DstSiteID == siteID {
			out = append(out, p)
		}
	}
	return out, nil
}
func (f *fakeStore) GetPath(id int64) (model.Path, error) {
	p, ok := f.paths[id]
	if !ok {
		return model.Path{}, notFound("path")
	}
	return p, nil
}
func (f *fakeStore) UpdatePathStatus(id int64, status model.PathStatus) error {
	p, ok := f.paths[id]
	if !ok {
		return notFound("path")
	}
	p.Status = status
	f.paths[id] = p
	return nil
}
func (f *fakeStore) RangePathMetrics(pathID int64, t0, t1 time.Time) ([]model.PathMetrics, error) {
	return []model.PathMetrics{f.pathMetrics[pathID]}, nil
}
func (f *fakeStore) LatestPathMetrics(pathID int64) (model.PathMetrics, error) {
	return f.pathMetrics[pathID], nil
}

func (f *fakeStore) ListRoutingPolicies() ([]model.RoutingPolicy, error) {
	var out []model.RoutingPolicy
	for _, p := range f.routingPolicies {
		out = append(out, p)
	}
	return out, nil
}
func (f *fakeStore) GetRoutingPolicy(id int64) (model.RoutingPolicy, error) {
	p, ok := f.routingPolicies[id]
	if !ok {
		return model.RoutingPolicy{}, notFound("routing policy")
	}
	return p, nil
}
func (f *fakeStore) UpsertRoutingPolicy(p model.RoutingPolicy) (model.RoutingPolicy, error) {
	if p.ID == 0 {
		f.nextID++
		p.ID = f.nextID
	}
	f.routingPolicies[p.ID] = p
	return p, nil
}
func (f *fakeStore) DeleteRoutingPolicy(id int64) error {
	delete(f.routingPolicies, id)
	return nil
}

func (f *fakeStore) ListAllNetworkPolicies() ([]model.NetworkPolicy, error) {
	var out []model.NetworkPolicy
	for _, p := range f.networkPolicies {
		out = append(out, p)
	}
	return out, nil
}
func (f *fakeStore) ListNetworkPoliciesByNamespace(namespace string) ([]model.NetworkPolicy, error) {
	var out []model.NetworkPolicy
	for _, p := range f.networkPolicies {
		if p.Namespace == namespace {
			out = append(out, p)
		}
	}
	return out, nil
}
func (f *fakeStore) GetNetworkPolicy(id int64) (model.NetworkPolicy, error) {
	p, ok := f.networkPolicies[id]
	if !ok {
		return model.NetworkPolicy{}, notFound("network policy")
	}
	return p, nil
}
func (f *fakeStore) UpsertNetworkPolicy(p model.NetworkPolicy) (model.NetworkPolicy, error) {
	if p.ID == 0 {
		f.nextID++
		p.ID = f.nextID
	}
	f.networkPolicies[p.ID] = p
	return p, nil
}
func (f *fakeStore) DeleteNetworkPolicy(id int64) error {
	delete(f.networkPolicies, id)
	return nil
}

func (f *fakeStore) ListActiveFlows(cutoff time.Time) ([]model.Flow, error) {
	var out []model.Flow
	for _, fl := range f.flows {
		out = append(out, fl)
	}
	return out, nil
}
func (f *fakeStore) GetFlow(key model.FlowKey) (model.Flow, error) {
	fl, ok := f.flows[key]
	if !ok {
		return model.Flow{}, notFound("flow")
	}
	return fl, nil
}

func (f *fakeStore) RangeSystemMetrics(t0, t1 time.Time) ([]model.SystemMetrics, error) {
	return []model.SystemMetrics{f.systemMetrics}, nil
}
func (f *fakeStore) LatestSystemMetrics() (model.SystemMetrics, error) {
	return f.systemMetrics, nil
}

func (f *fakeStore) QueryAudit(filter AuditFilter) ([]model.AuditRecord, error) {
	return f.audit, nil
}

func (f *fakeStore) AppendAudit(r model.AuditRecord) error {
	f.audit = append(f.audit, r)
	return nil
}

func notFound(resource string) error {
	return perrs.Errorf(perrs.KindNotFound, "%s not found", resource)
}

type fakeFlowTable struct {
	flows map[model.FlowKey]model.Flow
}

func (f *fakeFlowTable) Lookup(key model.FlowKey) (model.Flow, bool) {
	fl, ok := f.flows[key]
	return fl, ok
}
func (f *fakeFlowTable) ActiveCount() int { return len(f.flows) }

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: "error", Output: io.Discard})
}

func newTestServer(t *testing.T) (*Server, *fakeStore) {
	t.Helper()
	st := newFakeStore()
	logger := testLogger()
	srv := New(Options{
		Store:  st,
		Flows:  &fakeFlowTable{flows: st.flows},
		Audit:  audit.NewLogger(st, logger),
		Logger: logger,
		Addr:   ":0",
	})
	return srv, st
}

func TestHealthz_ReturnsOK(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSiteLifecycle_CreateGetDelete(t *testing.T) {
	srv, _ := newTestServer(t)

	site := model.Site{ID: "site-a", Name: "Site A", Status: model.SiteActive}
	body, err := json.Marshal(site)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sites", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/sites/site-a", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.Site
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "Site A", got.Name)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/sites/site-a", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestForceFailover_SetsPathDownAndAudits(t *testing.T) {
	srv, st := newTestServer(t)
	st.paths[1] = model.Path{ID: 1, SrcSiteID: "a", DstSiteID: "b", Status: model.PathUp}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/paths/1/force-failover", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, model.PathDown, st.paths[1].Status)
	require.Len(t, st.audit, 1)
	assert.Equal(t, model.AuditPathForceFailover, st.audit[0].EventType)
	assert.True(t, st.audit[0].Mutation)
}

func TestGetSite_NotFoundReturns404(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sites/missing", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
