// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package controlapi implements the inbound control API of §6.1: CRUD
// and query operations over Sites, Paths, RoutingPolicies,
// NetworkPolicies, Flows, Metrics, and the Audit log, plus real-time
// streams over WebSocket, built the way the teacher's internal/api
// server wires timeouts, access logging, and route registration onto
// a single mux — generalized here onto gorilla/mux and gorilla/websocket.
package controlapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"patronus.dev/core/internal/audit"
	"patronus.dev/core/internal/config"
	"patronus.dev/core/internal/logging"
	"patronus.dev/core/internal/mesh"
	"patronus.dev/core/internal/metricsagg"
	"patronus.dev/core/internal/model"
	"patronus.dev/core/internal/netpolicy"
	"patronus.dev/core/internal/store"
)

// AuditFilter is store.AuditFilter, aliased so handlers in this
// package don't need to import internal/store directly.
type AuditFilter = store.AuditFilter

// Store is the subset of *store.Store the control API depends on.
type Store interface {
	ListSites() ([]model.Site, error)
	GetSite(id string) (model.Site, error)
	UpsertSite(site model.Site) error
	DeleteSite(id string) error

	ListPaths(siteID string) ([]model.Path, error)
	GetPath(id int64) (model.Path, error)
	UpdatePathStatus(id int64, status model.PathStatus) error
	RangePathMetrics(pathID int64, t0, t1 time.Time) ([]model.PathMetrics, error)
	LatestPathMetrics(pathID int64) (model.PathMetrics, error)

	ListRoutingPolicies() ([]model.RoutingPolicy, error)
	GetRoutingPolicy(id int64) (model.RoutingPolicy, error)
	UpsertRoutingPolicy(p model.RoutingPolicy) (model.RoutingPolicy, error)
	DeleteRoutingPolicy(id int64) error

	ListAllNetworkPolicies() ([]model.NetworkPolicy, error)
	ListNetworkPoliciesByNamespace(namespace string) ([]model.NetworkPolicy, error)
	GetNetworkPolicy(id int64) (model.NetworkPolicy, error)
	UpsertNetworkPolicy(p model.NetworkPolicy) (model.NetworkPolicy, error)
	DeleteNetworkPolicy(id int64) error

	ListActiveFlows(cutoff time.Time) ([]model.Flow, error)
	GetFlow(key model.FlowKey) (model.Flow, error)

	RangeSystemMetrics(t0, t1 time.Time) ([]model.SystemMetrics, error)
	LatestSystemMetrics() (model.SystemMetrics, error)

	QueryAudit(f AuditFilter) ([]model.AuditRecord, error)
}

// FlowTable is the subset of *flowtable.Table the control API exposes
// for live flow queries.
type FlowTable interface {
	Lookup(key model.FlowKey) (model.Flow, bool)
	ActiveCount() int
}

// Server wires every control-plane collaborator to an HTTP+WebSocket
// API, mirroring the teacher's Server struct shape (Config, dependency
// handles, mux) generalized beyond one firewall process.
type Server struct {
	store     Store
	flows     FlowTable
	mesh      *mesh.Manager
	metrics   *metricsagg.Aggregator
	netIndex  func() *netpolicy.Index
	audit     *audit.Logger
	cfg       *config.RuntimeConfig
	logger    *logging.Logger
	router    *mux.Router
	hub       *Hub
	addr      string
}

// Options bundles every Server dependency.
type Options struct {
	Store    Store
	Flows    FlowTable
	Mesh     *mesh.Manager
	Metrics  *metricsagg.Aggregator
	NetIndex func() *netpolicy.Index
	Audit    *audit.Logger
	Config   *config.RuntimeConfig
	Logger   *logging.Logger
	Addr     string
}

// New builds a Server and registers its routes.
func New(opts Options) *Server {
	s := &Server{
		store:    opts.Store,
		flows:    opts.Flows,
		mesh:     opts.Mesh,
		metrics:  opts.Metrics,
		netIndex: opts.NetIndex,
		audit:    opts.Audit,
		cfg:      opts.Config,
		logger:   opts.Logger,
		hub:      newHub(opts.Logger),
		addr:     opts.Addr,
	}
	s.router = mux.NewRouter()
	s.registerRoutes()
	return s
}

// Handler returns the composed HTTP handler, wrapped with access
// logging per the teacher's loggingMiddleware pattern.
func (s *Server) Handler() http.Handler {
	return s.withRequestID(s.accessLog(s.router))
}

// ServerTimeouts mirrors the teacher's ServerConfig: slowloris and
// body-size protections applied to the underlying http.Server.
type ServerTimeouts struct {
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

// DefaultServerTimeouts mirrors the teacher's DefaultServerConfig.
func DefaultServerTimeouts() ServerTimeouts {
	return ServerTimeouts{
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Run starts the HTTP server on the configured address, serving until
// ctx is cancelled. It implements the supervisorx.Service contract so
// it can be registered alongside the other long-lived components.
func (s *Server) Run(ctx context.Context) error {
	timeouts := DefaultServerTimeouts()
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: timeouts.ReadHeaderTimeout,
		ReadTimeout:       timeouts.ReadTimeout,
		WriteTimeout:      timeouts.WriteTimeout,
		IdleTimeout:       timeouts.IdleTimeout,
	}

	go s.hub.run(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("controlapi: listening", "addr", s.addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Name implements supervisorx.Service.
func (s *Server) Name() string { return "controlapi" }
