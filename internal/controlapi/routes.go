// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package controlapi

// registerRoutes wires every §6.1 resource onto the mux, mirroring the
// teacher's initRoutes method-pattern table generalized onto
// gorilla/mux's Methods()/Path() builder API.
func (s *Server) registerRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/sites", s.handleListSites).Methods("GET")
	api.HandleFunc("/sites", s.handleCreateSite).Methods("POST")
	api.HandleFunc("/sites/{id}", s.handleGetSite).Methods("GET")
	api.HandleFunc("/sites/{id}", s.handleUpdateSite).Methods("PUT")
	api.HandleFunc("/sites/{id}", s.handleDeleteSite).Methods("DELETE")

	api.HandleFunc("/paths", s.handleListPaths).Methods("GET")
	api.HandleFunc("/paths/{id}", s.handleGetPath).Methods("GET")
	api.HandleFunc("/paths/{id}/metrics", s.handlePathMetrics).Methods("GET")
	api.HandleFunc("/paths/{id}/force-failover", s.handleForceFailover).Methods("POST")

	api.HandleFunc("/routing-policies", s.handleListRoutingPolicies).Methods("GET")
	api.HandleFunc("/routing-policies", s.handleUpsertRoutingPolicy).Methods("POST")
	api.HandleFunc("/routing-policies/{id}", s.handleGetRoutingPolicy).Methods("GET")
	api.HandleFunc("/routing-policies/{id}", s.handleUpsertRoutingPolicy).Methods("PUT")
	api.HandleFunc("/routing-policies/{id}", s.handleDeleteRoutingPolicy).Methods("DELETE")

	api.HandleFunc("/network-policies", s.handleListNetworkPolicies).Methods("GET")
	api.HandleFunc("/network-policies", s.handleUpsertNetworkPolicy).Methods("POST")
	api.HandleFunc("/network-policies/{id}", s.handleGetNetworkPolicy).Methods("GET")
	api.HandleFunc("/network-policies/{id}", s.handleUpsertNetworkPolicy).Methods("PUT")
	api.HandleFunc("/network-policies/{id}", s.handleDeleteNetworkPolicy).Methods("DELETE")

	api.HandleFunc("/flows", s.handleListFlows).Methods("GET")
	api.HandleFunc("/flows/lookup", s.handleGetFlow).Methods("GET")

	api.HandleFunc("/metrics/system", s.handleSystemMetricsRange).Methods("GET")
	api.HandleFunc("/metrics/system/latest", s.handleSystemMetricsLatest).Methods("GET")
	api.HandleFunc("/metrics/system/recent", s.handleSystemMetricsRecent).Methods("GET")

	api.HandleFunc("/mesh/topology", s.handleSetTopologyPolicy).Methods("PUT")

	api.HandleFunc("/audit", s.handleQueryAudit).Methods("GET")

	s.router.HandleFunc("/api/v1/stream", s.handleStream)

	s.router.HandleFunc("/healthz", s.handleHealthz).Methods("GET")

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Prometheus().Handler()).Methods("GET")
	}
}
