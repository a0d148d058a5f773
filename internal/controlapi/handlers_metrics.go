// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package controlapi

import "net/http"

func (s *Server) handleSystemMetricsRange(w http.ResponseWriter, r *http.Request) {
	t0, t1, err := parseRange(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	metrics, err := s.store.RangeSystemMetrics(t0, t1)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) handleSystemMetricsLatest(w http.ResponseWriter, r *http.Request) {
	latest, err := s.store.LatestSystemMetrics()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

// handleSystemMetricsRecent serves the Metrics Aggregator's in-memory
// ring buffer, cheaper than a store round trip for a dashboard polling
// at sub-retention-tick frequency.
func (s *Server) handleSystemMetricsRecent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Recent())
}
