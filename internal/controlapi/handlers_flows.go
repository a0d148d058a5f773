// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package controlapi

import (
	"net/http"
	"strconv"
	"time"

	"patronus.dev/core/internal/model"
)

// handleListFlows lists the Store's persisted active-flow view (which
// lags the live table by its flush interval) together with the
// in-memory Flow Table's live active count.
func (s *Server) handleListFlows(w http.ResponseWriter, r *http.Request) {
	cutoffStr := r.URL.Query().Get("active_since")
	cutoff := time.Now().Add(-5 * time.Minute)
	if cutoffStr != "" {
		if parsed, err := time.Parse(time.RFC3339, cutoffStr); err == nil {
			cutoff = parsed
		}
	}
	flows, err := s.store.ListActiveFlows(cutoff)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"flows":        flows,
		"active_count": s.flows.ActiveCount(),
	})
}

func (s *Server) handleGetFlow(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := model.FlowKey{
		SrcIP:    q.Get("src_ip"),
		DstIP:    q.Get("dst_ip"),
		Protocol: model.Protocol(q.Get("protocol")),
	}
	if v := q.Get("src_port"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			key.SrcPort = p
		}
	}
	if v := q.Get("dst_port"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			key.DstPort = p
		}
	}
	key = key.Canonical()

	if flow, ok := s.flows.Lookup(key); ok {
		writeJSON(w, http.StatusOK, flow)
		return
	}
	flow, err := s.store.GetFlow(key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, flow)
}
