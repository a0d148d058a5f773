// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package controlapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"patronus.dev/core/internal/model"
)

func parsePathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

func (s *Server) handleListPaths(w http.ResponseWriter, r *http.Request) {
	paths, err := s.store.ListPaths(r.URL.Query().Get("site_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paths)
}

func (s *Server) handleGetPath(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid path id"})
		return
	}
	path, err := s.store.GetPath(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, path)
}

func (s *Server) handlePathMetrics(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid path id"})
		return
	}

	q := r.URL.Query()
	if q.Get("from") == "" && q.Get("to") == "" {
		latest, err := s.store.LatestPathMetrics(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, latest)
		return
	}

	t0, t1, err := parseRange(q)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	metrics, err := s.store.RangePathMetrics(id, t0, t1)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

// handleForceFailover sets a Path's stored status to PathDown, records
// an audit mutation and publishes a path_status stream event. It does
// not notify the Scorer or the routing loop, so Flows already pinned to
// the Path keep that assignment; the Monitor stops probing the Path on
// its next reconcile because it is Down.
func (s *Server) handleForceFailover(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid path id"})
		return
	}
	if err := s.store.UpdatePathStatus(id, model.PathDown); err != nil {
		writeError(w, err)
		return
	}
	resourceID := strconv.FormatInt(id, 10)
	s.audit.Mutation(r.Context(), model.AuditPathForceFailover, "path", resourceID, "operator forced failover")
	s.hub.Publish(EventPathStatus, map[string]interface{}{"path_id": id, "status": model.PathDown})
	writeJSON(w, http.StatusOK, map[string]interface{}{"path_id": id, "status": model.PathDown})
}

func parseRange(q map[string][]string) (time.Time, time.Time, error) {
	get := func(key string) (time.Time, error) {
		vals, ok := q[key]
		if !ok || len(vals) == 0 || vals[0] == "" {
			return time.Time{}, nil
		}
		return time.Parse(time.RFC3339, vals[0])
	}
	t0, err := get("from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	t1, err := get("to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if t1.IsZero() {
		t1 = time.Now().UTC()
	}
	return t0, t1, nil
}
