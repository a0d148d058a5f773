// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package controlapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"patronus.dev/core/internal/model"
)

func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.store.ListSites()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sites)
}

func (s *Server) handleGetSite(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	site, err := s.store.GetSite(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, site)
}

func (s *Server) handleCreateSite(w http.ResponseWriter, r *http.Request) {
	var site model.Site
	if err := decodeJSON(r, &site); err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.UpsertSite(site); err != nil {
		writeError(w, err)
		return
	}
	s.audit.Mutation(r.Context(), model.AuditSiteCreate, "site", site.ID, "site created via control API")
	s.hub.Publish(EventSiteChange, site)
	writeJSON(w, http.StatusCreated, site)
}

func (s *Server) handleUpdateSite(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var site model.Site
	if err := decodeJSON(r, &site); err != nil {
		writeError(w, err)
		return
	}
	site.ID = id
	if err := s.store.UpsertSite(site); err != nil {
		writeError(w, err)
		return
	}
	s.audit.Mutation(r.Context(), model.AuditSiteUpdate, "site", id, "site updated via control API")
	s.hub.Publish(EventSiteChange, site)
	writeJSON(w, http.StatusOK, site)
}

func (s *Server) handleDeleteSite(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.store.DeleteSite(id); err != nil {
		writeError(w, err)
		return
	}
	s.audit.Mutation(r.Context(), model.AuditSiteDelete, "site", id, "site deleted via control API")
	s.hub.Publish(EventSiteChange, map[string]string{"id": id, "action": "deleted"})
	writeJSON(w, http.StatusNoContent, nil)
}
