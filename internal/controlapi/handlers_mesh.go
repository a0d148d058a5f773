// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package controlapi

import (
	"net/http"

	"patronus.dev/core/internal/model"
)

// handleSetTopologyPolicy changes the Mesh Manager's demanded topology
// (full mesh vs. hub-and-spoke) effective on its next reconcile tick.
func (s *Server) handleSetTopologyPolicy(w http.ResponseWriter, r *http.Request) {
	var policy model.TopologyPolicy
	if err := decodeJSON(r, &policy); err != nil {
		writeError(w, err)
		return
	}
	s.mesh.SetPolicy(policy)
	writeJSON(w, http.StatusOK, policy)
}
