// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package controlapi

import (
	"encoding/json"
	"net/http"

	"patronus.dev/core/internal/perrs"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps a perrs-classified error to an HTTP status, per the
// Kind taxonomy internal/perrs defines.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch perrs.GetKind(err) {
	case perrs.KindNotFound:
		status = http.StatusNotFound
	case perrs.KindValidation:
		status = http.StatusBadRequest
	case perrs.KindConflict:
		status = http.StatusConflict
	case perrs.KindUnauthorized:
		status = http.StatusUnauthorized
	case perrs.KindForbidden, perrs.KindDeniedByNetworkPolicy:
		status = http.StatusForbidden
	case perrs.KindNoPathAvailable, perrs.KindNoRouteByPolicy:
		status = http.StatusUnprocessableEntity
	case perrs.KindTransientIO:
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return perrs.Wrap(err, perrs.KindValidation, "decode request body")
	}
	return nil
}
