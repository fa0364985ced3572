package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/kev765740/dependencywarden/internal/policy"
	"github.com/kev765740/dependencywarden/models"
)

func (gw *Gateway) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	repoID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := gw.resolver.Resolve(r.Context(), repoID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleUpdatePolicy applies a partial policy update. Validation errors are
// returned as 422 with the full report; nothing is persisted in that case.
func (gw *Gateway) handleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
	repoID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var patch models.PolicyPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid policy patch: "+err.Error())
		return
	}
	updated, report, err := gw.resolver.Update(r.Context(), repoID, &patch)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if report.HasErrors() {
		writeJSON(w, http.StatusUnprocessableEntity, report)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"policy": updated, "warnings": report.Warnings})
}

// handleValidatePolicy dry-runs a patch against the current policy and
// returns the validation report without persisting anything.
func (gw *Gateway) handleValidatePolicy(w http.ResponseWriter, r *http.Request) {
	repoID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var patch models.PolicyPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid policy patch: "+err.Error())
		return
	}
	current, err := gw.resolver.Resolve(r.Context(), repoID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	report := policy.Validate(policy.Apply(current, &patch))
	writeJSON(w, http.StatusOK, report)
}
