package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sitesmith-tech/sitesmith/internal/httpserver/dto"
)

// GetRun returns one provisioning run by ID.
func GetRun(w http.ResponseWriter, r *http.Request) {
	ctx := GetContext()
	if ctx == nil || ctx.Status == nil {
		respondError(w, http.StatusServiceUnavailable, "status queries are not configured", "unavailable")
		return
	}

	dep, err := ctx.Status.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.FromDeployment(dep))
}

// GetRunState returns the run's current state snapshot together with the
// state machine definition in XState format, for visualization.
func GetRunState(w http.ResponseWriter, r *http.Request) {
	ctx := GetContext()
	if ctx == nil || ctx.Status == nil || ctx.Machine == nil {
		respondError(w, http.StatusServiceUnavailable, "status queries are not configured", "unavailable")
		return
	}

	dep, err := ctx.Status.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondAppError(w, err)
		return
	}

	machineJSON, err := ctx.Machine.ExportXStateJSON()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to export state machine", "internal")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"run_id":  dep.RunID,
		"state":   string(dep.Status),
		"machine": json.RawMessage(machineJSON),
		"history": dto.FromDeployment(dep).History,
	})
}
