package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sitesmith-tech/sitesmith/internal/domain/provisioning/app"
	"github.com/sitesmith-tech/sitesmith/internal/httpserver/dto"
)

// Provision accepts a provisioning request and starts a run in the
// background. The response carries the run ID to follow.
func Provision(w http.ResponseWriter, r *http.Request) {
	ctx := GetContext()
	if ctx == nil || ctx.Provision == nil {
		respondError(w, http.StatusServiceUnavailable, "provisioning is not configured", "unavailable")
		return
	}

	var req dto.ProvisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "validation")
		return
	}
	if req.RunID == "" {
		respondError(w, http.StatusBadRequest, "run_id is required", "validation")
		return
	}
	if req.Intent == nil {
		respondError(w, http.StatusBadRequest, "site_intent is required", "validation")
		return
	}

	result, err := ctx.Provision.Start(r.Context(), app.StartRequest{
		RunID:    req.RunID,
		ClientID: req.ClientID,
		Intent:   req.Intent,
	})
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, dto.ProvisionAccepted{
		Accepted: true,
		RunID:    result.RunID,
		ClientID: result.ClientID,
	})
}
