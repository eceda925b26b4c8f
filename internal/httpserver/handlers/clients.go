package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sitesmith-tech/sitesmith/internal/httpserver/dto"
)

// ListClients returns all known clients.
func ListClients(w http.ResponseWriter, r *http.Request) {
	ctx := GetContext()
	if ctx == nil || ctx.Status == nil {
		respondJSON(w, http.StatusOK, []dto.ClientDTO{})
		return
	}

	clients, err := ctx.Status.ListClients(r.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}

	out := make([]dto.ClientDTO, 0, len(clients))
	for _, c := range clients {
		out = append(out, dto.FromClient(c))
	}
	respondJSON(w, http.StatusOK, out)
}

// GetClientStatus returns a client together with its run summary.
func GetClientStatus(w http.ResponseWriter, r *http.Request) {
	ctx := GetContext()
	if ctx == nil || ctx.Status == nil {
		respondError(w, http.StatusServiceUnavailable, "status queries are not configured", "unavailable")
		return
	}

	view, err := ctx.Status.GetClientStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondAppError(w, err)
		return
	}

	resp := dto.ClientStatusDTO{
		Client:        dto.FromClient(view.Client),
		ActiveRun:     view.ActiveRun,
		TotalRuns:     view.TotalRuns,
		SucceededRuns: view.SucceededRuns,
	}
	if view.LatestRun != nil {
		latest := dto.FromDeployment(view.LatestRun)
		resp.LatestRun = &latest
	}
	respondJSON(w, http.StatusOK, resp)
}

// ListClientDeployments returns a client's deployment history, newest
// first.
func ListClientDeployments(w http.ResponseWriter, r *http.Request) {
	ctx := GetContext()
	if ctx == nil || ctx.Status == nil {
		respondError(w, http.StatusServiceUnavailable, "status queries are not configured", "unavailable")
		return
	}

	deployments, err := ctx.Status.ListDeployments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondAppError(w, err)
		return
	}

	out := make([]dto.DeploymentDTO, 0, len(deployments))
	for _, d := range deployments {
		out = append(out, dto.FromDeployment(d))
	}
	respondJSON(w, http.StatusOK, out)
}
