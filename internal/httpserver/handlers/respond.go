package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sitesmith-tech/sitesmith/internal/domain/provisioning/domain"
	apperrors "github.com/sitesmith-tech/sitesmith/internal/errors"
	"github.com/sitesmith-tech/sitesmith/internal/httpserver/dto"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message, code string) {
	respondJSON(w, status, dto.ErrorResponse{Error: message, Code: code})
}

// respondAppError maps application errors to HTTP status codes.
func respondAppError(w http.ResponseWriter, err error) {
	switch {
	case apperrors.IsKind(err, apperrors.KindValidation):
		respondError(w, http.StatusBadRequest, err.Error(), "validation")
	case apperrors.IsKind(err, apperrors.KindNotFound):
		respondError(w, http.StatusNotFound, err.Error(), "not_found")
	case apperrors.IsKind(err, apperrors.KindConflict), errors.Is(err, domain.ErrRunInProgress):
		respondError(w, http.StatusConflict, err.Error(), "conflict")
	default:
		respondError(w, http.StatusInternalServerError, err.Error(), "internal")
	}
}
