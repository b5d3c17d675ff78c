package handlers

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/storepulse/analytics-backend/pkg/errors"
)

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// statusForError maps the error taxonomy onto HTTP status codes
func statusForError(err error) int {
	switch {
	case apperrors.IsValidation(err):
		return http.StatusBadRequest
	case apperrors.IsNotFound(err):
		return http.StatusNotFound
	case apperrors.IsType(err, apperrors.ErrorTypeUnauthorized):
		return http.StatusUnauthorized
	case apperrors.IsUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
