package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"rotctrack/internal/auth"
	"rotctrack/internal/capture"
	"rotctrack/internal/store"
)

// JSONResponse writes a JSON response.
func JSONResponse(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// ErrorResponse maps domain errors onto HTTP statuses and writes a JSON
// error body. Nothing here is fatal to the application.
func ErrorResponse(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrGroupNotFound),
		errors.Is(err, store.ErrMemberNotFound),
		errors.Is(err, capture.ErrUnknownMember):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrEmptyName),
		errors.Is(err, store.ErrInvalidDate),
		errors.Is(err, store.ErrInvalidStatus),
		errors.Is(err, store.ErrInvalidImport):
		status = http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken):
		status = http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, capture.ErrNoActiveGroup):
		status = http.StatusConflict
	case errors.Is(err, capture.ErrCameraDenied),
		errors.Is(err, capture.ErrCameraUnavailable):
		status = http.StatusServiceUnavailable
	}
	JSONResponse(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		JSONResponse(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}
