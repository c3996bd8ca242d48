package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-dashboard/internal/db"
	"github.com/ukydev/fleet-dashboard/internal/models"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse is returned by endpoints that have no resource to return.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps err onto a status code. Causes of 5xx responses are
// logged and replaced with fallback.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, notFoundMessage(err))
	case errors.Is(err, models.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Unauthorized")
	default:
		log.WithError(err).WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error(fallback)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func notFoundMessage(err error) string {
	switch {
	case errors.Is(err, db.ErrVehicleNotFound):
		return "Vehicle not found"
	case errors.Is(err, db.ErrUserNotFound):
		return "User not found"
	default:
		return "Not found"
	}
}

// decodeJSON reads a JSON body of at most maxBodyBytes into v.
func decodeJSON(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return models.NewValidationError("Failed to read request body")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return models.NewValidationError("Invalid JSON")
	}
	return nil
}
