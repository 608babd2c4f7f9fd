package server

import (
	"encoding/json"
	"math"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// ValidationError describes a rejected request field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// errorResponse is the uniform error payload for the API.
type errorResponse struct {
	Error   string            `json:"error"`
	Details []ValidationError `json:"details,omitempty"`
}

// respondJSON writes v as a JSON response with the given status.
func (as *AppServer) respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			as.logger.WithError(err).Error("Failed to encode JSON response")
		}
	}
}

// respondWithError writes a JSON error response and logs it.
func (as *AppServer) respondWithError(w http.ResponseWriter, r *http.Request, status int, message string, details []ValidationError) {
	entry := as.logger.WithFields(logrus.Fields{
		"status": status,
		"path":   r.URL.Path,
		"method": r.Method,
	})
	if status >= http.StatusInternalServerError {
		entry.Error(message)
	} else {
		entry.Debug(message)
	}

	as.respondJSON(w, status, errorResponse{Error: message, Details: details})
}

// decodeJSONBody decodes the request body into v, rejecting unknown fields.
func decodeJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// validatePlaylistName checks a playlist name at the API boundary.
func validatePlaylistName(name string) []ValidationError {
	var errs []ValidationError
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		errs = append(errs, ValidationError{Field: "name", Message: "name must not be empty"})
	}
	if len(trimmed) > 200 {
		errs = append(errs, ValidationError{Field: "name", Message: "name must be at most 200 characters"})
	}
	return errs
}

// validateVolume checks that a volume level is a finite value in [0, 1].
func validateVolume(volume float64) []ValidationError {
	if math.IsNaN(volume) || math.IsInf(volume, 0) || volume < 0 || volume > 1 {
		return []ValidationError{{Field: "volume", Message: "volume must be between 0 and 1"}}
	}
	return nil
}

// validatePosition checks that a playback position is finite and non-negative.
func validatePosition(field string, position float64) []ValidationError {
	if math.IsNaN(position) || math.IsInf(position, 0) || position < 0 {
		return []ValidationError{{Field: field, Message: field + " must be a non-negative number"}}
	}
	return nil
}

// sanitizeInput strips control characters from user-supplied text fields.
func sanitizeInput(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 32 || r == '\t' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
