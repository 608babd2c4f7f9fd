package server

import (
	"net/http"
	"strings"

	"cadence/internal/store"
)

// handleBackground manages the custom background image shown behind the web
// app. The image travels as a data URI and lives in the settings collection.
func (as *AppServer) handleBackground(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		value, err := as.store.GetSetting(store.SettingBackground)
		if err != nil {
			as.logger.WithError(err).Error("Failed to read background setting")
			as.respondWithError(w, r, http.StatusInternalServerError, "Failed to read background", nil)
			return
		}
		as.respondJSON(w, http.StatusOK, map[string]string{"backgroundUrl": value})
	case http.MethodPut:
		var req struct {
			BackgroundURL string `json:"backgroundUrl"`
		}
		if err := decodeJSONBody(r, &req); err != nil {
			as.respondWithError(w, r, http.StatusBadRequest, "Invalid JSON body", nil)
			return
		}
		if !strings.HasPrefix(req.BackgroundURL, "data:image/") {
			as.respondWithError(w, r, http.StatusBadRequest, "Invalid background", []ValidationError{
				{Field: "backgroundUrl", Message: "background must be a data:image/ URI"},
			})
			return
		}
		if err := as.store.SetSetting(store.SettingBackground, req.BackgroundURL); err != nil {
			as.logger.WithError(err).Error("Failed to save background setting")
			as.respondWithError(w, r, http.StatusInternalServerError, "Failed to save background", nil)
			return
		}
		as.respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	case http.MethodDelete:
		if err := as.store.DeleteSetting(store.SettingBackground); err != nil {
			as.logger.WithError(err).Error("Failed to clear background setting")
			as.respondWithError(w, r, http.StatusInternalServerError, "Failed to clear background", nil)
			return
		}
		as.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	default:
		as.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
	}
}
