package server

import (
	"net/http"
	"time"
)

var serverStart = time.Now()

// HealthStatus is the /health response payload.
type HealthStatus struct {
	Status    string `json:"status"`
	Uptime    string `json:"uptime"`
	Songs     int    `json:"songs"`
	Playlists int    `json:"playlists"`
	TunnelURL string `json:"tunnel_url,omitempty"`
}

func (as *AppServer) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		as.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	status := HealthStatus{
		Status:    "ok",
		Uptime:    time.Since(serverStart).Round(time.Second).String(),
		Songs:     len(as.library.Songs()),
		Playlists: len(as.library.Playlists()),
		TunnelURL: as.tunnelService.PublicURL(),
	}
	as.respondJSON(w, http.StatusOK, status)
}
