package server

import (
	"errors"
	"net/http"

	"cadence/internal/player"
)

// handlePlayerState returns the current playback snapshot.
func (as *AppServer) handlePlayerState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		as.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}
	as.respondJSON(w, http.StatusOK, as.player.State())
}

// handlePlayerRoute updates the navigation scope (library or one playlist).
func (as *AppServer) handlePlayerRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		as.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	var route player.Route
	if err := decodeJSONBody(r, &route); err != nil {
		as.respondWithError(w, r, http.StatusBadRequest, "Invalid JSON body", nil)
		return
	}

	if route.PlaylistID != "" {
		if _, ok := as.library.Playlist(route.PlaylistID); !ok {
			as.respondWithError(w, r, http.StatusNotFound, "Playlist not found", nil)
			return
		}
	}

	as.player.SetRoute(route)
	as.respondJSON(w, http.StatusOK, as.player.State())
}

// handlePlayerSelect loads and starts the given song in the current scope.
func (as *AppServer) handlePlayerSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		as.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	var req struct {
		SongID string `json:"songId"`
	}
	if err := decodeJSONBody(r, &req); err != nil || req.SongID == "" {
		as.respondWithError(w, r, http.StatusBadRequest, "Song ID required", nil)
		return
	}

	if _, ok := as.library.Song(req.SongID); !ok {
		as.respondWithError(w, r, http.StatusNotFound, "Song not found", nil)
		return
	}

	if err := as.player.SelectSong(req.SongID); err != nil {
		as.logger.WithError(err).Warn("Song selection failed")
		as.respondWithError(w, r, http.StatusUnprocessableEntity, "Could not load song", nil)
		return
	}
	as.respondJSON(w, http.StatusOK, as.player.State())
}

func (as *AppServer) handlePlayerPlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		as.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}
	if err := as.player.Play(); err != nil {
		if errors.Is(err, player.ErrNoSong) {
			as.respondWithError(w, r, http.StatusConflict, "No song loaded", nil)
			return
		}
		as.respondWithError(w, r, http.StatusUnprocessableEntity, "Could not start playback", nil)
		return
	}
	as.respondJSON(w, http.StatusOK, as.player.State())
}

func (as *AppServer) handlePlayerPause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		as.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}
	as.player.Pause()
	as.respondJSON(w, http.StatusOK, as.player.State())
}

func (as *AppServer) handlePlayerNext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		as.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}
	if err := as.player.Next(); err != nil {
		as.respondWithError(w, r, http.StatusUnprocessableEntity, "Could not skip forward", nil)
		return
	}
	as.respondJSON(w, http.StatusOK, as.player.State())
}

func (as *AppServer) handlePlayerPrevious(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		as.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}
	if err := as.player.Previous(); err != nil {
		as.respondWithError(w, r, http.StatusUnprocessableEntity, "Could not skip backward", nil)
		return
	}
	as.respondJSON(w, http.StatusOK, as.player.State())
}

// handlePlayerAdvance is called when the current song finishes. Loop restarts
// the song; otherwise the scope wraps from the last song back to the first.
func (as *AppServer) handlePlayerAdvance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		as.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}
	if err := as.player.Advance(); err != nil {
		as.respondWithError(w, r, http.StatusUnprocessableEntity, "Could not advance", nil)
		return
	}
	as.respondJSON(w, http.StatusOK, as.player.State())
}

// handlePlayerSeek covers the whole seek gesture: {"action":"begin"} when the
// user grabs the slider, {"action":"end","position":n} on release.
func (as *AppServer) handlePlayerSeek(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		as.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	var req struct {
		Action   string  `json:"action"`
		Position float64 `json:"position"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		as.respondWithError(w, r, http.StatusBadRequest, "Invalid JSON body", nil)
		return
	}

	switch req.Action {
	case "begin":
		as.player.BeginSeek()
	case "end":
		if errs := validatePosition("position", req.Position); errs != nil {
			as.respondWithError(w, r, http.StatusBadRequest, "Invalid seek position", errs)
			return
		}
		if duration := as.player.State().Duration; duration > 0 && req.Position > duration {
			as.respondWithError(w, r, http.StatusBadRequest, "Invalid seek position", []ValidationError{
				{Field: "position", Message: "position exceeds the song duration"},
			})
			return
		}
		if err := as.player.EndSeek(req.Position); err != nil {
			as.respondWithError(w, r, http.StatusUnprocessableEntity, "Could not seek", nil)
			return
		}
	default:
		as.respondWithError(w, r, http.StatusBadRequest, "Invalid seek action", []ValidationError{
			{Field: "action", Message: "action must be begin or end"},
		})
		return
	}
	as.respondJSON(w, http.StatusOK, as.player.State())
}

// handlePlayerProgress receives periodic playback position reports from the
// client's audio element.
func (as *AppServer) handlePlayerProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		as.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	var req struct {
		Position float64 `json:"position"`
		Duration float64 `json:"duration"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		as.respondWithError(w, r, http.StatusBadRequest, "Invalid JSON body", nil)
		return
	}
	if errs := append(validatePosition("position", req.Position), validatePosition("duration", req.Duration)...); errs != nil {
		as.respondWithError(w, r, http.StatusBadRequest, "Invalid progress report", errs)
		return
	}

	as.player.ReportProgress(req.Position, req.Duration)
	w.WriteHeader(http.StatusNoContent)
}

func (as *AppServer) handlePlayerVolume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		as.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	var req struct {
		Volume float64 `json:"volume"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		as.respondWithError(w, r, http.StatusBadRequest, "Invalid JSON body", nil)
		return
	}
	if errs := validateVolume(req.Volume); errs != nil {
		as.respondWithError(w, r, http.StatusBadRequest, "Invalid volume", errs)
		return
	}

	as.player.SetVolume(req.Volume)
	as.respondJSON(w, http.StatusOK, as.player.State())
}

func (as *AppServer) handlePlayerMute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		as.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}
	as.player.ToggleMute()
	as.respondJSON(w, http.StatusOK, as.player.State())
}

func (as *AppServer) handlePlayerShuffle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		as.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}
	as.player.ToggleShuffle()
	as.respondJSON(w, http.StatusOK, as.player.State())
}

func (as *AppServer) handlePlayerLoop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		as.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}
	as.player.ToggleLoop()
	as.respondJSON(w, http.StatusOK, as.player.State())
}

// handleMediaKey dispatches hardware media key presses reported by the client.
func (as *AppServer) handleMediaKey(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		as.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	var req struct {
		Action string `json:"action"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		as.respondWithError(w, r, http.StatusBadRequest, "Invalid JSON body", nil)
		return
	}

	if err := as.player.HandleMediaKey(req.Action); err != nil {
		if errors.Is(err, player.ErrNoSong) {
			as.respondWithError(w, r, http.StatusConflict, "No song loaded", nil)
			return
		}
		as.respondWithError(w, r, http.StatusBadRequest, "Unknown media key action", nil)
		return
	}
	as.respondJSON(w, http.StatusOK, as.player.State())
}
