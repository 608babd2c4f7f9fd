package server

import (
	"errors"
	"net/http"
	"strings"

	"cadence/internal/library"
)

// handlePlaylists handles GET /api/playlists (list, with optional ?q= search)
// and POST /api/playlists (create).
func (as *AppServer) handlePlaylists(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		query := sanitizeInput(r.URL.Query().Get("q"))
		playlists := as.library.Playlists()
		if query != "" {
			playlists = as.library.SearchPlaylists(query)
		}
		as.respondJSON(w, http.StatusOK, playlists)
	case http.MethodPost:
		var req struct {
			Name string `json:"name"`
		}
		if err := decodeJSONBody(r, &req); err != nil {
			as.respondWithError(w, r, http.StatusBadRequest, "Invalid JSON body", nil)
			return
		}
		req.Name = sanitizeInput(req.Name)
		if errs := validatePlaylistName(req.Name); errs != nil {
			as.respondWithError(w, r, http.StatusBadRequest, "Invalid playlist name", errs)
			return
		}

		playlist, err := as.library.CreatePlaylist(req.Name)
		if err != nil {
			as.logger.WithError(err).Error("Failed to create playlist")
			as.respondWithError(w, r, http.StatusInternalServerError, "Failed to create playlist", nil)
			return
		}
		as.respondJSON(w, http.StatusCreated, playlist)
	default:
		as.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
	}
}

// handlePlaylistByID routes /api/playlists/{id}[/songs[/{songId}]|/reorder].
func (as *AppServer) handlePlaylistByID(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/playlists/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		as.respondWithError(w, r, http.StatusBadRequest, "Playlist ID required", nil)
		return
	}
	playlistID := parts[0]

	switch {
	case len(parts) == 1:
		as.handlePlaylist(w, r, playlistID)
	case len(parts) == 2 && parts[1] == "songs":
		as.handlePlaylistSongs(w, r, playlistID)
	case len(parts) == 3 && parts[1] == "songs":
		as.handlePlaylistSong(w, r, playlistID, parts[2])
	case len(parts) == 2 && parts[1] == "reorder":
		as.handlePlaylistReorder(w, r, playlistID)
	default:
		as.respondWithError(w, r, http.StatusNotFound, "Not found", nil)
	}
}

func (as *AppServer) handlePlaylist(w http.ResponseWriter, r *http.Request, playlistID string) {
	switch r.Method {
	case http.MethodGet:
		playlist, ok := as.library.Playlist(playlistID)
		if !ok {
			as.respondWithError(w, r, http.StatusNotFound, "Playlist not found", nil)
			return
		}
		as.respondJSON(w, http.StatusOK, playlist)
	case http.MethodPatch, http.MethodPut:
		var req struct {
			Name     *string `json:"name,omitempty"`
			ImageURL *string `json:"imageUrl,omitempty"`
		}
		if err := decodeJSONBody(r, &req); err != nil {
			as.respondWithError(w, r, http.StatusBadRequest, "Invalid JSON body", nil)
			return
		}
		if req.Name != nil {
			clean := sanitizeInput(*req.Name)
			if errs := validatePlaylistName(clean); errs != nil {
				as.respondWithError(w, r, http.StatusBadRequest, "Invalid playlist name", errs)
				return
			}
			req.Name = &clean
		}

		update := library.PlaylistUpdate{Name: req.Name, ImageURL: req.ImageURL}
		if err := as.library.UpdatePlaylist(playlistID, update); err != nil {
			if errors.Is(err, library.ErrNotFound) {
				as.respondWithError(w, r, http.StatusNotFound, "Playlist not found", nil)
				return
			}
			as.respondWithError(w, r, http.StatusInternalServerError, "Failed to update playlist", nil)
			return
		}
		playlist, _ := as.library.Playlist(playlistID)
		as.respondJSON(w, http.StatusOK, playlist)
	case http.MethodDelete:
		if err := as.library.DeletePlaylist(playlistID); err != nil {
			if errors.Is(err, library.ErrNotFound) {
				as.respondWithError(w, r, http.StatusNotFound, "Playlist not found", nil)
				return
			}
			as.respondWithError(w, r, http.StatusInternalServerError, "Failed to delete playlist", nil)
			return
		}
		as.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		as.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
	}
}

// handlePlaylistSongs handles GET (resolved member songs) and POST (add songs).
func (as *AppServer) handlePlaylistSongs(w http.ResponseWriter, r *http.Request, playlistID string) {
	switch r.Method {
	case http.MethodGet:
		songs, ok := as.library.PlaylistSongs(playlistID)
		if !ok {
			as.respondWithError(w, r, http.StatusNotFound, "Playlist not found", nil)
			return
		}
		as.respondJSON(w, http.StatusOK, songs)
	case http.MethodPost:
		var req struct {
			SongIDs []string `json:"songIds"`
		}
		if err := decodeJSONBody(r, &req); err != nil {
			as.respondWithError(w, r, http.StatusBadRequest, "Invalid JSON body", nil)
			return
		}
		if len(req.SongIDs) == 0 {
			as.respondWithError(w, r, http.StatusBadRequest, "No songs given", []ValidationError{
				{Field: "songIds", Message: "at least one song ID is required"},
			})
			return
		}

		if err := as.library.AddSongsToPlaylist(playlistID, req.SongIDs); err != nil {
			if errors.Is(err, library.ErrNotFound) {
				as.respondWithError(w, r, http.StatusNotFound, "Playlist not found", nil)
				return
			}
			as.respondWithError(w, r, http.StatusInternalServerError, "Failed to add songs", nil)
			return
		}
		playlist, _ := as.library.Playlist(playlistID)
		as.respondJSON(w, http.StatusOK, playlist)
	default:
		as.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
	}
}

// handlePlaylistSong handles DELETE /api/playlists/{id}/songs/{songId}.
func (as *AppServer) handlePlaylistSong(w http.ResponseWriter, r *http.Request, playlistID, songID string) {
	if r.Method != http.MethodDelete {
		as.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	if err := as.library.RemoveSongFromPlaylist(playlistID, songID); err != nil {
		if errors.Is(err, library.ErrNotFound) {
			as.respondWithError(w, r, http.StatusNotFound, "Playlist not found", nil)
			return
		}
		as.respondWithError(w, r, http.StatusInternalServerError, "Failed to remove song", nil)
		return
	}
	playlist, _ := as.library.Playlist(playlistID)
	as.respondJSON(w, http.StatusOK, playlist)
}

// handlePlaylistReorder moves a playlist to a new position in the sidebar
// ordering. The index is the final display position and is clamped to the
// valid range.
func (as *AppServer) handlePlaylistReorder(w http.ResponseWriter, r *http.Request, playlistID string) {
	if r.Method != http.MethodPost {
		as.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	var req struct {
		Index int `json:"index"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		as.respondWithError(w, r, http.StatusBadRequest, "Invalid JSON body", nil)
		return
	}

	if err := as.library.ReorderPlaylist(playlistID, req.Index); err != nil {
		if errors.Is(err, library.ErrNotFound) {
			as.respondWithError(w, r, http.StatusNotFound, "Playlist not found", nil)
			return
		}
		as.respondWithError(w, r, http.StatusInternalServerError, "Failed to reorder playlist", nil)
		return
	}
	as.respondJSON(w, http.StatusOK, as.library.Playlists())
}
