package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"cadence/internal/library"

	"github.com/sirupsen/logrus"
)

// handleSongs handles GET /api/songs (list, with optional ?q= search) and
// POST /api/songs (upload).
func (as *AppServer) handleSongs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		as.handleListSongs(w, r)
	case http.MethodPost:
		as.handleUploadSong(w, r)
	default:
		as.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
	}
}

func (as *AppServer) handleListSongs(w http.ResponseWriter, r *http.Request) {
	query := sanitizeInput(r.URL.Query().Get("q"))

	songs := as.library.Songs()
	if query != "" {
		songs = as.library.SearchSongs(query)
	}
	as.respondJSON(w, http.StatusOK, songs)
}

func (as *AppServer) handleUploadSong(w http.ResponseWriter, r *http.Request) {
	maxBytes := as.config.Library.MaxUploadSizeMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		as.respondWithError(w, r, http.StatusBadRequest, "Invalid multipart form", nil)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		as.respondWithError(w, r, http.StatusBadRequest, "Missing file field", []ValidationError{
			{Field: "file", Message: "a file upload is required"},
		})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		as.respondWithError(w, r, http.StatusInternalServerError, "Failed to read upload", nil)
		return
	}

	song, err := as.library.AddSong(header.Filename, data)
	if err != nil {
		if errors.Is(err, library.ErrNotAudio) {
			as.respondWithError(w, r, http.StatusUnsupportedMediaType, "audio files only", nil)
			return
		}
		as.logger.WithError(err).Error("Failed to add song")
		as.respondWithError(w, r, http.StatusInternalServerError, "Failed to add song", nil)
		return
	}

	as.logger.WithFields(logrus.Fields{
		"song_id": song.ID,
		"name":    song.Name,
		"artist":  song.Artist,
	}).Info("Song uploaded")
	as.respondJSON(w, http.StatusCreated, song)
}

// handleSongByID handles /api/songs/{id} and /api/songs/{id}/artwork.
func (as *AppServer) handleSongByID(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/songs/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		as.respondWithError(w, r, http.StatusBadRequest, "Song ID required", nil)
		return
	}
	songID := parts[0]

	if len(parts) == 2 && parts[1] == "artwork" {
		as.handleSongArtwork(w, r, songID)
		return
	}
	if len(parts) > 1 {
		as.respondWithError(w, r, http.StatusNotFound, "Not found", nil)
		return
	}

	switch r.Method {
	case http.MethodGet:
		song, ok := as.library.Song(songID)
		if !ok {
			as.respondWithError(w, r, http.StatusNotFound, "Song not found", nil)
			return
		}
		as.respondJSON(w, http.StatusOK, song)
	case http.MethodDelete:
		if err := as.library.DeleteSong(songID); err != nil {
			if errors.Is(err, library.ErrNotFound) {
				as.respondWithError(w, r, http.StatusNotFound, "Song not found", nil)
				return
			}
			as.logger.WithError(err).Error("Failed to delete song")
			as.respondWithError(w, r, http.StatusInternalServerError, "Failed to delete song", nil)
			return
		}
		as.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		as.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
	}
}

// handleSongArtwork sets (PUT) or clears (DELETE) a song's artwork.
func (as *AppServer) handleSongArtwork(w http.ResponseWriter, r *http.Request, songID string) {
	switch r.Method {
	case http.MethodPut:
		var req struct {
			ImageURL string `json:"imageUrl"`
		}
		if err := decodeJSONBody(r, &req); err != nil {
			as.respondWithError(w, r, http.StatusBadRequest, "Invalid JSON body", nil)
			return
		}
		if req.ImageURL != "" && !strings.HasPrefix(req.ImageURL, "data:image/") {
			as.respondWithError(w, r, http.StatusBadRequest, "Invalid artwork", []ValidationError{
				{Field: "imageUrl", Message: "artwork must be a data:image/ URI"},
			})
			return
		}
		if err := as.library.SetSongArtwork(songID, req.ImageURL); err != nil {
			if errors.Is(err, library.ErrNotFound) {
				as.respondWithError(w, r, http.StatusNotFound, "Song not found", nil)
				return
			}
			as.respondWithError(w, r, http.StatusInternalServerError, "Failed to update artwork", nil)
			return
		}
		as.respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	case http.MethodDelete:
		if err := as.library.SetSongArtwork(songID, ""); err != nil {
			if errors.Is(err, library.ErrNotFound) {
				as.respondWithError(w, r, http.StatusNotFound, "Song not found", nil)
				return
			}
			as.respondWithError(w, r, http.StatusInternalServerError, "Failed to clear artwork", nil)
			return
		}
		as.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	default:
		as.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
	}
}
