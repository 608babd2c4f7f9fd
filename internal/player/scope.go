package player

import (
	"strings"

	"cadence/internal/library"
	"cadence/pkg/models"
)

// Route identifies the current navigation context. An empty PlaylistID means
// the home/library view.
type Route struct {
	PlaylistID string `json:"playlistId,omitempty"`
}

// ResolveScope returns the ordered song sequence eligible for playback
// navigation in the given context: one playlist's songs (resolved live
// against the canonical collection) or the full library. A route pointing at
// a deleted playlist resolves to an empty scope rather than an error.
func ResolveScope(route Route, lib *library.Library) []models.Song {
	if route.PlaylistID != "" {
		songs, ok := lib.PlaylistSongs(route.PlaylistID)
		if !ok {
			return nil
		}
		return songs
	}
	return lib.Songs()
}

// scopeFingerprint identifies a scope by its ordered membership, so a stale
// shuffle permutation can be detected after the underlying scope changes.
func scopeFingerprint(scope []models.Song) string {
	ids := make([]string, len(scope))
	for i, song := range scope {
		ids[i] = song.ID
	}
	return strings.Join(ids, "\n")
}

// indexOf returns the position of a song id within a sequence, or -1 when the
// song is outside the sequence (e.g. selected directly from another view).
func indexOf(sequence []models.Song, songID string) int {
	for i, song := range sequence {
		if song.ID == songID {
			return i
		}
	}
	return -1
}
