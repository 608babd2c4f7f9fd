package models

// Song represents an uploaded audio file in the library
type Song struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Artist   string  `json:"artist"`
	URL      string  `json:"url"`                // locally resolvable media path
	Duration float64 `json:"duration,omitempty"` // in seconds, 0 until probed
	ImageURL string  `json:"imageUrl,omitempty"` // data URI artwork
}

// Playlist represents a user-created playlist. Membership is stored as song
// IDs; the library resolves them against the canonical song collection at
// read time, so playlist views always reflect current song metadata.
type Playlist struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	SongIDs  []string `json:"songIds"`
	ImageURL string   `json:"imageUrl,omitempty"`
	Order    int      `json:"order"` // display position among playlists
}

// ContainsSong reports whether the playlist already holds the given song ID.
func (p *Playlist) ContainsSong(songID string) bool {
	for _, id := range p.SongIDs {
		if id == songID {
			return true
		}
	}
	return false
}
