package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"cadence/internal/metadata"
	"cadence/internal/store"
	"cadence/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// UnknownArtist is the placeholder artist for filenames without the
// "Artist - Title" convention.
const UnknownArtist = "Unknown Artist"

var (
	// ErrNotAudio is returned when an upload does not carry audio content.
	ErrNotAudio = errors.New("audio files only")

	// ErrNotFound is returned when a song or playlist id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrEmptyName is returned when a playlist name is empty after trimming.
	ErrEmptyName = errors.New("playlist name cannot be empty")
)

// Library owns the canonical song and playlist collections. Every mutation
// updates the in-memory collections first and then writes a full snapshot to
// the persistent store; a failed snapshot write leaves the in-memory mutation
// applied for the session and surfaces the error to the caller.
type Library struct {
	mu       sync.RWMutex
	store    *store.Store
	prober   *metadata.Prober
	logger   *logrus.Logger
	mediaDir string

	songs     []models.Song
	playlists []models.Playlist
}

// PlaylistUpdate carries a partial playlist update. Nil fields are left
// untouched; an ImageURL pointing at "" clears the artwork. Name validation
// is the caller's responsibility.
type PlaylistUpdate struct {
	Name     *string
	ImageURL *string
}

// New creates a library backed by the given store. Call Load before use.
func New(st *store.Store, prober *metadata.Prober, mediaDir string, logger *logrus.Logger) *Library {
	return &Library{
		store:    st,
		prober:   prober,
		logger:   logger,
		mediaDir: mediaDir,
	}
}

// Load reads both collections from the persistent store. Empty collections on
// first run are not an error.
func (l *Library) Load() error {
	songs, err := l.store.ReadSongs()
	if err != nil {
		return fmt.Errorf("failed to load songs: %w", err)
	}
	playlists, err := l.store.ReadPlaylists()
	if err != nil {
		return fmt.Errorf("failed to load playlists: %w", err)
	}

	// Store rows come back unordered; display order is the order field.
	sortPlaylists(playlists)

	l.mu.Lock()
	l.songs = songs
	l.playlists = playlists
	l.mu.Unlock()

	l.logger.WithFields(logrus.Fields{
		"songs":     len(songs),
		"playlists": len(playlists),
	}).Info("Library loaded")
	return nil
}

// sortPlaylists orders by the order field, ties broken by original position.
func sortPlaylists(playlists []models.Playlist) {
	sort.SliceStable(playlists, func(i, j int) bool {
		return playlists[i].Order < playlists[j].Order
	})
}

// ParseFilename derives display name and artist from an uploaded filename
// using the "Artist - Title" convention. Without a separator the whole
// filename (minus extension) becomes the name and the artist is the unknown
// placeholder.
func ParseFilename(filename string) (name, artist string) {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	if before, after, found := strings.Cut(base, "-"); found {
		artist = strings.TrimSpace(before)
		name = strings.TrimSpace(after)
		if artist != "" && name != "" {
			return name, artist
		}
	}
	return strings.TrimSpace(base), UnknownArtist
}

// AddSong validates that the upload is audio, stores the payload in the media
// directory, probes its duration, and appends a new song to the collection.
// The song is not created until the audio metadata has been resolved.
func (l *Library) AddSong(filename string, data []byte) (models.Song, error) {
	if !l.isAudio(filename, data) {
		return models.Song{}, ErrNotAudio
	}

	id := uuid.New().String()
	storedName := id + strings.ToLower(filepath.Ext(filename))
	mediaPath := filepath.Join(l.mediaDir, storedName)

	if err := os.MkdirAll(l.mediaDir, 0755); err != nil {
		return models.Song{}, fmt.Errorf("failed to create media directory: %w", err)
	}
	if err := os.WriteFile(mediaPath, data, 0644); err != nil {
		return models.Song{}, fmt.Errorf("failed to store audio file: %w", err)
	}

	duration, err := l.prober.ProbeDuration(mediaPath)
	if err != nil {
		l.logger.WithError(err).WithField("file", filename).Warn("Could not probe duration")
		duration = 0
	}

	name, artist := ParseFilename(filename)
	song := models.Song{
		ID:       id,
		Name:     name,
		Artist:   artist,
		URL:      "/media/" + storedName,
		Duration: duration,
		ImageURL: l.prober.ExtractArtwork(mediaPath),
	}

	l.mu.Lock()
	l.songs = append(l.songs, song)
	err = l.persistSongs()
	l.mu.Unlock()

	l.logger.WithFields(logrus.Fields{
		"id":     song.ID,
		"name":   song.Name,
		"artist": song.Artist,
	}).Info("Song added")
	return song, err
}

// isAudio accepts uploads whose extension is a supported audio format or
// whose leading bytes sniff as audio content.
func (l *Library) isAudio(filename string, data []byte) bool {
	if l.prober.IsAudioFile(filename) {
		return true
	}
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	return metadata.SniffIsAudio(head)
}

// DeleteSong removes a song from the collection and from every playlist that
// references it. Both resulting snapshots are persisted; if playlist cleanup
// fails to persist the inconsistency is reported rather than hidden.
func (l *Library) DeleteSong(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.songIndex(id)
	if idx < 0 {
		return ErrNotFound
	}
	removed := l.songs[idx]
	l.songs = append(l.songs[:idx], l.songs[idx+1:]...)

	playlistsChanged := false
	for i := range l.playlists {
		kept := l.playlists[i].SongIDs[:0]
		for _, songID := range l.playlists[i].SongIDs {
			if songID != id {
				kept = append(kept, songID)
			}
		}
		if len(kept) != len(l.playlists[i].SongIDs) {
			l.playlists[i].SongIDs = kept
			playlistsChanged = true
		}
	}

	if err := l.persistSongs(); err != nil {
		return err
	}
	if playlistsChanged {
		if err := l.persistPlaylists(); err != nil {
			return fmt.Errorf("song deleted but playlist cleanup not persisted: %w", err)
		}
	}

	// Best-effort media cleanup; the collection no longer references it.
	if strings.HasPrefix(removed.URL, "/media/") {
		mediaPath := filepath.Join(l.mediaDir, filepath.Base(removed.URL))
		if err := os.Remove(mediaPath); err != nil && !os.IsNotExist(err) {
			l.logger.WithError(err).WithField("path", mediaPath).Warn("Could not remove media file")
		}
	}

	l.logger.WithField("id", id).Info("Song deleted")
	return nil
}

// SetSongArtwork sets or replaces a song's artwork with an embeddable image
// reference (data URI). An empty imageURL clears the artwork.
func (l *Library) SetSongArtwork(id, imageURL string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.songIndex(id)
	if idx < 0 {
		return ErrNotFound
	}
	l.songs[idx].ImageURL = imageURL
	return l.persistSongs()
}

// CreatePlaylist creates an empty playlist at the end of the display order.
// Empty or whitespace-only names are rejected.
func (l *Library) CreatePlaylist(name string) (models.Playlist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Playlist{}, ErrEmptyName
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	playlist := models.Playlist{
		ID:      uuid.New().String(),
		Name:    name,
		SongIDs: []string{},
		Order:   len(l.playlists),
	}
	l.playlists = append(l.playlists, playlist)
	err := l.persistPlaylists()

	l.logger.WithFields(logrus.Fields{
		"id":   playlist.ID,
		"name": playlist.Name,
	}).Info("Playlist created")
	return playlist, err
}

// UpdatePlaylist merges the provided fields into a playlist. The model
// accepts whatever it is given; name validation happens at the boundary.
func (l *Library) UpdatePlaylist(id string, update PlaylistUpdate) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.playlistIndex(id)
	if idx < 0 {
		return ErrNotFound
	}
	if update.Name != nil {
		l.playlists[idx].Name = *update.Name
	}
	if update.ImageURL != nil {
		l.playlists[idx].ImageURL = *update.ImageURL
	}
	return l.persistPlaylists()
}

// DeletePlaylist removes a playlist entirely. The song collection is
// unaffected.
func (l *Library) DeletePlaylist(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.playlistIndex(id)
	if idx < 0 {
		return ErrNotFound
	}
	l.playlists = append(l.playlists[:idx], l.playlists[idx+1:]...)

	l.logger.WithField("id", id).Info("Playlist deleted")
	return l.persistPlaylists()
}

// AddSongsToPlaylist appends the given songs to a playlist, skipping ids that
// are already members or unknown to the library. Order is preserved and new
// members land at the end in input order. When nothing changes, no snapshot
// write is triggered.
func (l *Library) AddSongsToPlaylist(id string, songIDs []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.playlistIndex(id)
	if idx < 0 {
		return ErrNotFound
	}

	playlist := &l.playlists[idx]
	added := false
	for _, songID := range songIDs {
		if playlist.ContainsSong(songID) || l.songIndex(songID) < 0 {
			continue
		}
		playlist.SongIDs = append(playlist.SongIDs, songID)
		added = true
	}
	if !added {
		return nil
	}
	return l.persistPlaylists()
}

// RemoveSongFromPlaylist removes one song by id from one playlist.
func (l *Library) RemoveSongFromPlaylist(id, songID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.playlistIndex(id)
	if idx < 0 {
		return ErrNotFound
	}

	playlist := &l.playlists[idx]
	kept := playlist.SongIDs[:0]
	for _, existing := range playlist.SongIDs {
		if existing != songID {
			kept = append(kept, existing)
		}
	}
	playlist.SongIDs = kept
	return l.persistPlaylists()
}

// ReorderPlaylist moves a playlist to newIndex in display order and renumbers
// every playlist's order field to its resulting positional index. The target
// index is the moved playlist's final display position, clamped to the valid
// range.
func (l *Library) ReorderPlaylist(id string, newIndex int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	sortPlaylists(l.playlists)

	idx := l.playlistIndex(id)
	if idx < 0 {
		return ErrNotFound
	}

	moved := l.playlists[idx]
	remaining := append(append([]models.Playlist{}, l.playlists[:idx]...), l.playlists[idx+1:]...)

	if newIndex < 0 {
		newIndex = 0
	}
	if newIndex > len(remaining) {
		newIndex = len(remaining)
	}

	reordered := make([]models.Playlist, 0, len(l.playlists))
	reordered = append(reordered, remaining[:newIndex]...)
	reordered = append(reordered, moved)
	reordered = append(reordered, remaining[newIndex:]...)

	for i := range reordered {
		reordered[i].Order = i
	}
	l.playlists = reordered
	return l.persistPlaylists()
}

// Songs returns a copy of the song collection in collection order.
func (l *Library) Songs() []models.Song {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.Song{}, l.songs...)
}

// Song returns a single song by id.
func (l *Library) Song(id string) (models.Song, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	idx := l.songIndex(id)
	if idx < 0 {
		return models.Song{}, false
	}
	return l.songs[idx], true
}

// Playlists returns a copy of the playlists in display order.
func (l *Library) Playlists() []models.Playlist {
	l.mu.RLock()
	defer l.mu.RUnlock()

	playlists := append([]models.Playlist{}, l.playlists...)
	sortPlaylists(playlists)
	return playlists
}

// Playlist returns a single playlist by id.
func (l *Library) Playlist(id string) (models.Playlist, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	idx := l.playlistIndex(id)
	if idx < 0 {
		return models.Playlist{}, false
	}
	return l.playlists[idx], true
}

// PlaylistSongs resolves a playlist's membership against the canonical song
// collection. Ids whose song no longer exists resolve to nothing.
func (l *Library) PlaylistSongs(id string) ([]models.Song, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	idx := l.playlistIndex(id)
	if idx < 0 {
		return nil, false
	}

	songs := make([]models.Song, 0, len(l.playlists[idx].SongIDs))
	for _, songID := range l.playlists[idx].SongIDs {
		if songIdx := l.songIndex(songID); songIdx >= 0 {
			songs = append(songs, l.songs[songIdx])
		}
	}
	return songs, true
}

// SearchSongs returns songs whose name or artist contains the query,
// case-insensitively. An empty query matches everything.
func (l *Library) SearchSongs(query string) []models.Song {
	query = strings.ToLower(query)

	l.mu.RLock()
	defer l.mu.RUnlock()

	var matched []models.Song
	for _, song := range l.songs {
		if strings.Contains(strings.ToLower(song.Name), query) ||
			strings.Contains(strings.ToLower(song.Artist), query) {
			matched = append(matched, song)
		}
	}
	return matched
}

// SearchPlaylists returns playlists whose name contains the query,
// case-insensitively, in display order.
func (l *Library) SearchPlaylists(query string) []models.Playlist {
	query = strings.ToLower(query)

	l.mu.RLock()
	defer l.mu.RUnlock()

	var matched []models.Playlist
	for _, playlist := range l.playlists {
		if strings.Contains(strings.ToLower(playlist.Name), query) {
			matched = append(matched, playlist)
		}
	}
	sortPlaylists(matched)
	return matched
}

// songIndex and playlistIndex must be called with the lock held.
func (l *Library) songIndex(id string) int {
	for i := range l.songs {
		if l.songs[i].ID == id {
			return i
		}
	}
	return -1
}

func (l *Library) playlistIndex(id string) int {
	for i := range l.playlists {
		if l.playlists[i].ID == id {
			return i
		}
	}
	return -1
}

// persistSongs and persistPlaylists write full collection snapshots. They
// must be called with the lock held, which also serializes writes so a stale
// snapshot can never supersede a newer one.
func (l *Library) persistSongs() error {
	if err := l.store.ReplaceSongs(l.songs); err != nil {
		l.logger.WithError(err).Error("Song snapshot write failed; in-memory state remains authoritative")
		return fmt.Errorf("library updated but snapshot write failed: %w", err)
	}
	return nil
}

func (l *Library) persistPlaylists() error {
	if err := l.store.ReplacePlaylists(l.playlists); err != nil {
		l.logger.WithError(err).Error("Playlist snapshot write failed; in-memory state remains authoritative")
		return fmt.Errorf("library updated but snapshot write failed: %w", err)
	}
	return nil
}
