package library

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"cadence/internal/metadata"
	"cadence/internal/store"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestLibrary(t *testing.T) (*Library, *store.Store, string) {
	t.Helper()
	logger := testLogger()

	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "test.db"), logger)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	mediaDir := filepath.Join(dir, "media")
	prober := metadata.NewProber([]string{".mp3", ".flac", ".wav"}, logger)
	lib := New(st, prober, mediaDir, logger)
	if err := lib.Load(); err != nil {
		t.Fatalf("Failed to load library: %v", err)
	}
	return lib, st, mediaDir
}

func TestParseFilename(t *testing.T) {
	tests := []struct {
		filename   string
		wantName   string
		wantArtist string
	}{
		{"Daft Punk - Harder Better Faster Stronger.mp3", "Harder Better Faster Stronger", "Daft Punk"},
		{"Nina Simone - Sinnerman.flac", "Sinnerman", "Nina Simone"},
		{"ambient.mp3", "ambient", UnknownArtist},
		{"no extension - still works", "still works", "no extension"},
		{"  spaced  -  out  .mp3", "out", "spaced"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			name, artist := ParseFilename(tt.filename)
			if name != tt.wantName || artist != tt.wantArtist {
				t.Errorf("ParseFilename(%q) = (%q, %q), want (%q, %q)",
					tt.filename, name, artist, tt.wantName, tt.wantArtist)
			}
		})
	}
}

func TestAddSongAssignsUniqueIDs(t *testing.T) {
	lib, _, mediaDir := newTestLibrary(t)

	first, err := lib.AddSong("Artist - Twin.mp3", []byte("audio-a"))
	if err != nil {
		t.Fatalf("AddSong failed: %v", err)
	}
	second, err := lib.AddSong("Artist - Twin.mp3", []byte("audio-b"))
	if err != nil {
		t.Fatalf("AddSong failed: %v", err)
	}

	if first.ID == second.ID {
		t.Error("Identical uploads must still get distinct IDs")
	}
	if len(lib.Songs()) != 2 {
		t.Errorf("Expected 2 songs, got %d", len(lib.Songs()))
	}

	for _, song := range []string{first.URL, second.URL} {
		path := filepath.Join(mediaDir, filepath.Base(song))
		if _, err := os.Stat(path); err != nil {
			t.Errorf("Media file missing for %s: %v", song, err)
		}
	}
}

func TestAddSongRejectsNonAudio(t *testing.T) {
	lib, _, _ := newTestLibrary(t)

	_, err := lib.AddSong("notes.txt", []byte("just some text"))
	if !errors.Is(err, ErrNotAudio) {
		t.Errorf("Expected ErrNotAudio, got %v", err)
	}
	if len(lib.Songs()) != 0 {
		t.Error("Rejected upload must not appear in the collection")
	}
}

func TestAddSongAcceptsSniffedAudio(t *testing.T) {
	lib, _, _ := newTestLibrary(t)

	// Unsupported extension but an ID3 header in the payload.
	data := append([]byte("ID3"), make([]byte, 64)...)
	if _, err := lib.AddSong("mislabeled.bin", data); err != nil {
		t.Errorf("Expected sniffed audio to be accepted, got %v", err)
	}
}

func TestDeleteSongCascadesToPlaylists(t *testing.T) {
	lib, st, _ := newTestLibrary(t)

	keep, err := lib.AddSong("A - Keep.mp3", []byte("audio"))
	if err != nil {
		t.Fatalf("AddSong failed: %v", err)
	}
	doomed, err := lib.AddSong("A - Doomed.mp3", []byte("audio"))
	if err != nil {
		t.Fatalf("AddSong failed: %v", err)
	}

	playlist, err := lib.CreatePlaylist("Mixed")
	if err != nil {
		t.Fatalf("CreatePlaylist failed: %v", err)
	}
	if err := lib.AddSongsToPlaylist(playlist.ID, []string{keep.ID, doomed.ID}); err != nil {
		t.Fatalf("AddSongsToPlaylist failed: %v", err)
	}

	if err := lib.DeleteSong(doomed.ID); err != nil {
		t.Fatalf("DeleteSong failed: %v", err)
	}

	got, _ := lib.Playlist(playlist.ID)
	if len(got.SongIDs) != 1 || got.SongIDs[0] != keep.ID {
		t.Errorf("Expected playlist to keep only %s, got %v", keep.ID, got.SongIDs)
	}

	// The cascade must survive a reload from the store.
	reloaded := New(st, metadata.NewProber([]string{".mp3"}, testLogger()), t.TempDir(), testLogger())
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	pl, ok := reloaded.Playlist(playlist.ID)
	if !ok {
		t.Fatal("Playlist missing after reload")
	}
	if len(pl.SongIDs) != 1 || pl.SongIDs[0] != keep.ID {
		t.Errorf("Cascade not persisted, got %v", pl.SongIDs)
	}
}

func TestDeleteSongUnknownID(t *testing.T) {
	lib, _, _ := newTestLibrary(t)

	if err := lib.DeleteSong("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestCreatePlaylistRejectsEmptyName(t *testing.T) {
	lib, _, _ := newTestLibrary(t)

	for _, name := range []string{"", "   ", "\t"} {
		if _, err := lib.CreatePlaylist(name); !errors.Is(err, ErrEmptyName) {
			t.Errorf("CreatePlaylist(%q): expected ErrEmptyName, got %v", name, err)
		}
	}
}

func TestAddSongsToPlaylistIsIdempotent(t *testing.T) {
	lib, _, _ := newTestLibrary(t)

	song, err := lib.AddSong("A - One.mp3", []byte("audio"))
	if err != nil {
		t.Fatalf("AddSong failed: %v", err)
	}
	playlist, err := lib.CreatePlaylist("Loop")
	if err != nil {
		t.Fatalf("CreatePlaylist failed: %v", err)
	}

	if err := lib.AddSongsToPlaylist(playlist.ID, []string{song.ID}); err != nil {
		t.Fatalf("AddSongsToPlaylist failed: %v", err)
	}
	if err := lib.AddSongsToPlaylist(playlist.ID, []string{song.ID, "unknown-id"}); err != nil {
		t.Fatalf("AddSongsToPlaylist failed: %v", err)
	}

	got, _ := lib.Playlist(playlist.ID)
	if len(got.SongIDs) != 1 {
		t.Errorf("Duplicates and unknown IDs must be skipped, got %v", got.SongIDs)
	}
}

func TestRemoveSongFromPlaylistKeepsSong(t *testing.T) {
	lib, _, _ := newTestLibrary(t)

	song, err := lib.AddSong("A - Stays.mp3", []byte("audio"))
	if err != nil {
		t.Fatalf("AddSong failed: %v", err)
	}
	playlist, err := lib.CreatePlaylist("Short lived")
	if err != nil {
		t.Fatalf("CreatePlaylist failed: %v", err)
	}
	if err := lib.AddSongsToPlaylist(playlist.ID, []string{song.ID}); err != nil {
		t.Fatalf("AddSongsToPlaylist failed: %v", err)
	}

	if err := lib.RemoveSongFromPlaylist(playlist.ID, song.ID); err != nil {
		t.Fatalf("RemoveSongFromPlaylist failed: %v", err)
	}

	got, _ := lib.Playlist(playlist.ID)
	if len(got.SongIDs) != 0 {
		t.Errorf("Expected empty playlist, got %v", got.SongIDs)
	}
	if _, ok := lib.Song(song.ID); !ok {
		t.Error("Removing from a playlist must not delete the song itself")
	}
}

func TestUpdatePlaylist(t *testing.T) {
	lib, _, _ := newTestLibrary(t)

	playlist, err := lib.CreatePlaylist("Old name")
	if err != nil {
		t.Fatalf("CreatePlaylist failed: %v", err)
	}

	newName := "New name"
	image := "data:image/png;base64,AAAA"
	if err := lib.UpdatePlaylist(playlist.ID, PlaylistUpdate{Name: &newName, ImageURL: &image}); err != nil {
		t.Fatalf("UpdatePlaylist failed: %v", err)
	}

	got, _ := lib.Playlist(playlist.ID)
	if got.Name != newName || got.ImageURL != image {
		t.Errorf("Update not applied: %+v", got)
	}
}

func TestReorderPlaylist(t *testing.T) {
	lib, _, _ := newTestLibrary(t)

	var ids []string
	for _, name := range []string{"First", "Second", "Third"} {
		pl, err := lib.CreatePlaylist(name)
		if err != nil {
			t.Fatalf("CreatePlaylist failed: %v", err)
		}
		ids = append(ids, pl.ID)
	}

	// Move "Third" to the front.
	if err := lib.ReorderPlaylist(ids[2], 0); err != nil {
		t.Fatalf("ReorderPlaylist failed: %v", err)
	}

	playlists := lib.Playlists()
	wantNames := []string{"Third", "First", "Second"}
	for i, want := range wantNames {
		if playlists[i].Name != want {
			t.Errorf("Position %d: expected %q, got %q", i, want, playlists[i].Name)
		}
		if playlists[i].Order != i {
			t.Errorf("Position %d: expected Order %d, got %d", i, i, playlists[i].Order)
		}
	}
}

func TestReorderPlaylistClampsIndex(t *testing.T) {
	lib, _, _ := newTestLibrary(t)

	var ids []string
	for _, name := range []string{"A", "B", "C"} {
		pl, err := lib.CreatePlaylist(name)
		if err != nil {
			t.Fatalf("CreatePlaylist failed: %v", err)
		}
		ids = append(ids, pl.ID)
	}

	// Far out of range in both directions clamps to the ends.
	if err := lib.ReorderPlaylist(ids[0], 99); err != nil {
		t.Fatalf("ReorderPlaylist failed: %v", err)
	}
	playlists := lib.Playlists()
	if playlists[len(playlists)-1].Name != "A" {
		t.Errorf("Expected A at the end, got %q", playlists[len(playlists)-1].Name)
	}

	if err := lib.ReorderPlaylist(ids[0], -5); err != nil {
		t.Fatalf("ReorderPlaylist failed: %v", err)
	}
	playlists = lib.Playlists()
	if playlists[0].Name != "A" {
		t.Errorf("Expected A at the front, got %q", playlists[0].Name)
	}
}

func TestSearchSongs(t *testing.T) {
	lib, _, _ := newTestLibrary(t)

	if _, err := lib.AddSong("Daft Punk - One More Time.mp3", []byte("audio")); err != nil {
		t.Fatalf("AddSong failed: %v", err)
	}
	if _, err := lib.AddSong("Nina Simone - Sinnerman.mp3", []byte("audio")); err != nil {
		t.Fatalf("AddSong failed: %v", err)
	}

	tests := []struct {
		query string
		want  int
	}{
		{"daft", 1},
		{"SINNER", 1},
		{"one", 2}, // matches "One More Time" and "Nina Simone"
		{"polka", 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			if got := lib.SearchSongs(tt.query); len(got) != tt.want {
				t.Errorf("SearchSongs(%q) returned %d results, want %d", tt.query, len(got), tt.want)
			}
		})
	}
}

func TestLoadRestoresCollections(t *testing.T) {
	lib, st, mediaDir := newTestLibrary(t)

	song, err := lib.AddSong("A - Persist.mp3", []byte("audio"))
	if err != nil {
		t.Fatalf("AddSong failed: %v", err)
	}
	playlist, err := lib.CreatePlaylist("Persisted")
	if err != nil {
		t.Fatalf("CreatePlaylist failed: %v", err)
	}
	if err := lib.AddSongsToPlaylist(playlist.ID, []string{song.ID}); err != nil {
		t.Fatalf("AddSongsToPlaylist failed: %v", err)
	}

	reloaded := New(st, metadata.NewProber([]string{".mp3"}, testLogger()), mediaDir, testLogger())
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	songs := reloaded.Songs()
	if len(songs) != 1 || songs[0].ID != song.ID {
		t.Fatalf("Songs not restored: %+v", songs)
	}
	resolved, ok := reloaded.PlaylistSongs(playlist.ID)
	if !ok || len(resolved) != 1 || resolved[0].ID != song.ID {
		t.Errorf("Playlist membership not restored: %+v", resolved)
	}
}
