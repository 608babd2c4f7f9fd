package store

import (
	"io"
	"path/filepath"
	"testing"

	"cadence/pkg/models"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st, path
}

func TestSongsRoundTrip(t *testing.T) {
	st, _ := newTestStore(t)

	songs := []models.Song{
		{ID: "s1", Name: "First", Artist: "A", URL: "/media/s1.mp3", Duration: 120},
		{ID: "s2", Name: "Second", Artist: "B", URL: "/media/s2.mp3", Duration: 240, ImageURL: "data:image/png;base64,AA"},
	}
	if err := st.ReplaceSongs(songs); err != nil {
		t.Fatalf("ReplaceSongs failed: %v", err)
	}

	got, err := st.ReadSongs()
	if err != nil {
		t.Fatalf("ReadSongs failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 songs, got %d", len(got))
	}

	byID := map[string]models.Song{}
	for _, song := range got {
		byID[song.ID] = song
	}
	for _, want := range songs {
		if byID[want.ID] != want {
			t.Errorf("Song %s: got %+v, want %+v", want.ID, byID[want.ID], want)
		}
	}
}

func TestReplaceSongsIsASnapshot(t *testing.T) {
	st, _ := newTestStore(t)

	if err := st.ReplaceSongs([]models.Song{{ID: "old", Name: "Old"}}); err != nil {
		t.Fatalf("ReplaceSongs failed: %v", err)
	}
	if err := st.ReplaceSongs([]models.Song{{ID: "new", Name: "New"}}); err != nil {
		t.Fatalf("ReplaceSongs failed: %v", err)
	}

	got, err := st.ReadSongs()
	if err != nil {
		t.Fatalf("ReadSongs failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "new" {
		t.Errorf("Snapshot write must fully replace the collection, got %+v", got)
	}
}

func TestPlaylistsRoundTrip(t *testing.T) {
	st, _ := newTestStore(t)

	playlists := []models.Playlist{
		{ID: "p1", Name: "Chill", SongIDs: []string{"s1", "s2"}, Order: 0},
		{ID: "p2", Name: "Focus", SongIDs: nil, Order: 1},
	}
	if err := st.ReplacePlaylists(playlists); err != nil {
		t.Fatalf("ReplacePlaylists failed: %v", err)
	}

	got, err := st.ReadPlaylists()
	if err != nil {
		t.Fatalf("ReadPlaylists failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 playlists, got %d", len(got))
	}
	for _, playlist := range got {
		if playlist.ID == "p1" && len(playlist.SongIDs) != 2 {
			t.Errorf("Membership lost in round trip: %+v", playlist)
		}
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	st, path := newTestStore(t)

	if err := st.ReplaceSongs([]models.Song{{ID: "s1", Name: "Kept"}}); err != nil {
		t.Fatalf("ReplaceSongs failed: %v", err)
	}
	st.Close()

	reopened, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.ReadSongs()
	if err != nil {
		t.Fatalf("ReadSongs failed: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Kept" {
		t.Errorf("Data lost across reopen: %+v", got)
	}
}

func TestEmptyCollectionsOnFirstRun(t *testing.T) {
	st, _ := newTestStore(t)

	songs, err := st.ReadSongs()
	if err != nil {
		t.Fatalf("ReadSongs failed: %v", err)
	}
	if len(songs) != 0 {
		t.Errorf("Expected empty songs, got %d", len(songs))
	}

	playlists, err := st.ReadPlaylists()
	if err != nil {
		t.Fatalf("ReadPlaylists failed: %v", err)
	}
	if len(playlists) != 0 {
		t.Errorf("Expected empty playlists, got %d", len(playlists))
	}
}

func TestSettings(t *testing.T) {
	st, _ := newTestStore(t)

	value, err := st.GetSetting(SettingBackground)
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if value != "" {
		t.Errorf("Expected empty value for unset key, got %q", value)
	}

	if err := st.SetSetting(SettingBackground, "data:image/jpeg;base64,AAAA"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	if err := st.SetSetting(SettingBackground, "data:image/png;base64,BBBB"); err != nil {
		t.Fatalf("SetSetting overwrite failed: %v", err)
	}

	value, err = st.GetSetting(SettingBackground)
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if value != "data:image/png;base64,BBBB" {
		t.Errorf("Expected latest value, got %q", value)
	}

	if err := st.DeleteSetting(SettingBackground); err != nil {
		t.Fatalf("DeleteSetting failed: %v", err)
	}
	if value, _ := st.GetSetting(SettingBackground); value != "" {
		t.Errorf("Expected empty value after delete, got %q", value)
	}

	// Deleting a missing key is a no-op.
	if err := st.DeleteSetting("never-set"); err != nil {
		t.Errorf("DeleteSetting on missing key failed: %v", err)
	}
}
