package player

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cadence/internal/metadata"
	"cadence/pkg/models"
)

// MediaSource is a Source backed by files in the media directory. Audio is
// rendered by the client's audio element; loading here verifies the resource
// is present and decodable so selection errors surface immediately instead of
// as a silent dead player.
type MediaSource struct {
	mediaDir string
	prober   *metadata.Prober
}

// NewMediaSource creates a media-directory backed source.
func NewMediaSource(mediaDir string, prober *metadata.Prober) *MediaSource {
	return &MediaSource{
		mediaDir: mediaDir,
		prober:   prober,
	}
}

// Load verifies the song's media file exists and returns its probed duration.
func (m *MediaSource) Load(song models.Song) (float64, error) {
	if !strings.HasPrefix(song.URL, "/media/") {
		return 0, fmt.Errorf("unresolvable media url: %s", song.URL)
	}

	path := filepath.Join(m.mediaDir, filepath.Base(song.URL))
	if _, err := os.Stat(path); err != nil {
		return 0, fmt.Errorf("media file unavailable: %w", err)
	}

	duration, err := m.prober.ProbeDuration(path)
	if err != nil {
		// Formats without a local decoder still play in the client.
		return song.Duration, nil
	}
	return duration, nil
}

// Play is a no-op for client-rendered audio.
func (m *MediaSource) Play() error { return nil }

// Pause is a no-op for client-rendered audio.
func (m *MediaSource) Pause() {}

// SetPosition is a no-op for client-rendered audio.
func (m *MediaSource) SetPosition(seconds float64) {}
