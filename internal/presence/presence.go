package presence

import (
	"fmt"
	"time"

	"cadence/internal/config"
	"cadence/internal/player"

	"github.com/hugolgst/rich-go/client"
	"github.com/sirupsen/logrus"
)

// Service pushes now-playing metadata (title, artist, progress) to the OS
// surface via Discord Rich Presence whenever the current song or play state
// changes.
type Service struct {
	config    *config.PresenceConfig
	logger    *logrus.Logger
	enabled   bool
	connected bool
}

// NewService creates a new presence service.
func NewService(cfg *config.PresenceConfig, logger *logrus.Logger) *Service {
	return &Service{
		config:  cfg,
		logger:  logger,
		enabled: cfg.Enabled,
	}
}

// Connect initializes the presence connection. Safe to call when disabled or
// already connected.
func (s *Service) Connect() error {
	if !s.enabled || s.connected {
		return nil
	}

	if err := client.Login(s.config.ApplicationID); err != nil {
		return fmt.Errorf("failed to connect presence: %w", err)
	}
	s.connected = true
	s.logger.Info("Presence connected")

	return s.setIdle()
}

// Disconnect closes the presence connection.
func (s *Service) Disconnect() {
	if !s.enabled || !s.connected {
		return
	}
	client.Logout()
	s.connected = false
	s.logger.Info("Presence disconnected")
}

// Watch consumes player state updates until the channel is closed. The caller
// owns the subscription: it subscribes before starting Watch and unsubscribes
// on shutdown, which ends this loop.
func (s *Service) Watch(states <-chan player.State) {
	for state := range states {
		if err := s.update(state); err != nil {
			s.logger.WithError(err).Debug("Presence update failed")
		}
	}
}

// update pushes one state snapshot.
func (s *Service) update(state player.State) error {
	if !s.enabled || !s.connected {
		return nil
	}
	if state.Song == nil {
		return s.setIdle()
	}

	smallImage, smallText := "pause", "Paused"
	if state.IsPlaying {
		smallImage, smallText = "play", "Playing"
	}

	activity := client.Activity{
		Details:    state.Song.Name,
		State:      "by " + state.Song.Artist,
		LargeImage: s.config.LargeImageKey,
		LargeText:  "Cadence",
		SmallImage: smallImage,
		SmallText:  smallText,
	}

	if state.IsPlaying && state.Duration > 0 {
		now := time.Now()
		start := now.Add(-time.Duration(state.Progress * float64(time.Second)))
		end := now.Add(time.Duration((state.Duration - state.Progress) * float64(time.Second)))
		activity.Timestamps = &client.Timestamps{
			Start: &start,
			End:   &end,
		}
	}

	if err := client.SetActivity(activity); err != nil {
		return fmt.Errorf("failed to set presence activity: %w", err)
	}
	return nil
}

// setIdle shows the browsing state before any song has been selected.
func (s *Service) setIdle() error {
	activity := client.Activity{
		Details:    "Browsing the library",
		State:      "Not playing",
		LargeImage: s.config.LargeImageKey,
		LargeText:  "Cadence",
		SmallImage: "idle",
		SmallText:  "Idle",
	}
	if err := client.SetActivity(activity); err != nil {
		return fmt.Errorf("failed to set idle presence: %w", err)
	}
	return nil
}

// IsEnabled returns whether presence is enabled in configuration.
func (s *Service) IsEnabled() bool {
	return s.enabled
}
