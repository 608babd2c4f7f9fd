package server

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"cadence/internal/config"
	"cadence/internal/library"
	"cadence/internal/metadata"
	"cadence/internal/player"
	"cadence/internal/presence"
	"cadence/internal/store"
	"cadence/internal/tunnel"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// AppServer wires the library, persistent store and player behind the HTTP
// API and owns the supporting services (import watcher, presence, tunnel).
type AppServer struct {
	config  *config.Config
	store   *store.Store
	library *library.Library
	player  *player.Player
	prober  *metadata.Prober
	logger  *logrus.Logger

	presence       *presence.Service
	presenceStates <-chan player.State
	tunnelService  *tunnel.Service
	watcher        *fsnotify.Watcher

	mux        *http.ServeMux
	httpServer *http.Server
}

// NewAppServer creates the application server and its collaborators.
func NewAppServer(cfg *config.Config, st *store.Store, logger *logrus.Logger) (*AppServer, error) {
	prober := metadata.NewProber(cfg.Library.SupportedFormats, logger)
	lib := library.New(st, prober, cfg.Library.MediaDir, logger)
	if err := lib.Load(); err != nil {
		return nil, err
	}

	source := player.NewMediaSource(cfg.Library.MediaDir, prober)
	pl := player.New(lib, source, logger)

	tunnelSvc, err := tunnel.NewService(&cfg.Tunnel, logger)
	if err != nil {
		logger.WithError(err).Warn("Tunnel not available")
		tunnelSvc = nil
	}

	srv := &AppServer{
		config:        cfg,
		store:         st,
		library:       lib,
		player:        pl,
		prober:        prober,
		logger:        logger,
		presence:      presence.NewService(&cfg.Presence, logger),
		tunnelService: tunnelSvc,
		mux:           http.NewServeMux(),
	}
	srv.setupRoutes()
	return srv, nil
}

// Library exposes the library model, mainly for the import watcher and tests.
func (as *AppServer) Library() *library.Library {
	return as.library
}

// Player exposes the playback state machine.
func (as *AppServer) Player() *player.Player {
	return as.player
}

func (as *AppServer) setupRoutes() {
	as.mux.HandleFunc("/", as.handleHome)
	as.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(as.config.Server.StaticDir))))
	as.mux.HandleFunc("/media/", as.handleMedia)
	as.mux.HandleFunc("/health", as.handleHealthCheck)

	as.mux.HandleFunc("/api/songs", as.handleSongs)
	as.mux.HandleFunc("/api/songs/", as.handleSongByID)

	as.mux.HandleFunc("/api/playlists", as.handlePlaylists)
	as.mux.HandleFunc("/api/playlists/", as.handlePlaylistByID)

	as.mux.HandleFunc("/api/player/state", as.handlePlayerState)
	as.mux.HandleFunc("/api/player/route", as.handlePlayerRoute)
	as.mux.HandleFunc("/api/player/select", as.handlePlayerSelect)
	as.mux.HandleFunc("/api/player/play", as.handlePlayerPlay)
	as.mux.HandleFunc("/api/player/pause", as.handlePlayerPause)
	as.mux.HandleFunc("/api/player/next", as.handlePlayerNext)
	as.mux.HandleFunc("/api/player/previous", as.handlePlayerPrevious)
	as.mux.HandleFunc("/api/player/advance", as.handlePlayerAdvance)
	as.mux.HandleFunc("/api/player/seek", as.handlePlayerSeek)
	as.mux.HandleFunc("/api/player/progress", as.handlePlayerProgress)
	as.mux.HandleFunc("/api/player/volume", as.handlePlayerVolume)
	as.mux.HandleFunc("/api/player/mute", as.handlePlayerMute)
	as.mux.HandleFunc("/api/player/shuffle", as.handlePlayerShuffle)
	as.mux.HandleFunc("/api/player/loop", as.handlePlayerLoop)
	as.mux.HandleFunc("/api/player/media-key", as.handleMediaKey)

	as.mux.HandleFunc("/api/settings/background", as.handleBackground)
}

// Handler returns the HTTP handler with middleware applied.
func (as *AppServer) Handler() http.Handler {
	var handler http.Handler = as.mux
	handler = as.corsMiddleware(handler)
	handler = as.requestLoggingMiddleware(handler)
	handler = as.panicRecoveryMiddleware(handler)
	return handler
}

// Start runs the HTTP server, the import watcher, presence and the tunnel.
// It blocks until the server stops.
func (as *AppServer) Start() error {
	if as.config.Library.WatchImportDir {
		if err := as.startImportWatcher(); err != nil {
			as.logger.WithError(err).Warn("Could not start import watcher")
		}
	}

	if as.presence.IsEnabled() {
		if err := as.presence.Connect(); err != nil {
			as.logger.WithError(err).Warn("Presence not available")
		} else {
			as.presenceStates = as.player.Subscribe()
			go as.presence.Watch(as.presenceStates)
		}
	}

	localAddress := "http://" + as.config.GetAddress()
	if as.tunnelService != nil {
		if err := as.tunnelService.Start(context.Background(), localAddress); err != nil {
			as.logger.WithError(err).Warn("Could not start tunnel")
		}
	}

	as.logger.WithFields(logrus.Fields{
		"address": localAddress,
		"songs":   len(as.library.Songs()),
	}).Info("Cadence server starting")

	as.httpServer = &http.Server{
		Addr:        as.config.GetAddress(),
		Handler:     as.Handler(),
		ReadTimeout: time.Duration(as.config.Server.ReadTimeout) * time.Second,
	}
	err := as.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server and releases every registration
// acquired in Start.
func (as *AppServer) Shutdown() {
	as.logger.Info("Shutting down")

	as.stopImportWatcher()

	if as.presenceStates != nil {
		as.player.Unsubscribe(as.presenceStates)
		as.presenceStates = nil
	}
	as.presence.Disconnect()

	if as.tunnelService != nil {
		as.tunnelService.Stop()
	}

	if as.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		as.httpServer.Shutdown(ctx)
	}

	as.logger.Info("Shutdown complete")
}

// handleHome serves the SPA index file from the configured static dir.
func (as *AppServer) handleHome(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(as.config.Server.StaticDir, "index.html"))
}

// handleMedia serves stored audio payloads. http.ServeFile provides the Range
// support the client's seek bar relies on.
func (as *AppServer) handleMedia(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/media/")
	name = filepath.Base(name) // no traversal outside the media dir
	if name == "" || name == "." {
		as.respondWithError(w, r, http.StatusBadRequest, "Invalid media path", nil)
		return
	}

	path := filepath.Join(as.config.Library.MediaDir, name)
	w.Header().Set("Content-Type", metadata.ContentType(path))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, path)
}
