package main

import (
	"os"
	"os/signal"
	"syscall"

	"cadence/internal/config"
	"cadence/internal/server"
	"cadence/internal/store"

	"github.com/sirupsen/logrus"
)

func main() {
	configPath := "./config.toml"

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.WithError(err).Fatal("Error loading configuration")
	}
	applyLoggingConfig(logger, &cfg.Logging)

	if err := os.MkdirAll(cfg.Library.MediaDir, 0755); err != nil {
		logger.WithError(err).Fatal("Error creating media directory")
	}

	st, err := store.Open(cfg.Storage.Path, logger)
	if err != nil {
		logger.WithError(err).Fatal("Error opening store")
	}
	defer st.Close()

	appServer, err := server.NewAppServer(cfg, st, logger)
	if err != nil {
		logger.WithError(err).Fatal("Error creating server")
	}

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := appServer.Start(); err != nil {
			logger.WithError(err).Fatal("Server stopped unexpectedly")
		}
	}()

	<-c

	logger.Info("Received shutdown signal")
	appServer.Shutdown()
}

// applyLoggingConfig adjusts the startup logger to the configured level and
// format.
func applyLoggingConfig(logger *logrus.Logger, cfg *config.LoggingConfig) {
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
}
