package server

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// startImportWatcher watches the import directory and pulls any audio file
// dropped there into the library. Imported files are removed from the import
// directory once stored.
func (as *AppServer) startImportWatcher() error {
	if err := os.MkdirAll(as.config.Library.ImportDir, 0755); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(as.config.Library.ImportDir); err != nil {
		watcher.Close()
		return err
	}
	as.watcher = watcher

	// Pick up files that were already waiting before the watcher started.
	go as.importExistingFiles()
	go as.watchImportDir()

	as.logger.WithField("dir", as.config.Library.ImportDir).Info("Import watcher started")
	return nil
}

func (as *AppServer) stopImportWatcher() {
	if as.watcher != nil {
		as.watcher.Close()
		as.watcher = nil
	}
}

func (as *AppServer) importExistingFiles() {
	entries, err := os.ReadDir(as.config.Library.ImportDir)
	if err != nil {
		as.logger.WithError(err).Warn("Could not scan import directory")
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		as.importFile(filepath.Join(as.config.Library.ImportDir, entry.Name()))
	}
}

func (as *AppServer) watchImportDir() {
	for {
		select {
		case event, ok := <-as.watcher.Events:
			if !ok {
				return
			}
			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) {
				// Give the writer a moment to finish; editors and
				// downloads emit several writes per file.
				go func(path string) {
					time.Sleep(500 * time.Millisecond)
					as.importFile(path)
				}(event.Name)
			}
		case err, ok := <-as.watcher.Errors:
			if !ok {
				return
			}
			as.logger.WithError(err).Warn("Import watcher error")
		}
	}
}

// importFile adds one file from the import directory to the library. Non-audio
// files and files that vanished before we got to them are skipped quietly.
func (as *AppServer) importFile(path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	if !as.prober.IsAudioFile(path) {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		as.logger.WithError(err).WithField("file", path).Warn("Could not read import file")
		return
	}

	song, err := as.library.AddSong(filepath.Base(path), data)
	if err != nil {
		as.logger.WithError(err).WithField("file", path).Warn("Import failed")
		return
	}

	if err := os.Remove(path); err != nil {
		as.logger.WithError(err).WithField("file", path).Warn("Could not remove imported file")
	}

	as.logger.WithFields(logrus.Fields{
		"song_id": song.ID,
		"name":    song.Name,
		"artist":  song.Artist,
	}).Info("Song imported")
}
