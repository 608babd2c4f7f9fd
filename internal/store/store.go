package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"cadence/pkg/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// Collection names used by the snapshot store.
const (
	CollectionSongs     = "songs"
	CollectionPlaylists = "playlists"
)

// SettingBackground is the settings key for the background image preference.
// It lives outside the two main collections and carries no consistency
// guarantees with them.
const SettingBackground = "background_url"

// Store is a SQLite-backed collection-per-entity key-value store. Each
// collection table holds JSON-encoded records keyed by id, and every write is
// a full snapshot replacement: the collection is cleared and rewritten inside
// a single transaction, so a failed write leaves the previously committed
// snapshot intact.
type Store struct {
	conn   *sql.DB
	logger *logrus.Logger

	// One mutex per collection serializes snapshot writes so an older
	// in-flight snapshot can never land after a newer one.
	songsMu     sync.Mutex
	playlistsMu sync.Mutex
}

// Open opens (or creates) the store at the given path and ensures all tables
// exist. It is idempotent and safe to call on an existing database. Caller
// should Close() the store when finished.
func Open(path string, logger *logrus.Logger) (*Store, error) {
	conn, err := sql.Open("sqlite3", path+"?cache=shared&mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works better with few connections
	conn.SetMaxOpenConns(5)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(15 * time.Minute)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA temp_store=memory;",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			logger.WithError(err).WithField("pragma", pragma).Warn("Failed to set pragma")
		}
	}

	s := &Store{
		conn:   conn,
		logger: logger,
	}

	if err := s.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.WithField("db_path", path).Info("Store initialized")
	return s, nil
}

// createTables creates the collection and settings tables if they do not
// already exist. Safe to call multiple times.
func (s *Store) createTables() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS songs (
			id TEXT PRIMARY KEY,
			record TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS playlists (
			id TEXT PRIMARY KEY,
			record TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
	}

	for _, table := range tables {
		if _, err := s.conn.Exec(table); err != nil {
			return err
		}
	}
	return nil
}

// replaceAll clears the named collection table and rewrites it from the given
// id/record pairs in one transaction.
func (s *Store) replaceAll(collection string, ids []string, records [][]byte) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin snapshot write: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM " + collection); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to clear %s: %w", collection, err)
	}

	stmt, err := tx.Prepare("INSERT INTO " + collection + " (id, record) VALUES (?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare %s insert: %w", collection, err)
	}
	defer stmt.Close()

	for i, id := range ids {
		if _, err := stmt.Exec(id, string(records[i])); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to write %s record %s: %w", collection, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s snapshot: %w", collection, err)
	}

	s.logger.WithFields(logrus.Fields{
		"collection": collection,
		"records":    len(ids),
	}).Debug("Snapshot written")
	return nil
}

// readAll returns the raw JSON records of a collection. Empty on first run.
func (s *Store) readAll(collection string) ([][]byte, error) {
	rows, err := s.conn.Query("SELECT record FROM " + collection)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", collection, err)
	}
	defer rows.Close()

	var records [][]byte
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, err
		}
		records = append(records, []byte(record))
	}
	return records, rows.Err()
}

// ReplaceSongs atomically replaces the songs collection with the given set.
func (s *Store) ReplaceSongs(songs []models.Song) error {
	s.songsMu.Lock()
	defer s.songsMu.Unlock()

	ids := make([]string, len(songs))
	records := make([][]byte, len(songs))
	for i, song := range songs {
		data, err := json.Marshal(song)
		if err != nil {
			return fmt.Errorf("failed to encode song %s: %w", song.ID, err)
		}
		ids[i] = song.ID
		records[i] = data
	}
	return s.replaceAll(CollectionSongs, ids, records)
}

// ReadSongs returns every stored song, in no particular order.
func (s *Store) ReadSongs() ([]models.Song, error) {
	records, err := s.readAll(CollectionSongs)
	if err != nil {
		return nil, err
	}

	songs := make([]models.Song, 0, len(records))
	for _, record := range records {
		var song models.Song
		if err := json.Unmarshal(record, &song); err != nil {
			return nil, fmt.Errorf("failed to decode song record: %w", err)
		}
		songs = append(songs, song)
	}
	return songs, nil
}

// ReplacePlaylists atomically replaces the playlists collection.
func (s *Store) ReplacePlaylists(playlists []models.Playlist) error {
	s.playlistsMu.Lock()
	defer s.playlistsMu.Unlock()

	ids := make([]string, len(playlists))
	records := make([][]byte, len(playlists))
	for i, playlist := range playlists {
		data, err := json.Marshal(playlist)
		if err != nil {
			return fmt.Errorf("failed to encode playlist %s: %w", playlist.ID, err)
		}
		ids[i] = playlist.ID
		records[i] = data
	}
	return s.replaceAll(CollectionPlaylists, ids, records)
}

// ReadPlaylists returns every stored playlist, in no particular order.
func (s *Store) ReadPlaylists() ([]models.Playlist, error) {
	records, err := s.readAll(CollectionPlaylists)
	if err != nil {
		return nil, err
	}

	playlists := make([]models.Playlist, 0, len(records))
	for _, record := range records {
		var playlist models.Playlist
		if err := json.Unmarshal(record, &playlist); err != nil {
			return nil, fmt.Errorf("failed to decode playlist record: %w", err)
		}
		playlists = append(playlists, playlist)
	}
	return playlists, nil
}

// SetSetting stores a single settings value under the given key.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.conn.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Error("Failed to write setting")
	}
	return err
}

// GetSetting returns the stored value for key, or "" if none exists.
func (s *Store) GetSetting(key string) (string, error) {
	var value string
	err := s.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// DeleteSetting removes a settings value. Deleting a missing key is a no-op.
func (s *Store) DeleteSetting(key string) error {
	_, err := s.conn.Exec("DELETE FROM settings WHERE key = ?", key)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
