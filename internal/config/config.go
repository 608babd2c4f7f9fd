package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Storage  StorageConfig  `toml:"storage"`
	Library  LibraryConfig  `toml:"library"`
	Logging  LoggingConfig  `toml:"logging"`
	Presence PresenceConfig `toml:"presence"`
	Tunnel   TunnelConfig   `toml:"tunnel"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port        string `toml:"port"`
	Host        string `toml:"host"`
	StaticDir   string `toml:"static_dir"`
	EnableCORS  bool   `toml:"enable_cors"`
	ReadTimeout int    `toml:"read_timeout_seconds"`
}

// StorageConfig contains persistent store configuration
type StorageConfig struct {
	Path string `toml:"path"`
}

// LibraryConfig contains music library configuration
type LibraryConfig struct {
	MediaDir         string   `toml:"media_dir"`
	ImportDir        string   `toml:"import_dir"`
	WatchImportDir   bool     `toml:"watch_import_dir"`
	SupportedFormats []string `toml:"supported_formats"`
	MaxUploadSizeMB  int64    `toml:"max_upload_size_mb"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// PresenceConfig contains now-playing presence (Discord Rich Presence) configuration
type PresenceConfig struct {
	Enabled       bool   `toml:"enabled"`
	ApplicationID string `toml:"application_id"`
	LargeImageKey string `toml:"large_image_key"`
}

// TunnelConfig contains ngrok tunnel configuration for remote access
type TunnelConfig struct {
	Enabled   bool   `toml:"enabled"`
	AuthToken string `toml:"auth_token"`
	Domain    string `toml:"domain"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			Host:        "0.0.0.0",
			StaticDir:   "./static",
			EnableCORS:  true,
			ReadTimeout: 30,
		},
		Storage: StorageConfig{
			Path: "./cadence.db",
		},
		Library: LibraryConfig{
			MediaDir:         "./media",
			ImportDir:        "./import",
			WatchImportDir:   true,
			SupportedFormats: []string{".mp3", ".flac", ".wav", ".m4a", ".ogg"},
			MaxUploadSizeMB:  256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Presence: PresenceConfig{
			Enabled:       false,
			ApplicationID: "",
			LargeImageKey: "cadence_logo",
		},
		Tunnel: TunnelConfig{
			Enabled:   false,
			AuthToken: "",
			Domain:    "",
		},
	}
}

// LoadConfig loads configuration from a TOML file, creating it with defaults
// on first run.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
		fmt.Printf("Created default configuration file at: %s\n", configPath)
		return cfg, nil
	}

	if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves the configuration to a TOML file
func (c *Config) SaveToFile(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	header := `# Cadence Music Library Configuration
# Edit the values below to customize your library settings.

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Storage.Path == "" {
		return fmt.Errorf("storage path cannot be empty")
	}

	if c.Library.MediaDir == "" {
		return fmt.Errorf("media directory cannot be empty")
	}
	if len(c.Library.SupportedFormats) == 0 {
		return fmt.Errorf("at least one supported audio format must be specified")
	}
	if c.Library.MaxUploadSizeMB < 1 {
		return fmt.Errorf("max upload size must be at least 1 MB")
	}
	if c.Library.WatchImportDir && c.Library.ImportDir == "" {
		return fmt.Errorf("import directory cannot be empty when watching is enabled")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	if c.Presence.Enabled && c.Presence.ApplicationID == "" {
		return fmt.Errorf("presence application_id is required when presence is enabled")
	}

	return nil
}

// GetAddress returns the full server address
func (c *Config) GetAddress() string {
	return c.Server.Host + ":" + c.Server.Port
}
