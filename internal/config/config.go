// Package config provides centralized configuration for the fotomemo
// server. Values come from an optional YAML file, overridden by
// environment variables, with sensible defaults underneath.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all server configuration values.
type Config struct {
	// Port is the HTTP server listen port.
	Port string `yaml:"port"`

	// DBPath is the path to the SQLite database file.
	DBPath string `yaml:"db_path"`

	// CORSOrigin is the allowed CORS origin. Defaults to "*".
	CORSOrigin string `yaml:"cors_origin"`

	// SyncMode selects the cloud transport: "drive" or "stub".
	SyncMode string `yaml:"sync_mode"`

	// SyncDebounce is the quiet period before a metadata push.
	SyncDebounce time.Duration `yaml:"sync_debounce"`

	// DriveFileName is the name of the metadata document on the drive.
	DriveFileName string `yaml:"drive_file_name"`

	// ThumbnailWidth is the pixel width of served thumbnails.
	ThumbnailWidth int `yaml:"thumbnail_width"`
}

// Load reads configuration in three layers: defaults, then the YAML file
// named by FOTOMEMO_CONFIG (if set and present), then environment
// variable overrides. A .env.local file in the working directory fills
// in environment variables that are not already set.
func Load() (Config, error) {
	loadEnvFile(".env.local")

	cfg := Config{
		Port:           "8080",
		DBPath:         "fotomemo.db",
		CORSOrigin:     "*",
		SyncMode:       "stub",
		SyncDebounce:   2 * time.Second,
		DriveFileName:  "foto_memo_data.json",
		ThumbnailWidth: 320,
	}

	if path := os.Getenv("FOTOMEMO_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.Port = envOr("PORT", cfg.Port)
	cfg.DBPath = envOr("DB_PATH", cfg.DBPath)
	cfg.CORSOrigin = envOr("CORS_ORIGIN", cfg.CORSOrigin)
	cfg.SyncMode = envOr("SYNC_MODE", cfg.SyncMode)
	cfg.SyncDebounce = envDuration("SYNC_DEBOUNCE", cfg.SyncDebounce)
	cfg.DriveFileName = envOr("DRIVE_FILE_NAME", cfg.DriveFileName)
	cfg.ThumbnailWidth = envInt("THUMBNAIL_WIDTH", cfg.ThumbnailWidth)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadEnvFile reads KEY=VALUE lines into the environment. Variables
// already set keep their values; missing files are ignored.
func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		if key == "" || os.Getenv(key) != "" {
			continue
		}
		os.Setenv(key, value)
	}
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c Config) validate() error {
	switch c.SyncMode {
	case "drive", "stub":
	default:
		return fmt.Errorf("unknown sync mode %q", c.SyncMode)
	}
	if c.SyncDebounce <= 0 {
		return fmt.Errorf("sync debounce must be positive, got %s", c.SyncDebounce)
	}
	if c.ThumbnailWidth <= 0 {
		return fmt.Errorf("thumbnail width must be positive, got %d", c.ThumbnailWidth)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
