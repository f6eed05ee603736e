package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var allEnvKeys = []string{
	"FOTOMEMO_CONFIG", "PORT", "DB_PATH", "CORS_ORIGIN",
	"SYNC_MODE", "SYNC_DEBOUNCE", "DRIVE_FILE_NAME", "THUMBNAIL_WIDTH",
}

func clearEnv(t *testing.T) {
	t.Helper()
	saved := make(map[string]string)
	for _, k := range allEnvKeys {
		saved[k] = os.Getenv(k)
		os.Unsetenv(k)
	}
	t.Cleanup(func() {
		for _, k := range allEnvKeys {
			if v := saved[k]; v != "" {
				os.Setenv(k, v)
			} else {
				os.Unsetenv(k)
			}
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want %q", cfg.Port, "8080")
	}
	if cfg.DBPath != "fotomemo.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "fotomemo.db")
	}
	if cfg.SyncMode != "stub" {
		t.Errorf("SyncMode = %q, want %q", cfg.SyncMode, "stub")
	}
	if cfg.SyncDebounce != 2*time.Second {
		t.Errorf("SyncDebounce = %v, want 2s", cfg.SyncDebounce)
	}
	if cfg.DriveFileName != "foto_memo_data.json" {
		t.Errorf("DriveFileName = %q, want default", cfg.DriveFileName)
	}
	if cfg.ThumbnailWidth != 320 {
		t.Errorf("ThumbnailWidth = %d, want 320", cfg.ThumbnailWidth)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "fotomemo.yaml")
	content := `port: "9090"
db_path: /data/photos.db
sync_mode: drive
sync_debounce: 5s
thumbnail_width: 640
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	os.Setenv("FOTOMEMO_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want %q", cfg.Port, "9090")
	}
	if cfg.DBPath != "/data/photos.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.SyncMode != "drive" {
		t.Errorf("SyncMode = %q, want %q", cfg.SyncMode, "drive")
	}
	if cfg.SyncDebounce != 5*time.Second {
		t.Errorf("SyncDebounce = %v, want 5s", cfg.SyncDebounce)
	}
	if cfg.ThumbnailWidth != 640 {
		t.Errorf("ThumbnailWidth = %d, want 640", cfg.ThumbnailWidth)
	}
	// Unset file keys keep their defaults.
	if cfg.CORSOrigin != "*" {
		t.Errorf("CORSOrigin = %q, want %q", cfg.CORSOrigin, "*")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "fotomemo.yaml")
	if err := os.WriteFile(path, []byte("port: \"9090\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	os.Setenv("FOTOMEMO_CONFIG", path)
	os.Setenv("PORT", "7070")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "7070" {
		t.Errorf("Port = %q, want env value %q", cfg.Port, "7070")
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	clearEnv(t)
	os.Setenv("FOTOMEMO_CONFIG", "/nonexistent/fotomemo.yaml")

	if _, err := Load(); err == nil {
		t.Fatal("Load with missing named config file succeeded")
	}
}

func TestLoad_RejectsUnknownSyncMode(t *testing.T) {
	clearEnv(t)
	os.Setenv("SYNC_MODE", "dropbox")

	if _, err := Load(); err == nil {
		t.Fatal("Load with unknown sync mode succeeded")
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env.local")

	content := `# comment line
FOO_TEST_KEY=hello
BAR_TEST_KEY="quoted value"
BAZ_TEST_KEY='single quoted'

EMPTY_LINE_ABOVE=works
NO_VALUE_LINE
`
	if err := os.WriteFile(envFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	keys := []string{"FOO_TEST_KEY", "BAR_TEST_KEY", "BAZ_TEST_KEY", "EMPTY_LINE_ABOVE"}
	for _, k := range keys {
		os.Unsetenv(k)
	}
	t.Cleanup(func() {
		for _, k := range keys {
			os.Unsetenv(k)
		}
	})

	loadEnvFile(envFile)

	tests := []struct {
		key  string
		want string
	}{
		{"FOO_TEST_KEY", "hello"},
		{"BAR_TEST_KEY", "quoted value"},
		{"BAZ_TEST_KEY", "single quoted"},
		{"EMPTY_LINE_ABOVE", "works"},
	}
	for _, tt := range tests {
		if got := os.Getenv(tt.key); got != tt.want {
			t.Errorf("os.Getenv(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestLoadEnvFile_RealEnvTakesPrecedence(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env.local")

	if err := os.WriteFile(envFile, []byte("PRECEDENCE_TEST=from-file\n"), 0644); err != nil {
		t.Fatal(err)
	}

	os.Setenv("PRECEDENCE_TEST", "from-env")
	t.Cleanup(func() { os.Unsetenv("PRECEDENCE_TEST") })

	loadEnvFile(envFile)

	if got := os.Getenv("PRECEDENCE_TEST"); got != "from-env" {
		t.Errorf("env var = %q, want %q (real env should take precedence)", got, "from-env")
	}
}

func TestLoadEnvFile_MissingFile(t *testing.T) {
	loadEnvFile("/nonexistent/path/.env.local")
}

func TestEnvDuration_Invalid(t *testing.T) {
	os.Setenv("TEST_DUR_INVALID", "not-a-duration")
	t.Cleanup(func() { os.Unsetenv("TEST_DUR_INVALID") })

	got := envDuration("TEST_DUR_INVALID", 5*time.Second)
	if got != 5*time.Second {
		t.Errorf("envDuration with invalid value = %v, want fallback 5s", got)
	}
}

func TestEnvInt_Invalid(t *testing.T) {
	os.Setenv("TEST_INT_INVALID", "abc")
	t.Cleanup(func() { os.Unsetenv("TEST_INT_INVALID") })

	got := envInt("TEST_INT_INVALID", 42)
	if got != 42 {
		t.Errorf("envInt with invalid value = %d, want fallback 42", got)
	}
}
