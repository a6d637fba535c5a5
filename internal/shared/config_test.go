package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./tidx.db" {
			t.Errorf("expected database path ./tidx.db, got %s", config.Database.Path)
		}

		if config.Limiter.MaxCalls != 5 {
			t.Errorf("expected limiter max_calls 5, got %d", config.Limiter.MaxCalls)
		}

		if config.Limiter.Period() != time.Second {
			t.Errorf("expected limiter period 1s, got %v", config.Limiter.Period())
		}

		if config.Sync.FavoritesName != "Tidal Tracks" {
			t.Errorf("expected favorites playlist name 'Tidal Tracks', got %s", config.Sync.FavoritesName)
		}

		if len(config.Sync.MixMarkers) != 2 {
			t.Errorf("expected 2 mix markers, got %v", config.Sync.MixMarkers)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
path = "/custom/path.db"

[tidal]
client_id = "test_client_id"
client_secret = "test_secret"

[limiter]
max_calls = 10
period_seconds = 2.5
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}
		if config.Tidal.ClientID != "test_client_id" {
			t.Errorf("expected client_id test_client_id, got %s", config.Tidal.ClientID)
		}
		if config.Limiter.Period() != 2500*time.Millisecond {
			t.Errorf("expected period 2.5s, got %v", config.Limiter.Period())
		}
		if config.Tidal.TokenURL == "" {
			t.Error("expected token_url to keep its default")
		}
	})

	t.Run("LoadConfig Missing File", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
		if !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("Env Overrides", func(t *testing.T) {
		tmpDir := t.TempDir()
		envPath := filepath.Join(tmpDir, ".env")
		if err := os.WriteFile(envPath, []byte("TIDX_CLIENT_ID=from_env\nTIDX_DATABASE_PATH=/env/tidx.db\n"), 0644); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}

		t.Setenv("TIDX_CLIENT_ID", "")
		t.Setenv("TIDX_DATABASE_PATH", "")
		os.Unsetenv("TIDX_CLIENT_ID")
		os.Unsetenv("TIDX_DATABASE_PATH")

		if err := LoadEnvFile(envPath); err != nil {
			t.Fatalf("failed to load env file: %v", err)
		}

		config := DefaultConfig()
		config.ApplyEnv()

		if config.Tidal.ClientID != "from_env" {
			t.Errorf("expected client id from env, got %s", config.Tidal.ClientID)
		}
		if config.Database.Path != "/env/tidx.db" {
			t.Errorf("expected database path from env, got %s", config.Database.Path)
		}
	})

	t.Run("LoadEnvFile Missing", func(t *testing.T) {
		if err := LoadEnvFile(filepath.Join(t.TempDir(), ".env")); err != nil {
			t.Errorf("missing env file should not error, got %v", err)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		config := DefaultConfig()
		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate, got %v", err)
		}

		config.Tidal.ClientID = ""
		if err := config.Validate(); !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}

		config = DefaultConfig()
		config.Limiter.MaxCalls = 0
		if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}
