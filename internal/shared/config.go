package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Tidal    TidalConfig    `toml:"tidal"`
	Limiter  LimiterConfig  `toml:"limiter"`
	Breaker  BreakerConfig  `toml:"breaker"`
	Sync     SyncConfig     `toml:"sync"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	LogLevel string         `toml:"log_level"`
}

// TidalConfig contains TIDAL OAuth client credentials and endpoints.
type TidalConfig struct {
	ClientID      string   `toml:"client_id"`
	ClientSecret  string   `toml:"client_secret"`
	RedirectURI   string   `toml:"redirect_uri"`
	Scopes        []string `toml:"scopes"`
	AuthURL       string   `toml:"auth_url"`
	TokenURL      string   `toml:"token_url"`
	DeviceAuthURL string   `toml:"device_auth_url"`
	APIURL        string   `toml:"api_url"`
	CountryCode   string   `toml:"country_code"`
	Timeout       int      `toml:"timeout_seconds"`
}

// LimiterConfig configures the sliding window shared by all outbound TIDAL calls.
type LimiterConfig struct {
	MaxCalls      int     `toml:"max_calls"`
	PeriodSeconds float64 `toml:"period_seconds"`
}

// Period returns the window length as a [time.Duration].
func (l LimiterConfig) Period() time.Duration {
	return time.Duration(l.PeriodSeconds * float64(time.Second))
}

// BreakerConfig configures the circuit breaker guarding the TIDAL API.
type BreakerConfig struct {
	MaxFailures        uint32 `toml:"max_failures"`
	OpenTimeoutSeconds int    `toml:"open_timeout_seconds"`
}

// SyncConfig contains reconciliation settings.
type SyncConfig struct {
	FavoritesName string   `toml:"favorites_name"`
	MixesName     string   `toml:"mixes_name"`
	MixMarkers    []string `toml:"mix_markers"`
	PageSize      int      `toml:"page_size"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains settings for the local OAuth callback server.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep their defaults, and environment overrides are applied last.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	config.ApplyEnv()
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// LoadEnvFile loads variables from a dotenv file into the process environment.
// A missing file is not an error; variables already set are not overwritten.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides secrets and paths from TIDX_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("TIDX_CLIENT_ID"); v != "" {
		c.Tidal.ClientID = v
	}
	if v := os.Getenv("TIDX_CLIENT_SECRET"); v != "" {
		c.Tidal.ClientSecret = v
	}
	if v := os.Getenv("TIDX_DATABASE_PATH"); v != "" {
		c.Database.Path = v
	}
}

// Validate checks the settings the sync core cannot run without.
func (c *Config) Validate() error {
	if c.Tidal.ClientID == "" {
		return fmt.Errorf("%w: tidal.client_id", ErrMissingCredentials)
	}
	if c.Limiter.MaxCalls <= 0 || c.Limiter.PeriodSeconds <= 0 {
		return fmt.Errorf("%w: limiter.max_calls and limiter.period_seconds must be positive", ErrInvalidConfig)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path", ErrInvalidConfig)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
