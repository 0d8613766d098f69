// Package config loads spadeboot settings from a TOML file, defaults and
// SPADEBOOT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SPADEBOOT_SPOTIFY_CLIENT_ID.
const EnvPrefix = "SPADEBOOT"

const configName = "spadeboot"

type Config struct {
	Spotify SpotifyConfig `mapstructure:"spotify"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Player  PlayerConfig  `mapstructure:"player"`
	Lyrics  LyricsConfig  `mapstructure:"lyrics"`
	Storage StorageConfig `mapstructure:"storage"`
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
}

type SpotifyConfig struct {
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	RedirectURL  string        `mapstructure:"redirect_url"`
	AuthURL      string        `mapstructure:"auth_url"`
	TokenURL     string        `mapstructure:"token_url"`
	APIBaseURL   string        `mapstructure:"api_base_url"`
	DeviceName   string        `mapstructure:"device_name"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type AuthConfig struct {
	// RefreshURL is the relay endpoint used when no client secret is configured.
	RefreshURL  string        `mapstructure:"refresh_url"`
	GuardWindow time.Duration `mapstructure:"guard_window"`
}

type PlayerConfig struct {
	HealthTimeout      time.Duration `mapstructure:"health_timeout"`
	ReconnectCeiling   int           `mapstructure:"reconnect_ceiling"`
	ReconnectBackoff   time.Duration `mapstructure:"reconnect_backoff"`
	CommandTimeout     time.Duration `mapstructure:"command_timeout"`
	TickInterval       time.Duration `mapstructure:"tick_interval"`
	SyncInterval       time.Duration `mapstructure:"sync_interval"`
	ResumeAfterRefresh bool          `mapstructure:"resume_after_refresh"`
}

type LyricsConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
	IntroBuffer    float64       `mapstructure:"intro_buffer"`
	OutroBuffer    float64       `mapstructure:"outro_buffer"`
	ScrollInterval time.Duration `mapstructure:"scroll_interval"`
	Workers        int           `mapstructure:"workers"`
	QueueSize      int           `mapstructure:"queue_size"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// defaults is the flat key/value view shared by Load and WriteDefault.
func defaults() map[string]any {
	return map[string]any{
		"spotify.client_id":     "",
		"spotify.client_secret": "",
		"spotify.redirect_url":  "http://127.0.0.1:8888/callback",
		"spotify.auth_url":      "https://accounts.spotify.com/authorize",
		"spotify.token_url":     "https://accounts.spotify.com/api/token",
		"spotify.api_base_url":  "https://api.spotify.com/v1",
		"spotify.device_name":   "",
		"spotify.poll_interval": time.Second,

		"auth.refresh_url":  "",
		"auth.guard_window": 5 * time.Minute,

		"player.health_timeout":       3 * time.Second,
		"player.reconnect_ceiling":    3,
		"player.reconnect_backoff":    time.Second,
		"player.command_timeout":      1500 * time.Millisecond,
		"player.tick_interval":        100 * time.Millisecond,
		"player.sync_interval":        3 * time.Second,
		"player.resume_after_refresh": true,

		"lyrics.base_url":        "http://127.0.0.1:5000",
		"lyrics.timeout":         10 * time.Second,
		"lyrics.max_retries":     3,
		"lyrics.retry_backoff":   500 * time.Millisecond,
		"lyrics.intro_buffer":    0.04,
		"lyrics.outro_buffer":    0.02,
		"lyrics.scroll_interval": 100 * time.Millisecond,
		"lyrics.workers":         2,
		"lyrics.queue_size":      16,

		"storage.path": "spadeboot.db",
		"server.addr":  "127.0.0.1:8080",

		"log.level":       "info",
		"log.development": false,
	}
}

// Load reads the configuration. An empty path searches ./spadeboot.toml and
// $HOME/.config/spadeboot/spadeboot.toml; a missing file there is not an error.
// An explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/spadeboot")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Player.ReconnectCeiling < 1 {
		errs = append(errs, errors.New("player.reconnect_ceiling must be at least 1"))
	}
	if c.Player.TickInterval <= 0 || c.Player.SyncInterval <= 0 {
		errs = append(errs, errors.New("player.tick_interval and player.sync_interval must be positive"))
	}
	if c.Lyrics.IntroBuffer < 0 || c.Lyrics.OutroBuffer < 0 || c.Lyrics.IntroBuffer+c.Lyrics.OutroBuffer >= 1 {
		errs = append(errs, errors.New("lyrics.intro_buffer and lyrics.outro_buffer must be non-negative and sum below 1"))
	}
	if c.Lyrics.Workers < 1 {
		errs = append(errs, errors.New("lyrics.workers must be at least 1"))
	}
	if c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// CanRefresh reports whether either refresh path is configured.
func (c *Config) CanRefresh() bool {
	return (c.Spotify.ClientID != "" && c.Spotify.ClientSecret != "") || c.Auth.RefreshURL != ""
}

// DefaultTOML renders the defaults as a TOML document. Durations are written
// in their string form so viper parses them back.
func DefaultTOML() ([]byte, error) {
	tree := map[string]map[string]any{}
	for key, value := range defaults() {
		section, name, _ := strings.Cut(key, ".")
		if tree[section] == nil {
			tree[section] = map[string]any{}
		}
		if d, ok := value.(time.Duration); ok {
			value = d.String()
		}
		tree[section][name] = value
	}
	return toml.Marshal(tree)
}

// WriteDefault writes the default configuration to path. It refuses to
// overwrite an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}
	data, err := DefaultTOML()
	if err != nil {
		return fmt.Errorf("render config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	// the file may end up holding a client secret
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
