package model

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DesktopPermission mirrors the browser notification permission states.
type DesktopPermission string

const (
	PermissionDefault DesktopPermission = "default"
	PermissionGranted DesktopPermission = "granted"
	PermissionDenied  DesktopPermission = "denied"
)

// APIConfig holds the REST backend settings.
type APIConfig struct {
	// BaseURL is the root of the backend API (e.g., https://api.example.com/api).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds a single HTTP request.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// MaxRetries is how often a rate-limited (429) request is retried.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
}

// RealtimeConfig holds the WebSocket transport settings.
type RealtimeConfig struct {
	// URL is the WebSocket endpoint. Derived from the API base URL when empty.
	URL string `mapstructure:"url" yaml:"url"`

	MinBackoffMS int `mapstructure:"min_backoff_ms" yaml:"min_backoff_ms"`
	MaxBackoffMS int `mapstructure:"max_backoff_ms" yaml:"max_backoff_ms"`

	HandshakeTimeoutSec int `mapstructure:"handshake_timeout_sec" yaml:"handshake_timeout_sec"`
}

// SessionConfig identifies the signed-in user.
type SessionConfig struct {
	UserID   string `mapstructure:"user_id" yaml:"user_id"`
	TokenKey string `mapstructure:"token_key" yaml:"token_key"`
}

// SyncConfig controls the REST polling leg of the synchronizer.
type SyncConfig struct {
	RefreshIntervalSec int `mapstructure:"refresh_interval_sec" yaml:"refresh_interval_sec"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme                string            `mapstructure:"theme" yaml:"theme"`
	DesktopNotifications DesktopPermission `mapstructure:"desktop_notifications" yaml:"desktop_notifications"`
}

// StoreConfig points at the local notification cache.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig selects the logger flavour.
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API      APIConfig      `mapstructure:"api" yaml:"api"`
	Realtime RealtimeConfig `mapstructure:"realtime" yaml:"realtime"`
	Session  SessionConfig  `mapstructure:"session" yaml:"session"`
	Sync     SyncConfig     `mapstructure:"sync" yaml:"sync"`
	Display  DisplayConfig  `mapstructure:"display" yaml:"display"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// DefaultTokenKey is the keyring key the bearer token is stored under.
const DefaultTokenKey = "auth-token"

// envPrefix namespaces environment overrides (SHIPDESK_API_BASE_URL, ...).
const envPrefix = "SHIPDESK"

// configDir returns ~/.config/shipdesk, or the working directory when the
// home directory cannot be resolved.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "shipdesk")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/shipdesk/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			BaseURL:    "http://localhost:5000/api",
			TimeoutSec: 30,
			MaxRetries: 3,
		},
		Realtime: RealtimeConfig{
			MinBackoffMS:        500,
			MaxBackoffMS:        30000,
			HandshakeTimeoutSec: 10,
		},
		Session: SessionConfig{
			TokenKey: DefaultTokenKey,
		},
		Sync: SyncConfig{
			RefreshIntervalSec: 60,
		},
		Display: DisplayConfig{
			Theme:                "default",
			DesktopNotifications: PermissionDefault,
		},
		Store: StoreConfig{
			Path: filepath.Join(configDir(), "cache.db"),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := defaultAppConfig()
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.timeout_sec", d.API.TimeoutSec)
	v.SetDefault("api.max_retries", d.API.MaxRetries)
	v.SetDefault("realtime.url", "")
	v.SetDefault("realtime.min_backoff_ms", d.Realtime.MinBackoffMS)
	v.SetDefault("realtime.max_backoff_ms", d.Realtime.MaxBackoffMS)
	v.SetDefault("realtime.handshake_timeout_sec", d.Realtime.HandshakeTimeoutSec)
	v.SetDefault("session.user_id", "")
	v.SetDefault("session.token_key", d.Session.TokenKey)
	v.SetDefault("sync.refresh_interval_sec", d.Sync.RefreshIntervalSec)
	v.SetDefault("display.theme", d.Display.Theme)
	v.SetDefault("display.desktop_notifications", string(d.Display.DesktopNotifications))
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A .env file in the working directory and SHIPDESK_* environment variables
// override file values. A missing file yields the defaults.
func LoadConfig(path string) (*AppConfig, error) {
	// A missing .env is the common case outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *fs.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Session.TokenKey == "" {
		cfg.Session.TokenKey = DefaultTokenKey
	}
	switch cfg.Display.DesktopNotifications {
	case PermissionGranted, PermissionDenied, PermissionDefault:
	default:
		cfg.Display.DesktopNotifications = PermissionDefault
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("realtime", cfg.Realtime)
	v.Set("session", cfg.Session)
	v.Set("sync", cfg.Sync)
	v.Set("display", cfg.Display)
	v.Set("store", cfg.Store)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// RealtimeURL returns the configured WebSocket URL, deriving
// ws(s)://host/.../ws from the API base URL when none is set.
func (c *AppConfig) RealtimeURL() string {
	if c.Realtime.URL != "" {
		return c.Realtime.URL
	}

	base := strings.TrimRight(c.API.BaseURL, "/")
	base = strings.TrimSuffix(base, "/api")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws"
}
