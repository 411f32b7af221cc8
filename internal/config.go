package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Decks  DecksConfig       `yaml:"decks"`
	Watch  WatchConfig       `yaml:"watch"`
	Server ServerConfig      `yaml:"server"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Auth   AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Decks.Validate(); err != nil {
		return err
	}
	if err := c.Watch.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level" env:"DECKHAND_LOG_LEVEL"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port" env:"DECKHAND_HTTP_PORT"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// DecksConfig lists the deck definitions to track.
type DecksConfig struct {
	Paths     []string `yaml:"paths" env:"DECKHAND_DECKS" envSeparator:","`
	CacheSize int      `yaml:"cache_size" env:"DECKHAND_CACHE_SIZE"`
}

// Validate validates the decks configuration.
func (c *DecksConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Paths, validation.Each(validation.Required)),
		validation.Field(&c.CacheSize, validation.Min(0)),
	)
}

// WatchConfig controls the filesystem watcher.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled" env:"DECKHAND_WATCH"`
	Debounce time.Duration `yaml:"debounce" env:"DECKHAND_WATCH_DEBOUNCE"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0)), validation.Max(time.Minute)),
	)
}

// ServerConfig controls whether the HTTP server runs. When disabled the
// application resolves every deck once and exits.
type ServerConfig struct {
	Enabled bool `yaml:"enabled" env:"DECKHAND_SERVER"`
}

// SQLiteConfig holds the sync ledger database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path" env:"DECKHAND_SQLITE_PATH"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode" env:"DECKHAND_AUTH_MODE"`
	Token string `yaml:"token" env:"DECKHAND_AUTH_TOKEN"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Decks: DecksConfig{
			CacheSize: 256,
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: 200 * time.Millisecond,
		},
		Server: ServerConfig{
			Enabled: true,
		},
		SQLite: SQLiteConfig{
			Path: "./deckhand.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
