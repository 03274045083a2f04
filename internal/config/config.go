// Package config collects bookhaven settings from defaults, an optional
// config.yaml, environment variables and CLI overrides via viper.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Configuration keys.
const (
	KeyDatabaseDriver        = "database.driver"
	KeyDatabaseDSN           = "database.dsn"
	KeyGoogleBooksAPIKey     = "googlebooks.apikey"
	KeyGoogleBooksBaseURL    = "googlebooks.baseurl"
	KeyGoogleBooksTimeout    = "googlebooks.timeout"
	KeyGoogleBooksRate       = "googlebooks.rate"
	KeyServerAddr            = "server.addr"
	KeyTelemetryOTLPEndpoint = "telemetry.otlpendpoint"
	KeyLogLevel              = "log.level"
)

// Config is the typed view of the viper settings.
type Config struct {
	Database    DatabaseConfig
	GoogleBooks GoogleBooksConfig
	Server      ServerConfig
	Telemetry   TelemetryConfig
	Log         LogConfig
}

// DatabaseConfig selects the SQL backend.
type DatabaseConfig struct {
	Driver string
	DSN    string
}

// GoogleBooksConfig configures the catalog client.
type GoogleBooksConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	// Rate is the number of requests per second; 0 disables pacing.
	Rate float64
}

// ServerConfig configures the JSON API.
type ServerConfig struct {
	Addr string
}

// TelemetryConfig configures trace export. An empty endpoint disables export.
type TelemetryConfig struct {
	OTLPEndpoint string
}

// LogConfig configures logging.
type LogConfig struct {
	Level slog.Level
}

// SetDefaults registers default values for every key.
func SetDefaults() {
	viper.SetDefault(KeyDatabaseDriver, "sqlite")
	viper.SetDefault(KeyDatabaseDSN, "./bookhaven.db")
	viper.SetDefault(KeyGoogleBooksBaseURL, "https://www.googleapis.com/books/v1")
	viper.SetDefault(KeyGoogleBooksTimeout, "10s")
	viper.SetDefault(KeyGoogleBooksRate, 1.0)
	viper.SetDefault(KeyServerAddr, ":8080")
	viper.SetDefault(KeyTelemetryOTLPEndpoint, "")
	viper.SetDefault(KeyLogLevel, "info")
}

// InitConfig sets defaults, enables environment variables and reads the
// config file. configFile may be empty, in which case config.yaml is looked
// up in the working directory; a missing file is not an error.
func InitConfig(configFile string) error {
	SetDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	// Bind specific environment variables to config keys
	if err := viper.BindEnv(KeyGoogleBooksAPIKey, "GOOGLE_BOOKS_API_KEY"); err != nil {
		return fmt.Errorf("failed to bind environment variable: %w", err)
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			slog.Debug("Config file not found, using defaults")
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	slog.Debug("Loaded config file", "path", viper.ConfigFileUsed())
	return nil
}

// Load builds a Config from the current viper state.
func Load() (Config, error) {
	cfg := Config{
		Database: DatabaseConfig{
			Driver: strings.ToLower(viper.GetString(KeyDatabaseDriver)),
			DSN:    viper.GetString(KeyDatabaseDSN),
		},
		GoogleBooks: GoogleBooksConfig{
			APIKey:  viper.GetString(KeyGoogleBooksAPIKey),
			BaseURL: viper.GetString(KeyGoogleBooksBaseURL),
			Timeout: viper.GetDuration(KeyGoogleBooksTimeout),
			Rate:    viper.GetFloat64(KeyGoogleBooksRate),
		},
		Server: ServerConfig{
			Addr: viper.GetString(KeyServerAddr),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: viper.GetString(KeyTelemetryOTLPEndpoint),
		},
	}

	level, err := ParseLevel(viper.GetString(KeyLogLevel))
	if err != nil {
		return Config{}, err
	}
	cfg.Log.Level = level

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at startup.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid %s %q: must be sqlite or postgres", KeyDatabaseDriver, c.Database.Driver)
	}
	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		return fmt.Errorf("%s is required for postgres", KeyDatabaseDSN)
	}
	if c.GoogleBooks.Timeout <= 0 {
		return fmt.Errorf("invalid %s %s: must be positive", KeyGoogleBooksTimeout, c.GoogleBooks.Timeout)
	}
	if c.GoogleBooks.Rate < 0 {
		return fmt.Errorf("invalid %s %v: must not be negative", KeyGoogleBooksRate, c.GoogleBooks.Rate)
	}
	return nil
}

// ParseLevel parses debug, info, warn or error into a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid %s %q: %w", KeyLogLevel, s, err)
	}
	return level, nil
}
