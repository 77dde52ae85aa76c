package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// StoreBackend names the document store the songs live in
type StoreBackend string

const (
	StoreMongo     StoreBackend = "mongo"
	StoreTypesense StoreBackend = "typesense"
	StoreValkey    StoreBackend = "valkey"
	StoreMemory    StoreBackend = "memory"
)

// Config holds all configuration for the application
type Config struct {
	// Application settings
	Port           string `envconfig:"PORT" default:"8080"`
	GinMode        string `envconfig:"GIN_MODE" default:"debug"`
	ServiceName    string `envconfig:"SERVICE_NAME" default:"songbook"`
	ServiceVersion string `envconfig:"SERVICE_VERSION"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat      string `envconfig:"LOG_FORMAT" default:"json"` // json | text

	// Store selection and connection settings
	StoreBackend        StoreBackend `envconfig:"STORE_BACKEND" default:"mongo"`
	MongodbURL          string       `envconfig:"MONGODB_URL"`
	MongodbDatabase     string       `envconfig:"MONGODB_DATABASE" default:"songbook"`
	TypesenseHost       string       `envconfig:"TYPESENSE_HOST"`
	TypesenseAPIKey     string       `envconfig:"TYPESENSE_API_KEY"`
	TypesenseCollection string       `envconfig:"TYPESENSE_COLLECTION" default:"songs"`
	ValkeyURL           string       `envconfig:"VALKEY_URL"`
	ValkeyIndex         string       `envconfig:"VALKEY_INDEX" default:"songbook-songs"`
	ValkeyPrefix        string       `envconfig:"VALKEY_PREFIX" default:"songbook:song:"`

	// Read-through cache; uses VALKEY_URL as the shared level when set
	CacheEnabled   bool          `envconfig:"CACHE_ENABLED" default:"false"`
	CacheL1Items   int           `envconfig:"CACHE_L1_ITEMS" default:"1000"`
	CacheL1TTL     time.Duration `envconfig:"CACHE_L1_TTL" default:"30s"`
	CacheSongTTL   time.Duration `envconfig:"CACHE_SONG_TTL" default:"1h"`
	CacheSearchTTL time.Duration `envconfig:"CACHE_SEARCH_TTL" default:"5m"`

	// Store call policy
	StoreTimeout      time.Duration `envconfig:"STORE_TIMEOUT" default:"5s"`
	StoreMaxRetries   int           `envconfig:"STORE_MAX_RETRIES" default:"2"`
	StoreRetryBackoff time.Duration `envconfig:"STORE_RETRY_BACKOFF" default:"100ms"`

	// HTTP rate limit; zero disables it
	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"0"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"50"`

	// Tracing; an empty endpoint disables export
	OtelExporterEndpoint string `envconfig:"OTEL_EXPORTER_ENDPOINT"`
	OtelInsecure         bool   `envconfig:"OTEL_INSECURE" default:"false"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	cfg.StoreBackend = StoreBackend(strings.ToLower(string(cfg.StoreBackend)))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the selected backend has its connection settings
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreMongo:
		if c.MongodbURL == "" {
			return fmt.Errorf("MONGODB_URL is required for the mongo store")
		}
	case StoreTypesense:
		if c.TypesenseHost == "" || c.TypesenseAPIKey == "" {
			return fmt.Errorf("TYPESENSE_HOST and TYPESENSE_API_KEY are required for the typesense store")
		}
	case StoreValkey:
		if c.ValkeyURL == "" {
			return fmt.Errorf("VALKEY_URL is required for the valkey store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unsupported store backend: %q", c.StoreBackend)
	}

	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive")
	}
	if c.StoreMaxRetries < 0 {
		return fmt.Errorf("STORE_MAX_RETRIES cannot be negative")
	}
	if c.CacheEnabled && c.CacheL1Items <= 0 {
		return fmt.Errorf("CACHE_L1_ITEMS must be positive when the cache is enabled")
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS cannot be negative")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("unsupported gin mode: %q", c.GinMode)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format: %q", c.LogFormat)
	}
	return nil
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT
func (c *Config) NewLogger() *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("unsupported log level: %q", s)
	}
	return level, nil
}

// ClientConfig configures command-line clients of the REST API
type ClientConfig struct {
	APIURL  string        `envconfig:"SONGBOOK_API_URL" default:"http://localhost:8080"`
	Timeout time.Duration `envconfig:"SONGBOOK_API_TIMEOUT" default:"10s"`
}

// LoadClient reads client configuration from environment variables
func LoadClient() (*ClientConfig, error) {
	var cfg ClientConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("SONGBOOK_API_URL must not be empty")
	}
	return &cfg, nil
}
