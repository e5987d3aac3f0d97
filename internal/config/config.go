package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Sync     SyncConfig
	Sources  SourcesConfig
	Markets  MarketsConfig
	Auth     AuthConfig
}

// ServerConfig holds server specific configuration
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds the warehouse configuration
type DatabaseConfig struct {
	Path string
}

// LoggingConfig holds logging specific configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// SyncConfig tunes the fetch pipeline: pool size, pacing, retries and
// checkpoint cadence.
type SyncConfig struct {
	Workers         int
	MinDelay        time.Duration
	MaxDelay        time.Duration
	CooldownEvery   int
	Cooldown        time.Duration
	RetryLimit      int
	RetryMinBackoff time.Duration
	RetryMaxBackoff time.Duration
	FetchTimeout    time.Duration
	CheckpointEvery int
	CacheTTL        time.Duration
	CacheMinBytes   int64
	CacheDir        string
	ListCacheDir    string
}

// SourcesConfig holds the upstream endpoints
type SourcesConfig struct {
	PrimaryListURL  string
	FallbackListURL string
	HistoryURL      string
	UserAgent       string
}

// MarketsConfig selects the enabled markets and their degraded-mode seeds
type MarketsConfig struct {
	Enabled     []string
	SeedSymbols map[string][]string
}

// AuthConfig holds authentication specific configuration
type AuthConfig struct {
	ServiceKey string
}

// LoadConfig loads the configuration from file and environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Read from environment variables
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8085")
	v.SetDefault("server.readTimeout", "15s")
	v.SetDefault("server.writeTimeout", "15s")
	v.SetDefault("server.idleTimeout", "120s")

	// Database defaults
	v.SetDefault("database.path", "data/equity.db")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Sync defaults
	v.SetDefault("sync.workers", 4)
	v.SetDefault("sync.minDelay", "500ms")
	v.SetDefault("sync.maxDelay", "2s")
	v.SetDefault("sync.cooldownEvery", 100)
	v.SetDefault("sync.cooldown", "30s")
	v.SetDefault("sync.retryLimit", 3)
	v.SetDefault("sync.retryMinBackoff", "1s")
	v.SetDefault("sync.retryMaxBackoff", "30s")
	v.SetDefault("sync.fetchTimeout", "30s")
	v.SetDefault("sync.checkpointEvery", 50)
	v.SetDefault("sync.cacheTTL", "24h")
	v.SetDefault("sync.cacheMinBytes", 1000)
	v.SetDefault("sync.cacheDir", "data/bars")
	v.SetDefault("sync.listCacheDir", "data/lists")

	// Source defaults
	v.SetDefault("sources.primaryListURL", "http://localhost:9200")
	v.SetDefault("sources.fallbackListURL", "http://localhost:9201")
	v.SetDefault("sources.historyURL", "https://query1.finance.yahoo.com")
	v.SetDefault("sources.userAgent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")

	// Market defaults
	v.SetDefault("markets.enabled", []string{"cn-share", "hk-share", "jp-share"})

	// Auth defaults
	v.SetDefault("auth.serviceKey", "equity-sync-key")
}
