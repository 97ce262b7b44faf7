// Package config loads and validates search engine configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ozemskikh/SearchEngine/internal/engine"
)

// Storage and archive backend names.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendNone     = "none"
	BackendLocal    = "local"
	BackendGCS      = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Indexing IndexingConfig `mapstructure:"indexing"`
	Search   SearchConfig   `mapstructure:"search"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// IndexingConfig governs crawling and indexing.
type IndexingConfig struct {
	Sites             []engine.SiteConfig `mapstructure:"sites"`
	UserAgent         string              `mapstructure:"user_agent"`
	Referrer          string              `mapstructure:"referrer"`
	FetchDelayMs      int                 `mapstructure:"fetch_delay_ms"`
	FetchTimeoutMs    int                 `mapstructure:"fetch_timeout_ms"`
	PoolSize          int                 `mapstructure:"pool_size"`
	RequestsPerSecond float64             `mapstructure:"requests_per_second"`
	Burst             int                 `mapstructure:"burst"`
}

// SearchConfig tunes query evaluation.
type SearchConfig struct {
	MaxLemmaCoverage float64 `mapstructure:"max_lemma_coverage"`
	DefaultLimit     int     `mapstructure:"default_limit"`
	SnippetFragments int     `mapstructure:"snippet_fragments"`
}

// StorageConfig selects the relational store.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
}

// DatabaseConfig controls access to Postgres.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// ArchiveConfig selects where raw page HTML is copied.
type ArchiveConfig struct {
	Backend string `mapstructure:"backend"`
	Bucket  string `mapstructure:"bucket"`
	BaseDir string `mapstructure:"base_dir"`
	Prefix  string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for site status notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Enabled reports whether a Pub/Sub topic is configured.
func (p PubSubConfig) Enabled() bool {
	return p.ProjectID != "" && p.TopicName != ""
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("indexing.user_agent", "SearchEngineBot/1.0")
	v.SetDefault("indexing.referrer", "https://www.google.com")
	v.SetDefault("indexing.fetch_delay_ms", 600)
	v.SetDefault("indexing.fetch_timeout_ms", 3000)
	v.SetDefault("indexing.pool_size", 8)
	v.SetDefault("indexing.requests_per_second", 0)
	v.SetDefault("indexing.burst", 1)
	v.SetDefault("search.max_lemma_coverage", 0.8)
	v.SetDefault("search.default_limit", 20)
	v.SetDefault("search.snippet_fragments", 3)
	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("database.dsn", "")
	v.SetDefault("archive.backend", BackendNone)
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if err := validateSites(c.Indexing.Sites); err != nil {
		return err
	}
	if c.Indexing.FetchTimeoutMs <= 0 {
		return fmt.Errorf("indexing.fetch_timeout_ms must be > 0")
	}
	if c.Indexing.FetchDelayMs < 0 {
		return fmt.Errorf("indexing.fetch_delay_ms must be >= 0")
	}
	if c.Indexing.PoolSize <= 0 {
		return fmt.Errorf("indexing.pool_size must be > 0")
	}
	if c.Search.MaxLemmaCoverage <= 0 || c.Search.MaxLemmaCoverage > 1 {
		return fmt.Errorf("search.max_lemma_coverage must be in (0, 1]")
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn must be set when storage.backend is postgres")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	switch c.Archive.Backend {
	case BackendNone, BackendMemory:
	case BackendLocal:
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir must be set when archive.backend is local")
		}
	case BackendGCS:
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket must be set when archive.backend is gcs")
		}
	default:
		return fmt.Errorf("unknown archive.backend %q", c.Archive.Backend)
	}
	return nil
}

func validateSites(sites []engine.SiteConfig) error {
	if len(sites) == 0 {
		return fmt.Errorf("indexing.sites must list at least one site")
	}
	seen := make(map[string]struct{}, len(sites))
	for i, s := range sites {
		u, err := url.Parse(s.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("indexing.sites[%d].url %q must be an absolute http(s) url", i, s.URL)
		}
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("indexing.sites[%d].name must be set", i)
		}
		key := strings.TrimSuffix(s.URL, "/")
		if _, dup := seen[key]; dup {
			return fmt.Errorf("indexing.sites[%d].url %q is listed twice", i, s.URL)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// FetchDelay is the pause before each page fetch.
func (c IndexingConfig) FetchDelay() time.Duration {
	return time.Duration(c.FetchDelayMs) * time.Millisecond
}

// FetchTimeout bounds a single page fetch.
func (c IndexingConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMs) * time.Millisecond
}
