// Package config loads and validates checker configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultEnvFile is loaded into the process environment before config is read.
const DefaultEnvFile = ".env.local"

// DefaultUserAgent is sent with every request.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultSitemaps are the roots checked when none are configured.
var DefaultSitemaps = []string{
	"https://www.jobtrees.com/sitemap_page.xml",
	"https://www.jobtrees.com/sitemap_hierarchy.xml",
	"https://www.jobtrees.com/sitemap_article.xml",
	"https://www.jobtrees.com/sitemap_role.xml",
	"https://www.jobtrees.com/sitemap_tree.xml",
	"https://www.jobtrees.com/sitemap_video.xml",
	"https://www.jobtrees.com/sitemap_videoArticle.xml",
	"https://www.jobtrees.com/api/sitemap_pSEO/sitemap_index_pSEO.xml",
	"https://www.jobtrees.com/api/sitemap_city/sitemap_index_browse_city.xml",
	"https://www.jobtrees.com/api/sitemap_role/sitemap_index_browse_role.xml",
	"https://www.jobtrees.com/api/sitemap/sitemap_Alljobs.xml",
	"https://www.jobtrees.com/api/sitemap/jobtrees_postings_1.xml",
}

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Checker CheckerConfig `mapstructure:"checker"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Report  ReportConfig  `mapstructure:"report"`
	Storage StorageConfig `mapstructure:"storage"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// CheckerConfig governs sitemap traversal and the page worker pool.
type CheckerConfig struct {
	Sitemaps      []string `mapstructure:"sitemaps"`
	Concurrency   int      `mapstructure:"concurrency"`
	UserAgent     string   `mapstructure:"user_agent"`
	SitemapSuffix string   `mapstructure:"sitemap_suffix"`
	ProgressEvery int      `mapstructure:"progress_every"`
}

// HTTPConfig configures HTTP client retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int               `mapstructure:"timeout_seconds"`
	MaxAttempts      int               `mapstructure:"max_attempts"`
	BackoffInitialMs int               `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int               `mapstructure:"backoff_max_ms"`
	RetryStatuses    []int             `mapstructure:"retry_statuses"`
	MaxBodyBytes     int               `mapstructure:"max_body_bytes"`
	Headers          map[string]string `mapstructure:"headers"`

	// SitemapMaxBodyBytes caps sitemap documents separately; zero means no limit.
	SitemapMaxBodyBytes int `mapstructure:"sitemap_max_body_bytes"`

	RatePerSecond float64 `mapstructure:"rate_per_second"`
	RateBurst     int     `mapstructure:"rate_burst"`
}

// CacheConfig selects and configures the URL cache backend.
type CacheConfig struct {
	Provider string `mapstructure:"provider"`
	Path     string `mapstructure:"path"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int    `mapstructure:"max_conns"`
}

// ReportConfig sets where the workbook is written.
type ReportConfig struct {
	OutputPath string `mapstructure:"output_path"`
}

// StorageConfig selects the upload target for the workbook.
type StorageConfig struct {
	Provider        string `mapstructure:"provider"`
	GCSBucket       string `mapstructure:"gcs_bucket"`
	Prefix          string `mapstructure:"prefix"`
	CredentialsFile string `mapstructure:"credentials_file"`
	CredentialsJSON string `mapstructure:"credentials_json"`
	LocalDir        string `mapstructure:"local_dir"`
}

// NotifyConfig holds metadata for run notifications.
type NotifyConfig struct {
	Provider        string `mapstructure:"provider"`
	ProjectID       string `mapstructure:"project_id"`
	Topic           string `mapstructure:"topic"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// LoggingConfig toggles zap development features and the log file sink.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load builds a Config from the env file, disk and environment.
func Load(path string) (Config, error) {
	if err := LoadEnvFile(DefaultEnvFile); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix("CANONICAL")
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

// LoadEnvFile loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("checker.sitemaps", DefaultSitemaps)
	v.SetDefault("checker.concurrency", 30)
	v.SetDefault("checker.user_agent", DefaultUserAgent)
	v.SetDefault("checker.sitemap_suffix", ".xml")
	v.SetDefault("checker.progress_every", 100)
	v.SetDefault("http.timeout_seconds", 10)
	v.SetDefault("http.max_attempts", 5)
	v.SetDefault("http.backoff_initial_ms", 500)
	v.SetDefault("http.backoff_max_ms", 30000)
	v.SetDefault("http.retry_statuses", []int{429, 500, 502, 503, 504})
	v.SetDefault("http.max_body_bytes", 10*1024*1024)
	v.SetDefault("http.sitemap_max_body_bytes", 64*1024*1024)
	v.SetDefault("http.rate_per_second", 0)
	v.SetDefault("http.rate_burst", 1)
	v.SetDefault("cache.provider", "sqlite")
	v.SetDefault("cache.path", "url_cache.sqlite")
	v.SetDefault("cache.table", "cache")
	v.SetDefault("cache.max_conns", 0)
	v.SetDefault("report.output_path", "canonical_mismatches.xlsx")
	v.SetDefault("storage.provider", "none")
	v.SetDefault("storage.gcs_bucket", "jobtrees-media-assets")
	v.SetDefault("storage.prefix", "cannonical/")
	v.SetDefault("storage.local_dir", "uploads")
	v.SetDefault("notify.provider", "none")
	v.SetDefault("notify.topic", "canonical-checker-runs")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.file", "canonical_checker.log")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("metrics.addr", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if len(c.Checker.Sitemaps) == 0 {
		return fmt.Errorf("checker.sitemaps must list at least one sitemap")
	}
	if c.Checker.Concurrency <= 0 {
		return fmt.Errorf("checker.concurrency must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxAttempts <= 0 {
		return fmt.Errorf("http.max_attempts must be > 0")
	}
	if c.HTTP.BackoffMaxMs < c.HTTP.BackoffInitialMs {
		return fmt.Errorf("http.backoff_max_ms must be >= http.backoff_initial_ms")
	}
	if c.HTTP.MaxBodyBytes < 0 || c.HTTP.SitemapMaxBodyBytes < 0 {
		return fmt.Errorf("http.max_body_bytes and http.sitemap_max_body_bytes must be >= 0")
	}
	if c.HTTP.RatePerSecond < 0 {
		return fmt.Errorf("http.rate_per_second must be >= 0")
	}
	if c.Report.OutputPath == "" {
		return fmt.Errorf("report.output_path is required")
	}
	switch c.Cache.Provider {
	case "sqlite", "memory":
	case "postgres":
		if c.Cache.DSN == "" {
			return fmt.Errorf("cache.dsn must be set when cache.provider is postgres")
		}
	default:
		return fmt.Errorf("unknown cache.provider %q", c.Cache.Provider)
	}
	switch c.Storage.Provider {
	case "", "none", "memory":
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set when storage.provider is gcs")
		}
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir must be set when storage.provider is local")
		}
	default:
		return fmt.Errorf("unknown storage.provider %q", c.Storage.Provider)
	}
	switch c.Notify.Provider {
	case "", "none", "memory":
	case "pubsub":
		if c.Notify.ProjectID == "" || c.Notify.Topic == "" {
			return fmt.Errorf("notify.project_id and notify.topic must be set when notify.provider is pubsub")
		}
	default:
		return fmt.Errorf("unknown notify.provider %q", c.Notify.Provider)
	}
	return nil
}

// RequestHeaders returns the extra headers sent with every fetch.
func (c Config) RequestHeaders() http.Header {
	if len(c.HTTP.Headers) == 0 {
		return nil
	}
	h := make(http.Header, len(c.HTTP.Headers))
	for k, v := range c.HTTP.Headers {
		h.Set(k, v)
	}
	return h
}

// RequestTimeout is the per-attempt HTTP timeout.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// BackoffInitial is the wait before the first retry.
func (c Config) BackoffInitial() time.Duration {
	return time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond
}

// BackoffMax caps the wait between retries.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond
}
