package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Salesflow   SalesflowConfig   `yaml:"salesflow"`
	Marketplace MarketplaceConfig `yaml:"marketplace"`
	Collection  CollectionConfig  `yaml:"collection"`
	Poller      PollerConfig      `yaml:"poller"`
	Slideshow   SlideshowConfig   `yaml:"slideshow"`
	Fallbacks   FallbacksConfig   `yaml:"fallbacks"`
	Dashboard   DashboardConfig   `yaml:"dashboard"`
	Cache       CacheConfig       `yaml:"cache"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type SalesflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type MarketplaceConfig struct {
	BaseURL        string               `yaml:"base_url"`
	AssetBaseURL   string               `yaml:"asset_base_url"`
	APIKey         string               `yaml:"api_key"`
	Chain          string               `yaml:"chain"`
	Timeout        time.Duration        `yaml:"timeout"`
	UserAgent      string               `yaml:"user_agent"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

type CollectionConfig struct {
	Name            string `yaml:"name"`
	Description     string `yaml:"description"`
	Slug            string `yaml:"slug"`
	ContractAddress string `yaml:"contract_address"`
}

type PollerConfig struct {
	Interval         time.Duration `yaml:"interval"`
	SalesLimit       int           `yaml:"sales_limit"`
	RecentSalesLimit int           `yaml:"recent_sales_limit"`
	Timezone         string        `yaml:"timezone"`
}

type SlideshowConfig struct {
	Enabled       bool          `yaml:"enabled"`
	MaxNFTs       int           `yaml:"max_nfts"`
	FetchLimit    int           `yaml:"fetch_limit"`
	AutoPlayDelay time.Duration `yaml:"auto_play_delay"`
	EnableShuffle bool          `yaml:"enable_shuffle"`
	StaticImages  []string      `yaml:"static_images"`
}

type FallbacksConfig struct {
	PlaceholderImage string `yaml:"placeholder_image"`
	ErrorImage       string `yaml:"error_image"`
}

type DashboardConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Address         string        `yaml:"address"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	LogHistory      int           `yaml:"log_history"`
	MetricsHistory  int           `yaml:"metrics_history"`
}

type CacheConfig struct {
	Redis RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

type MetricsConfig struct {
	Prometheus bool             `yaml:"prometheus"`
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Region          string `yaml:"region"`
	Namespace       string `yaml:"namespace"`
	Dashboard       string `yaml:"dashboard"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

const DefaultConfigPath = "config/config.yml"

var envConfigPaths = map[string]string{
	EnvironmentProduction: "config/config.production.yml",
	EnvironmentStaging:    "config/config.staging.yml",
}

// ResolvePath picks the environment specific config file for APP_ENV when the
// caller left the path at its default.
func ResolvePath(path string) string {
	return resolveEnvSpecificPath(path, DefaultConfigPath, envConfigPaths)
}

func defaultConfig() Config {
	return Config{
		Marketplace: MarketplaceConfig{
			Timeout: 15 * time.Second,
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 2,
				BurstSize:         2,
			},
			ConnectionPool: ConnectionPoolConfig{
				MaxIdleConns:    4,
				MaxConnsPerHost: 4,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		Poller: PollerConfig{
			Interval:         5 * time.Minute,
			SalesLimit:       50,
			RecentSalesLimit: 15,
		},
		Slideshow: SlideshowConfig{
			MaxNFTs:       10,
			FetchLimit:    50,
			AutoPlayDelay: 2 * time.Second,
		},
		Dashboard: DashboardConfig{
			RefreshInterval: 5 * time.Second,
			LogHistory:      200,
			MetricsHistory:  200,
		},
		Cache: CacheConfig{
			Redis: RedisConfig{Key: "salesflow:snapshot"},
		},
		Metrics: MetricsConfig{
			Prometheus: true,
			CloudWatch: CloudWatchConfig{Namespace: "Salesflow", Dashboard: "Salesflow"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := defaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MARKETPLACE_API_KEY"); v != "" {
		cfg.Marketplace.APIKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("MARKETPLACE_BASE_URL"); v != "" {
		cfg.Marketplace.BaseURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("COLLECTION_SLUG"); v != "" {
		cfg.Collection.Slug = strings.TrimSpace(v)
	}
	if v := os.Getenv("CONTRACT_ADDRESS"); v != "" {
		cfg.Collection.ContractAddress = strings.TrimSpace(v)
	}
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			cfg.Poller.Interval = d
		}
	}

	if cfg.Cache.Redis.Enabled {
		if v := os.Getenv("REDIS_ADDR"); v != "" {
			cfg.Cache.Redis.Addr = strings.TrimSpace(v)
		}
		if v := os.Getenv("REDIS_PASSWORD"); v != "" {
			cfg.Cache.Redis.Password = v
		}
		if v := os.Getenv("REDIS_DB"); v != "" {
			if db, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				cfg.Cache.Redis.DB = db
			}
		}
	}

	if cfg.Metrics.CloudWatch.Enabled {
		if v := os.Getenv("AWS_REGION"); v != "" {
			cfg.Metrics.CloudWatch.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			cfg.Metrics.CloudWatch.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			cfg.Metrics.CloudWatch.SecretAccessKey = strings.TrimSpace(v)
		}
	}

	cfg.Marketplace.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Marketplace.BaseURL), "/")
	cfg.Marketplace.AssetBaseURL = strings.TrimRight(strings.TrimSpace(cfg.Marketplace.AssetBaseURL), "/")
}

func validateConfig(cfg *Config) error {
	if cfg.Salesflow.Name == "" {
		return fmt.Errorf("salesflow.name is required")
	}

	if cfg.Salesflow.Version == "" {
		return fmt.Errorf("salesflow.version is required")
	}

	if cfg.Marketplace.BaseURL == "" {
		return fmt.Errorf("marketplace.base_url is required")
	}
	if u, err := url.Parse(cfg.Marketplace.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("marketplace.base_url '%s' is not an absolute URL", cfg.Marketplace.BaseURL)
	}

	if cfg.Marketplace.APIKey == "" {
		return fmt.Errorf("marketplace.api_key is required (or set MARKETPLACE_API_KEY)")
	}

	if cfg.Marketplace.Timeout <= 0 {
		return fmt.Errorf("marketplace.timeout must be greater than 0")
	}

	if cfg.Collection.Slug == "" {
		return fmt.Errorf("collection.slug is required")
	}

	if cfg.Collection.ContractAddress != "" && !isValidAddress(cfg.Collection.ContractAddress) {
		return fmt.Errorf("collection.contract_address '%s' is invalid", cfg.Collection.ContractAddress)
	}

	if cfg.Poller.Interval <= 0 {
		return fmt.Errorf("poller.interval must be greater than 0")
	}
	if cfg.Poller.SalesLimit <= 0 {
		return fmt.Errorf("poller.sales_limit must be greater than 0")
	}
	if cfg.Poller.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Poller.Timezone); err != nil {
			return fmt.Errorf("poller.timezone '%s' is invalid: %w", cfg.Poller.Timezone, err)
		}
	}

	if cfg.Slideshow.Enabled && cfg.Slideshow.AutoPlayDelay <= 0 {
		return fmt.Errorf("slideshow.auto_play_delay must be greater than 0")
	}

	if cfg.Cache.Redis.Enabled && cfg.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required when redis is enabled")
	}

	return nil
}

var addressRegexp = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

func isValidAddress(addr string) bool {
	return addressRegexp.MatchString(addr)
}

// Location returns the timezone used to compute "today". Local time is used
// when none is configured.
func (p PollerConfig) Location() *time.Location {
	if p.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
