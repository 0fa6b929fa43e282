package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"go.yaml.in/yaml/v3"

	"github.com/vadimtrunov/CineScroll/internal/httpclient"
	"github.com/vadimtrunov/CineScroll/internal/metadata/tmdb"
)

// Config represents the main application configuration
type Config struct {
	// Metadata provider
	TMDb TMDbConfig `yaml:"tmdb" toml:"tmdb"`

	// Outbound HTTP behaviour
	HTTP HTTPConfig `yaml:"http" toml:"http"`

	// Listing feed: debounce and page cache
	Feed FeedConfig `yaml:"feed" toml:"feed"`

	// JSON API server
	Server ServerConfig `yaml:"server" toml:"server"`

	// Frontends
	Telegram *TelegramConfig `yaml:"telegram,omitempty" toml:"telegram,omitempty"`

	// Shared page cache
	Redis *RedisConfig `yaml:"redis,omitempty" toml:"redis,omitempty"`

	// Application settings
	App AppConfig `yaml:"app" toml:"app"`
}

// TMDbConfig holds TMDb API configuration
type TMDbConfig struct {
	APIKey  string `yaml:"api_key" toml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty" toml:"base_url,omitempty"`
}

// HTTPConfig controls requests to TMDb
type HTTPConfig struct {
	Timeout     Duration `yaml:"timeout" toml:"timeout"`
	MaxAttempts int      `yaml:"max_attempts" toml:"max_attempts"` // 1 = no retries
}

// FeedConfig controls the listing feed
type FeedConfig struct {
	Debounce  Duration `yaml:"debounce" toml:"debounce"`
	CacheTTL  Duration `yaml:"cache_ttl" toml:"cache_ttl"`
	ImageSize string   `yaml:"image_size" toml:"image_size"` // w200, w300, w500, original
}

// ServerConfig holds the JSON API listen address
type ServerConfig struct {
	Addr string `yaml:"addr" toml:"addr"`
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken       string  `yaml:"bot_token" toml:"bot_token"`
	AllowedUserIDs []int64 `yaml:"allowed_user_ids,omitempty" toml:"allowed_user_ids,omitempty"`
}

// RedisConfig enables a Redis-backed page cache shared between processes
type RedisConfig struct {
	Addr     string `yaml:"addr" toml:"addr"`
	Password string `yaml:"password,omitempty" toml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty" toml:"db,omitempty"`
}

// AppConfig holds application-level settings
type AppConfig struct {
	LogLevel string `yaml:"log_level" toml:"log_level"` // "debug", "info", "warn", "error"
}

// Duration is a time.Duration written as a string such as "500ms" or "15m".
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText renders the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalYAML parses a YAML scalar duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

const (
	defaultTimeout     = Duration(15 * time.Second)
	defaultMaxAttempts = 1
	defaultDebounce    = Duration(500 * time.Millisecond)
	defaultCacheTTL    = Duration(5 * time.Minute)
	defaultServerAddr  = ":8080"
	defaultLogLevel    = "info"
)

var validLogLevels = []string{"debug", "info", "warn", "warning", "error"}

// Load loads configuration from a YAML (or .toml) file with environment
// variable overrides. A missing file is not an error: the configuration is
// then built from defaults and the environment, including a .env file in
// the working directory.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := decode(path, data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Override with environment variables
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return toml.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides overrides config values with environment variables
func (c *Config) applyEnvOverrides() error {
	// TMDb
	if v := os.Getenv("CINESCROLL_TMDB_API_KEY"); v != "" {
		c.TMDb.APIKey = v
	}
	if v := os.Getenv("CINESCROLL_TMDB_BASE_URL"); v != "" {
		c.TMDb.BaseURL = v
	}

	// Server
	if v := os.Getenv("CINESCROLL_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}

	// Telegram
	if v := os.Getenv("CINESCROLL_TELEGRAM_BOT_TOKEN"); v != "" {
		if c.Telegram == nil {
			c.Telegram = &TelegramConfig{}
		}
		c.Telegram.BotToken = v
	}

	// Redis
	if v := os.Getenv("CINESCROLL_REDIS_ADDR"); v != "" {
		if c.Redis == nil {
			c.Redis = &RedisConfig{}
		}
		c.Redis.Addr = v
	}
	if v := os.Getenv("CINESCROLL_REDIS_PASSWORD"); v != "" && c.Redis != nil {
		c.Redis.Password = v
	}

	// Feed
	if v := os.Getenv("CINESCROLL_FEED_DEBOUNCE"); v != "" {
		if err := c.Feed.Debounce.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("CINESCROLL_FEED_DEBOUNCE: %w", err)
		}
	}
	if v := os.Getenv("CINESCROLL_HTTP_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CINESCROLL_HTTP_MAX_ATTEMPTS: %w", err)
		}
		c.HTTP.MaxAttempts = n
	}

	// App
	if v := os.Getenv("CINESCROLL_LOG_LEVEL"); v != "" {
		c.App.LogLevel = v
	}
	return nil
}

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	c.setDefaults()

	if c.TMDb.APIKey == "" {
		return fmt.Errorf("tmdb.api_key is required (or set CINESCROLL_TMDB_API_KEY)")
	}
	if err := validateURL(c.TMDb.BaseURL, "tmdb.base_url"); err != nil {
		return err
	}

	if c.HTTP.MaxAttempts < 1 || c.HTTP.MaxAttempts > 10 {
		return fmt.Errorf("http.max_attempts must be between 1 and 10")
	}
	if c.HTTP.Timeout < 0 {
		return fmt.Errorf("http.timeout must not be negative")
	}
	if c.Feed.Debounce < 0 {
		return fmt.Errorf("feed.debounce must not be negative")
	}
	if c.Feed.CacheTTL < 0 {
		return fmt.Errorf("feed.cache_ttl must not be negative")
	}
	if tmdb.ParseImageSize(c.Feed.ImageSize) != tmdb.ImageSize(c.Feed.ImageSize) {
		return fmt.Errorf("feed.image_size must be one of w200, w300, w500, original")
	}

	if c.Telegram != nil && c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Redis != nil && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}

	level := strings.ToLower(c.App.LogLevel)
	valid := false
	for _, l := range validLogLevels {
		if level == l {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("app.log_level must be one of %s", strings.Join(validLogLevels, ", "))
	}

	return nil
}

// setDefaults fills zero-valued settings.
func (c *Config) setDefaults() {
	if c.TMDb.BaseURL == "" {
		c.TMDb.BaseURL = tmdb.DefaultBaseURL
	}
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = defaultTimeout
	}
	if c.HTTP.MaxAttempts == 0 {
		c.HTTP.MaxAttempts = defaultMaxAttempts
	}
	if c.Feed.Debounce == 0 {
		c.Feed.Debounce = defaultDebounce
	}
	if c.Feed.CacheTTL == 0 {
		c.Feed.CacheTTL = defaultCacheTTL
	}
	if c.Feed.ImageSize == "" {
		c.Feed.ImageSize = string(tmdb.DefaultImageSize)
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaultServerAddr
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = defaultLogLevel
	}
}

// validateURL checks that raw is an absolute http(s) URL with a host.
func validateURL(raw, field string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%s must use http or https", field)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: missing host", field)
	}
	return nil
}

// HTTPClient converts the HTTP section into an httpclient.Config.
func (c *Config) HTTPClient() httpclient.Config {
	hc := httpclient.DefaultConfig()
	hc.Timeout = c.HTTP.Timeout.Std()
	hc.MaxAttempts = c.HTTP.MaxAttempts
	return hc
}

// TMDbClient converts the TMDb and HTTP sections into a tmdb.Config.
func (c *Config) TMDbClient() tmdb.Config {
	return tmdb.Config{
		APIKey:   c.TMDb.APIKey,
		BaseURL:  c.TMDb.BaseURL,
		HTTP:     c.HTTPClient(),
		CacheTTL: c.Feed.CacheTTL.Std(),
	}
}
