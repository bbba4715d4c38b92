package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "INSTAPROFILER_"

// Config holds all configuration options for instaprofiler
type Config struct {
	// Instagram session and endpoint settings
	Instagram InstagramConfig `yaml:"instagram" json:"instagram"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Follow-graph scraping behaviour
	Scrape ScrapeConfig `yaml:"scrape" json:"scrape"`

	// Timeline and likers scraping
	Media MediaConfig `yaml:"media" json:"media"`

	// Relational store
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// InstagramConfig holds Instagram-specific configuration
type InstagramConfig struct {
	SessionID          string `yaml:"session_id" json:"session_id"`
	CSRFToken          string `yaml:"csrf_token" json:"csrf_token"`
	UserAgent          string `yaml:"user_agent" json:"user_agent"`
	BaseURL            string `yaml:"base_url" json:"base_url"`
	FollowersQueryHash string `yaml:"followers_query_hash" json:"followers_query_hash"`
	FollowingQueryHash string `yaml:"following_query_hash" json:"following_query_hash"`
	MediaQueryHash     string `yaml:"media_query_hash" json:"media_query_hash"`
	LikersQueryHash    string `yaml:"likers_query_hash" json:"likers_query_hash"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Strategy          string `yaml:"strategy" json:"strategy"`
	RequestsPerMinute int    `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int    `yaml:"burst_size" json:"burst_size"`
}

// ScrapeConfig controls pagination, retry budgets and side selection.
type ScrapeConfig struct {
	PageSize          int           `yaml:"page_size" json:"page_size"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay" json:"retry_delay"`
	ProfileMaxRetries int           `yaml:"profile_max_retries" json:"profile_max_retries"`
	ProfileRetryDelay time.Duration `yaml:"profile_retry_delay" json:"profile_retry_delay"`
	MaxPages          int           `yaml:"max_pages" json:"max_pages"`
	RequestTimeout    time.Duration `yaml:"request_timeout" json:"request_timeout"`
	MaxFollowAmount   int           `yaml:"max_follow_amount" json:"max_follow_amount"`
	OnlyMutual        bool          `yaml:"only_mutual" json:"only_mutual"`
	Follows           bool          `yaml:"follows" json:"follows"`
	Followers         bool          `yaml:"followers" json:"followers"`
}

// MediaConfig controls timeline scrapes. Zero limits mean no limit.
type MediaConfig struct {
	PageSize        int  `yaml:"page_size" json:"page_size"`
	MaxMedia        int  `yaml:"max_media" json:"max_media"`
	Likers          bool `yaml:"likers" json:"likers"`
	LikersThreshold int  `yaml:"likers_threshold" json:"likers_threshold"`
	MaxLikers       int  `yaml:"max_likers" json:"max_likers"`
}

// DatabaseConfig selects the database/sql driver and its DSN.
type DatabaseConfig struct {
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"dsn"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	SnapshotDir string `yaml:"snapshot_dir" json:"snapshot_dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Instagram: InstagramConfig{
			UserAgent:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			BaseURL:            "https://www.instagram.com",
			FollowersQueryHash: "56066f031e6239f35a904ac20c9f37d9",
			FollowingQueryHash: "c56ee0ae1f89cdbd1c89e2bc6b8f3d18",
			MediaQueryHash:     "f2405b236d85e8296cf30347c9f08c2a",
			LikersQueryHash:    "d5d763b1e2acf209d62d22d184488e57",
		},
		RateLimit: RateLimitConfig{
			Strategy:          "token_bucket",
			RequestsPerMinute: 30,
			BurstSize:         5,
		},
		Scrape: ScrapeConfig{
			PageSize:          300,
			MaxRetries:        120,
			RetryDelay:        60 * time.Second,
			ProfileMaxRetries: 100,
			ProfileRetryDelay: 150 * time.Second,
			MaxPages:          0, // 0 means no cap
			RequestTimeout:    30 * time.Second,
			MaxFollowAmount:   0,
			OnlyMutual:        false,
			Follows:           true,
			Followers:         true,
		},
		Media: MediaConfig{
			PageSize: 50,
			MaxMedia: 500,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "instaprofiler.db",
		},
		Output: OutputConfig{
			SnapshotDir: "",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(name string, dst *string) {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if v := os.Getenv(envPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	setDuration := func(name string, dst *time.Duration) {
		if v := os.Getenv(envPrefix + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	setBool := func(name string, dst *bool) {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = strings.ToLower(v) == "true" || v == "1"
		}
	}

	// Instagram session
	setString("SESSION_ID", &c.Instagram.SessionID)
	setString("CSRF_TOKEN", &c.Instagram.CSRFToken)
	setString("USER_AGENT", &c.Instagram.UserAgent)
	setString("BASE_URL", &c.Instagram.BaseURL)

	// Rate limiting
	setInt("REQUESTS_PER_MINUTE", &c.RateLimit.RequestsPerMinute)

	// Scraping
	setInt("PAGE_SIZE", &c.Scrape.PageSize)
	setInt("MAX_RETRIES", &c.Scrape.MaxRetries)
	setDuration("RETRY_DELAY", &c.Scrape.RetryDelay)
	setInt("MAX_PAGES", &c.Scrape.MaxPages)
	setInt("MAX_FOLLOW_AMOUNT", &c.Scrape.MaxFollowAmount)
	setBool("ONLY_MUTUAL", &c.Scrape.OnlyMutual)

	// Media
	setInt("MEDIA_MAX", &c.Media.MaxMedia)
	setBool("MEDIA_LIKERS", &c.Media.Likers)
	setInt("MEDIA_LIKERS_THRESHOLD", &c.Media.LikersThreshold)
	setInt("MEDIA_MAX_LIKERS", &c.Media.MaxLikers)

	// Database
	setString("DB_DRIVER", &c.Database.Driver)
	setString("DB_DSN", &c.Database.DSN)

	// Output and logging
	setString("SNAPSHOT_DIR", &c.Output.SnapshotDir)
	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FILE", &c.Logging.File)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".instaprofiler.yaml",
		".instaprofiler.yml",
		filepath.Join(home, ".config", "instaprofiler", "config.yaml"),
		filepath.Join(home, ".config", "instaprofiler", "config.yml"),
		filepath.Join(home, ".instaprofiler.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid. Session credentials are not
// checked here; commands that talk to Instagram check them via RequireSession.
func (c *Config) Validate() error {
	var errs []error

	if c.Instagram.BaseURL == "" {
		errs = append(errs, errors.New("instagram base URL is required"))
	}
	if c.Instagram.FollowersQueryHash == "" || c.Instagram.FollowingQueryHash == "" {
		errs = append(errs, errors.New("followers and following query hashes are required"))
	}

	// Validate rate limiting
	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}
	switch c.RateLimit.Strategy {
	case "", "token_bucket", "sliding_window":
	default:
		errs = append(errs, fmt.Errorf("unknown rate limit strategy %q", c.RateLimit.Strategy))
	}

	// Validate scraping
	if c.Scrape.PageSize <= 0 {
		errs = append(errs, errors.New("page size must be positive"))
	}
	if c.Scrape.MaxRetries <= 0 {
		errs = append(errs, errors.New("max retries must be positive"))
	}
	if c.Scrape.ProfileMaxRetries <= 0 {
		errs = append(errs, errors.New("profile max retries must be positive"))
	}
	if c.Scrape.RetryDelay < 0 || c.Scrape.ProfileRetryDelay < 0 {
		errs = append(errs, errors.New("retry delays cannot be negative"))
	}
	if c.Scrape.MaxPages < 0 {
		errs = append(errs, errors.New("max pages cannot be negative"))
	}
	if c.Scrape.MaxFollowAmount < 0 {
		errs = append(errs, errors.New("max follow amount cannot be negative"))
	}
	if c.Scrape.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if !c.Scrape.Follows && !c.Scrape.Followers {
		errs = append(errs, errors.New("at least one of follows or followers must be scraped"))
	}

	// Validate media
	if c.Media.PageSize <= 0 {
		errs = append(errs, errors.New("media page size must be positive"))
	}
	if c.Media.MaxMedia < 0 || c.Media.LikersThreshold < 0 || c.Media.MaxLikers < 0 {
		errs = append(errs, errors.New("media limits cannot be negative"))
	}

	// Validate database
	switch c.Database.Driver {
	case "sqlite", "pgx":
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database DSN is required"))
	}

	// Validate logging
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// RequireSession reports whether session credentials are present.
func (c *Config) RequireSession() error {
	var errs []error
	if c.Instagram.SessionID == "" {
		errs = append(errs, errors.New("Instagram session ID is required"))
	}
	if c.Instagram.CSRFToken == "" {
		errs = append(errs, errors.New("Instagram CSRF token is required"))
	}
	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in the map are applied, so unset flags keep lower
// precedence values.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["session-id"].(string); ok && v != "" {
		c.Instagram.SessionID = v
	}
	if v, ok := flags["csrf-token"].(string); ok && v != "" {
		c.Instagram.CSRFToken = v
	}
	if v, ok := flags["db-driver"].(string); ok && v != "" {
		c.Database.Driver = v
	}
	if v, ok := flags["db"].(string); ok && v != "" {
		c.Database.DSN = v
	}
	if v, ok := flags["snapshot-dir"].(string); ok && v != "" {
		c.Output.SnapshotDir = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["max-follow-amount"].(int); ok {
		c.Scrape.MaxFollowAmount = v
	}
	if v, ok := flags["only-mutual"].(bool); ok {
		c.Scrape.OnlyMutual = v
	}
	if v, ok := flags["follows"].(bool); ok {
		c.Scrape.Follows = v
	}
	if v, ok := flags["followers"].(bool); ok {
		c.Scrape.Followers = v
	}
	if v, ok := flags["max-pages"].(int); ok {
		c.Scrape.MaxPages = v
	}
	if v, ok := flags["max-media"].(int); ok {
		c.Media.MaxMedia = v
	}
	if v, ok := flags["likers"].(bool); ok {
		c.Media.Likers = v
	}
	if v, ok := flags["likers-threshold"].(int); ok {
		c.Media.LikersThreshold = v
	}
	if v, ok := flags["max-likers"].(int); ok {
		c.Media.MaxLikers = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".instaprofiler.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
