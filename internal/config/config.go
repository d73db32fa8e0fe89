// ABOUTME: Configuration loading and parsing for nurture-hub
// ABOUTME: Supports YAML or TOML files with ${VAR} expansion, duration parsing, and NURTURE_* overrides

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config represents the complete nurture-hub configuration
type Config struct {
	Database      DatabaseConfig      `yaml:"database" toml:"database"`
	Images        ImagesConfig        `yaml:"images" toml:"images"`
	Preload       PreloadConfig       `yaml:"preload" toml:"preload"`
	Session       SessionConfig       `yaml:"session" toml:"session"`
	Notifications NotificationsConfig `yaml:"notifications" toml:"notifications"`
	Articles      ArticlesConfig      `yaml:"articles" toml:"articles"`
	Logging       LoggingConfig       `yaml:"logging" toml:"logging"`
}

// DatabaseConfig holds the cache database location
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path" env:"NURTURE_DATABASE_PATH"`
}

// ImagesConfig holds image resolution settings
type ImagesConfig struct {
	FetchTimeout time.Duration `yaml:"-" toml:"-"`
	BackoffBase  time.Duration `yaml:"-" toml:"-"`
	Expiry       time.Duration `yaml:"-" toml:"-"`

	MaxAttempts        int    `yaml:"max_attempts" toml:"max_attempts" env:"NURTURE_IMAGES_MAX_ATTEMPTS"`
	PlaceholderPath    string `yaml:"placeholder_path" toml:"placeholder_path"`
	DefaultWidth       int    `yaml:"default_width" toml:"default_width"`
	DefaultHeight      int    `yaml:"default_height" toml:"default_height"`
	BlurWidth          int    `yaml:"blur_width" toml:"blur_width"`
	BlurQuality        int    `yaml:"blur_quality" toml:"blur_quality"`
	PreloadConcurrency int    `yaml:"preload_concurrency" toml:"preload_concurrency"`
	BaseURL            string `yaml:"base_url" toml:"base_url" env:"NURTURE_IMAGES_BASE_URL"`
	AssetDir           string `yaml:"asset_dir" toml:"asset_dir" env:"NURTURE_IMAGES_ASSET_DIR"`
	UserAgent          string `yaml:"user_agent" toml:"user_agent"`

	// Raw string values for unmarshaling
	FetchTimeoutRaw string `yaml:"fetch_timeout" toml:"fetch_timeout" env:"NURTURE_IMAGES_FETCH_TIMEOUT"`
	BackoffBaseRaw  string `yaml:"backoff_base" toml:"backoff_base"`
	ExpiryRaw       string `yaml:"expiry" toml:"expiry" env:"NURTURE_IMAGES_EXPIRY"`
}

// PreloadConfig holds the startup warm-up lists and schedule
type PreloadConfig struct {
	Critical  []string `yaml:"critical" toml:"critical" env:"NURTURE_PRELOAD_CRITICAL"`
	Secondary []string `yaml:"secondary" toml:"secondary" env:"NURTURE_PRELOAD_SECONDARY"`

	IdleDelay        time.Duration `yaml:"-" toml:"-"`
	SecondaryTimeout time.Duration `yaml:"-" toml:"-"`
	CleanupInterval  time.Duration `yaml:"-" toml:"-"`

	IdleDelayRaw        string `yaml:"idle_delay" toml:"idle_delay"`
	SecondaryTimeoutRaw string `yaml:"secondary_timeout" toml:"secondary_timeout"`
	CleanupIntervalRaw  string `yaml:"cleanup_interval" toml:"cleanup_interval"`
}

// SessionConfig holds session lifetime and local authentication settings
type SessionConfig struct {
	Secret              string `yaml:"secret" toml:"secret" env:"NURTURE_SESSION_SECRET"`
	RequireRegistration bool   `yaml:"require_registration" toml:"require_registration" env:"NURTURE_SESSION_REQUIRE_REGISTRATION"`

	TTL     time.Duration `yaml:"-" toml:"-"`
	Latency time.Duration `yaml:"-" toml:"-"`

	TTLRaw     string `yaml:"ttl" toml:"ttl" env:"NURTURE_SESSION_TTL"`
	LatencyRaw string `yaml:"latency" toml:"latency"`
}

// NotificationsConfig holds the feed polling settings
type NotificationsConfig struct {
	Probability float64 `yaml:"probability" toml:"probability"`
	MaxRetained int     `yaml:"max_retained" toml:"max_retained"`

	PollInterval    time.Duration `yaml:"-" toml:"-"`
	PollIntervalRaw string        `yaml:"poll_interval" toml:"poll_interval" env:"NURTURE_NOTIFICATIONS_POLL_INTERVAL"`
}

// ArticlesConfig holds article cache settings
type ArticlesConfig struct {
	MaxAge    time.Duration `yaml:"-" toml:"-"`
	MaxAgeRaw string        `yaml:"max_age" toml:"max_age"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" env:"NURTURE_LOG_LEVEL"`
	Format string `yaml:"format" toml:"format" env:"NURTURE_LOG_FORMAT"`
}

// DataDir returns $XDG_DATA_HOME/nurture or ~/.local/share/nurture.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "nurture")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "nurture"
	}
	return filepath.Join(home, ".local", "share", "nurture")
}

// Default returns the production defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: filepath.Join(DataDir(), "hub.db"),
		},
		Images: ImagesConfig{
			FetchTimeout:       5 * time.Second,
			BackoffBase:        time.Second,
			Expiry:             7 * 24 * time.Hour,
			MaxAttempts:        3,
			PlaceholderPath:    "/placeholder.svg",
			DefaultWidth:       300,
			DefaultHeight:      300,
			BlurWidth:          40,
			BlurQuality:        50,
			PreloadConcurrency: 6,
			UserAgent:          "nurture-hub",
		},
		Preload: PreloadConfig{
			Critical: []string{
				"/images/mom-and-baby.jpg",
				"/images/pregnancy.jpg",
				"/placeholder.svg",
			},
			IdleDelay:        2 * time.Second,
			SecondaryTimeout: 5 * time.Second,
			CleanupInterval:  24 * time.Hour,
		},
		Session: SessionConfig{
			TTL:     24 * time.Hour,
			Latency: 1500 * time.Millisecond,
		},
		Notifications: NotificationsConfig{
			Probability:  0.3,
			MaxRetained:  50,
			PollInterval: time.Minute,
		},
		Articles: ArticlesConfig{
			MaxAge: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, anything else as YAML. Values
// missing from the file keep their defaults. Environment variables in the format
// ${VAR_NAME} are expanded, then NURTURE_* variables override file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv returns the defaults with NURTURE_* overrides applied, for running
// without a config file.
func FromEnv() (*Config, error) {
	cfg := Default()
	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func finish(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parsing environment overrides: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(cfg); err != nil {
		return fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Images.MaxAttempts < 1 {
		return fmt.Errorf("images.max_attempts must be at least 1")
	}
	if c.Images.BlurQuality < 1 || c.Images.BlurQuality > 100 {
		return fmt.Errorf("images.blur_quality must be between 1 and 100")
	}
	if c.Images.DefaultWidth < 1 || c.Images.DefaultHeight < 1 {
		return fmt.Errorf("images.default_width and images.default_height must be positive")
	}
	if c.Images.BaseURL != "" && !strings.HasPrefix(c.Images.BaseURL, "http://") && !strings.HasPrefix(c.Images.BaseURL, "https://") {
		return fmt.Errorf("images.base_url must be an http or https URL")
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive")
	}

	if c.Notifications.Probability < 0 || c.Notifications.Probability > 1 {
		return fmt.Errorf("notifications.probability must be between 0 and 1")
	}
	if c.Notifications.MaxRetained < 1 {
		return fmt.Errorf("notifications.max_retained must be at least 1")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}

	return nil
}

// durationField pairs a raw string with its parsed destination.
type durationField struct {
	name string
	raw  string
	dst  *time.Duration
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []durationField{
		{"images.fetch_timeout", cfg.Images.FetchTimeoutRaw, &cfg.Images.FetchTimeout},
		{"images.backoff_base", cfg.Images.BackoffBaseRaw, &cfg.Images.BackoffBase},
		{"images.expiry", cfg.Images.ExpiryRaw, &cfg.Images.Expiry},
		{"preload.idle_delay", cfg.Preload.IdleDelayRaw, &cfg.Preload.IdleDelay},
		{"preload.secondary_timeout", cfg.Preload.SecondaryTimeoutRaw, &cfg.Preload.SecondaryTimeout},
		{"preload.cleanup_interval", cfg.Preload.CleanupIntervalRaw, &cfg.Preload.CleanupInterval},
		{"session.ttl", cfg.Session.TTLRaw, &cfg.Session.TTL},
		{"session.latency", cfg.Session.LatencyRaw, &cfg.Session.Latency},
		{"notifications.poll_interval", cfg.Notifications.PollIntervalRaw, &cfg.Notifications.PollInterval},
		{"articles.max_age", cfg.Articles.MaxAgeRaw, &cfg.Articles.MaxAge},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative", f.name)
		}
		*f.dst = d
	}

	return nil
}

// DefaultYAML is the file written by `nurture-hub init`.
const DefaultYAML = `# nurture-hub configuration

database:
  path: "${HOME}/.local/share/nurture/hub.db"

images:
  fetch_timeout: "5s"
  max_attempts: 3
  backoff_base: "1s"
  expiry: "168h"
  placeholder_path: "/placeholder.svg"
  default_width: 300
  default_height: 300
  blur_width: 40
  blur_quality: 50
  preload_concurrency: 6
  # base_url: "https://example.com"
  # asset_dir: "./public"

preload:
  critical:
    - "/images/mom-and-baby.jpg"
    - "/images/pregnancy.jpg"
    - "/placeholder.svg"
  secondary: []
  idle_delay: "2s"
  secondary_timeout: "5s"
  cleanup_interval: "24h"

session:
  secret: "${NURTURE_SESSION_SECRET}"
  ttl: "24h"
  latency: "1.5s"
  require_registration: false

notifications:
  poll_interval: "60s"
  probability: 0.3
  max_retained: 50

articles:
  max_age: "24h"

logging:
  level: "info"
  format: "text"
`
