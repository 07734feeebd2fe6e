package config

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv    = "WORKFLOW_PULSE_CONFIG"
	databaseDSNEnv   = "DATABASE_DSN"
	databaseDrvEnv   = "DATABASE_DRIVER"
	youtubeAPIKeyEnv = "YOUTUBE_API_KEY"
	triggerSecretEnv = "TRIGGER_SECRET"
	logLevelEnv      = "LOG_LEVEL"
	httpAddrEnv      = "HTTP_ADDR"
	countriesEnv     = "COLLECT_COUNTRIES"
	dotEnvFile       = ".env"
)

// ErrMissingTriggerSecret is returned by Validate when the trigger endpoint is unprotected.
var ErrMissingTriggerSecret = errors.New("trigger secret is not configured (set " + triggerSecretEnv + ")")

// Config holds high-level settings required across the application.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Security   SecurityConfig   `yaml:"security"`
	Collection CollectionConfig `yaml:"collection"`
	YouTube    YouTubeConfig    `yaml:"youtube"`
	Forum      ForumConfig      `yaml:"forum"`
	Trends     TrendsConfig     `yaml:"trends"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// HTTPConfig configures the read/trigger API listener.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// DatabaseConfig describes the storage connection.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// SchedulerConfig defines whether and how often `serve` collects on its own.
type SchedulerConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Interval   time.Duration `yaml:"interval"`
	RunOnStart bool          `yaml:"runOnStart"`
}

// SecurityConfig holds the shared secret of the trigger endpoint.
type SecurityConfig struct {
	TriggerSecret string `yaml:"triggerSecret"`
}

// CollectionConfig lists the target countries of a full run.
type CollectionConfig struct {
	Countries []string `yaml:"countries"`
}

// YouTubeConfig wires the video collector.
type YouTubeConfig struct {
	APIKey     string        `yaml:"apiKey"`
	BaseURL    string        `yaml:"baseUrl"`
	Keywords   []string      `yaml:"keywords"`
	MaxResults int           `yaml:"maxResults"`
	Pause      time.Duration `yaml:"pause"`
}

// ForumConfig wires the Discourse collector.
type ForumConfig struct {
	BaseURL  string        `yaml:"baseUrl"`
	Pages    int           `yaml:"pages"`
	TopicCap int           `yaml:"topicCap"`
	Pause    time.Duration `yaml:"pause"`
}

// TrendsConfig wires the Google Trends collector.
type TrendsConfig struct {
	BaseURL       string            `yaml:"baseUrl"`
	Keywords      []string          `yaml:"keywords"`
	Timeframe     string            `yaml:"timeframe"`
	Language      string            `yaml:"language"`
	TZOffset      int               `yaml:"tzOffset"`
	Lookback      int               `yaml:"lookback"`
	Regions       map[string]string `yaml:"regions"`
	DefaultRegion string            `yaml:"defaultRegion"`
	Pause         time.Duration     `yaml:"pause"`
}

// Load reads .env and YAML configuration (if present) and applies environment overrides.
// An empty path falls back to $WORKFLOW_PULSE_CONFIG.
func Load(path string) Config {
	if err := godotenv.Load(dotEnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: cannot read %s: %v", dotEnvFile, err)
	}

	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	if len(cfg.Collection.Countries) == 0 {
		cfg.Collection.Countries = defaultConfig().Collection.Countries
	}

	return cfg
}

// Validate reports settings that are fatal for the HTTP server.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Security.TriggerSecret) == "" {
		return ErrMissingTriggerSecret
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(databaseDrvEnv); v != "" {
		c.Database.Driver = v
	}

	if v := os.Getenv(youtubeAPIKeyEnv); v != "" {
		c.YouTube.APIKey = v
	}

	if v := os.Getenv(triggerSecretEnv); v != "" {
		c.Security.TriggerSecret = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(httpAddrEnv); v != "" {
		c.HTTP.Addr = v
	}

	if v := os.Getenv(countriesEnv); v != "" {
		c.Collection.Countries = splitList(v)
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.HTTP.Addr != "" {
		base.HTTP.Addr = override.HTTP.Addr
	}
	if override.HTTP.ShutdownTimeout > 0 {
		base.HTTP.ShutdownTimeout = override.HTTP.ShutdownTimeout
	}

	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	// enabled/runOnStart are booleans: the file value always wins.
	base.Scheduler.Enabled = override.Scheduler.Enabled
	base.Scheduler.RunOnStart = override.Scheduler.RunOnStart
	if override.Scheduler.Interval > 0 {
		base.Scheduler.Interval = override.Scheduler.Interval
	}

	if override.Security.TriggerSecret != "" {
		base.Security.TriggerSecret = override.Security.TriggerSecret
	}

	if len(override.Collection.Countries) > 0 {
		base.Collection.Countries = override.Collection.Countries
	}

	if override.YouTube.APIKey != "" {
		base.YouTube.APIKey = override.YouTube.APIKey
	}
	if override.YouTube.BaseURL != "" {
		base.YouTube.BaseURL = override.YouTube.BaseURL
	}
	if len(override.YouTube.Keywords) > 0 {
		base.YouTube.Keywords = override.YouTube.Keywords
	}
	if override.YouTube.MaxResults > 0 {
		base.YouTube.MaxResults = override.YouTube.MaxResults
	}
	if override.YouTube.Pause > 0 {
		base.YouTube.Pause = override.YouTube.Pause
	}

	if override.Forum.BaseURL != "" {
		base.Forum.BaseURL = override.Forum.BaseURL
	}
	if override.Forum.Pages > 0 {
		base.Forum.Pages = override.Forum.Pages
	}
	if override.Forum.TopicCap > 0 {
		base.Forum.TopicCap = override.Forum.TopicCap
	}
	if override.Forum.Pause > 0 {
		base.Forum.Pause = override.Forum.Pause
	}

	if override.Trends.BaseURL != "" {
		base.Trends.BaseURL = override.Trends.BaseURL
	}
	if len(override.Trends.Keywords) > 0 {
		base.Trends.Keywords = override.Trends.Keywords
	}
	if override.Trends.Timeframe != "" {
		base.Trends.Timeframe = override.Trends.Timeframe
	}
	if override.Trends.Language != "" {
		base.Trends.Language = override.Trends.Language
	}
	if override.Trends.TZOffset != 0 {
		base.Trends.TZOffset = override.Trends.TZOffset
	}
	if override.Trends.Lookback > 0 {
		base.Trends.Lookback = override.Trends.Lookback
	}
	if len(override.Trends.Regions) > 0 {
		base.Trends.Regions = override.Trends.Regions
	}
	if override.Trends.DefaultRegion != "" {
		base.Trends.DefaultRegion = override.Trends.DefaultRegion
	}
	if override.Trends.Pause > 0 {
		base.Trends.Pause = override.Trends.Pause
	}

	return base
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func defaultConfig() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		HTTP:     HTTPConfig{Addr: ":8000", ShutdownTimeout: 10 * time.Second},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "workflows.db"},
		Scheduler: SchedulerConfig{
			Enabled:  false,
			Interval: 24 * time.Hour,
		},
		Collection: CollectionConfig{Countries: []string{"US", "IN"}},
		YouTube: YouTubeConfig{
			BaseURL:    "https://www.googleapis.com",
			MaxResults: 10,
			Pause:      400 * time.Millisecond,
		},
		Forum: ForumConfig{
			BaseURL:  "https://community.n8n.io",
			Pages:    5,
			TopicCap: 80,
			Pause:    200 * time.Millisecond,
		},
		Trends: TrendsConfig{
			BaseURL:       "https://trends.google.com",
			Timeframe:     "today 3-m",
			Language:      "en-US",
			Lookback:      30,
			Regions:       map[string]string{"US": "US", "IN": "IN"},
			DefaultRegion: "IN",
			Pause:         time.Second,
		},
	}
}
