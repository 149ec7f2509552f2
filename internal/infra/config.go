package infra

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds every runtime setting. Values load from YAML first, then
// environment variables override them, so credentials and deploy-specific
// endpoints never need to live in the file.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Stream struct {
		URL             string `yaml:"url"`
		PingIntervalSec int    `yaml:"ping_interval_sec"`
		ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	} `yaml:"stream"`

	API struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"api"`

	Store struct {
		InboxSize    int `yaml:"inbox_size"`
		TradeHistory int `yaml:"trade_history"`
	} `yaml:"store"`

	Vault struct {
		KeyFile string `yaml:"key_file"`
	} `yaml:"vault"`

	Metrics struct {
		Enabled    bool   `yaml:"enabled"`
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"metrics"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// envOverrides maps TRADESYNC_* environment variables onto config fields.
type envOverrides struct {
	StreamURL  string `envconfig:"STREAM_URL"`
	APIBaseURL string `envconfig:"API_BASE_URL"`
	LogLevel   string `envconfig:"LOG_LEVEL"`
	VaultKey   string `envconfig:"VAULT_KEY_FILE"`
}

// LoadConfig reads and validates the config file. A .env file in the working
// directory is loaded first so local development overrides work without
// exporting anything.
func LoadConfig(path string) (*Config, error) {
	// Best effort: absence of .env is the normal production case.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	var env envOverrides
	if err := envconfig.Process("tradesync", &env); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	applyOverrides(&cfg, env)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func applyOverrides(cfg *Config, env envOverrides) {
	if env.StreamURL != "" {
		cfg.Stream.URL = env.StreamURL
	}
	if env.APIBaseURL != "" {
		cfg.API.BaseURL = env.APIBaseURL
	}
	if env.LogLevel != "" {
		cfg.Logging.Level = env.LogLevel
	}
	if env.VaultKey != "" {
		cfg.Vault.KeyFile = env.VaultKey
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Stream.PingIntervalSec <= 0 {
		cfg.Stream.PingIntervalSec = 30
	}
	if cfg.Stream.ReadTimeoutSec <= 0 {
		cfg.Stream.ReadTimeoutSec = 60
	}
	if cfg.Store.InboxSize <= 0 {
		cfg.Store.InboxSize = 1024
	}
	if cfg.Store.TradeHistory <= 0 {
		cfg.Store.TradeHistory = 50
	}
	if cfg.Metrics.ListenAddr == "" {
		cfg.Metrics.ListenAddr = "localhost:9180"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Stream.URL, "ws://") && !strings.HasPrefix(c.Stream.URL, "wss://") {
		return fmt.Errorf("invalid stream URL: %s", c.Stream.URL)
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("invalid API base URL: %s", c.API.BaseURL)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %s", c.Logging.Level)
	}
	return nil
}
