package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName            string        `mapstructure:"app_name"`
	Env                string        `mapstructure:"app_env"`
	LogLevel           string        `mapstructure:"log_level"`
	BaseURL            string        `mapstructure:"base_url"`
	HTTPTimeoutSeconds int64         `mapstructure:"http_timeout_seconds"`
	HTTPTimeout        time.Duration `mapstructure:"-"`
	StrictHealth       bool          `mapstructure:"strict_health"`
	PublishersFile     string        `mapstructure:"publishers_file"`

	// Submission guard. A fingerprint stays "already sent" for DedupeTTL.
	StorageType      string        `mapstructure:"storage_type"`
	BBoltPath        string        `mapstructure:"bbolt_path"`
	DedupeTTLSeconds int64         `mapstructure:"dedupe_ttl_seconds"`
	DedupeTTL        time.Duration `mapstructure:"-"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "bounce")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("base_url", "http://127.0.0.1:8000")
	v.SetDefault("http_timeout_seconds", 0) // transport default
	v.SetDefault("strict_health", false)
	v.SetDefault("publishers_file", "")
	v.SetDefault("storage_type", "none")
	v.SetDefault("bbolt_path", "./data/bounce.db")
	v.SetDefault("dedupe_ttl_seconds", int64((10*time.Minute)/time.Second))

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) normalize() error {
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid base_url %q (must be an absolute http url)", cfg.BaseURL)
	}

	if cfg.HTTPTimeoutSeconds < 0 {
		return fmt.Errorf("invalid http_timeout_seconds (must be zero or positive seconds)")
	}
	cfg.HTTPTimeout = time.Duration(cfg.HTTPTimeoutSeconds) * time.Second

	if cfg.DedupeTTLSeconds <= 0 {
		return fmt.Errorf("invalid dedupe_ttl_seconds (must be positive seconds)")
	}
	cfg.DedupeTTL = time.Duration(cfg.DedupeTTLSeconds) * time.Second

	cfg.StorageType = strings.ToLower(strings.TrimSpace(cfg.StorageType))
	switch cfg.StorageType {
	case "", "none":
		cfg.StorageType = "none"
	case "bbolt":
		cfg.BBoltPath = strings.TrimSpace(cfg.BBoltPath)
		if cfg.BBoltPath == "" {
			return fmt.Errorf("storage_type bbolt requires bbolt_path")
		}
	default:
		return fmt.Errorf("invalid storage_type %q (must be none or bbolt)", cfg.StorageType)
	}

	cfg.PublishersFile = strings.TrimSpace(cfg.PublishersFile)
	return nil
}
