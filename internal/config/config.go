// Package config provides unified configuration loading for the copilot.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the copilot.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	LLM           LLMConfig           `yaml:"llm"`
	Copilot       CopilotConfig       `yaml:"copilot"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
	Table    string         `yaml:"table"`
	MaxRows  int            `yaml:"max_rows"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// LLMConfig holds completion service settings.
type LLMConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	APIKeys     []string      `yaml:"api_keys"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
}

// CopilotConfig holds pipeline settings.
type CopilotConfig struct {
	DataDir             string  `yaml:"data_dir"`
	CatalogPath         string  `yaml:"catalog_path"`
	FixturePath         string  `yaml:"fixture_path"`
	MetricsPath         string  `yaml:"metrics_path"`
	RulesPath           string  `yaml:"rules_path"`
	ExamplesPath        string  `yaml:"examples_path"`
	MatchThreshold      float64 `yaml:"match_threshold"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	HistoryTurns        int     `yaml:"history_turns"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8090,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     60 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path:         "data/trips.db",
				MaxOpenConns: 1,
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
			Table:   "trips_full",
			MaxRows: 1000,
		},
		LLM: LLMConfig{
			BaseURL:     "https://openrouter.ai/api/v1/chat/completions",
			Model:       "google/gemini-2.5-flash",
			Timeout:     60 * time.Second,
			Temperature: 0,
			MaxTokens:   1024,
		},
		Copilot: CopilotConfig{
			DataDir:             "data",
			CatalogPath:         "data/schema.md",
			FixturePath:         "data/question_bank.csv",
			MetricsPath:         "data/kb/metric_definitions.md",
			RulesPath:           "data/kb/business_rules.md",
			ExamplesPath:        "data/nl_examples.json",
			MatchThreshold:      0.55,
			ConfidenceThreshold: 0.6,
			HistoryTurns:        10,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "debug",
			LogFormat:   "json",
			ServiceName: "copilot",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}

	if c.Database.MaxRows < 1 {
		return fmt.Errorf("max_rows must be positive")
	}

	if c.Copilot.MatchThreshold < 0 || c.Copilot.MatchThreshold > 1 {
		return fmt.Errorf("match_threshold must be in [0, 1]")
	}

	if c.Copilot.ConfidenceThreshold < 0 || c.Copilot.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be in [0, 1]")
	}

	return nil
}

// DatabaseDSN returns the appropriate database connection string.
func (c *Config) DatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLite.Path
	}
	return c.Database.Postgres.DSN
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Database.Driver = "sqlite"
			cfg.Database.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Database.Driver = "postgres"
			cfg.Database.Postgres.DSN = v
		}
	}

	// Supports 1..n keys: LLM_API_KEY plus numbered variants.
	var keys []string
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		keys = append(keys, v)
	}
	for _, name := range []string{"LLM_API_KEY_2", "LLM_API_KEY_3"} {
		if v := os.Getenv(name); v != "" {
			keys = append(keys, v)
		}
	}
	if len(keys) > 0 {
		cfg.LLM.APIKeys = keys
	}

	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}

	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}

	if v := os.Getenv("COPILOT_DATA_DIR"); v != "" {
		cfg.Copilot.DataDir = v
		cfg.Copilot.CatalogPath = filepath.Join(v, "schema.md")
		cfg.Copilot.FixturePath = filepath.Join(v, "question_bank.csv")
		cfg.Copilot.MetricsPath = filepath.Join(v, "kb", "metric_definitions.md")
		cfg.Copilot.RulesPath = filepath.Join(v, "kb", "business_rules.md")
		cfg.Copilot.ExamplesPath = filepath.Join(v, "nl_examples.json")
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}

// ResolveRelativePath resolves a path relative to the config file location.
func ResolveRelativePath(configPath, targetPath string) string {
	if filepath.IsAbs(targetPath) {
		return targetPath
	}
	configDir := filepath.Dir(configPath)
	return filepath.Join(configDir, targetPath)
}
