// Package config loads the Cadenza configuration from a YAML file with
// environment variable overrides. Policy knobs the source history diverged
// on (compaction threshold, sensitive-tool set) are explicit values here
// rather than code constants.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	Reasoner   ReasonerConfig   `yaml:"reasoner"`
	Compaction CompactionConfig `yaml:"compaction"`
	Retry      RetryConfig      `yaml:"retry"`
	Tools      ToolsConfig      `yaml:"tools"`
	Guard      GuardConfig      `yaml:"guard"`
	Store      StoreConfig      `yaml:"store"`
	HTTP       HTTPConfig       `yaml:"http"`
}

// ReasonerConfig selects the reasoning engine models.
type ReasonerConfig struct {
	// Model generates handler replies and summaries.
	Model string `yaml:"model"`
	// DecisionModel scores routing and guard decisions. Defaults to Model.
	DecisionModel string `yaml:"decision_model"`
	// APIKey is normally supplied via GEMINI_API_KEY.
	APIKey string `yaml:"api_key"`
	// Timeout bounds each reasoning call.
	Timeout time.Duration `yaml:"timeout"`
	// MaxEmptyRetries bounds the degenerate-reply retry loop.
	MaxEmptyRetries int `yaml:"max_empty_retries"`
}

// CompactionConfig controls rolling history compaction.
type CompactionConfig struct {
	// Threshold is the message count that triggers compaction.
	Threshold int `yaml:"threshold"`
}

// RetryConfig is the transient-failure backoff policy for tool execution.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	Factor       float64       `yaml:"factor"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// ToolsConfig bounds the handler tool loop.
type ToolsConfig struct {
	// MaxRounds caps respond→execute cycles per handler invocation.
	MaxRounds int `yaml:"max_rounds"`
	// Timeout bounds each tool execution attempt.
	Timeout time.Duration `yaml:"timeout"`
}

// GuardConfig toggles the prompt-injection screen.
type GuardConfig struct {
	Enabled bool `yaml:"enabled"`
}

// StoreConfig selects the persistence backends.
type StoreConfig struct {
	// RedisURL enables the Redis state store when non-empty; otherwise
	// state lives in memory.
	RedisURL string `yaml:"redis_url"`
	// SQLitePath locates the record store database file.
	SQLitePath string `yaml:"sqlite_path"`
	// StateKey enables at-rest encryption of session state when non-empty.
	// Base64-encoded 32-byte key (AES-256).
	StateKey string `yaml:"state_key"`
	// RedactPatterns are regexes masked out of persisted transcripts.
	RedactPatterns []string `yaml:"redact_patterns"`
}

// HTTPConfig configures the serve command.
type HTTPConfig struct {
	Port string `yaml:"port"`
}

// Default returns the canonical configuration.
func Default() Config {
	return Config{
		Reasoner: ReasonerConfig{
			Model:           "gemini-2.0-flash",
			Timeout:         30 * time.Second,
			MaxEmptyRetries: 3,
		},
		Compaction: CompactionConfig{Threshold: 15},
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			Factor:       2.0,
			MaxDelay:     60 * time.Second,
		},
		Tools: ToolsConfig{
			MaxRounds: 5,
			Timeout:   15 * time.Second,
		},
		Guard: GuardConfig{Enabled: true},
		Store: StoreConfig{
			SQLitePath: "cadenza.db",
		},
		HTTP: HTTPConfig{Port: "8080"},
	}
}

// Load reads the config file at path (optional) and applies environment
// overrides on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if cfg.Reasoner.DecisionModel == "" {
		cfg.Reasoner.DecisionModel = cfg.Reasoner.Model
	}
	return cfg, cfg.validate()
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Reasoner.APIKey = v
	}
	if v := os.Getenv("CADENZA_MODEL"); v != "" {
		cfg.Reasoner.Model = v
	}
	if v := os.Getenv("CADENZA_REDIS_URL"); v != "" {
		cfg.Store.RedisURL = v
	}
	if v := os.Getenv("CADENZA_SQLITE_PATH"); v != "" {
		cfg.Store.SQLitePath = v
	}
	if v := os.Getenv("CADENZA_STATE_KEY"); v != "" {
		cfg.Store.StateKey = v
	}
	if v := os.Getenv("CADENZA_HTTP_PORT"); v != "" {
		cfg.HTTP.Port = v
	}
	if v := os.Getenv("CADENZA_COMPACTION_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Compaction.Threshold = n
		}
	}
	if v := os.Getenv("CADENZA_GUARD_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Guard.Enabled = b
		}
	}
}

func (c Config) validate() error {
	if c.Compaction.Threshold < 3 {
		return fmt.Errorf("compaction threshold must be at least 3, got %d", c.Compaction.Threshold)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.Factor < 1 {
		return fmt.Errorf("retry factor must be >= 1, got %v", c.Retry.Factor)
	}
	if c.Tools.MaxRounds < 1 {
		return fmt.Errorf("tools max_rounds must be at least 1, got %d", c.Tools.MaxRounds)
	}
	return nil
}
