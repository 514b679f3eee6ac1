// Package config loads the YAML configuration for the tldr service and CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tldr-buffer/internal/extract"
	"tldr-buffer/internal/model"
	"tldr-buffer/internal/spa"
	"tldr-buffer/internal/store"
	"tldr-buffer/internal/summarize"

	"gopkg.in/yaml.v3"
)

// EnvPath names the environment variable holding the config file path.
const EnvPath = "TLDR_CONFIG"

// Config holds all configuration for the application.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Extraction    extract.Config      `yaml:"extraction"`
	Heuristic     extract.Heuristic   `yaml:"heuristic"`
	SPA           spa.Config          `yaml:"spa"`
	Summarization SummarizationConfig `yaml:"summarization"`
	Log           LogConfig           `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// Worker runs the background summarization worker next to the API.
	Worker bool `yaml:"worker"`
}

// StorageConfig selects the document store backend.
type StorageConfig struct {
	// Backend is "local" (Badger only) or "hybrid" (Redis index + Badger records).
	Backend    string `yaml:"backend"`
	BadgerPath string `yaml:"badger_path"`
	RedisAddr  string `yaml:"redis_addr"`
	Cap        int    `yaml:"cap"`
}

// SummarizationConfig holds provider credentials and defaults.
type SummarizationConfig struct {
	APIKey     string                    `yaml:"api_key"`
	BaseURL    string                    `yaml:"base_url"`
	Model      string                    `yaml:"model"`
	MaxRetries int                       `yaml:"max_retries"`
	BaseDelay  time.Duration             `yaml:"base_delay"`
	Defaults   model.SummarizationParams `yaml:"defaults"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns a config with every default applied.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

// Load reads the config file at path, applies defaults and environment
// overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		if cfg.Storage.BadgerPath != "" {
			cfg.Storage.BadgerPath = expandPath(cfg.Storage.BadgerPath, filepath.Dir(path))
		}
	}
	ApplyDefaults(&cfg)
	ApplyEnv(&cfg, os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills zero-valued fields.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8787
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 2 * time.Minute
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "local"
	}
	if cfg.Storage.BadgerPath == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			cfg.Storage.BadgerPath = filepath.Join(dir, "tldr", "badger")
		}
	}
	if cfg.Storage.RedisAddr == "" {
		cfg.Storage.RedisAddr = "localhost:6379"
	}
	if cfg.Storage.Cap == 0 {
		cfg.Storage.Cap = store.DefaultCap
	}
	d := extract.DefaultConfig()
	if cfg.Extraction.Timeout == 0 {
		cfg.Extraction.Timeout = d.Timeout
	}
	if cfg.Extraction.SPATimeout == 0 {
		cfg.Extraction.SPATimeout = d.SPATimeout
	}
	h := extract.NewHeuristic()
	if cfg.Heuristic.MinScore == 0 {
		cfg.Heuristic.MinScore = h.MinScore
	}
	if cfg.Heuristic.MinLength == 0 {
		cfg.Heuristic.MinLength = h.MinLength
	}
	if cfg.Heuristic.ShortBlock == 0 {
		cfg.Heuristic.ShortBlock = h.ShortBlock
	}
	cfg.SPA = cfg.SPA.WithDefaults()
	if cfg.Summarization.Model == "" {
		cfg.Summarization.Model = summarize.DefaultModel
	}
	if cfg.Summarization.MaxRetries == 0 {
		cfg.Summarization.MaxRetries = summarize.DefaultMaxRetries
	}
	if cfg.Summarization.BaseDelay == 0 {
		cfg.Summarization.BaseDelay = summarize.DefaultBaseDelay
	}
	def := model.DefaultParams()
	if cfg.Summarization.Defaults.Length == "" {
		cfg.Summarization.Defaults.Length = def.Length
	}
	if cfg.Summarization.Defaults.Style == "" {
		cfg.Summarization.Defaults.Style = def.Style
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// ApplyEnv overrides fields from the environment.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.Summarization.APIKey, "OPENAI_API_KEY")
	set(&cfg.Summarization.Model, "TLDR_MODEL")
	set(&cfg.Summarization.BaseURL, "TLDR_BASE_URL")
	set(&cfg.Storage.RedisAddr, "TLDR_REDIS_ADDR")
	set(&cfg.Storage.BadgerPath, "TLDR_BADGER_PATH")
	set(&cfg.Storage.Backend, "TLDR_STORE")
}

// Validate rejects values that would fail later in a less obvious place.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "local", "hybrid":
	default:
		return fmt.Errorf("storage.backend must be local or hybrid, got %q", c.Storage.Backend)
	}
	if c.Storage.Cap < 0 {
		return fmt.Errorf("storage.cap must be positive")
	}
	if err := c.Summarization.Defaults.Validate(); err != nil {
		return fmt.Errorf("summarization.defaults: %w", err)
	}
	if m := c.Extraction.PreferredMethod; m != "" && !m.Valid() {
		return fmt.Errorf("extraction.preferred_method: unknown method %q", m)
	}
	for _, m := range c.Extraction.DisabledMethods {
		if !m.Valid() {
			return fmt.Errorf("extraction.disabled_methods: unknown method %q", m)
		}
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// expandPath resolves "./"-relative paths against the config file's
// directory and "~/" against the home directory.
func expandPath(path, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
		return path
	}
	return filepath.Join(configDir, path)
}
