// Package config loads toki's YAML configuration with environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envPrefix = "TOKI"

// Config is the process configuration, loaded from config.yaml in the data
// directory and overridden by TOKI_* environment variables. User-facing
// tracking settings live in the database, not here.
type Config struct {
	DataDir         string            `yaml:"data_dir" envconfig:"DATA_DIR"`
	TickInterval    time.Duration     `yaml:"tick_interval" envconfig:"TICK_INTERVAL"`
	Probe           string            `yaml:"probe" envconfig:"PROBE"`
	LogLevel        string            `yaml:"log_level" envconfig:"LOG_LEVEL"`
	Encrypt         bool              `yaml:"encrypt" envconfig:"ENCRYPT"`
	WorkingDir      string            `yaml:"working_dir" envconfig:"WORKING_DIR"`
	MaxPendingSpans int               `yaml:"max_pending_spans" envconfig:"MAX_PENDING_SPANS"`
	Integrations    IntegrationConfig `yaml:"integrations" ignored:"true"`
	AI              AIConfig          `yaml:"ai" ignored:"true"`
}

type IntegrationConfig struct {
	GitHub GitHubConfig `yaml:"github"`
}

// GitHubConfig names the repository issues live in and the environment
// variable holding the token when none is stored in the database.
type GitHubConfig struct {
	Repo     string `yaml:"repo"`
	TokenEnv string `yaml:"token_env"`
	BaseURL  string `yaml:"base_url"`
}

type AIConfig struct {
	OpenAI OpenAIConfig `yaml:"openai"`
	Ollama OllamaConfig `yaml:"ollama"`
}

type OpenAIConfig struct {
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

type OllamaConfig struct {
	URL   string `yaml:"url"`
	Model string `yaml:"model"`
}

// Load reads config.yaml from the data directory (a missing file is fine),
// applies TOKI_* overrides, fills defaults, and validates.
func Load() (*Config, error) {
	dir, err := DefaultDataDir()
	if err != nil {
		return nil, err
	}
	if env := os.Getenv(envPrefix + "_DATA_DIR"); env != "" {
		dir = env
	}
	return LoadFile(filepath.Join(dir, "config.yaml"))
}

// LoadFile is Load with an explicit file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Dir(path)
	}
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse unmarshals YAML bytes into a validated Config without consulting
// the environment.
func Parse(data []byte) (*Config, error) {
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	return &cfg, nil
}

func (c *Config) finish() error {
	if err := c.applyDefaults(); err != nil {
		return err
	}
	return c.validate()
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() error {
	if c.DataDir == "" {
		dir, err := DefaultDataDir()
		if err != nil {
			return err
		}
		c.DataDir = dir
	}
	if c.TickInterval == 0 {
		c.TickInterval = 10 * time.Second
	}
	if c.Probe == "" {
		c.Probe = "auto"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.MaxPendingSpans == 0 {
		c.MaxPendingSpans = 256
	}
	if c.Integrations.GitHub.TokenEnv == "" {
		c.Integrations.GitHub.TokenEnv = "GITHUB_TOKEN"
	}
	if c.AI.OpenAI.Model == "" {
		c.AI.OpenAI.Model = "gpt-4o-mini"
	}
	if c.AI.OpenAI.APIKeyEnv == "" {
		c.AI.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.AI.Ollama.URL == "" {
		c.AI.Ollama.URL = "http://localhost:11434"
	}
	if c.AI.Ollama.Model == "" {
		c.AI.Ollama.Model = "nomic-embed-text"
	}
	return nil
}

// validate checks that all fields are consistent.
func (c *Config) validate() error {
	var errs []string
	if c.TickInterval < time.Second {
		errs = append(errs, fmt.Sprintf("tick_interval must be at least 1s, got %s", c.TickInterval))
	}
	switch c.Probe {
	case "auto", "linux", "darwin", "static":
	default:
		errs = append(errs, fmt.Sprintf("probe must be one of auto, linux, darwin, static; got %q", c.Probe))
	}
	if c.MaxPendingSpans < 1 {
		errs = append(errs, "max_pending_spans must be positive")
	}
	if r := c.Integrations.GitHub.Repo; r != "" && len(strings.Split(r, "/")) != 2 {
		errs = append(errs, fmt.Sprintf("integrations.github.repo must be owner/name, got %q", r))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DefaultDataDir returns the per-user local data directory for toki.
func DefaultDataDir() (string, error) {
	if runtime.GOOS == "darwin" {
		cfg, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(cfg, "toki"), nil
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "toki"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "toki"), nil
}

func (c *Config) DBPath() string     { return filepath.Join(c.DataDir, "toki.db") }
func (c *Config) KeyPath() string    { return filepath.Join(c.DataDir, ".toki.key") }
func (c *Config) PIDPath() string    { return filepath.Join(c.DataDir, "toki.pid") }
func (c *Config) SocketPath() string { return filepath.Join(c.DataDir, "toki.sock") }
func (c *Config) LogPath() string    { return filepath.Join(c.DataDir, "toki.log") }
