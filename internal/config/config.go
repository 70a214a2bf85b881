package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all sasbridge configuration.
type Config struct {
	// HTTP API settings
	Server ServerConfig `yaml:"server"`

	// Static analysis settings
	Analysis AnalysisConfig `yaml:"analysis"`

	// Local SAS execution
	Runner RunnerConfig `yaml:"runner"`

	// LLM configuration for conversion and enrichment
	LLM LLMConfig `yaml:"llm"`

	// Task persistence
	Store StoreConfig `yaml:"store"`

	// Watch mode
	Watch WatchConfig `yaml:"watch"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// AnalysisConfig configures the analysis passes.
type AnalysisConfig struct {
	// Token budget per chunk, approximated at four characters per token
	MaxTokenSize int `yaml:"max_token_size"`

	// Concurrent workers for directory analysis
	Workers int `yaml:"workers"`

	// Glob for discovering source files, doublestar syntax
	FilePattern string `yaml:"file_pattern"`
}

// RunnerConfig configures execution of converted scripts.
type RunnerConfig struct {
	// Interpreter for converted Python scripts
	Command string `yaml:"command"`

	// Directory for staged scripts and logs
	WorkDir string `yaml:"work_dir"`

	// Per-run timeout
	Timeout string `yaml:"timeout"`

	// Log lines retained per run
	LogBuffer int `yaml:"log_buffer"`

	// Cap on captured process output in bytes
	MaxLogSize int64 `yaml:"max_log_size"`
}

// LLMConfig configures model access.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // openai, azure, gemini
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	Timeout     string  `yaml:"timeout"`
}

// StoreConfig configures task persistence.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8750,
			ShutdownTimeout: "5s",
		},

		Analysis: AnalysisConfig{
			MaxTokenSize: 1000,
			Workers:      4,
			FilePattern:  "**/*.sas",
		},

		Runner: RunnerConfig{
			Command:    "python3",
			WorkDir:    ".sasbridge/runs",
			Timeout:    "10m",
			LogBuffer:  1000,
			MaxLogSize: 10 * 1024 * 1024,
		},

		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o",
			MaxTokens:   4000,
			Temperature: 0.0,
			Timeout:     "120s",
		},

		Store: StoreConfig{
			Path: ".sasbridge/tasks.db",
		},

		Watch: WatchConfig{
			Debounce: "500ms",
		},
	}
}

// DefaultConfigPath returns the default path to .sasbridge/config.yaml.
func DefaultConfigPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return filepath.Join(".sasbridge", "config.yaml")
	}
	return filepath.Join(cwd, ".sasbridge", "config.yaml")
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Defaults plus environment apply when no file exists
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// API keys in priority order; the matching provider follows the key so a
	// bare environment works without any file. An explicit SASBRIDGE_LLM_
	// override below still wins.
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}
	if key := os.Getenv("AZURE_OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "azure"
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "openai"
	}

	if v := os.Getenv("SASBRIDGE_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("SASBRIDGE_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("SASBRIDGE_LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("SASBRIDGE_LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}

	if v := os.Getenv("SASBRIDGE_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("SASBRIDGE_DB"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("SASBRIDGE_PYTHON"); v != "" {
		c.Runner.Command = v
	}
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetRunTimeout returns the script execution timeout as a duration.
func (c *Config) GetRunTimeout() time.Duration {
	d, err := time.ParseDuration(c.Runner.Timeout)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// GetShutdownTimeout returns the server shutdown grace period as a duration.
func (c *Config) GetShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ShutdownTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetWatchDebounce returns the watch debounce window as a duration.
func (c *Config) GetWatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}

// ValidProviders lists all supported LLM providers.
var ValidProviders = []string{"openai", "azure", "gemini"}

// Validate validates the configuration. A missing API key is not an error
// here: analysis and chunking never touch a model, so the key is only
// checked when a client is actually built.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Analysis.MaxTokenSize < 1 {
		return fmt.Errorf("analysis max_token_size must be positive, got %d", c.Analysis.MaxTokenSize)
	}
	if c.Analysis.Workers < 1 {
		return fmt.Errorf("analysis workers must be positive, got %d", c.Analysis.Workers)
	}
	if c.Runner.LogBuffer < 1 {
		return fmt.Errorf("runner log_buffer must be positive, got %d", c.Runner.LogBuffer)
	}

	validProvider := false
	for _, p := range ValidProviders {
		if c.LLM.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("invalid LLM temperature: %.2f (valid: 0..2)", c.LLM.Temperature)
	}

	return nil
}
