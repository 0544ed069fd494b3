package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvironmentConfig holds the per-environment connection settings.
type EnvironmentConfig struct {
	BaseURL string `yaml:"baseUrl"`
	APIKey  string `yaml:"apiKey,omitempty"`
}

// Config is the on-disk configuration, read from ~/.chatlens/config.yaml.
// Values resolve lowest-priority-first: built-in defaults, then the config
// file, then CHATLENS_* environment variables, then command-line flags.
type Config struct {
	Environment  string                       `yaml:"environment"`
	StorePath    string                       `yaml:"storePath,omitempty"`
	Environments map[string]EnvironmentConfig `yaml:"environments"`
}

// DefaultConfigPath returns the standard config file location.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".chatlens", "config.yaml")
}

// DefaultStorePath returns the standard store database location.
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "chatlens.db"
	}
	return filepath.Join(home, ".chatlens", "chatlens.db")
}

// DefaultConfig returns the built-in configuration: staging active, base
// URLs pointing at the standard backend hosts, no keys.
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvStaging,
		StorePath:   DefaultStorePath(),
		Environments: map[string]EnvironmentConfig{
			EnvStaging:    {BaseURL: "https://staging-api.chatlens.example"},
			EnvProduction: {BaseURL: "https://api.chatlens.example"},
		},
	}
}

// LoadConfig reads the config file at path (the default location when path
// is empty), layering a .env file and CHATLENS_* variables on top. A missing
// config file is not an error; a malformed one is.
func LoadConfig(path string) (*Config, error) {
	// A .env in the working directory feeds the same variables as the shell.
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path == "" {
		path = DefaultConfigPath()
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		cfg.apply(&fileCfg)
		LogDebug("Loaded config from %s", path)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if env := os.Getenv("CHATLENS_ENV"); env != "" {
		cfg.Environment = env
	}
	if baseURL := os.Getenv("CHATLENS_BASE_URL"); baseURL != "" {
		envCfg := cfg.Environments[cfg.Environment]
		envCfg.BaseURL = baseURL
		cfg.Environments[cfg.Environment] = envCfg
	}
	if apiKey := os.Getenv("CHATLENS_API_KEY"); apiKey != "" {
		envCfg := cfg.Environments[cfg.Environment]
		envCfg.APIKey = apiKey
		cfg.Environments[cfg.Environment] = envCfg
	}
	if storePath := os.Getenv("CHATLENS_STORE"); storePath != "" {
		cfg.StorePath = storePath
	}

	if !ValidEnvironment(cfg.Environment) {
		return nil, fmt.Errorf("unknown environment %q (expected %s or %s)", cfg.Environment, EnvStaging, EnvProduction)
	}
	return cfg, nil
}

// apply merges non-empty fields of other over c.
func (c *Config) apply(other *Config) {
	if other.Environment != "" {
		c.Environment = other.Environment
	}
	if other.StorePath != "" {
		c.StorePath = other.StorePath
	}
	for name, envCfg := range other.Environments {
		merged := c.Environments[name]
		if envCfg.BaseURL != "" {
			merged.BaseURL = envCfg.BaseURL
		}
		if envCfg.APIKey != "" {
			merged.APIKey = envCfg.APIKey
		}
		c.Environments[name] = merged
	}
}

// ActiveEnvironment returns the selected environment's settings.
func (c *Config) ActiveEnvironment() (string, EnvironmentConfig) {
	return c.Environment, c.Environments[c.Environment]
}

// ResolveAPIKey picks the API key for the active environment: config and
// environment variables first, then the key persisted in the store.
func (c *Config) ResolveAPIKey(store KVStore) (string, error) {
	_, envCfg := c.ActiveEnvironment()
	if envCfg.APIKey != "" {
		return envCfg.APIKey, nil
	}
	key, ok, err := store.Get(KeyAPIKey)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return key, nil
}
