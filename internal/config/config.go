package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// DefaultProvider is used when neither the flags nor the config name one.
const DefaultProvider = "anthropic"

// keyedProviders are the providers that accept an API key.
var keyedProviders = []string{"anthropic", "openai", "openrouter", "deepseek", "litellm", "openai-compatible"}

// Config holds all application configuration
type Config struct {
	// API keys and base URLs by provider name
	APIKeys  map[string]string `json:"api_keys,omitempty"`
	BaseURLs map[string]string `json:"base_urls,omitempty"`

	// Defaults
	DefaultProvider string `json:"default_provider,omitempty"`
	DefaultModel    string `json:"default_model,omitempty"`
	Region          string `json:"region,omitempty"`
	ChunkSize       int    `json:"chunk_size,omitempty"`
	DelayMS         *int   `json:"delay_ms,omitempty"`
	NATSURL         string `json:"nats_url,omitempty"`
}

var (
	configDir  string
	configFile string
	current    *Config
)

func init() {
	// Use ~/.config/rulefy for config
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	configDir = filepath.Join(home, ".config", "rulefy")
	configFile = filepath.Join(configDir, "config.json")
}

// Load reads the config from disk
func Load() (*Config, error) {
	if current != nil {
		return current, nil
	}

	cfg := &Config{
		DefaultProvider: DefaultProvider,
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		if os.IsNotExist(err) {
			current = cfg
			return current, nil // Return default config
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	current = cfg
	return current, nil
}

// Save writes the config to disk
func Save(cfg *Config) error {
	// Ensure config directory exists
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	current = cfg
	return nil
}

// Get returns the current config, loading if necessary. A config file that
// cannot be parsed yields the defaults.
func Get() *Config {
	if current == nil {
		if _, err := Load(); err != nil {
			return &Config{DefaultProvider: DefaultProvider}
		}
	}
	return current
}

// providerKey maps "openai" and "openai_api_key" to "openai".
func providerKey(key string) (string, bool) {
	name := strings.TrimSuffix(key, "_api_key")
	return name, slices.Contains(keyedProviders, name)
}

// providerURL maps "litellm_url" to "litellm".
func providerURL(key string) (string, bool) {
	name, ok := strings.CutSuffix(key, "_url")
	return name, ok && name != "nats" && name != ""
}

// Set updates a config value by key
func Set(key, value string) error {
	cfg, err := Load()
	if err != nil {
		return err
	}

	switch key {
	case "default_provider", "provider":
		cfg.DefaultProvider = value
	case "default_model", "model":
		cfg.DefaultModel = value
	case "region":
		cfg.Region = value
	case "nats_url":
		cfg.NATSURL = value
	case "chunk_size":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("chunk_size must be a positive integer, got %q", value)
		}
		cfg.ChunkSize = n
	case "delay_ms", "delay":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("delay_ms must be a non-negative integer, got %q", value)
		}
		cfg.DelayMS = &n
	default:
		if name, ok := providerKey(key); ok {
			if cfg.APIKeys == nil {
				cfg.APIKeys = map[string]string{}
			}
			cfg.APIKeys[name] = value
			break
		}
		if name, ok := providerURL(key); ok {
			if cfg.BaseURLs == nil {
				cfg.BaseURLs = map[string]string{}
			}
			cfg.BaseURLs[name] = value
			break
		}
		return fmt.Errorf("unknown config key: %s", key)
	}

	return Save(cfg)
}

// Delete removes a config value
func Delete(key string) error {
	cfg, err := Load()
	if err != nil {
		return err
	}

	switch key {
	case "default_provider", "provider":
		cfg.DefaultProvider = ""
	case "default_model", "model":
		cfg.DefaultModel = ""
	case "region":
		cfg.Region = ""
	case "nats_url":
		cfg.NATSURL = ""
	case "chunk_size":
		cfg.ChunkSize = 0
	case "delay_ms", "delay":
		cfg.DelayMS = nil
	default:
		if name, ok := providerKey(key); ok {
			delete(cfg.APIKeys, name)
			break
		}
		if name, ok := providerURL(key); ok {
			delete(cfg.BaseURLs, name)
			break
		}
		return fmt.Errorf("unknown config key: %s", key)
	}

	return Save(cfg)
}

// APIKey returns the key for a provider from the config file, falling back
// to envVar. Its signature fits llm.WithKeyResolver.
func APIKey(provider, envVar string) string {
	if key := Get().APIKeys[provider]; key != "" {
		return key
	}
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}

// BaseURL returns the configured base URL for a provider, if any.
func BaseURL(provider string) string {
	return Get().BaseURLs[provider]
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	return configFile
}

// ListKeys returns configured values (keys masked for display). envVars maps
// provider names to the environment variable holding their key.
func ListKeys(envVars map[string]string) map[string]string {
	cfg := Get()
	result := make(map[string]string)

	for _, name := range keyedProviders {
		k := name + "_api_key"
		if key := cfg.APIKeys[name]; key != "" {
			result[k] = maskKey(key)
		} else if env := envVars[name]; env != "" && os.Getenv(env) != "" {
			result[k] = maskKey(os.Getenv(env)) + " (env)"
		}
	}
	for name, url := range cfg.BaseURLs {
		result[name+"_url"] = url
	}

	if cfg.DefaultProvider != "" {
		result["default_provider"] = cfg.DefaultProvider
	}
	if cfg.DefaultModel != "" {
		result["default_model"] = cfg.DefaultModel
	}
	if cfg.Region != "" {
		result["region"] = cfg.Region
	}
	if cfg.ChunkSize > 0 {
		result["chunk_size"] = strconv.Itoa(cfg.ChunkSize)
	}
	if cfg.DelayMS != nil {
		result["delay_ms"] = strconv.Itoa(*cfg.DelayMS)
	}
	if cfg.NATSURL != "" {
		result["nats_url"] = cfg.NATSURL
	}

	return result
}

// maskKey shows only first 4 and last 4 characters
func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
