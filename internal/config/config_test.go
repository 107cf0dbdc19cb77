package config

import (
	"os"
	"path/filepath"
	"testing"
)

// withTempConfig points the package at a config file inside a temp dir.
func withTempConfig(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()

	oldConfigDir := configDir
	oldConfigFile := configFile
	configDir = tmpDir
	configFile = filepath.Join(tmpDir, "config.json")
	current = nil // Reset cached config
	t.Cleanup(func() {
		configDir = oldConfigDir
		configFile = oldConfigFile
		current = nil
	})
	return tmpDir
}

func TestMaskKey(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		expected string
	}{
		{
			name:     "short key",
			key:      "abc",
			expected: "****",
		},
		{
			name:     "exactly 8 chars",
			key:      "12345678",
			expected: "****",
		},
		{
			name:     "long key",
			key:      "sk-1234567890abcdef",
			expected: "sk-1...cdef",
		},
		{
			name:     "empty key",
			key:      "",
			expected: "****",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := maskKey(tt.key)
			if result != tt.expected {
				t.Errorf("maskKey(%q) = %q, want %q", tt.key, result, tt.expected)
			}
		})
	}
}

func TestConfigLoadSave(t *testing.T) {
	withTempConfig(t)

	// Loading a non-existent config returns defaults
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DefaultProvider != DefaultProvider {
		t.Errorf("default provider = %q, want %q", cfg.DefaultProvider, DefaultProvider)
	}

	delay := 0
	cfg.APIKeys = map[string]string{"openai": "test-key-12345"}
	cfg.DefaultModel = "gpt-4o"
	cfg.DelayMS = &delay
	if err := Save(cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(configFile)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config file mode = %o, want 600", perm)
	}

	// Reset cache and reload
	current = nil
	cfg2, err := Load()
	if err != nil {
		t.Fatalf("Load() after save error = %v", err)
	}
	if cfg2.APIKeys["openai"] != "test-key-12345" {
		t.Errorf("openai key = %q, want %q", cfg2.APIKeys["openai"], "test-key-12345")
	}
	if cfg2.DefaultModel != "gpt-4o" {
		t.Errorf("DefaultModel = %q, want %q", cfg2.DefaultModel, "gpt-4o")
	}
	if cfg2.DelayMS == nil || *cfg2.DelayMS != 0 {
		t.Errorf("DelayMS = %v, want explicit 0", cfg2.DelayMS)
	}
}

func TestConfigLoadInvalid(t *testing.T) {
	withTempConfig(t)
	if err := os.WriteFile(configFile, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(); err == nil {
		t.Error("Load() with invalid JSON should return error")
	}
	if got := Get().DefaultProvider; got != DefaultProvider {
		t.Errorf("Get() on invalid config = %q, want defaults", got)
	}
}

func TestConfigSet(t *testing.T) {
	withTempConfig(t)

	tests := []struct {
		key   string
		value string
		check func(*Config) bool
	}{
		{
			key:   "openai",
			value: "sk-test123",
			check: func(c *Config) bool { return c.APIKeys["openai"] == "sk-test123" },
		},
		{
			key:   "deepseek_api_key",
			value: "sk-deep",
			check: func(c *Config) bool { return c.APIKeys["deepseek"] == "sk-deep" },
		},
		{
			key:   "litellm_url",
			value: "http://proxy:4000",
			check: func(c *Config) bool { return c.BaseURLs["litellm"] == "http://proxy:4000" },
		},
		{
			key:   "provider",
			value: "openai",
			check: func(c *Config) bool { return c.DefaultProvider == "openai" },
		},
		{
			key:   "model",
			value: "gpt-4-turbo",
			check: func(c *Config) bool { return c.DefaultModel == "gpt-4-turbo" },
		},
		{
			key:   "chunk_size",
			value: "50000",
			check: func(c *Config) bool { return c.ChunkSize == 50000 },
		},
		{
			key:   "delay_ms",
			value: "250",
			check: func(c *Config) bool { return c.DelayMS != nil && *c.DelayMS == 250 },
		},
		{
			key:   "nats_url",
			value: "nats://localhost:4222",
			check: func(c *Config) bool { return c.NATSURL == "nats://localhost:4222" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := Set(tt.key, tt.value)
			if err != nil {
				t.Fatalf("Set(%q, %q) error = %v", tt.key, tt.value, err)
			}

			cfg := Get()
			if !tt.check(cfg) {
				t.Errorf("Set(%q, %q) did not update config correctly", tt.key, tt.value)
			}
		})
	}

	for _, bad := range [][2]string{
		{"unknown_key", "value"},
		{"ollama", "key"},
		{"chunk_size", "0"},
		{"chunk_size", "many"},
		{"delay_ms", "-1"},
	} {
		if err := Set(bad[0], bad[1]); err == nil {
			t.Errorf("Set(%q, %q) should return error", bad[0], bad[1])
		}
	}
}

func TestConfigDelete(t *testing.T) {
	withTempConfig(t)

	if err := Set("openai", "sk-test123"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := Set("delay_ms", "10"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if err := Delete("openai"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := Delete("delay_ms"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	cfg := Get()
	if cfg.APIKeys["openai"] != "" {
		t.Errorf("openai key = %q after delete, want empty", cfg.APIKeys["openai"])
	}
	if cfg.DelayMS != nil {
		t.Errorf("DelayMS = %v after delete, want nil", *cfg.DelayMS)
	}

	if err := Delete("unknown_key"); err == nil {
		t.Error("Delete() with unknown key should return error")
	}
}

func TestAPIKeyPrecedence(t *testing.T) {
	withTempConfig(t)
	t.Setenv("OPENAI_API_KEY", "env-test-key")

	// Env var is used when the config is empty
	if key := APIKey("openai", "OPENAI_API_KEY"); key != "env-test-key" {
		t.Errorf("APIKey() = %q, want %q", key, "env-test-key")
	}

	// Config value takes precedence
	if err := Set("openai", "config-test-key"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if key := APIKey("openai", "OPENAI_API_KEY"); key != "config-test-key" {
		t.Errorf("APIKey() with config = %q, want %q", key, "config-test-key")
	}

	if key := APIKey("ollama", ""); key != "" {
		t.Errorf("APIKey() without env var = %q, want empty", key)
	}
}

func TestListKeys(t *testing.T) {
	withTempConfig(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-environment")

	if err := Set("openai", "sk-openai-configured"); err != nil {
		t.Fatal(err)
	}
	if err := Set("ollama_url", "http://gpu-box:11434/v1"); err != nil {
		t.Fatal(err)
	}

	keys := ListKeys(map[string]string{"anthropic": "ANTHROPIC_API_KEY", "openai": "OPENAI_API_KEY"})

	if got := keys["openai_api_key"]; got != "sk-o...ured" {
		t.Errorf("openai_api_key = %q", got)
	}
	if got := keys["anthropic_api_key"]; got != "sk-a...ment (env)" {
		t.Errorf("anthropic_api_key = %q", got)
	}
	if got := keys["ollama_url"]; got != "http://gpu-box:11434/v1" {
		t.Errorf("ollama_url = %q", got)
	}
	if got := BaseURL("ollama"); got != "http://gpu-box:11434/v1" {
		t.Errorf("BaseURL() = %q", got)
	}
}

func TestConfigPath(t *testing.T) {
	path := ConfigPath()
	if path == "" {
		t.Error("ConfigPath() returned empty string")
	}
}
