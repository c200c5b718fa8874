package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv blanks every variable Load consults so ambient shell state cannot
// leak into assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PERSONACHAT_ADDR", "PERSONACHAT_PROVIDER", "PERSONACHAT_REDIS_ADDR",
		"OPENROUTER_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "CLAUDE_API_KEY",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BasicConfig.ServerAddress != ":8090" {
		t.Errorf("server address = %q, want :8090", cfg.BasicConfig.ServerAddress)
	}
	if cfg.BasicConfig.Provider != "openai" {
		t.Errorf("provider = %q, want openai", cfg.BasicConfig.Provider)
	}
	if got := cfg.BasicConfig.RequestTimeout(); got != time.Minute {
		t.Errorf("request timeout = %v, want 1m", got)
	}
	if cfg.BasicConfig.MaxPromptTokens != 8192 {
		t.Errorf("max prompt tokens = %d, want 8192", cfg.BasicConfig.MaxPromptTokens)
	}

	prov, err := cfg.ActiveProvider()
	if err != nil {
		t.Fatalf("ActiveProvider: %v", err)
	}
	if prov.BaseURL != "https://openrouter.ai/api/v1" {
		t.Errorf("base url = %q", prov.BaseURL)
	}
	if prov.Model != "z-ai/glm-4.5-air:free" {
		t.Errorf("model = %q", prov.Model)
	}
	if cfg.Redis.Enabled() {
		t.Error("redis enabled without configuration")
	}
}

func TestLoadMissingExplicitPath(t *testing.T) {
	clearEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for explicitly named missing file")
	}
}

func TestLoadLayersFileOverDefaults(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `{
		"basic_config": {
			"server_address": ":9999",
			"max_prompt_tokens": 0
		},
		"providers": {
			"openai": {"base_url": "https://openrouter.ai/api/v1", "model": "z-ai/glm-4.5-air:free", "api_key": "file-key"}
		}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BasicConfig.ServerAddress != ":9999" {
		t.Errorf("server address = %q, want :9999", cfg.BasicConfig.ServerAddress)
	}
	if cfg.BasicConfig.MaxPromptTokens != 0 {
		t.Errorf("max prompt tokens = %d, want 0 (explicitly disabled)", cfg.BasicConfig.MaxPromptTokens)
	}
	if cfg.BasicConfig.SessionTTLMinutes != 120 {
		t.Errorf("session ttl = %d, want default 120", cfg.BasicConfig.SessionTTLMinutes)
	}

	prov, err := cfg.ActiveProvider()
	if err != nil {
		t.Fatalf("ActiveProvider: %v", err)
	}
	if prov.APIKey != "file-key" {
		t.Errorf("api key = %q, want file-key", prov.APIKey)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PERSONACHAT_ADDR", ":7070")
	t.Setenv("PERSONACHAT_PROVIDER", "gemini")
	t.Setenv("PERSONACHAT_REDIS_ADDR", "cache.internal:6380")
	t.Setenv("GEMINI_API_KEY", "env-gemini-key")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BasicConfig.ServerAddress != ":7070" {
		t.Errorf("server address = %q, want :7070", cfg.BasicConfig.ServerAddress)
	}
	if cfg.BasicConfig.Provider != "gemini" {
		t.Errorf("provider = %q, want gemini", cfg.BasicConfig.Provider)
	}
	if !cfg.Redis.Enabled() {
		t.Fatal("redis should be enabled via PERSONACHAT_REDIS_ADDR")
	}
	if got := cfg.Redis.Addr(); got != "cache.internal:6380" {
		t.Errorf("redis addr = %q", got)
	}

	prov, err := cfg.ActiveProvider()
	if err != nil {
		t.Fatalf("ActiveProvider: %v", err)
	}
	if prov.APIKey != "env-gemini-key" {
		t.Errorf("api key = %q, want env-gemini-key", prov.APIKey)
	}
}

func TestLoadEnvKeyPrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENROUTER_API_KEY", "router-key")
	t.Setenv("OPENAI_API_KEY", "openai-key")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	prov, err := cfg.ActiveProvider()
	if err != nil {
		t.Fatalf("ActiveProvider: %v", err)
	}
	if prov.APIKey != "router-key" {
		t.Errorf("api key = %q, want OPENROUTER_API_KEY to win", prov.APIKey)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `{"basic_config": {"provider": "nope"}}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestRedisAddrDefaultsPort(t *testing.T) {
	r := RedisConfig{Host: "localhost"}
	if got := r.Addr(); got != "localhost:6379" {
		t.Errorf("addr = %q, want localhost:6379", got)
	}
}
