package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Redis       RedisConfig               `json:"redis"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address"`
	// Provider names the Providers entry used for chat and persona
	// generation.
	Provider              string `json:"provider"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
	// MaxPromptTokens caps the assembled request size; 0 disables the cap.
	MaxPromptTokens   int `json:"max_prompt_tokens"`
	SessionTTLMinutes int `json:"session_ttl_minutes"`
	CatalogTTLMinutes int `json:"catalog_ttl_minutes"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	// VisionModel handles persona generation; empty means reuse Model.
	VisionModel string `json:"vision_model"`
	APIKey      string `json:"api_key"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// Enabled reports whether a Redis endpoint is configured at all.
func (r RedisConfig) Enabled() bool { return r.Host != "" }

func (r RedisConfig) Addr() string {
	port := r.Port
	if port == 0 {
		port = 6379
	}
	return fmt.Sprintf("%s:%d", r.Host, port)
}

func (b BasicConfig) RequestTimeout() time.Duration {
	return time.Duration(b.RequestTimeoutSeconds) * time.Second
}

func (b BasicConfig) SessionTTL() time.Duration {
	return time.Duration(b.SessionTTLMinutes) * time.Minute
}

func (b BasicConfig) CatalogTTL() time.Duration {
	return time.Duration(b.CatalogTTLMinutes) * time.Minute
}

// ActiveProvider resolves the provider entry named by basic_config.provider.
func (c *Config) ActiveProvider() (ProviderConfig, error) {
	prov, ok := c.Providers[c.BasicConfig.Provider]
	if !ok {
		return ProviderConfig{}, fmt.Errorf("unknown provider %q", c.BasicConfig.Provider)
	}
	return prov, nil
}

func defaults() *Config {
	return &Config{
		BasicConfig: BasicConfig{
			ServerAddress:         ":8090",
			Provider:              "openai",
			RequestTimeoutSeconds: 60,
			MaxPromptTokens:       8192,
			SessionTTLMinutes:     120,
			CatalogTTLMinutes:     60,
		},
		Providers: map[string]ProviderConfig{
			"openai": {
				BaseURL: "https://openrouter.ai/api/v1",
				Model:   "z-ai/glm-4.5-air:free",
			},
			"gemini": {
				Model: "gemini-2.5-flash",
			},
			"claude": {
				Model: "claude-sonnet-4-20250514",
			},
		},
	}
}

// Load reads configuration from the provided path (defaults to config.json),
// layering file values over built-in defaults and environment variables over
// both. A missing file is only an error when the path was given explicitly;
// otherwise defaults plus environment may fully configure the service.
func Load(path string) (*Config, error) {
	cfg := defaults()

	explicit := path != ""
	if path == "" {
		path = "config.json"
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	switch {
	case err == nil:
		defer file.Close()
		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		// No config file; run on defaults and environment.
	default:
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	applyEnv(cfg)

	if cfg.BasicConfig.Provider == "" {
		return nil, fmt.Errorf("provider must be configured")
	}
	if _, ok := cfg.Providers[cfg.BasicConfig.Provider]; !ok {
		return nil, fmt.Errorf("unknown provider %q", cfg.BasicConfig.Provider)
	}
	if cfg.BasicConfig.RequestTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("request_timeout_seconds must be positive")
	}

	return cfg, nil
}

// providerKeyEnv maps a provider name to the environment variables that may
// carry its API key, in precedence order.
var providerKeyEnv = map[string][]string{
	"openai": {"OPENROUTER_API_KEY", "OPENAI_API_KEY"},
	"gemini": {"GEMINI_API_KEY"},
	"claude": {"CLAUDE_API_KEY"},
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PERSONACHAT_ADDR"); v != "" {
		cfg.BasicConfig.ServerAddress = v
	}
	if v := os.Getenv("PERSONACHAT_PROVIDER"); v != "" {
		cfg.BasicConfig.Provider = v
	}
	if v := os.Getenv("PERSONACHAT_REDIS_ADDR"); v != "" {
		host, portStr, ok := strings.Cut(v, ":")
		cfg.Redis.Host = host
		if ok {
			if port, err := strconv.Atoi(portStr); err == nil {
				cfg.Redis.Port = port
			}
		}
	}

	for name, envs := range providerKeyEnv {
		prov, ok := cfg.Providers[name]
		if !ok {
			continue
		}
		for _, env := range envs {
			if v := os.Getenv(env); v != "" {
				prov.APIKey = v
				cfg.Providers[name] = prov
				break
			}
		}
	}
}
