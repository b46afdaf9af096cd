package relay

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full relay configuration. API keys are read from the
// environment after the file is parsed, so a checked-in config file never
// needs to carry secrets.
type Config struct {
	Listen string `yaml:"listen"`
	DBPath string `yaml:"db_path"`

	// UpstreamTimeout bounds each provider call. Default: 30s.
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`

	// FetchTimeout bounds each page fetch. Default: 15s.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// GenericURL is the endpoint of a self-hosted model, forwarded to
	// verbatim with no auth header. Empty disables the generic provider.
	GenericURL string `yaml:"generic_url"`

	// BrowserFallback renders pages with no extractable body text in
	// headless Chrome and retries extraction. Off by default: Chrome is
	// an optional deployment dependency.
	BrowserFallback bool `yaml:"browser_fallback"`

	// BrowserURL is the WebSocket URL of an external Chrome instance.
	// Empty launches a local Chrome when BrowserFallback is on.
	BrowserURL string `yaml:"browser_url"`

	// Auth enables HTTP Basic auth when a bcrypt password hash is set.
	Auth AuthConfig `yaml:"auth"`

	Keys Keys `yaml:"-"`
}

// AuthConfig configures optional Basic auth on all endpoints.
type AuthConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"` // bcrypt
}

// Keys holds per-provider API keys. Environment only.
type Keys struct {
	OpenAI    string
	Anthropic string
	Gemini    string
	Grok      string
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:          ":3001",
		DBPath:          "pageai.db",
		UpstreamTimeout: 30 * time.Second,
		FetchTimeout:    15 * time.Second,
	}
}

// LoadConfig reads a YAML config file merged over DefaultConfig, then
// fills API keys from the environment. Path "" skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.Keys = KeysFromEnv()
	return cfg, cfg.Validate()
}

// KeysFromEnv reads provider API keys from the environment.
func KeysFromEnv() Keys {
	return Keys{
		OpenAI:    os.Getenv("OPENAI_API_KEY"),
		Anthropic: os.Getenv("ANTHROPIC_API_KEY"),
		Gemini:    os.Getenv("GEMINI_API_KEY"),
		Grok:      os.Getenv("GROK_API_KEY"),
	}
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("upstream_timeout must be > 0")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch_timeout must be > 0")
	}
	if c.Auth.PasswordHash != "" && c.Auth.Username == "" {
		return fmt.Errorf("auth.username is required when auth.password_hash is set")
	}
	return nil
}
