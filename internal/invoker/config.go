// Package invoker provides a resilience layer around an OpenAI-compatible
// chat-completions endpoint: ordered multi-model fallback, retry with
// exponential backoff, response-shape normalization for malformed proxy
// output, and structured validation of JSON analysis responses.
package invoker

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables consumed by ConfigFromEnv.
const (
	EnvBaseURL = "AI_BASE_URL"
	EnvAPIKey  = "AI_API_KEY"
	EnvModels  = "AI_MODELS"
	EnvDebug   = "AI_DEBUG"
)

// DefaultModels is the model list used when AI_MODELS is unset. The first
// entry is the primary model; the rest are degraded fallbacks.
const DefaultModels = "gpt-4o-mini,glm-4-flash"

// Config holds the invoker configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Models  string
	Debug   bool

	RequestTimeout time.Duration
}

// fileConfig is the YAML shape of a config file. Durations are written as
// strings ("30s", "2m") and parsed with time.ParseDuration.
type fileConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Models         string `yaml:"models"`
	Debug          bool   `yaml:"debug"`
	RequestTimeout string `yaml:"request_timeout"`
}

// ConfigFromEnv reads configuration from environment variables.
func ConfigFromEnv() *Config {
	return &Config{
		BaseURL:        strings.TrimSpace(os.Getenv(EnvBaseURL)),
		APIKey:         strings.TrimSpace(os.Getenv(EnvAPIKey)),
		Models:         getEnvOrDefault(EnvModels, DefaultModels),
		Debug:          os.Getenv(EnvDebug) == "true" || os.Getenv(EnvDebug) == "1",
		RequestTimeout: 180 * time.Second,
	}
}

// LoadFile overlays values from a YAML file onto c. Only fields present in
// the file replace the current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var overlay fileConfig
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return err
	}

	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.APIKey != "" {
		c.APIKey = overlay.APIKey
	}
	if overlay.Models != "" {
		c.Models = overlay.Models
	}
	if overlay.Debug {
		c.Debug = true
	}
	if overlay.RequestTimeout != "" {
		timeout, err := time.ParseDuration(overlay.RequestTimeout)
		if err != nil {
			return fmt.Errorf("invalid request_timeout: %w", err)
		}
		c.RequestTimeout = timeout
	}
	return nil
}

// ResolveModels parses the comma-separated model list into an ordered,
// non-empty sequence. Entries are trimmed and empty entries dropped. Models
// are tried strictly in this order.
func (c *Config) ResolveModels() ([]string, error) {
	raw := c.Models
	if strings.TrimSpace(raw) == "" {
		raw = DefaultModels
	}

	var models []string
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			models = append(models, name)
		}
	}

	if len(models) == 0 {
		return nil, newConfigError(
			"no usable model names configured",
			"Set "+EnvModels+" to a comma-separated list of model identifiers.")
	}
	return models, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}
