package invoker

import (
	"net/http"
	"sync"
	"time"
)

// clientHandle holds the endpoint coordinates and the shared HTTP client.
// Once constructed it is immutable; callers snapshot the handle at call
// start so a concurrent Reset cannot affect an in-flight request.
type clientHandle struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// ClientManager lazily constructs and caches the shared client handle.
// The handle persists for the process lifetime unless Reset is called, at
// which point the next Get re-reads configuration.
type ClientManager struct {
	mu     sync.Mutex
	load   func() *Config
	handle *clientHandle
}

// NewClientManager creates a manager that reads configuration through load.
// A nil load falls back to ConfigFromEnv.
func NewClientManager(load func() *Config) *ClientManager {
	if load == nil {
		load = ConfigFromEnv
	}
	return &ClientManager{load: load}
}

// Get returns the cached handle, constructing one on first use. A missing
// base URL or API key is a terminal configuration error: it short-circuits
// any retry loop regardless of nesting depth.
func (m *ClientManager) Get() (*clientHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle != nil {
		return m.handle, nil
	}

	cfg := m.load()
	if cfg.BaseURL == "" {
		return nil, newConfigError(
			"AI endpoint is not configured",
			"Set "+EnvBaseURL+" to the base URL of your chat-completions endpoint.")
	}
	if cfg.APIKey == "" {
		return nil, newConfigError(
			"AI API key is not configured",
			"Set "+EnvAPIKey+" to a valid API key for the configured endpoint.")
	}

	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 180 * time.Second
	}

	m.handle = &clientHandle{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	return m.handle, nil
}

// Reset clears the cached handle so a subsequent Get re-reads
// configuration. Not safe to race with an in-flight request that has
// already snapshotted the handle; such requests keep using their snapshot.
func (m *ClientManager) Reset() {
	m.mu.Lock()
	m.handle = nil
	m.mu.Unlock()
}
