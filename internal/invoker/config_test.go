package invoker

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestResolveModelsTrimsAndFilters(t *testing.T) {
	cfg := &Config{Models: " gpt-a , , gpt-b "}

	models, err := cfg.ResolveModels()
	if err != nil {
		t.Fatalf("ResolveModels failed: %v", err)
	}
	if len(models) != 2 || models[0] != "gpt-a" || models[1] != "gpt-b" {
		t.Errorf("ResolveModels = %v, want [gpt-a gpt-b]", models)
	}
}

func TestResolveModelsDefault(t *testing.T) {
	cfg := &Config{}

	models, err := cfg.ResolveModels()
	if err != nil {
		t.Fatalf("ResolveModels failed: %v", err)
	}
	want := strings.Split(DefaultModels, ",")
	if len(models) != len(want) {
		t.Fatalf("ResolveModels = %v, want default list %v", models, want)
	}
	for i := range want {
		if models[i] != strings.TrimSpace(want[i]) {
			t.Errorf("models[%d] = %q, want %q", i, models[i], want[i])
		}
	}
}

func TestResolveModelsAllEmpty(t *testing.T) {
	cfg := &Config{Models: " , , "}

	_, err := cfg.ResolveModels()
	if err == nil {
		t.Fatal("Expected configuration error for empty model list")
	}
	if !IsTerminal(err) {
		t.Errorf("Expected terminal configuration error, got %v", err)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(EnvBaseURL, " https://api.example.com/v1 ")
	t.Setenv(EnvAPIKey, "sk-test")
	t.Setenv(EnvModels, "glm-4-flash")
	t.Setenv(EnvDebug, "true")

	cfg := ConfigFromEnv()
	if cfg.BaseURL != "https://api.example.com/v1" {
		t.Errorf("BaseURL = %q, want trimmed URL", cfg.BaseURL)
	}
	if cfg.APIKey != "sk-test" {
		t.Errorf("APIKey = %q, want sk-test", cfg.APIKey)
	}
	if cfg.Models != "glm-4-flash" {
		t.Errorf("Models = %q, want glm-4-flash", cfg.Models)
	}
	if !cfg.Debug {
		t.Error("Debug should be enabled")
	}
}

func TestConfigLoadFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invoker.yaml")
	content := "base_url: https://proxy.internal/v1\nmodels: gpt-a,gpt-b\nrequest_timeout: 30s\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg := &Config{
		BaseURL: "https://api.example.com/v1",
		APIKey:  "sk-keep",
		Models:  DefaultModels,
	}
	if err := cfg.LoadFile(path); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.BaseURL != "https://proxy.internal/v1" {
		t.Errorf("BaseURL = %q, want overlay value", cfg.BaseURL)
	}
	if cfg.APIKey != "sk-keep" {
		t.Errorf("APIKey = %q, want original value preserved", cfg.APIKey)
	}
	if cfg.Models != "gpt-a,gpt-b" {
		t.Errorf("Models = %q, want overlay value", cfg.Models)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s", cfg.RequestTimeout)
	}
}

func TestConfigLoadFileMissing(t *testing.T) {
	cfg := &Config{}
	if err := cfg.LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}
