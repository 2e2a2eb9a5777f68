package invoker

import (
	"testing"
)

func TestClientManagerMissingBaseURL(t *testing.T) {
	m := NewClientManager(func() *Config {
		return &Config{APIKey: "sk-test"}
	})

	_, err := m.Get()
	if err == nil {
		t.Fatal("Expected configuration error for missing base URL")
	}
	if !IsTerminal(err) {
		t.Errorf("Expected terminal error, got %v", err)
	}
	if err.(*InvokeError).Remediation == "" {
		t.Error("Expected a remediation hint")
	}
}

func TestClientManagerMissingAPIKey(t *testing.T) {
	m := NewClientManager(func() *Config {
		return &Config{BaseURL: "https://api.example.com/v1"}
	})

	_, err := m.Get()
	if err == nil {
		t.Fatal("Expected configuration error for missing API key")
	}
	if !IsTerminal(err) {
		t.Errorf("Expected terminal error, got %v", err)
	}
}

func TestClientManagerCachesHandle(t *testing.T) {
	loads := 0
	m := NewClientManager(func() *Config {
		loads++
		return &Config{BaseURL: "https://api.example.com/v1", APIKey: "sk-test"}
	})

	first, err := m.Get()
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	second, err := m.Get()
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if first != second {
		t.Error("Expected the same cached handle on repeated Get")
	}
	if loads != 1 {
		t.Errorf("Config loaded %d times, want 1", loads)
	}
}

func TestClientManagerResetRereadsConfig(t *testing.T) {
	url := "https://one.example.com/v1"
	m := NewClientManager(func() *Config {
		return &Config{BaseURL: url, APIKey: "sk-test"}
	})

	first, err := m.Get()
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	url = "https://two.example.com/v1"
	m.Reset()

	second, err := m.Get()
	if err != nil {
		t.Fatalf("Get after Reset failed: %v", err)
	}
	if second == first {
		t.Error("Expected a fresh handle after Reset")
	}
	if second.baseURL != "https://two.example.com/v1" {
		t.Errorf("baseURL = %q, want re-read configuration", second.baseURL)
	}
}
