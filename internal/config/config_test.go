package config

import (
	"os"
	"testing"
	"time"
)

// Tests mutate the process environment via t.Setenv and therefore cannot
// run in parallel.

// unsetEnv removes key for the duration of the test. t.Setenv registers
// the restore; Unsetenv then removes the placeholder it set.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("unsetenv %s: %v", key, err)
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "FRONTEND_URL", "DB_PATH", "LOG_LEVEL",
		"LLM_PROVIDER", "GOOGLE_API_KEY", "OPENAI_API_KEY", "OPENAI_BASE_URL", "LLM_MODEL",
		"SESSION_TTL", "TURN_TIMEOUT", "SWEEP_INTERVAL",
		"TURN_LOG_ENABLED", "TURN_LOG_DIR", "TURN_LOG_GLOBAL_ENABLED", "TURN_LOG_GLOBAL_PATH", "TURN_LOG_QUEUE_SIZE",
	} {
		unsetEnv(t, key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOOGLE_API_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default port 8080, got %q", cfg.Port)
	}
	if cfg.Provider != ProviderGemini {
		t.Errorf("Expected default provider gemini, got %q", cfg.Provider)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("Expected default session TTL 24h, got %v", cfg.SessionTTL)
	}
	if cfg.TurnTimeout != 2*time.Minute {
		t.Errorf("Expected default turn timeout 2m, got %v", cfg.TurnTimeout)
	}
	if !cfg.TurnLog.Enabled || cfg.TurnLog.QueueSize != 1000 {
		t.Errorf("Unexpected turn log defaults: %+v", cfg.TurnLog)
	}
}

func TestLoadGeminiRequiresKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_PROVIDER", "gemini")

	if _, err := Load(); err == nil {
		t.Fatal("Expected an error for gemini without GOOGLE_API_KEY")
	}
}

func TestLoadOpenAIRequiresKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_PROVIDER", "openai")

	if _, err := Load(); err == nil {
		t.Fatal("Expected an error for openai without OPENAI_API_KEY")
	}
}

func TestLoadMockNeedsNoKeys(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_PROVIDER", "mock")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider != ProviderMock {
		t.Errorf("Expected provider mock, got %q", cfg.Provider)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_PROVIDER", "anthropic")

	if _, err := Load(); err == nil {
		t.Fatal("Expected an error for an unknown provider")
	}
}

func TestLoadNormalizesProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_PROVIDER", "  Mock  ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider != ProviderMock {
		t.Errorf("Expected trimmed lowercase provider, got %q", cfg.Provider)
	}
}

func TestLoadParsesDurations(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_PROVIDER", "mock")
	t.Setenv("SESSION_TTL", "90m")
	t.Setenv("TURN_TIMEOUT", "45s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SessionTTL != 90*time.Minute {
		t.Errorf("Expected 90m TTL, got %v", cfg.SessionTTL)
	}
	if cfg.TurnTimeout != 45*time.Second {
		t.Errorf("Expected 45s timeout, got %v", cfg.TurnTimeout)
	}
}

func TestLoadBadDurationFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_PROVIDER", "mock")
	t.Setenv("SESSION_TTL", "ninety minutes")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("Expected fallback TTL, got %v", cfg.SessionTTL)
	}
}

func TestValidateTurnLogDir(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_PROVIDER", "mock")
	t.Setenv("TURN_LOG_ENABLED", "true")
	t.Setenv("TURN_LOG_DIR", "")

	if _, err := Load(); err == nil {
		t.Fatal("Expected an error for enabled turn log without a directory")
	}
}

func TestIsDevelopment(t *testing.T) {
	cases := []struct {
		frontendURL string
		want        bool
	}{
		{"", true},
		{"http://localhost:5173", true},
		{"http://127.0.0.1:3000", true},
		{"https://tripflow.example.com", false},
	}
	for _, tc := range cases {
		cfg := &Config{FrontendURL: tc.frontendURL}
		if got := cfg.IsDevelopment(); got != tc.want {
			t.Errorf("IsDevelopment(%q) = %v, want %v", tc.frontendURL, got, tc.want)
		}
	}
}
