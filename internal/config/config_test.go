package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.ModelName != "phi3:mini" {
		t.Fatalf("ModelName = %q, want %q", cfg.ModelName, "phi3:mini")
	}
	if cfg.OllamaClientMode != "auto" {
		t.Fatalf("OllamaClientMode = %q, want %q", cfg.OllamaClientMode, "auto")
	}
	if cfg.Temperature != 0.7 {
		t.Fatalf("Temperature = %v, want 0.7", cfg.Temperature)
	}
	if cfg.MaxHistoryTurns != 20 || cfg.ContextTurns != 10 {
		t.Fatalf("history/context = %d/%d, want 20/10", cfg.MaxHistoryTurns, cfg.ContextTurns)
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("DatabaseURL = %q, want empty default", cfg.DatabaseURL)
	}
}

func TestLoadOverrides(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9090")
	t.Setenv("MODEL_NAME", "llama3")
	t.Setenv("TEMPERATURE", "0.3")
	t.Setenv("BACKEND_TIMEOUT", "45s")
	t.Setenv("MAX_HISTORY_TURNS", "40")
	t.Setenv("CONTEXT_TURNS", "12")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9090" {
		t.Fatalf("BindAddr = %q", cfg.BindAddr)
	}
	if cfg.ModelName != "llama3" {
		t.Fatalf("ModelName = %q", cfg.ModelName)
	}
	if cfg.Temperature != 0.3 {
		t.Fatalf("Temperature = %v", cfg.Temperature)
	}
	if cfg.BackendTimeout != 45*time.Second {
		t.Fatalf("BackendTimeout = %v", cfg.BackendTimeout)
	}
	if cfg.MaxHistoryTurns != 40 || cfg.ContextTurns != 12 {
		t.Fatalf("history/context = %d/%d", cfg.MaxHistoryTurns, cfg.ContextTurns)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct {
		key, value string
	}{
		{"OLLAMA_CLIENT_MODE", "grpc"},
		{"TEMPERATURE", "3.5"},
		{"MAX_TOKENS", "0"},
		{"MAX_BACKEND_RETRIES", "-1"},
		{"CONTEXT_TURNS", "50"},
		{"BACKEND_TIMEOUT", "soon"},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			setCoreEnvEmpty(t)
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() accepted %s=%q", tc.key, tc.value)
			}
		})
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"OLLAMA_BASE_URL",
		"OLLAMA_CLIENT_MODE",
		"MODEL_NAME",
		"TEMPERATURE",
		"MAX_TOKENS",
		"BACKEND_TIMEOUT",
		"MAX_BACKEND_RETRIES",
		"MAX_HISTORY_TURNS",
		"CONTEXT_TURNS",
		"MAX_PROMPT_CHARS",
		"DATABASE_URL",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
