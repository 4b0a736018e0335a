package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the coaching service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	OllamaBaseURL    string
	OllamaClientMode string
	ModelName        string
	Temperature      float64
	MaxTokens        int
	BackendTimeout   time.Duration
	MaxRetries       int

	MaxHistoryTurns int
	ContextTurns    int
	MaxPromptChars  int

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "bhashavox"),
		AllowAnyOrigin:   false,
		OllamaBaseURL:    envOrDefault("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaClientMode: envOrDefault("OLLAMA_CLIENT_MODE", "auto"),
		// phi3:mini keeps latency tolerable on CPU-only hosts.
		ModelName:       envOrDefault("MODEL_NAME", "phi3:mini"),
		Temperature:     0.7,
		MaxTokens:       500,
		BackendTimeout:  30 * time.Second,
		MaxRetries:      2,
		MaxHistoryTurns: 20,
		ContextTurns:    10,
		MaxPromptChars:  6000,
		DatabaseURL:     stringsTrimSpace("DATABASE_URL"),
		ShutdownTimeout: 15 * time.Second,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.Temperature, err = floatFromEnv("TEMPERATURE", cfg.Temperature)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxTokens, err = intFromEnv("MAX_TOKENS", cfg.MaxTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.BackendTimeout, err = durationFromEnv("BACKEND_TIMEOUT", cfg.BackendTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxRetries, err = intFromEnv("MAX_BACKEND_RETRIES", cfg.MaxRetries)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxHistoryTurns, err = intFromEnv("MAX_HISTORY_TURNS", cfg.MaxHistoryTurns)
	if err != nil {
		return Config{}, err
	}
	cfg.ContextTurns, err = intFromEnv("CONTEXT_TURNS", cfg.ContextTurns)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxPromptChars, err = intFromEnv("MAX_PROMPT_CHARS", cfg.MaxPromptChars)
	if err != nil {
		return Config{}, err
	}

	switch cfg.OllamaClientMode {
	case "auto", "http", "mock":
	default:
		return Config{}, fmt.Errorf("OLLAMA_CLIENT_MODE must be auto, http, or mock")
	}
	if cfg.ModelName == "" {
		return Config{}, fmt.Errorf("MODEL_NAME must not be empty")
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		return Config{}, fmt.Errorf("TEMPERATURE must be between 0 and 2")
	}
	if cfg.MaxTokens <= 0 {
		return Config{}, fmt.Errorf("MAX_TOKENS must be positive")
	}
	if cfg.MaxRetries < 0 {
		return Config{}, fmt.Errorf("MAX_BACKEND_RETRIES must be >= 0")
	}
	if cfg.MaxHistoryTurns <= 0 {
		return Config{}, fmt.Errorf("MAX_HISTORY_TURNS must be positive")
	}
	if cfg.ContextTurns <= 0 {
		return Config{}, fmt.Errorf("CONTEXT_TURNS must be positive")
	}
	if cfg.ContextTurns > cfg.MaxHistoryTurns {
		return Config{}, fmt.Errorf("CONTEXT_TURNS must not exceed MAX_HISTORY_TURNS")
	}
	if cfg.MaxPromptChars <= 0 {
		return Config{}, fmt.Errorf("MAX_PROMPT_CHARS must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
