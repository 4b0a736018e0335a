package ollama

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// GenerateOptions tunes a single completion request.
type GenerateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// GenerateRequest is the payload for Ollama's /api/generate endpoint.
// Streaming stays off: the coaching turn needs the complete reply before it
// can be parsed.
type GenerateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options GenerateOptions `json:"options"`
}

// GenerateResponse carries the raw model text.
type GenerateResponse struct {
	Response string `json:"response"`
}

// Sentinel errors for transport faults. The orchestrator retries on both
// within its bounded retry budget; everything else surfaces immediately.
var (
	ErrTimeout     = errors.New("ollama: request timed out")
	ErrUnavailable = errors.New("ollama: backend unavailable")
)

// Client is the inference collaborator contract: send assembled prompt
// text, receive raw model text.
type Client interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error)
	ListModels(ctx context.Context) ([]string, error)
}

// Config controls client construction.
type Config struct {
	Mode    string
	BaseURL string
}

// NewClient builds a client for the configured mode. Auto prefers HTTP when
// a base URL is set and otherwise degrades to the deterministic mock so the
// rest of the system keeps working without a running backend.
func NewClient(cfg Config) (Client, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.BaseURL) != "" {
			return NewHTTPClient(cfg.BaseURL), nil
		}
		return NewMockClient(), nil
	case "http":
		if strings.TrimSpace(cfg.BaseURL) == "" {
			return nil, errors.New("ollama base URL is required for http mode")
		}
		return NewHTTPClient(cfg.BaseURL), nil
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unsupported ollama client mode %q", cfg.Mode)
	}
}
