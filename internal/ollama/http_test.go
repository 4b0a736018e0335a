package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPClientGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %q, want /api/generate", r.URL.Path)
		}
		var req GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Stream {
			t.Errorf("Stream = true, want false")
		}
		if req.Model != "phi3:mini" {
			t.Errorf("Model = %q, want phi3:mini", req.Model)
		}
		_ = json.NewEncoder(w).Encode(GenerateResponse{Response: "Reply: Hello!"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	got, err := c.Generate(context.Background(), GenerateRequest{
		Model:   "phi3:mini",
		Prompt:  "say hello",
		Options: GenerateOptions{Temperature: 0.7, NumPredict: 500},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got.Response != "Reply: Hello!" {
		t.Fatalf("Response = %q", got.Response)
	}
}

func TestHTTPClientGenerateRetryableStatusIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Prompt: "p"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Generate() error = %v, want ErrUnavailable", err)
	}
}

func TestHTTPClientGenerateNonRetryableStatusIsPlainError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad model", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Prompt: "p"})
	if err == nil {
		t.Fatalf("Generate() error = nil, want error")
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout) {
		t.Fatalf("Generate() error = %v, want plain non-transient error", err)
	}
}

func TestHTTPClientGenerateConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // guaranteed-dead address

	c := NewHTTPClient(srv.URL)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Prompt: "p"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Generate() error = %v, want ErrUnavailable", err)
	}
}

func TestHTTPClientGenerateTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Generate(ctx, GenerateRequest{Model: "m", Prompt: "p"})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Generate() error = %v, want ErrTimeout", err)
	}
}

func TestHTTPClientListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %q, want /api/tags", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"models":[{"name":"phi3:mini"},{"name":"llama3"}]}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(models) != 2 || models[0] != "phi3:mini" || models[1] != "llama3" {
		t.Fatalf("models = %v", models)
	}
}

func TestNewClientModes(t *testing.T) {
	if _, err := NewClient(Config{Mode: "http"}); err == nil {
		t.Fatalf("http mode without base URL should fail")
	}
	c, err := NewClient(Config{Mode: "auto"})
	if err != nil {
		t.Fatalf("NewClient(auto) error = %v", err)
	}
	if _, ok := c.(*MockClient); !ok {
		t.Fatalf("auto mode without base URL should pick the mock client, got %T", c)
	}
	if _, err := NewClient(Config{Mode: "banana"}); err == nil {
		t.Fatalf("unsupported mode should fail")
	}
}
