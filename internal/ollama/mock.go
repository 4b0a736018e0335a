package ollama

import (
	"context"
	"strings"
)

// MockClient provides deterministic local replies when no backend is
// configured, keeping the coaching loop usable in degraded mode.
type MockClient struct{}

func NewMockClient() *MockClient { return &MockClient{} }

func (c *MockClient) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	select {
	case <-ctx.Done():
		return GenerateResponse{}, ctx.Err()
	default:
	}
	return GenerateResponse{Response: buildMockReply(req.Prompt)}, nil
}

func (c *MockClient) ListModels(context.Context) ([]string, error) {
	return []string{"mock"}, nil
}

func buildMockReply(prompt string) string {
	utterance := lastUserLine(prompt)
	if utterance == "" {
		return "Reply: I am listening. Tell me about your day!"
	}
	return "Reply: Thanks for practicing! You said: " + utterance + " - keep going, what happened next?"
}

// lastUserLine pulls the newest "User:" line out of the assembled prompt so
// the canned reply at least echoes the utterance.
func lastUserLine(prompt string) string {
	lines := strings.Split(prompt, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if rest, ok := strings.CutPrefix(lines[i], "User: "); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}
