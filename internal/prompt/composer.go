package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bhashavox/bhashavox/internal/ledger"
	"github.com/bhashavox/bhashavox/internal/memory"
)

const defaultMaxChars = 6000

// ErrPromptTooLarge reports that the irreducible minimum (preamble plus the
// new utterance) already exceeds the configured budget. Structural and
// non-retryable.
var ErrPromptTooLarge = errors.New("prompt exceeds size budget")

// Composer assembles the full prompt payload from persona rules, the
// proficiency estimate, recent history, and the new utterance. Given the
// same inputs it always produces the same output.
type Composer struct {
	maxChars int
}

func NewComposer(maxChars int) *Composer {
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	return &Composer{maxChars: maxChars}
}

// Compose builds the prompt text. The character budget is enforced by
// trimming the oldest context turns first; the preamble and the new
// utterance are never truncated.
func (c *Composer) Compose(level ledger.Level, recent []memory.Turn, utterance string) (string, error) {
	utterance = strings.TrimSpace(utterance)

	instruction := levelInstructions[level]
	if instruction == "" {
		instruction = levelInstructions[ledger.LevelBeginner]
	}

	head := Preamble + "\n\n" + instruction + "\n\n"
	tail := "User: " + utterance + "\n\nBhashaVox:"

	if len(Preamble)+len(tail)+2 > c.maxChars {
		return "", fmt.Errorf("%w: minimum %d chars over budget %d",
			ErrPromptTooLarge, len(Preamble)+len(tail)+2, c.maxChars)
	}

	// Drop the level instruction before any history if even it does not fit.
	if len(head)+len(tail) > c.maxChars {
		head = Preamble + "\n\n"
	}

	lines := make([]string, len(recent))
	for i, turn := range recent {
		lines[i] = formatTurn(turn)
	}

	// Trim oldest turns until the assembled prompt fits.
	for start := 0; ; start++ {
		if start > len(lines) {
			return head + tail, nil
		}
		body := ""
		if start < len(lines) {
			body = "Previous conversation:\n" + strings.Join(lines[start:], "\n") + "\n\n"
		}
		full := head + body + tail
		if len(full) <= c.maxChars {
			return full, nil
		}
	}
}

func formatTurn(turn memory.Turn) string {
	name := "User"
	if turn.Speaker == memory.SpeakerAssistant {
		name = "BhashaVox"
	}
	return name + ": " + turn.Text
}
