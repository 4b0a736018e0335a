package coach

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bhashavox/bhashavox/internal/classify"
	"github.com/bhashavox/bhashavox/internal/conversation"
	"github.com/bhashavox/bhashavox/internal/ledger"
	"github.com/bhashavox/bhashavox/internal/memory"
	"github.com/bhashavox/bhashavox/internal/observability"
	"github.com/bhashavox/bhashavox/internal/ollama"
	"github.com/bhashavox/bhashavox/internal/prompt"
	"github.com/bhashavox/bhashavox/internal/reliability"
)

const (
	retryBackoffBase = 200 * time.Millisecond
	retryBackoffCap  = 2 * time.Second

	// Below this many observed turns the ledger signal is too thin, so an
	// explicitly assessed level wins over the derived estimate.
	assessedLevelTurns = 3

	assessTemperature = 0.3
)

var ErrEmptyUtterance = errors.New("utterance must not be empty")

// TurnResult is the structured output of one coaching turn.
type TurnResult struct {
	ConversationID  string                     `json:"conversation_id"`
	UserSeq         int64                      `json:"user_seq"`
	AssistantSeq    int64                      `json:"assistant_seq"`
	Corrected       string                     `json:"corrected,omitempty"`
	Explanation     string                     `json:"explanation,omitempty"`
	Reply           string                     `json:"reply"`
	CorrectionsMade bool                       `json:"corrections_made"`
	ParseFallback   bool                       `json:"parse_fallback,omitempty"`
	Proficiency     ledger.ProficiencyEstimate `json:"proficiency"`
}

// Stats summarizes one conversation for reporting.
type Stats struct {
	ConversationID  string                      `json:"conversation_id"`
	Turns           int64                       `json:"turns"`
	CorrectionsMade int64                       `json:"corrections_made"`
	AccuracyRate    float64                     `json:"accuracy_rate"`
	DurationMinutes float64                     `json:"duration_minutes"`
	Level           ledger.Level                `json:"level"`
	MistakesByType  map[classify.Category]int64 `json:"mistakes_by_type"`
	RecentMistakes  []ledger.MistakeRecord      `json:"recent_mistakes,omitempty"`
}

// ConversationExport bundles both stores' snapshots for one conversation.
type ConversationExport struct {
	Memory memory.Snapshot `json:"memory"`
	Ledger ledger.Snapshot `json:"ledger"`
}

// Options configures the engine.
type Options struct {
	Model          string
	Temperature    float64
	MaxTokens      int
	ContextTurns   int
	BackendTimeout time.Duration
	MaxRetries     int
}

// Engine is the coaching orchestrator: the only component that talks to the
// inference backend. Everything else it composes is pure and local.
type Engine struct {
	conversations *conversation.Manager
	store         memory.Store
	ledger        *ledger.Ledger
	composer      *prompt.Composer
	client        ollama.Client
	metrics       *observability.Metrics
	opts          Options
	locks         *keyedLocks
}

func NewEngine(
	conversations *conversation.Manager,
	store memory.Store,
	mistakes *ledger.Ledger,
	composer *prompt.Composer,
	client ollama.Client,
	metrics *observability.Metrics,
	opts Options,
) *Engine {
	if opts.ContextTurns <= 0 {
		opts.ContextTurns = 10
	}
	if opts.BackendTimeout <= 0 {
		opts.BackendTimeout = 30 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Engine{
		conversations: conversations,
		store:         store,
		ledger:        mistakes,
		composer:      composer,
		client:        client,
		metrics:       metrics,
		opts:          opts,
		locks:         newKeyedLocks(),
	}
}

// HandleTurn runs one full request/response coaching cycle. Turns for the
// same conversation are serialized; the user turn is appended eagerly while
// ledger records and the assistant turn are written only after a successful
// backend response, so a failed or cancelled turn leaves no partial writes.
func (e *Engine) HandleTurn(ctx context.Context, conversationID, utterance string) (TurnResult, error) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return TurnResult{}, ErrEmptyUtterance
	}

	conv := e.conversations.Ensure(conversationID)
	id := conv.ID

	release := e.locks.acquire(id)
	defer release()

	started := time.Now()

	matches := classify.Classify(utterance)

	prior, err := e.store.RecentContext(ctx, id, e.opts.ContextTurns)
	if err != nil {
		return TurnResult{}, fmt.Errorf("conversation %s: recent context: %w", id, err)
	}

	// The user turn is valid regardless of how the rest of the cycle goes, so
	// it is appended eagerly. Ledger writes wait for the backend response.
	userTurn, err := e.store.Append(ctx, id, memory.SpeakerUser, utterance)
	if err != nil {
		return TurnResult{}, fmt.Errorf("conversation %s: append user turn: %w", id, err)
	}

	est := e.ledger.Proficiency(id)
	level := est.Level
	if conv.AssessedLevel != "" && est.TurnsObserved < assessedLevelTurns {
		level = conv.AssessedLevel
	}

	promptText, err := e.composer.Compose(level, prior, utterance)
	if err != nil {
		return TurnResult{}, fmt.Errorf("conversation %s: compose prompt: %w", id, err)
	}

	raw, err := e.generateWithRetry(ctx, promptText, e.opts.Temperature)
	if err != nil {
		e.metrics.TurnEvents.WithLabelValues("backend_error").Inc()
		e.metrics.BackendErrors.WithLabelValues(backendErrorCode(err)).Inc()
		return TurnResult{}, fmt.Errorf("conversation %s: backend: %w", id, err)
	}

	parsed := ParseReply(raw)
	if parsed.Fallback {
		e.metrics.TurnEvents.WithLabelValues("parse_fallback").Inc()
	}

	if err := e.ledger.ObserveTurn(id, userTurn.Seq); err != nil {
		return TurnResult{}, fmt.Errorf("conversation %s: observe turn: %w", id, err)
	}

	records := reconcile(matches, parsed, utterance, userTurn.Seq)
	for _, rec := range records {
		if err := e.ledger.Record(id, rec); err != nil {
			return TurnResult{}, fmt.Errorf("conversation %s: record mistake: %w", id, err)
		}
		e.metrics.MistakesRecorded.WithLabelValues(string(rec.Category)).Inc()
	}

	assistantTurn, err := e.store.Append(ctx, id, memory.SpeakerAssistant, raw)
	if err != nil {
		return TurnResult{}, fmt.Errorf("conversation %s: append assistant turn: %w", id, err)
	}

	_ = e.conversations.Touch(id)
	e.metrics.TurnEvents.WithLabelValues("completed").Inc()
	e.metrics.ActiveConversations.Set(float64(e.conversations.Count()))
	e.metrics.ObserveTurnLatency(time.Since(started))

	reply := parsed.Reply
	if reply == "" {
		reply = strings.TrimSpace(raw)
	}

	return TurnResult{
		ConversationID:  id,
		UserSeq:         userTurn.Seq,
		AssistantSeq:    assistantTurn.Seq,
		Corrected:       parsed.Corrected,
		Explanation:     parsed.Tip,
		Reply:           reply,
		CorrectionsMade: len(records) > 0,
		ParseFallback:   parsed.Fallback,
		Proficiency:     e.ledger.Proficiency(id),
	}, nil
}

// AssessLevel probes the backend for a proficiency level from one sample
// message and pins the result on the conversation.
func (e *Engine) AssessLevel(ctx context.Context, conversationID, utterance string) (ledger.Level, string, error) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return "", "", ErrEmptyUtterance
	}

	conv := e.conversations.Ensure(conversationID)
	raw, err := e.generateWithRetry(ctx, prompt.LevelAssessment(utterance), assessTemperature)
	if err != nil {
		e.metrics.BackendErrors.WithLabelValues(backendErrorCode(err)).Inc()
		return "", "", fmt.Errorf("conversation %s: assess level: %w", conv.ID, err)
	}

	level := ledger.LevelIntermediate
	if word, ok := parseLevel(raw); ok {
		level = ledger.Level(word)
	}
	if err := e.conversations.SetLevel(conv.ID, level); err != nil {
		return "", "", fmt.Errorf("conversation %s: set level: %w", conv.ID, err)
	}
	return level, conv.ID, nil
}

// History returns up to maxTurns recent turns in chronological order.
func (e *Engine) History(ctx context.Context, conversationID string, maxTurns int) ([]memory.Turn, error) {
	return e.store.RecentContext(ctx, conversationID, maxTurns)
}

// Stats reports session statistics for one conversation.
func (e *Engine) Stats(conversationID string) (Stats, error) {
	conv, err := e.conversations.Get(conversationID)
	if err != nil {
		return Stats{}, err
	}

	snap := e.ledger.Snapshot(conversationID)
	est := e.ledger.Proficiency(conversationID)

	mistakeTurns := map[int64]struct{}{}
	for _, rec := range snap.Records {
		mistakeTurns[rec.TurnSeq] = struct{}{}
	}

	accuracy := 100.0
	if snap.TurnsObserved > 0 {
		accuracy = float64(snap.TurnsObserved-int64(len(mistakeTurns))) / float64(snap.TurnsObserved) * 100
	}

	level := est.Level
	if conv.AssessedLevel != "" && est.TurnsObserved < assessedLevelTurns {
		level = conv.AssessedLevel
	}

	return Stats{
		ConversationID:  conversationID,
		Turns:           snap.TurnsObserved,
		CorrectionsMade: int64(len(snap.Records)),
		AccuracyRate:    accuracy,
		DurationMinutes: time.Since(conv.StartedAt).Minutes(),
		Level:           level,
		MistakesByType:  e.ledger.CategoryCounts(conversationID),
		RecentMistakes:  e.ledger.RecentMistakes(conversationID, 5),
	}, nil
}

// Reset drops all state for one conversation across registry, memory, and
// ledger. Resetting an unknown conversation is a no-op.
func (e *Engine) Reset(ctx context.Context, conversationID string) error {
	release := e.locks.acquire(conversationID)
	defer release()

	if err := e.store.Reset(ctx, conversationID); err != nil {
		return fmt.Errorf("conversation %s: reset memory: %w", conversationID, err)
	}
	e.ledger.Reset(conversationID)
	if err := e.conversations.Reset(conversationID); err != nil && !errors.Is(err, conversation.ErrNotFound) {
		return fmt.Errorf("conversation %s: reset registry: %w", conversationID, err)
	}
	e.metrics.ActiveConversations.Set(float64(e.conversations.Count()))
	return nil
}

// Export bundles both stores' snapshots so callers can persist and later
// rehydrate a conversation without touching core logic.
func (e *Engine) Export(ctx context.Context, conversationID string) (ConversationExport, error) {
	memSnap, err := e.store.Snapshot(ctx, conversationID)
	if err != nil {
		return ConversationExport{}, fmt.Errorf("conversation %s: snapshot memory: %w", conversationID, err)
	}
	return ConversationExport{
		Memory: memSnap,
		Ledger: e.ledger.Snapshot(conversationID),
	}, nil
}

// Import rehydrates a conversation from an export.
func (e *Engine) Import(ctx context.Context, conversationID string, exp ConversationExport) error {
	release := e.locks.acquire(conversationID)
	defer release()

	e.conversations.Ensure(conversationID)
	if err := e.store.Restore(ctx, conversationID, exp.Memory); err != nil {
		return fmt.Errorf("conversation %s: restore memory: %w", conversationID, err)
	}
	e.ledger.Restore(conversationID, exp.Ledger)
	return nil
}

// BackendStatus reports backend reachability and whether the configured
// model is served.
func (e *Engine) BackendStatus(ctx context.Context) (bool, []string, error) {
	models, err := e.client.ListModels(ctx)
	if err != nil {
		return false, nil, err
	}
	for _, m := range models {
		if m == e.opts.Model {
			return true, models, nil
		}
	}
	return false, models, nil
}

// Model returns the configured backend model identifier.
func (e *Engine) Model() string { return e.opts.Model }

func (e *Engine) generateWithRetry(ctx context.Context, promptText string, temperature float64) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= e.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := reliability.ExponentialBackoff(attempt-1, retryBackoffBase, retryBackoffCap)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, e.opts.BackendTimeout)
		resp, err := e.client.Generate(attemptCtx, ollama.GenerateRequest{
			Model:  e.opts.Model,
			Prompt: promptText,
			Stream: false,
			Options: ollama.GenerateOptions{
				Temperature: temperature,
				NumPredict:  e.opts.MaxTokens,
			},
		})
		cancel()
		if err == nil {
			return resp.Response, nil
		}
		lastErr = err
		if !errors.Is(err, ollama.ErrTimeout) && !errors.Is(err, ollama.ErrUnavailable) {
			return "", err
		}
	}
	return "", lastErr
}

// reconcile merges the model's correction with the classifier's local
// candidates. The model decides whether a mistake happened at all; the
// classifier supplies categories and fragments when it flagged the same
// utterance.
func reconcile(matches []classify.Match, parsed ParsedReply, utterance string, turnSeq int64) []ledger.MistakeRecord {
	corrected := strings.TrimSpace(parsed.Corrected)
	if corrected == "" {
		return nil
	}

	if len(matches) == 0 {
		return []ledger.MistakeRecord{{
			Category:    classify.CategoryOther,
			Fragment:    utterance,
			Corrected:   corrected,
			Explanation: parsed.Tip,
			TurnSeq:     turnSeq,
		}}
	}

	records := make([]ledger.MistakeRecord, 0, len(matches))
	lowerCorrected := strings.ToLower(corrected)
	for _, m := range matches {
		fix := m.Suggestion
		// Model output takes precedence: keep the classifier's suggestion only
		// when the model's corrected sentence agrees with it.
		if fix == "" || !strings.Contains(lowerCorrected, strings.ToLower(fix)) {
			fix = corrected
		}
		records = append(records, ledger.MistakeRecord{
			Category:    m.Category,
			Fragment:    m.Fragment,
			Corrected:   fix,
			Explanation: parsed.Tip,
			TurnSeq:     turnSeq,
		})
	}
	return records
}

func backendErrorCode(err error) string {
	switch {
	case errors.Is(err, ollama.ErrTimeout):
		return "timeout"
	case errors.Is(err, ollama.ErrUnavailable):
		return "unavailable"
	default:
		return "other"
	}
}
