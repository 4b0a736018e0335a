package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/bhashavox/bhashavox/internal/classify"
)

// Level is the coarse proficiency signal fed back into prompting.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// Proficiency thresholds over the overall error rate. Level assignment only
// kicks in after minTurnsForSignal observed turns; before that the estimate
// stays at beginner because there is not enough signal.
const (
	beginnerRate      = 0.5
	intermediateRate  = 0.2
	minTurnsForSignal = 3
)

// MistakeRecord is one classified mistake, denormalized at write time so the
// ledger never depends on turn survival in the memory store.
type MistakeRecord struct {
	Category    classify.Category `json:"category"`
	Fragment    string            `json:"fragment"`
	Corrected   string            `json:"corrected"`
	Explanation string            `json:"explanation"`
	TurnSeq     int64             `json:"turn_seq"`
	RecordedAt  time.Time         `json:"recorded_at"`
}

// ProficiencyEstimate is recomputed on demand from the record history; it is
// never stored or mutated independently.
type ProficiencyEstimate struct {
	Level         Level                         `json:"level"`
	OverallRate   float64                       `json:"overall_rate"`
	CategoryRates map[classify.Category]float64 `json:"category_rates"`
	TurnsObserved int64                         `json:"turns_observed"`
	TotalMistakes int64                         `json:"total_mistakes"`
}

// Snapshot exports all ledger state for one conversation so persistence can
// be layered on without touching core logic.
type Snapshot struct {
	TurnsObserved int64           `json:"turns_observed"`
	LastTurnSeq   int64           `json:"last_turn_seq"`
	Records       []MistakeRecord `json:"records"`
}

// ValidationError reports out-of-order input to the ledger. Local and
// non-retryable.
type ValidationError struct {
	ConversationID string
	TurnSeq        int64
	LastSeq        int64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ledger: conversation %s: turn seq %d is not after last seq %d",
		e.ConversationID, e.TurnSeq, e.LastSeq)
}

type conversationLedger struct {
	turnsObserved int64
	lastTurnSeq   int64
	records       []MistakeRecord
}

// Ledger is the append-only mistake record keyed by conversation id.
type Ledger struct {
	mu            sync.RWMutex
	conversations map[string]*conversationLedger
}

func New() *Ledger {
	return &Ledger{conversations: make(map[string]*conversationLedger)}
}

// ObserveTurn counts one user turn toward the proficiency denominator.
// Sequence numbers must be strictly increasing per conversation.
func (l *Ledger) ObserveTurn(conversationID string, turnSeq int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := l.ensureLocked(conversationID)
	if turnSeq <= c.lastTurnSeq {
		return &ValidationError{ConversationID: conversationID, TurnSeq: turnSeq, LastSeq: c.lastTurnSeq}
	}
	c.lastTurnSeq = turnSeq
	c.turnsObserved++
	return nil
}

// Record appends one mistake. It never overwrites; a record attached to a
// turn older than the latest observed one is rejected.
func (l *Ledger) Record(conversationID string, rec MistakeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := l.ensureLocked(conversationID)
	if rec.TurnSeq < c.lastTurnSeq {
		return &ValidationError{ConversationID: conversationID, TurnSeq: rec.TurnSeq, LastSeq: c.lastTurnSeq}
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	c.records = append(c.records, rec)
	return nil
}

// Proficiency recomputes the estimate from scratch. Unknown or empty
// conversations yield the default beginner/no-data estimate, never an error.
func (l *Ledger) Proficiency(conversationID string) ProficiencyEstimate {
	l.mu.RLock()
	defer l.mu.RUnlock()

	est := ProficiencyEstimate{
		Level:         LevelBeginner,
		CategoryRates: map[classify.Category]float64{},
	}
	c, ok := l.conversations[conversationID]
	if !ok {
		return est
	}

	est.TurnsObserved = c.turnsObserved
	est.TotalMistakes = int64(len(c.records))

	// Floor the denominator at 1 so an estimate for a record-only restore
	// never divides by zero.
	turns := c.turnsObserved
	if turns < 1 {
		turns = 1
	}

	counts := map[classify.Category]int64{}
	for _, rec := range c.records {
		counts[rec.Category]++
	}
	for cat, n := range counts {
		est.CategoryRates[cat] = float64(n) / float64(turns)
	}
	est.OverallRate = float64(len(c.records)) / float64(turns)

	if c.turnsObserved < minTurnsForSignal {
		return est
	}
	switch {
	case est.OverallRate >= beginnerRate:
		est.Level = LevelBeginner
	case est.OverallRate >= intermediateRate:
		est.Level = LevelIntermediate
	default:
		est.Level = LevelAdvanced
	}
	return est
}

// CategoryCounts returns mistake totals per category for reporting.
func (l *Ledger) CategoryCounts(conversationID string) map[classify.Category]int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	counts := map[classify.Category]int64{}
	c, ok := l.conversations[conversationID]
	if !ok {
		return counts
	}
	for _, rec := range c.records {
		counts[rec.Category]++
	}
	return counts
}

// RecentMistakes returns up to n most recent records in chronological order.
func (l *Ledger) RecentMistakes(conversationID string, n int) []MistakeRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.conversations[conversationID]
	if !ok || len(c.records) == 0 {
		return nil
	}
	if n <= 0 || n > len(c.records) {
		n = len(c.records)
	}
	out := make([]MistakeRecord, n)
	copy(out, c.records[len(c.records)-n:])
	return out
}

// Snapshot exports all ledger state for a conversation.
func (l *Ledger) Snapshot(conversationID string) Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.conversations[conversationID]
	if !ok {
		return Snapshot{}
	}
	snap := Snapshot{
		TurnsObserved: c.turnsObserved,
		LastTurnSeq:   c.lastTurnSeq,
		Records:       make([]MistakeRecord, len(c.records)),
	}
	copy(snap.Records, c.records)
	return snap
}

// Restore rehydrates a conversation from a snapshot, replacing any existing
// state for that id.
func (l *Ledger) Restore(conversationID string, snap Snapshot) {
	records := make([]MistakeRecord, len(snap.Records))
	copy(records, snap.Records)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.conversations[conversationID] = &conversationLedger{
		turnsObserved: snap.TurnsObserved,
		lastTurnSeq:   snap.LastTurnSeq,
		records:       records,
	}
}

// Reset drops all state for one conversation.
func (l *Ledger) Reset(conversationID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.conversations, conversationID)
}

func (l *Ledger) ensureLocked(conversationID string) *conversationLedger {
	c, ok := l.conversations[conversationID]
	if !ok {
		c = &conversationLedger{}
		l.conversations[conversationID] = c
	}
	return c
}
