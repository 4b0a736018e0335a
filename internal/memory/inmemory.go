package memory

import (
	"context"
	"sync"
	"time"
)

const defaultMaxTurns = 20

type conversationLog struct {
	nextSeq int64
	turns   []Turn
}

// InMemoryStore is the in-process store used for local/dev runs and tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	maxTurns int
	logs     map[string]*conversationLog
}

func NewInMemoryStore(maxTurns int) *InMemoryStore {
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	return &InMemoryStore{
		maxTurns: maxTurns,
		logs:     make(map[string]*conversationLog),
	}
}

func (s *InMemoryStore) Append(_ context.Context, conversationID string, speaker Speaker, text string) (Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.logs[conversationID]
	if !ok {
		c = &conversationLog{nextSeq: 1}
		s.logs[conversationID] = c
	}

	turn := Turn{
		ConversationID: conversationID,
		Seq:            c.nextSeq,
		Speaker:        speaker,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
	}
	c.nextSeq++
	c.turns = append(c.turns, turn)

	// FIFO retention: drop oldest turns, keep sequence numbers moving forward.
	if len(c.turns) > s.maxTurns {
		c.turns = append(c.turns[:0:0], c.turns[len(c.turns)-s.maxTurns:]...)
	}

	return turn, nil
}

func (s *InMemoryStore) RecentContext(_ context.Context, conversationID string, maxTurns int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.logs[conversationID]
	if !ok || len(c.turns) == 0 {
		return nil, nil
	}
	if maxTurns <= 0 || maxTurns > len(c.turns) {
		maxTurns = len(c.turns)
	}
	out := make([]Turn, maxTurns)
	copy(out, c.turns[len(c.turns)-maxTurns:])
	return out, nil
}

func (s *InMemoryStore) Snapshot(_ context.Context, conversationID string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.logs[conversationID]
	if !ok {
		return Snapshot{NextSeq: 1}, nil
	}
	snap := Snapshot{
		NextSeq: c.nextSeq,
		Turns:   make([]Turn, len(c.turns)),
	}
	copy(snap.Turns, c.turns)
	return snap, nil
}

func (s *InMemoryStore) Restore(_ context.Context, conversationID string, snap Snapshot) error {
	turns := make([]Turn, len(snap.Turns))
	copy(turns, snap.Turns)

	nextSeq := snap.NextSeq
	for _, t := range turns {
		if t.Seq >= nextSeq {
			nextSeq = t.Seq + 1
		}
	}
	if nextSeq < 1 {
		nextSeq = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[conversationID] = &conversationLog{nextSeq: nextSeq, turns: turns}
	return nil
}

func (s *InMemoryStore) Reset(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logs, conversationID)
	return nil
}

func (s *InMemoryStore) Close() error { return nil }
